package report

import (
	"testing"

	"github.com/halden/outlay/internal/models"
)

func TestTotalSkipsPendingDeletes(t *testing.T) {
	txs := []models.Transaction{
		{Amount: 500},
		{Amount: 300, PendingAction: models.PendingDelete},
		{Amount: 200},
	}
	if got := Total(txs); got != 700 {
		t.Fatalf("total: got %d, want 700", got)
	}
}

func TestAllSettledAndAnyOnHold(t *testing.T) {
	settled := models.Transaction{Status: models.TransactionPosted, Amount: 100}
	pending := models.Transaction{Status: models.TransactionPending, Amount: 100}
	held := settled
	held.Comment.Hold = "action-1"

	if !AllSettled([]models.Transaction{settled}) {
		t.Fatal("posted transaction should count as settled")
	}
	if AllSettled([]models.Transaction{settled, pending}) {
		t.Fatal("pending transaction should block settlement")
	}
	if AnyOnHold([]models.Transaction{settled}) {
		t.Fatal("no hold expected")
	}
	if !AnyOnHold([]models.Transaction{settled, held}) {
		t.Fatal("held transaction should be detected")
	}
}

func TestLastVisibleCreatedExcluding(t *testing.T) {
	actions := map[string]models.ReportAction{
		"a1": {ActionName: models.ActionAddComment, Created: "2026-08-01 10:00:00.001"},
		"a2": {ActionName: models.ActionIOU, Created: "2026-08-02 09:00:00.002"},
		"a3": {ActionName: models.ActionCreated, Created: "2026-08-03 08:00:00.003", PendingAction: models.PendingDelete},
	}

	if got := LastVisibleCreated(actions); got != "2026-08-02 09:00:00.002" {
		t.Fatalf("latest visible: got %q", got)
	}
	if got := LastVisibleCreatedExcluding(actions, "a2"); got != "2026-08-01 10:00:00.001" {
		t.Fatalf("latest excluding a2: got %q", got)
	}
	if got := LastVisibleCreated(nil); got != "" {
		t.Fatalf("empty log: got %q", got)
	}
}

func TestFindIOUActionID(t *testing.T) {
	actions := map[string]models.ReportAction{
		"a1": {ActionName: models.ActionCreated},
		"a2": {
			ActionName:      models.ActionIOU,
			OriginalMessage: models.EncodeMessage(models.IOUMessage{Type: models.IOUCreate, IOUTransactionID: "tx-9"}),
		},
	}
	if got := FindIOUActionID(actions, "tx-9"); got != "a2" {
		t.Fatalf("iou action: got %q", got)
	}
	if got := FindIOUActionID(actions, "tx-other"); got != "" {
		t.Fatalf("missing transaction: got %q", got)
	}
}

func TestFindPreviewActionID(t *testing.T) {
	actions := map[string]models.ReportAction{
		"p1": {ActionName: models.ActionReportPreview, ChildReportID: "r-1"},
		"p2": {ActionName: models.ActionReportPreview, ChildReportID: "r-2"},
	}
	if got := FindPreviewActionID(actions, "r-2"); got != "p2" {
		t.Fatalf("preview: got %q", got)
	}
	if got := FindPreviewActionID(actions, "r-3"); got != "" {
		t.Fatalf("missing preview: got %q", got)
	}
}

func TestOnlySystemActions(t *testing.T) {
	system := map[string]models.ReportAction{
		"a1": {ActionName: models.ActionCreated},
		"a2": {ActionName: models.ActionModifiedExpense},
	}
	if !OnlySystemActions(system) {
		t.Fatal("bookkeeping-only thread should be disposable")
	}
	system["a3"] = models.ReportAction{ActionName: models.ActionAddComment}
	if OnlySystemActions(system) {
		t.Fatal("a user comment should flip the answer")
	}
}
