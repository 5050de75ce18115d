package builder

import (
	"database/sql"
	"reflect"
	"testing"

	"github.com/halden/outlay/internal/engine"
	"github.com/halden/outlay/internal/models"
	"github.com/halden/outlay/internal/store"
	_ "github.com/mattn/go-sqlite3"
)

const (
	actorID    = int64(1)
	actorLogin = "alice@example.com"
	payerID    = int64(2)
	payerLogin = "bob@example.com"
)

func setupBuilder(t *testing.T) (*store.Store, *Builder) {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	s, err := store.OpenConn(conn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	s.Set(PersonalDetailsKey, map[string]any{
		"1": map[string]any{"accountID": actorID, "login": actorLogin},
		"2": map[string]any{"accountID": payerID, "login": payerLogin},
	})
	return s, New(s, actorID, actorLogin)
}

func getReport(t *testing.T, s *store.Store, reportID string) models.Report {
	t.Helper()
	var r models.Report
	if err := s.GetInto(store.ReportKey(reportID), &r); err != nil {
		t.Fatalf("report %s: %v", reportID, err)
	}
	return r
}

func getTransaction(t *testing.T, s *store.Store, transactionID string) models.Transaction {
	t.Helper()
	var tx models.Transaction
	if err := s.GetInto(store.TransactionKey(transactionID), &tx); err != nil {
		t.Fatalf("transaction %s: %v", transactionID, err)
	}
	return tx
}

func getActions(t *testing.T, s *store.Store, reportID string) map[string]models.ReportAction {
	t.Helper()
	var actions map[string]models.ReportAction
	if err := s.GetInto(store.ReportActionsKey(reportID), &actions); err != nil {
		t.Fatalf("actions %s: %v", reportID, err)
	}
	return actions
}

// confirmed simulates the server accepting a command: optimistic patches
// applied at enqueue time, success patches on confirmation.
func confirmed(t *testing.T, s *store.Store, us *engine.UpdateSet) {
	t.Helper()
	if err := s.Apply(us.Optimistic); err != nil {
		t.Fatalf("apply optimistic: %v", err)
	}
	if err := s.Apply(us.Success); err != nil {
		t.Fatalf("apply success: %v", err)
	}
}

func TestCreateExpense_NewChat(t *testing.T) {
	s, b := setupBuilder(t)

	us, err := b.CreateExpense(CreateExpenseParams{
		PayerLogin: payerLogin,
		Amount:     10000,
		Currency:   "USD",
		Merchant:   "Cafe",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := s.Apply(us.Optimistic); err != nil {
		t.Fatalf("apply: %v", err)
	}

	iouReportID := us.Parameters["iouReportID"].(string)
	chatReportID := us.Parameters["chatReportID"].(string)
	transactionID := us.Parameters["transactionID"].(string)

	iou := getReport(t, s, iouReportID)
	if iou.Type != models.ReportTypeIOU || iou.Total != 10000 || iou.Currency != "USD" {
		t.Fatalf("iou report: %+v", iou)
	}
	if iou.PendingAction != models.PendingAdd {
		t.Fatalf("iou pending: %v", iou.PendingAction)
	}
	if iou.OwnerAccountID != actorID || iou.ManagerID != payerID {
		t.Fatalf("iou owner/manager: %d/%d", iou.OwnerAccountID, iou.ManagerID)
	}

	chat := getReport(t, s, chatReportID)
	if chat.Type != models.ReportTypeChat || chat.IOUReportID != iouReportID {
		t.Fatalf("chat report: %+v", chat)
	}
	if !chat.HasOutstandingChildRequest {
		t.Fatal("chat should flag outstanding child request")
	}

	tx := getTransaction(t, s, transactionID)
	if tx.Amount != 10000 || tx.ReportID != iouReportID {
		t.Fatalf("transaction: %+v", tx)
	}

	var iouActions int
	for _, a := range getActions(t, s, iouReportID) {
		if a.ActionName != models.ActionIOU {
			continue
		}
		iouActions++
		m, err := a.IOUMessage()
		if err != nil {
			t.Fatalf("iou message: %v", err)
		}
		if m.IOUReportID != iouReportID || m.IOUTransactionID != transactionID || m.Amount != 10000 {
			t.Fatalf("iou message: %+v", m)
		}
	}
	if iouActions != 1 {
		t.Fatalf("iou actions: got %d, want 1", iouActions)
	}

	var previews int
	for _, a := range getActions(t, s, chatReportID) {
		if a.ActionName == models.ActionReportPreview && a.ChildReportID == iouReportID {
			previews++
		}
	}
	if previews != 1 {
		t.Fatalf("previews: got %d, want 1", previews)
	}
}

func TestCreateExpense_FailureRestoresStoreExactly(t *testing.T) {
	s, b := setupBuilder(t)

	before := s.All()
	us, err := b.CreateExpense(CreateExpenseParams{
		PayerLogin: payerLogin,
		Amount:     2500,
		Currency:   "EUR",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := s.Apply(us.Optimistic); err != nil {
		t.Fatalf("apply optimistic: %v", err)
	}
	if err := s.Apply(us.Failure); err != nil {
		t.Fatalf("apply failure: %v", err)
	}

	after := s.All()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("rollback is not exact:\nbefore: %v\nafter:  %v", before, after)
	}
}

func TestCreateExpense_TopsUpExistingIOU(t *testing.T) {
	s, b := setupBuilder(t)

	first, err := b.CreateExpense(CreateExpenseParams{PayerLogin: payerLogin, Amount: 1000, Currency: "USD"})
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	confirmed(t, s, first)
	iouReportID := first.Parameters["iouReportID"].(string)
	chatReportID := first.Parameters["chatReportID"].(string)

	second, err := b.CreateExpense(CreateExpenseParams{
		ChatReportID: chatReportID,
		PayerLogin:   payerLogin,
		Amount:       500,
		Currency:     "USD",
	})
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if got := second.Parameters["iouReportID"].(string); got != iouReportID {
		t.Fatalf("second expense should reuse the chat's iou report, got %s", got)
	}
	confirmed(t, s, second)

	iou := getReport(t, s, iouReportID)
	if iou.Total != 1500 {
		t.Fatalf("total: got %d, want 1500", iou.Total)
	}

	// Still exactly one preview in the chat, amount updated.
	var previews int
	for _, a := range getActions(t, s, chatReportID) {
		if a.ActionName != models.ActionReportPreview {
			continue
		}
		previews++
		m, _ := a.IOUMessage()
		if m.Amount != 1500 {
			t.Fatalf("preview amount: got %d, want 1500", m.Amount)
		}
	}
	if previews != 1 {
		t.Fatalf("previews: got %d, want 1", previews)
	}
}

func TestDeleteExpense_OfflineThenConfirmed(t *testing.T) {
	s, b := setupBuilder(t)

	create, err := b.CreateExpense(CreateExpenseParams{PayerLogin: payerLogin, Amount: 4200, Currency: "USD"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	confirmed(t, s, create)
	iouReportID := create.Parameters["iouReportID"].(string)
	chatReportID := create.Parameters["chatReportID"].(string)
	transactionID := create.Parameters["transactionID"].(string)

	del, err := b.DeleteExpense(transactionID)
	if err != nil {
		t.Fatalf("delete build: %v", err)
	}
	if err := s.Apply(del.Optimistic); err != nil {
		t.Fatalf("apply optimistic: %v", err)
	}

	// Offline view: everything still present, flagged for deletion.
	tx := getTransaction(t, s, transactionID)
	if tx.PendingAction != models.PendingDelete {
		t.Fatalf("transaction pending: got %v, want delete", tx.PendingAction)
	}
	iou := getReport(t, s, iouReportID)
	if iou.Total != 0 {
		t.Fatalf("optimistic total: got %d, want 0", iou.Total)
	}

	// Server confirms: last expense removed, so the report goes too.
	if err := s.Apply(del.Success); err != nil {
		t.Fatalf("apply success: %v", err)
	}
	if s.Get(store.TransactionKey(transactionID)) != nil {
		t.Fatal("transaction should be deleted on confirm")
	}
	if s.Get(store.ReportKey(iouReportID)) != nil {
		t.Fatal("empty iou report should be deleted on confirm")
	}
	if s.Get(store.ReportActionsKey(iouReportID)) != nil {
		t.Fatal("iou action log should be deleted on confirm")
	}

	chat := getReport(t, s, chatReportID)
	if chat.IOUReportID != "" || chat.HasOutstandingChildRequest {
		t.Fatalf("chat should drop its iou back-ref: %+v", chat)
	}
	for _, a := range getActions(t, s, chatReportID) {
		if a.ActionName == models.ActionReportPreview {
			t.Fatal("chat preview should be removed with the report")
		}
	}
}

func TestDeleteExpense_KeepsReportWithRemainingExpenses(t *testing.T) {
	s, b := setupBuilder(t)

	first, _ := b.CreateExpense(CreateExpenseParams{PayerLogin: payerLogin, Amount: 1000, Currency: "USD"})
	confirmed(t, s, first)
	chatReportID := first.Parameters["chatReportID"].(string)
	second, err := b.CreateExpense(CreateExpenseParams{ChatReportID: chatReportID, PayerLogin: payerLogin, Amount: 500, Currency: "USD"})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	confirmed(t, s, second)

	iouReportID := first.Parameters["iouReportID"].(string)
	del, err := b.DeleteExpense(second.Parameters["transactionID"].(string))
	if err != nil {
		t.Fatalf("delete build: %v", err)
	}
	confirmed(t, s, del)

	iou := getReport(t, s, iouReportID)
	if iou.Total != 1000 {
		t.Fatalf("total after delete: got %d, want 1000", iou.Total)
	}
	if s.Get(store.TransactionKey(first.Parameters["transactionID"].(string))) == nil {
		t.Fatal("remaining transaction must survive")
	}
}

func TestHoldAndUnhold(t *testing.T) {
	s, b := setupBuilder(t)

	create, _ := b.CreateExpense(CreateExpenseParams{PayerLogin: payerLogin, Amount: 900, Currency: "USD"})
	confirmed(t, s, create)
	transactionID := create.Parameters["transactionID"].(string)

	hold, err := b.HoldExpense(transactionID, "need a receipt")
	if err != nil {
		t.Fatalf("hold build: %v", err)
	}
	confirmed(t, s, hold)

	tx := getTransaction(t, s, transactionID)
	if !tx.IsOnHold() {
		t.Fatal("transaction should be on hold")
	}

	if _, err := b.HoldExpense(transactionID, "again"); err == nil {
		t.Fatal("double hold must fail fast")
	}

	unhold, err := b.UnholdExpense(transactionID)
	if err != nil {
		t.Fatalf("unhold build: %v", err)
	}
	confirmed(t, s, unhold)

	tx = getTransaction(t, s, transactionID)
	if tx.IsOnHold() {
		t.Fatal("transaction should be released")
	}
}

func TestDeleteExpense_UnknownTransactionFailsFast(t *testing.T) {
	_, b := setupBuilder(t)
	if _, err := b.DeleteExpense("missing"); err == nil {
		t.Fatal("unknown transaction must fail before any patch is built")
	}
}
