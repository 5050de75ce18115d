package output

import (
	"strings"
	"testing"

	"github.com/halden/outlay/internal/models"
)

func TestAmount(t *testing.T) {
	cases := []struct {
		minor    int64
		currency string
		want     string
	}{
		{12345, "USD", "123.45 USD"},
		{-12345, "USD", "-123.45 USD"},
		{5, "EUR", "0.05 EUR"},
		{0, "GBP", "0.00 GBP"},
		{100, "USD", "1.00 USD"},
	}
	for _, tc := range cases {
		if got := Amount(tc.minor, tc.currency); got != tc.want {
			t.Errorf("Amount(%d, %q) = %q, want %q", tc.minor, tc.currency, got, tc.want)
		}
	}
}

func TestStatusNames(t *testing.T) {
	if got := Status(models.StatusReimbursed); !strings.Contains(got, "reimbursed") {
		t.Errorf("Status(reimbursed) = %q", got)
	}
	if got := Status(models.StatusNum(99)); !strings.Contains(got, "status(99)") {
		t.Errorf("unknown status = %q", got)
	}
}

func TestPendingMarker(t *testing.T) {
	if got := Pending(""); got != "" {
		t.Errorf("synced entity should have no marker, got %q", got)
	}
	if got := Pending(models.PendingAdd); !strings.Contains(got, "[add]") {
		t.Errorf("Pending(add) = %q", got)
	}
}

func TestReportLine(t *testing.T) {
	r := &models.Report{
		ReportID:      "r1",
		Type:          models.ReportTypeIOU,
		StatusNum:     models.StatusOpen,
		Total:         1500,
		Currency:      "USD",
		PendingAction: models.PendingAdd,
		Errors:        models.ErrorMap{"1": "boom"},
	}
	line := ReportLine(r)
	for _, want := range []string{"r1", "iou", "open", "15.00 USD", "[add]", "!errors"} {
		if !strings.Contains(line, want) {
			t.Errorf("ReportLine missing %q: %q", want, line)
		}
	}
}

func TestTransactionLine(t *testing.T) {
	tx := &models.Transaction{
		TransactionID: "t1",
		Amount:        250,
		Currency:      "USD",
		Merchant:      "Cafe",
	}
	tx.Comment.Hold = "action-1"
	line := TransactionLine(tx)
	for _, want := range []string{"t1", "2.50 USD", "Cafe", "on hold"} {
		if !strings.Contains(line, want) {
			t.Errorf("TransactionLine missing %q: %q", want, line)
		}
	}
}

func TestErrorsSortsByTimestampKey(t *testing.T) {
	errs := models.ErrorMap{
		"1700000000000002": "second",
		"1700000000000001": "first",
	}
	got := Errors(errs)
	if strings.Index(got, "first") > strings.Index(got, "second") {
		t.Errorf("errors out of order: %q", got)
	}
	if Errors(nil) != "" {
		t.Error("empty map should render nothing")
	}
}
