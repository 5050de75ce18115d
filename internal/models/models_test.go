package models

import (
	"testing"
)

func TestTransactionIsSettled(t *testing.T) {
	cases := []struct {
		name string
		tx   Transaction
		want bool
	}{
		{"posted", Transaction{Status: TransactionPosted, Amount: 100}, true},
		{"no status", Transaction{Amount: 100}, true},
		{"pending card", Transaction{Status: TransactionPending, Amount: 100}, false},
		{"scan failed, no amount", Transaction{Amount: 0, Receipt: &Receipt{State: ReceiptScanFailed}}, false},
		{"scan failed, has amount", Transaction{Amount: 100, Receipt: &Receipt{State: ReceiptScanFailed}}, true},
		{"zero amount, no receipt", Transaction{Amount: 0}, true},
	}
	for _, tc := range cases {
		if got := tc.tx.IsSettled(); got != tc.want {
			t.Errorf("%s: IsSettled() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTransactionIsOnHold(t *testing.T) {
	var tx Transaction
	if tx.IsOnHold() {
		t.Fatal("fresh transaction should not be held")
	}
	tx.Comment.Hold = "action-1"
	if !tx.IsOnHold() {
		t.Fatal("hold marker should flip IsOnHold")
	}
}

func TestDecodeOriginalMessage(t *testing.T) {
	a := ReportAction{
		ActionName:      ActionIOU,
		OriginalMessage: EncodeMessage(IOUMessage{Type: IOUCreate, Amount: 500, Currency: "USD", IOUReportID: "r1"}),
	}
	decoded, err := a.DecodeOriginalMessage()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m, ok := decoded.(*IOUMessage)
	if !ok {
		t.Fatalf("decoded type: %T", decoded)
	}
	if m.Amount != 500 || m.Type != IOUCreate || m.IOUReportID != "r1" {
		t.Fatalf("payload: %+v", m)
	}

	a = ReportAction{ActionName: ActionSubmitted, OriginalMessage: EncodeMessage(SubmittedMessage{To: 7})}
	decoded, err = a.DecodeOriginalMessage()
	if err != nil {
		t.Fatalf("decode submitted: %v", err)
	}
	if s, ok := decoded.(*SubmittedMessage); !ok || s.To != 7 {
		t.Fatalf("submitted payload: %T %+v", decoded, decoded)
	}

	a = ReportAction{ActionName: "BOGUS", OriginalMessage: []byte(`{}`)}
	if _, err := a.DecodeOriginalMessage(); err == nil {
		t.Fatal("unknown action name should fail to decode")
	}

	a = ReportAction{ActionName: ActionIOU}
	decoded, err = a.DecodeOriginalMessage()
	if err != nil || decoded != nil {
		t.Fatalf("empty payload: %v %v", decoded, err)
	}
}

func TestActionVisibility(t *testing.T) {
	a := ReportAction{ActionName: ActionIOU}
	if !a.IsVisible() {
		t.Fatal("live action should be visible")
	}
	a.PendingAction = PendingDelete
	if a.IsVisible() {
		t.Fatal("pending delete hides the action")
	}
	a = ReportAction{ActionName: ActionIOU, IsDeletedParentAction: true}
	if a.IsVisible() {
		t.Fatal("deleted parent marker hides the action")
	}
}

func TestNowIsStrictlyIncreasing(t *testing.T) {
	prev := Now()
	for i := 0; i < 100; i++ {
		next := Now()
		if !(next > prev) {
			t.Fatalf("stamps must increase: %q then %q", prev, next)
		}
		prev = next
	}
}

func TestErrorKeysNeverCollide(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		k := ErrorKey()
		if seen[k] {
			t.Fatalf("duplicate error key %q", k)
		}
		seen[k] = true
	}
}

func TestInterleavedStampsStayOrdered(t *testing.T) {
	prevStamp := Now()
	prevKey := ErrorKey()
	for i := 0; i < 50; i++ {
		stamp := Now()
		key := ErrorKey()
		if !(stamp > prevStamp) {
			t.Fatalf("stamps must increase: %q then %q", prevStamp, stamp)
		}
		if !(key > prevKey) {
			t.Fatalf("error keys must increase: %q then %q", prevKey, key)
		}
		prevStamp, prevKey = stamp, key
	}
}
