package builder

import (
	"reflect"
	"testing"

	"github.com/halden/outlay/internal/engine"
	"github.com/halden/outlay/internal/models"
	"github.com/halden/outlay/internal/store"
)

// rollsBackExactly applies the update set's optimistic patches and then its
// failure patches, asserting the store is restored bit-for-bit.
func rollsBackExactly(t *testing.T, s *store.Store, us *engine.UpdateSet) {
	t.Helper()
	before := s.All()
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

func TestRollbackRestoresStoreExactly_PerOperation(t *testing.T) {
	t.Run("delete", func(t *testing.T) {
		s, b := setupBuilder(t)
		_, transactionID := createConfirmedReport(t, s, b, "", 1000)
		us, err := b.DeleteExpense(transactionID)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		rollsBackExactly(t, s, us)
	})

	t.Run("split", func(t *testing.T) {
		s, b := setupBuilder(t)
		us, err := b.SplitExpense(SplitExpenseParams{
			Total:             400,
			Currency:          "USD",
			ParticipantLogins: []string{payerLogin, "carol@example.com"},
		})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		rollsBackExactly(t, s, us)
	})

	t.Run("hold", func(t *testing.T) {
		s, b := setupBuilder(t)
		_, transactionID := createConfirmedReport(t, s, b, "", 1000)
		us, err := b.HoldExpense(transactionID, "looking into this")
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		rollsBackExactly(t, s, us)
	})

	t.Run("reject", func(t *testing.T) {
		s, b := setupBuilder(t)
		seedBoss(t, s)
		seedPolicy(t, s, models.Policy{PolicyID: "P1", ApprovalMode: models.ApprovalBasic, Approver: bossLogin})
		reportID, _ := createConfirmedReport(t, s, b, "P1", 1000)
		submit, _ := b.SubmitReport(reportID)
		confirmed(t, s, submit)

		us, err := b.RejectReport(reportID, "missing receipt")
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		rollsBackExactly(t, s, us)
	})

	t.Run("pay", func(t *testing.T) {
		s, b := setupBuilder(t)
		seedBoss(t, s)
		seedPolicy(t, s, models.Policy{PolicyID: "P1", ApprovalMode: models.ApprovalBasic, Approver: bossLogin})
		reportID, _ := createConfirmedReport(t, s, b, "P1", 1000)
		submit, _ := b.SubmitReport(reportID)
		confirmed(t, s, submit)
		approve, _ := b.ApproveReport(reportID)
		confirmed(t, s, approve)

		us, err := b.PayReport(reportID, "elsewhere")
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		rollsBackExactly(t, s, us)
	})
}

func TestSuccessPatchesApplyIdempotently(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		s, b := setupBuilder(t)
		us, err := b.CreateExpense(CreateExpenseParams{
			PayerLogin: payerLogin,
			Amount:     1000,
			Currency:   "USD",
		})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		confirmed(t, s, us)

		once := s.All()
		if err := s.Apply(us.Success); err != nil {
			t.Fatalf("reapply success: %v", err)
		}
		if !reflect.DeepEqual(once, s.All()) {
			t.Fatal("applying success patches twice must equal applying them once")
		}
	})

	t.Run("delete", func(t *testing.T) {
		s, b := setupBuilder(t)
		_, transactionID := createConfirmedReport(t, s, b, "", 1000)
		us, err := b.DeleteExpense(transactionID)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		confirmed(t, s, us)

		once := s.All()
		if err := s.Apply(us.Success); err != nil {
			t.Fatalf("reapply success: %v", err)
		}
		if !reflect.DeepEqual(once, s.All()) {
			t.Fatal("applying success patches twice must equal applying them once")
		}
	})
}
