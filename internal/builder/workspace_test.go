package builder

import (
	"testing"

	"github.com/halden/outlay/internal/models"
	"github.com/halden/outlay/internal/store"
)

func TestUpdateApprovalWorkflow_NoChangeIsNoOp(t *testing.T) {
	s, b := setupBuilder(t)
	seedPolicy(t, s, models.Policy{
		PolicyID:     "P1",
		ApprovalMode: models.ApprovalAdvanced,
		EmployeeList: map[string]models.Employee{
			actorLogin: {SubmitsTo: bossLogin},
		},
	})

	us, err := b.UpdateApprovalWorkflow("P1", WorkflowUpdate{
		Employees: map[string]models.Employee{
			actorLogin: {SubmitsTo: bossLogin},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if us != nil {
		t.Fatal("identical workflow should produce no update set")
	}
}

func TestUpdateApprovalWorkflow_DiffsAndApplies(t *testing.T) {
	s, b := setupBuilder(t)
	seedPolicy(t, s, models.Policy{
		PolicyID:     "P1",
		ApprovalMode: models.ApprovalBasic,
		EmployeeList: map[string]models.Employee{
			actorLogin: {SubmitsTo: "old@example.com"},
		},
	})

	advanced := models.ApprovalAdvanced
	us, err := b.UpdateApprovalWorkflow("P1", WorkflowUpdate{
		ApprovalMode: &advanced,
		Employees: map[string]models.Employee{
			actorLogin: {SubmitsTo: bossLogin, ApprovalLimit: 10000},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if us == nil {
		t.Fatal("changed workflow should produce an update set")
	}
	if _, ok := us.Parameters["employees"].(string); !ok {
		t.Fatalf("employees parameter must be a JSON string, got %T", us.Parameters["employees"])
	}
	confirmed(t, s, us)

	var pol models.Policy
	if err := s.GetInto(store.PolicyKey("P1"), &pol); err != nil {
		t.Fatalf("policy: %v", err)
	}
	if pol.ApprovalMode != models.ApprovalAdvanced {
		t.Fatalf("mode: got %v", pol.ApprovalMode)
	}
	e := pol.EmployeeList[actorLogin]
	if e.SubmitsTo != bossLogin || e.ApprovalLimit != 10000 {
		t.Fatalf("employee: %+v", e)
	}
	if e.PendingAction != "" {
		t.Fatal("pending marker should clear on confirm")
	}
}

func TestUpdateApprovalWorkflow_RejectsCycles(t *testing.T) {
	s, b := setupBuilder(t)
	seedPolicy(t, s, models.Policy{
		PolicyID:     "P1",
		ApprovalMode: models.ApprovalAdvanced,
		EmployeeList: map[string]models.Employee{
			actorLogin: {SubmitsTo: bossLogin},
			bossLogin:  {},
		},
	})

	// boss → alice → boss would loop.
	_, err := b.UpdateApprovalWorkflow("P1", WorkflowUpdate{
		Employees: map[string]models.Employee{
			bossLogin: {SubmitsTo: actorLogin},
		},
	})
	if err == nil {
		t.Fatal("cyclic workflow must be rejected before staging")
	}
}

func TestSetAutoReportingFrequency_ManualAlias(t *testing.T) {
	s, b := setupBuilder(t)
	seedPolicy(t, s, models.Policy{
		PolicyID:               "P1",
		AutoReportingFrequency: models.FrequencyWeekly,
		Harvesting:             models.Harvesting{Enabled: true},
	})

	us, err := b.SetAutoReportingFrequency("P1", models.FrequencyManual)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// The wire keeps the user-facing name.
	if us.Parameters["frequency"] != "manual" {
		t.Fatalf("frequency parameter: got %v", us.Parameters["frequency"])
	}
	confirmed(t, s, us)

	var pol models.Policy
	s.GetInto(store.PolicyKey("P1"), &pol)
	if pol.AutoReportingFrequency != models.FrequencyInstant || pol.Harvesting.Enabled {
		t.Fatalf("stored pair: %v/%v", pol.AutoReportingFrequency, pol.Harvesting.Enabled)
	}

	// Setting manual again is a no-op.
	again, err := b.SetAutoReportingFrequency("P1", models.FrequencyManual)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if again != nil {
		t.Fatal("unchanged frequency should produce no update set")
	}
}

func TestConnectAndDisconnectIntegration(t *testing.T) {
	s, b := setupBuilder(t)
	seedPolicy(t, s, models.Policy{PolicyID: "P1"})

	conn, err := b.ConnectIntegration("P1", models.ConnectionQuickBooks, map[string]string{"realm": "42"})
	if err != nil {
		t.Fatalf("connect build: %v", err)
	}
	confirmed(t, s, conn)

	var pol models.Policy
	s.GetInto(store.PolicyKey("P1"), &pol)
	c, ok := pol.Connections[models.ConnectionQuickBooks]
	if !ok {
		t.Fatal("connection should exist after confirm")
	}
	if c.LastSync == nil || !c.LastSync.IsSuccessful {
		t.Fatalf("lastSync should stamp on confirm: %+v", c.LastSync)
	}
	if c.Config["realm"] != "42" {
		t.Fatalf("config: %v", c.Config)
	}

	if _, err := b.ConnectIntegration("P1", models.ConnectionQuickBooks, nil); err == nil {
		t.Fatal("double connect must fail fast")
	}
	if _, err := b.ConnectIntegration("P1", "doubleEntry", nil); err == nil {
		t.Fatal("unknown integration must fail fast")
	}

	disc, err := b.DisconnectIntegration("P1", models.ConnectionQuickBooks)
	if err != nil {
		t.Fatalf("disconnect build: %v", err)
	}
	confirmed(t, s, disc)

	pol = models.Policy{}
	s.GetInto(store.PolicyKey("P1"), &pol)
	if _, ok := pol.Connections[models.ConnectionQuickBooks]; ok {
		t.Fatal("connection should be removed after confirm")
	}

	if _, err := b.DisconnectIntegration("P1", models.ConnectionXero); err == nil {
		t.Fatal("disconnecting a missing integration must fail fast")
	}
}
