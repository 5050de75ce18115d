package builder

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/halden/outlay/internal/engine"
	"github.com/halden/outlay/internal/models"
	"github.com/halden/outlay/internal/policy"
	"github.com/halden/outlay/internal/store"
)

// WorkflowUpdate describes the desired approval workflow for a policy.
// Only the employees named here are touched; everyone else keeps their
// current entry.
type WorkflowUpdate struct {
	ApprovalMode *models.ApprovalMode
	Employees    map[string]models.Employee
}

// UpdateApprovalWorkflow diffs the desired workflow against the policy and
// builds an update set covering only what actually changed. Returns nil
// (and no error) when the desired state already holds, so callers can skip
// the enqueue entirely.
func (b *Builder) UpdateApprovalWorkflow(policyID string, u WorkflowUpdate) (*engine.UpdateSet, error) {
	t := newTracker(b.s)
	pol, err := b.getPolicy(t, policyID)
	if err != nil {
		return nil, err
	}

	changed := make(map[string]models.Employee)
	for login, want := range u.Employees {
		have, ok := pol.EmployeeList[login]
		if !ok || !sameWorkflowEntry(have, want) {
			changed[login] = want
		}
	}
	modeChanged := u.ApprovalMode != nil && *u.ApprovalMode != pol.ApprovalMode
	if len(changed) == 0 && !modeChanged {
		return nil, nil
	}

	// Reject workflows that would loop before anything is staged.
	next := *pol
	if modeChanged {
		next.ApprovalMode = *u.ApprovalMode
	}
	next.EmployeeList = make(map[string]models.Employee, len(pol.EmployeeList)+len(changed))
	for login, e := range pol.EmployeeList {
		next.EmployeeList[login] = e
	}
	for login, e := range changed {
		next.EmployeeList[login] = e
	}
	if err := policy.ValidateApprovalChain(&next); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIntent, err)
	}

	employeePatch := make(map[string]any, len(changed))
	for login, e := range changed {
		employeePatch[login] = map[string]any{
			"role":                e.Role,
			"submitsTo":           e.SubmitsTo,
			"forwardsTo":          e.ForwardsTo,
			"approvalLimit":       e.ApprovalLimit,
			"overLimitForwardsTo": e.OverLimitForwardsTo,
			"pendingAction":       models.PendingUpdate,
		}
	}
	patch := map[string]any{"pendingAction": models.PendingUpdate}
	if len(employeePatch) > 0 {
		patch["employeeList"] = employeePatch
	}
	if modeChanged {
		patch["approvalMode"] = *u.ApprovalMode
	}
	t.stage(store.Merge(store.PolicyKey(policyID), patch))

	clearPending(t, store.PolicyKey(policyID))
	for login := range changed {
		t.onSuccess(store.Merge(store.PolicyKey(policyID), map[string]any{
			"employeeList": map[string]any{
				login: map[string]any{"pendingAction": nil},
			},
		}))
	}

	employeesJSON, err := json.Marshal(changed)
	if err != nil {
		return nil, fmt.Errorf("encoding employees: %w", err)
	}
	params := map[string]any{
		"policyID":  policyID,
		"employees": string(employeesJSON),
	}
	if modeChanged {
		params["approvalMode"] = string(*u.ApprovalMode)
	}

	return &engine.UpdateSet{
		Command:      "UpdateApprovalWorkflow",
		CommandID:    uuid.NewString(),
		Parameters:   params,
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: []string{store.PolicyKey(policyID)},
	}, nil
}

func sameWorkflowEntry(a, b models.Employee) bool {
	return a.Role == b.Role &&
		a.SubmitsTo == b.SubmitsTo &&
		a.ForwardsTo == b.ForwardsTo &&
		a.ApprovalLimit == b.ApprovalLimit &&
		a.OverLimitForwardsTo == b.OverLimitForwardsTo
}

// SetAutoReportingFrequency builds the update set for changing how often
// expenses harvest into reports. "manual" is stored as instant harvesting
// turned off, but the wire keeps the name the user picked.
func (b *Builder) SetAutoReportingFrequency(policyID string, freq models.AutoReportingFrequency) (*engine.UpdateSet, error) {
	if !policy.IsValidFrequency(freq) {
		return nil, &engine.ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown value %q", freq)}
	}

	t := newTracker(b.s)
	pol, err := b.getPolicy(t, policyID)
	if err != nil {
		return nil, err
	}
	if policy.EffectiveFrequency(pol) == freq {
		return nil, nil
	}

	stored, harvesting := policy.NormalizeFrequency(freq)
	t.stage(store.Merge(store.PolicyKey(policyID), map[string]any{
		"autoReportingFrequency": stored,
		"harvesting":             map[string]any{"enabled": harvesting},
		"pendingAction":          models.PendingUpdate,
	}))
	clearPending(t, store.PolicyKey(policyID))

	return &engine.UpdateSet{
		Command:   "SetWorkspaceAutoReportingFrequency",
		CommandID: uuid.NewString(),
		Parameters: map[string]any{
			"policyID":  policyID,
			"frequency": string(freq),
		},
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: []string{store.PolicyKey(policyID)},
	}, nil
}

// ConnectIntegration builds the update set for hooking a policy up to an
// accounting integration. The connection shows immediately; the first
// successful sync stamp lands when the server confirms.
func (b *Builder) ConnectIntegration(policyID string, name models.ConnectionName, config map[string]string) (*engine.UpdateSet, error) {
	if !models.IsValidConnectionName(name) {
		return nil, &engine.ValidationError{Field: "connection", Reason: fmt.Sprintf("unknown integration %q", name)}
	}

	t := newTracker(b.s)
	pol, err := b.getPolicy(t, policyID)
	if err != nil {
		return nil, err
	}
	if _, ok := pol.Connections[name]; ok {
		return nil, fmt.Errorf("%w: policy %s is already connected to %s", ErrInvalidIntent, policyID, name)
	}

	cfg := make(map[string]any, len(config))
	for k, v := range config {
		cfg[k] = v
	}
	t.stage(store.Merge(store.PolicyKey(policyID), map[string]any{
		"connections": map[string]any{
			string(name): map[string]any{
				"config":        cfg,
				"pendingAction": models.PendingAdd,
			},
		},
	}))
	t.onSuccess(store.Merge(store.PolicyKey(policyID), map[string]any{
		"connections": map[string]any{
			string(name): map[string]any{
				"pendingAction": nil,
				"lastSync": map[string]any{
					"isSuccessful":   true,
					"successfulDate": models.Now(),
				},
			},
		},
	}))

	configJSON, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	return &engine.UpdateSet{
		Command:   "ConnectPolicyToIntegration",
		CommandID: uuid.NewString(),
		Parameters: map[string]any{
			"policyID":   policyID,
			"connection": string(name),
			"config":     string(configJSON),
		},
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: []string{store.PolicyKey(policyID)},
	}, nil
}

// DisconnectIntegration builds the update set for removing an accounting
// integration from a policy.
func (b *Builder) DisconnectIntegration(policyID string, name models.ConnectionName) (*engine.UpdateSet, error) {
	t := newTracker(b.s)
	pol, err := b.getPolicy(t, policyID)
	if err != nil {
		return nil, err
	}
	if _, ok := pol.Connections[name]; !ok {
		return nil, fmt.Errorf("%w: policy %s is not connected to %s", ErrInvalidIntent, policyID, name)
	}

	t.stage(store.Merge(store.PolicyKey(policyID), map[string]any{
		"connections": map[string]any{
			string(name): map[string]any{"pendingAction": models.PendingDelete},
		},
	}))
	t.onSuccess(store.Merge(store.PolicyKey(policyID), map[string]any{
		"connections": map[string]any{string(name): nil},
	}))

	return &engine.UpdateSet{
		Command:   "DisconnectPolicyFromIntegration",
		CommandID: uuid.NewString(),
		Parameters: map[string]any{
			"policyID":   policyID,
			"connection": string(name),
		},
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: []string{store.PolicyKey(policyID)},
	}, nil
}
