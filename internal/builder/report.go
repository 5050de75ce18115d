package builder

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/halden/outlay/internal/engine"
	"github.com/halden/outlay/internal/models"
	"github.com/halden/outlay/internal/policy"
	"github.com/halden/outlay/internal/store"
)

// SubmitReport builds the update set for submitting an open money request
// report for approval. The approver comes from the policy's workflow: rule
// approvers first, then the default approver (optional/basic) or the
// submitter's submitsTo entry (advanced).
func (b *Builder) SubmitReport(reportID string) (*engine.UpdateSet, error) {
	t := newTracker(b.s)

	rpt, err := b.getReport(t, reportID)
	if err != nil {
		return nil, err
	}
	if !rpt.IsMoneyRequestReport() {
		return nil, fmt.Errorf("%w: report %s is not a money request report", ErrInvalidIntent, reportID)
	}
	if rpt.StatusNum != models.StatusOpen {
		return nil, fmt.Errorf("%w: report %s is not open", ErrInvalidIntent, reportID)
	}
	pol, err := b.getPolicy(t, rpt.PolicyID)
	if err != nil {
		return nil, err
	}

	live, err := b.liveTransactions(t, reportID)
	if err != nil {
		return nil, err
	}
	categories := make([]string, 0, len(live))
	tags := make([]string, 0, len(live))
	for _, tx := range live {
		categories = append(categories, tx.Category)
		tags = append(tags, tx.Tag)
	}

	approverLogin := policy.SubmitApprover(pol, b.actorEmail, categories, tags)
	approverAccountID := b.accountIDForLogin(t, approverLogin)

	t.stage(store.Merge(store.ReportKey(reportID), map[string]any{
		"statusNum":     models.StatusSubmitted,
		"stateNum":      models.StateSubmitted,
		"managerID":     approverAccountID,
		"pendingAction": models.PendingUpdate,
	}))
	clearPending(t, store.ReportKey(reportID))

	submitted := models.ReportAction{
		ReportActionID: models.NewID(),
		ReportID:       reportID,
		ActionName:     models.ActionSubmitted,
		ActorAccountID: b.actorAccountID,
		Created:        models.Now(),
		OriginalMessage: models.EncodeMessage(models.SubmittedMessage{
			Amount:   rpt.Total,
			Currency: rpt.Currency,
			To:       approverAccountID,
		}),
		PendingAction: models.PendingAdd,
	}
	b.stageAction(t, reportID, submitted)
	clearActionPending(t, reportID, submitted.ReportActionID)

	return &engine.UpdateSet{
		Command:   "SubmitReport",
		CommandID: uuid.NewString(),
		Parameters: map[string]any{
			"reportID":       reportID,
			"managerEmail":   approverLogin,
			"reportActionID": submitted.ReportActionID,
		},
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: []string{store.ReportKey(reportID)},
	}, nil
}

// ApproveReport builds the update set for approving a submitted report.
// At least one expense must have settled, and none may be on hold. When the
// report's total exceeds the approver's limit the report forwards to the
// next approver in the chain instead of finishing.
func (b *Builder) ApproveReport(reportID string) (*engine.UpdateSet, error) {
	t := newTracker(b.s)

	rpt, err := b.getReport(t, reportID)
	if err != nil {
		return nil, err
	}
	if rpt.StatusNum != models.StatusSubmitted {
		return nil, fmt.Errorf("%w: report %s is not submitted", ErrInvalidIntent, reportID)
	}
	pol, err := b.getPolicy(t, rpt.PolicyID)
	if err != nil {
		return nil, err
	}

	live, err := b.liveTransactions(t, reportID)
	if err != nil {
		return nil, err
	}
	anySettled := false
	for _, tx := range live {
		if tx.IsOnHold() {
			return nil, fmt.Errorf("%w: transaction %s is on hold", ErrInvalidIntent, tx.TransactionID)
		}
		if tx.IsSettled() {
			anySettled = true
		}
	}
	if !anySettled {
		return nil, fmt.Errorf("%w: report %s has no settled expenses", ErrInvalidIntent, reportID)
	}

	forwardTo := policy.ForwardTo(pol, b.actorEmail, rpt.Total)
	if forwardTo != "" {
		forwardAccountID := b.accountIDForLogin(t, forwardTo)
		t.stage(store.Merge(store.ReportKey(reportID), map[string]any{
			"managerID":     forwardAccountID,
			"pendingAction": models.PendingUpdate,
		}))
		clearPending(t, store.ReportKey(reportID))

		forwarded := models.ReportAction{
			ReportActionID: models.NewID(),
			ReportID:       reportID,
			ActionName:     models.ActionForwarded,
			ActorAccountID: b.actorAccountID,
			Created:        models.Now(),
			OriginalMessage: models.EncodeMessage(models.ApprovedMessage{
				Amount:   rpt.Total,
				Currency: rpt.Currency,
			}),
			PendingAction: models.PendingAdd,
		}
		b.stageAction(t, reportID, forwarded)
		clearActionPending(t, reportID, forwarded.ReportActionID)

		return &engine.UpdateSet{
			Command:   "ApproveReport",
			CommandID: uuid.NewString(),
			Parameters: map[string]any{
				"reportID":       reportID,
				"forwardTo":      forwardTo,
				"reportActionID": forwarded.ReportActionID,
			},
			Optimistic:   t.optimistic,
			Success:      t.success,
			Failure:      t.failure,
			ErrorTargets: []string{store.ReportKey(reportID)},
		}, nil
	}

	t.stage(store.Merge(store.ReportKey(reportID), map[string]any{
		"statusNum":     models.StatusApproved,
		"stateNum":      models.StateApproved,
		"pendingAction": models.PendingUpdate,
	}))
	clearPending(t, store.ReportKey(reportID))

	approved := models.ReportAction{
		ReportActionID: models.NewID(),
		ReportID:       reportID,
		ActionName:     models.ActionApproved,
		ActorAccountID: b.actorAccountID,
		Created:        models.Now(),
		OriginalMessage: models.EncodeMessage(models.ApprovedMessage{
			Amount:   rpt.Total,
			Currency: rpt.Currency,
		}),
		PendingAction: models.PendingAdd,
	}
	b.stageAction(t, reportID, approved)
	clearActionPending(t, reportID, approved.ReportActionID)

	return &engine.UpdateSet{
		Command:   "ApproveReport",
		CommandID: uuid.NewString(),
		Parameters: map[string]any{
			"reportID":       reportID,
			"reportActionID": approved.ReportActionID,
		},
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: []string{store.ReportKey(reportID)},
	}, nil
}

// RejectReport builds the update set for sending a submitted report back to
// its owner. Every live expense on the report picks up a rejection warning
// carrying the reviewer's comment.
func (b *Builder) RejectReport(reportID, comment string) (*engine.UpdateSet, error) {
	if comment == "" {
		return nil, &engine.ValidationError{Field: "comment", Reason: "is required"}
	}

	t := newTracker(b.s)
	rpt, err := b.getReport(t, reportID)
	if err != nil {
		return nil, err
	}
	if rpt.StatusNum != models.StatusSubmitted {
		return nil, fmt.Errorf("%w: report %s is not submitted", ErrInvalidIntent, reportID)
	}

	t.stage(store.Merge(store.ReportKey(reportID), map[string]any{
		"statusNum":     models.StatusOpen,
		"stateNum":      models.StateOpen,
		"pendingAction": models.PendingUpdate,
	}))
	clearPending(t, store.ReportKey(reportID))

	rejected := models.ReportAction{
		ReportActionID:  models.NewID(),
		ReportID:        reportID,
		ActionName:      models.ActionRejected,
		ActorAccountID:  b.actorAccountID,
		Created:         models.Now(),
		OriginalMessage: models.EncodeMessage(models.RejectedMessage{Comment: comment}),
		PendingAction:   models.PendingAdd,
	}
	b.stageAction(t, reportID, rejected)
	clearActionPending(t, reportID, rejected.ReportActionID)

	live, err := b.liveTransactions(t, reportID)
	if err != nil {
		return nil, err
	}
	for _, tx := range live {
		existing, err := b.getViolations(t, tx.TransactionID)
		if err != nil {
			return nil, err
		}
		next := append(append([]models.Violation{}, existing...), models.Violation{
			Name: models.ViolationRejectedExpense,
			Type: models.ViolationTypeWarning,
			Data: models.ViolationData{
				Comment:    comment,
				RejectedBy: b.actorEmail,
			},
		})
		t.stage(store.Set(store.ViolationsKey(tx.TransactionID), next))
	}

	return &engine.UpdateSet{
		Command:   "RejectReport",
		CommandID: uuid.NewString(),
		Parameters: map[string]any{
			"reportID":       reportID,
			"comment":        comment,
			"reportActionID": rejected.ReportActionID,
		},
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: []string{store.ReportKey(reportID)},
	}, nil
}

// ResolveViolation builds the update set for dismissing a named violation
// on a transaction.
func (b *Builder) ResolveViolation(transactionID string, name models.ViolationName) (*engine.UpdateSet, error) {
	t := newTracker(b.s)
	if _, err := b.getTransaction(t, transactionID); err != nil {
		return nil, err
	}

	existing, err := b.getViolations(t, transactionID)
	if err != nil {
		return nil, err
	}
	next := make([]models.Violation, 0, len(existing))
	found := false
	for _, v := range existing {
		if v.Name == name {
			found = true
			continue
		}
		next = append(next, v)
	}
	if !found {
		return nil, fmt.Errorf("%w: transaction %s has no %s violation", ErrInvalidIntent, transactionID, name)
	}

	if len(next) == 0 {
		t.stage(store.Set(store.ViolationsKey(transactionID), nil))
	} else {
		t.stage(store.Set(store.ViolationsKey(transactionID), next))
	}

	return &engine.UpdateSet{
		Command:   "ResolveViolation",
		CommandID: uuid.NewString(),
		Parameters: map[string]any{
			"transactionID": transactionID,
			"name":          string(name),
		},
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: []string{store.ViolationsKey(transactionID)},
	}, nil
}

// PayReport builds the update set for reimbursing an approved report (or a
// plain IOU that skips the approval flow). Payment is blocked while any
// expense is on hold.
func (b *Builder) PayReport(reportID, paymentType string) (*engine.UpdateSet, error) {
	t := newTracker(b.s)
	rpt, err := b.getReport(t, reportID)
	if err != nil {
		return nil, err
	}
	payable := rpt.StatusNum == models.StatusApproved ||
		(rpt.Type == models.ReportTypeIOU && rpt.StatusNum == models.StatusOpen) ||
		rpt.StatusNum == models.StatusClosed
	if !payable {
		return nil, fmt.Errorf("%w: report %s is not payable", ErrInvalidIntent, reportID)
	}

	live, err := b.liveTransactions(t, reportID)
	if err != nil {
		return nil, err
	}
	for _, tx := range live {
		if tx.IsOnHold() {
			return nil, fmt.Errorf("%w: transaction %s is on hold", ErrInvalidIntent, tx.TransactionID)
		}
	}

	t.stage(store.Merge(store.ReportKey(reportID), map[string]any{
		"statusNum":     models.StatusReimbursed,
		"stateNum":      models.StateReimbursed,
		"pendingAction": models.PendingUpdate,
	}))
	clearPending(t, store.ReportKey(reportID))

	reimbursed := models.ReportAction{
		ReportActionID: models.NewID(),
		ReportID:       reportID,
		ActionName:     models.ActionReimbursed,
		ActorAccountID: b.actorAccountID,
		Created:        models.Now(),
		OriginalMessage: models.EncodeMessage(models.ReimbursedMessage{
			Amount:      rpt.Total,
			Currency:    rpt.Currency,
			PaymentType: paymentType,
		}),
		PendingAction: models.PendingAdd,
	}
	b.stageAction(t, reportID, reimbursed)
	clearActionPending(t, reportID, reimbursed.ReportActionID)

	if rpt.ChatReportID != "" {
		t.stage(store.Merge(store.ReportKey(rpt.ChatReportID), map[string]any{
			"hasOutstandingChildRequest": false,
		}))
	}
	t.stage(store.Merge(store.SnapshotKey(reportID), map[string]any{
		"statusNum": models.StatusReimbursed,
	}))

	return &engine.UpdateSet{
		Command:   "PayMoneyRequest",
		CommandID: uuid.NewString(),
		Parameters: map[string]any{
			"reportID":       reportID,
			"paymentType":    paymentType,
			"reportActionID": reimbursed.ReportActionID,
		},
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: []string{store.ReportKey(reportID)},
	}, nil
}

// CancelPayment builds the update set for walking back a reimbursement
// before it clears.
func (b *Builder) CancelPayment(reportID string) (*engine.UpdateSet, error) {
	t := newTracker(b.s)
	rpt, err := b.getReport(t, reportID)
	if err != nil {
		return nil, err
	}
	if rpt.StatusNum != models.StatusReimbursed {
		return nil, fmt.Errorf("%w: report %s is not reimbursed", ErrInvalidIntent, reportID)
	}

	t.stage(store.Merge(store.ReportKey(reportID), map[string]any{
		"statusNum":     models.StatusApproved,
		"stateNum":      models.StateApproved,
		"pendingAction": models.PendingUpdate,
	}))
	clearPending(t, store.ReportKey(reportID))

	dequeued := models.ReportAction{
		ReportActionID: models.NewID(),
		ReportID:       reportID,
		ActionName:     models.ActionReimbursementDequeued,
		ActorAccountID: b.actorAccountID,
		Created:        models.Now(),
		OriginalMessage: models.EncodeMessage(models.ReimbursedMessage{
			Amount:   rpt.Total,
			Currency: rpt.Currency,
		}),
		PendingAction: models.PendingAdd,
	}
	b.stageAction(t, reportID, dequeued)
	clearActionPending(t, reportID, dequeued.ReportActionID)

	if rpt.ChatReportID != "" {
		t.stage(store.Merge(store.ReportKey(rpt.ChatReportID), map[string]any{
			"hasOutstandingChildRequest": true,
		}))
	}
	t.stage(store.Merge(store.SnapshotKey(reportID), map[string]any{
		"statusNum": models.StatusApproved,
	}))

	return &engine.UpdateSet{
		Command:   "CancelPayment",
		CommandID: uuid.NewString(),
		Parameters: map[string]any{
			"reportID":       reportID,
			"reportActionID": dequeued.ReportActionID,
		},
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: []string{store.ReportKey(reportID)},
	}, nil
}
