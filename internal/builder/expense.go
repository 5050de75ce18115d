package builder

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/halden/outlay/internal/engine"
	"github.com/halden/outlay/internal/models"
	"github.com/halden/outlay/internal/report"
	"github.com/halden/outlay/internal/store"
)

// CreateExpenseParams describes a new money request
type CreateExpenseParams struct {
	ChatReportID   string // existing chat with the payer; empty starts a new one
	PayerAccountID int64
	PayerLogin     string
	Amount         int64
	Currency       string
	Merchant       string
	Category       string
	Tag            string
	Comment        string
	PolicyID       string
}

// CreateExpense builds the update set for requesting money: an IOU report
// (new or topped up), a transaction, the IOU audit action, and the chat's
// report preview, all in one atomic set.
func (b *Builder) CreateExpense(p CreateExpenseParams) (*engine.UpdateSet, error) {
	if p.Amount == 0 {
		return nil, &engine.ValidationError{Field: "amount", Reason: "must be non-zero"}
	}
	if p.Currency == "" {
		return nil, &engine.ValidationError{Field: "currency", Reason: "is required"}
	}

	t := newTracker(b.s)

	// Resolve or fabricate the payer.
	payerAccountID := p.PayerAccountID
	if payerAccountID == 0 && p.PayerLogin != "" {
		payerAccountID = b.accountIDForLogin(t, p.PayerLogin)
	}
	if payerAccountID == 0 {
		payerAccountID = newOptimisticAccountID()
		t.stage(store.Merge(PersonalDetailsKey, map[string]any{
			fmt.Sprint(payerAccountID): map[string]any{
				"accountID":    payerAccountID,
				"login":        p.PayerLogin,
				"isOptimistic": true,
			},
		}))
		t.onSuccess(store.Merge(PersonalDetailsKey, map[string]any{
			fmt.Sprint(payerAccountID): map[string]any{"isOptimistic": nil},
		}))
	}

	// Chat thread with the payer.
	chatReportID := p.ChatReportID
	var chat *models.Report
	if chatReportID != "" {
		var err error
		chat, err = b.getReport(t, chatReportID)
		if err != nil {
			return nil, err
		}
	} else {
		chatReportID = models.NewID()
		chat = &models.Report{
			ReportID:              chatReportID,
			Type:                  models.ReportTypeChat,
			ParticipantAccountIDs: []int64{b.actorAccountID, payerAccountID},
			PendingAction:         models.PendingAdd,
		}
		t.stage(store.Set(store.ReportKey(chatReportID), chat))
		clearPending(t, store.ReportKey(chatReportID))

		created := models.ReportAction{
			ReportActionID: models.NewID(),
			ReportID:       chatReportID,
			ActionName:     models.ActionCreated,
			ActorAccountID: b.actorAccountID,
			Created:        models.Now(),
			PendingAction:  models.PendingAdd,
		}
		b.stageAction(t, chatReportID, created)
		clearActionPending(t, chatReportID, created.ReportActionID)
	}

	// IOU report: top up the chat's existing one or open a new one.
	iouReportID := chat.IOUReportID
	var newTotal int64
	if iouReportID != "" {
		iou, err := b.getReport(t, iouReportID)
		if err != nil {
			return nil, err
		}
		newTotal = iou.Total + p.Amount
		t.stage(store.Merge(store.ReportKey(iouReportID), map[string]any{
			"total":         newTotal,
			"pendingAction": models.PendingUpdate,
		}))
		clearPending(t, store.ReportKey(iouReportID))
	} else {
		iouReportID = models.NewID()
		newTotal = p.Amount
		iou := &models.Report{
			ReportID:       iouReportID,
			Type:           models.ReportTypeIOU,
			Total:          p.Amount,
			Currency:       p.Currency,
			StatusNum:      models.StatusOpen,
			StateNum:       models.StateOpen,
			OwnerAccountID: b.actorAccountID,
			ManagerID:      payerAccountID,
			PolicyID:       p.PolicyID,
			ChatReportID:   chatReportID,
			PendingAction:  models.PendingAdd,
		}
		t.stage(store.Set(store.ReportKey(iouReportID), iou))
		clearPending(t, store.ReportKey(iouReportID))
		t.stage(store.Merge(store.ReportKey(chatReportID), map[string]any{
			"iouReportID": iouReportID,
		}))

		created := models.ReportAction{
			ReportActionID: models.NewID(),
			ReportID:       iouReportID,
			ActionName:     models.ActionCreated,
			ActorAccountID: b.actorAccountID,
			Created:        models.Now(),
			PendingAction:  models.PendingAdd,
		}
		b.stageAction(t, iouReportID, created)
		clearActionPending(t, iouReportID, created.ReportActionID)
	}

	// Transaction line item.
	transactionID := models.NewID()
	tx := &models.Transaction{
		TransactionID: transactionID,
		ReportID:      iouReportID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Merchant:      p.Merchant,
		Category:      p.Category,
		Tag:           p.Tag,
		Created:       models.Now(),
		Status:        models.TransactionPosted,
		Comment:       models.TransactionComment{Comment: p.Comment},
		PendingAction: models.PendingAdd,
	}
	t.stage(store.Set(store.TransactionKey(transactionID), tx))
	clearPending(t, store.TransactionKey(transactionID))

	// IOU audit action on the money request report.
	iouAction := models.ReportAction{
		ReportActionID: models.NewID(),
		ReportID:       iouReportID,
		ActionName:     models.ActionIOU,
		ActorAccountID: b.actorAccountID,
		Created:        models.Now(),
		OriginalMessage: models.EncodeMessage(models.IOUMessage{
			IOUReportID:      iouReportID,
			IOUTransactionID: transactionID,
			Amount:           p.Amount,
			Currency:         p.Currency,
			Type:             models.IOUCreate,
		}),
		PendingAction: models.PendingAdd,
	}
	b.stageAction(t, iouReportID, iouAction)
	clearActionPending(t, iouReportID, iouAction.ReportActionID)

	// Report preview in the chat.
	chatActions, err := b.getActions(t, chatReportID)
	if err != nil {
		return nil, err
	}
	previewID := report.FindPreviewActionID(chatActions, iouReportID)
	if previewID == "" {
		preview := models.ReportAction{
			ReportActionID: models.NewID(),
			ReportID:       chatReportID,
			ActionName:     models.ActionReportPreview,
			ActorAccountID: b.actorAccountID,
			Created:        models.Now(),
			ChildReportID:  iouReportID,
			OriginalMessage: models.EncodeMessage(models.IOUMessage{
				IOUReportID: iouReportID,
				Amount:      newTotal,
				Currency:    p.Currency,
			}),
			PendingAction: models.PendingAdd,
		}
		b.stageAction(t, chatReportID, preview)
		clearActionPending(t, chatReportID, preview.ReportActionID)
		previewID = preview.ReportActionID
	} else {
		stamp := models.Now()
		t.stage(store.Merge(store.ReportActionsKey(chatReportID), map[string]any{
			previewID: map[string]any{
				"created":         stamp,
				"originalMessage": map[string]any{"amount": newTotal},
			},
		}))
		t.stage(store.Merge(store.ReportKey(chatReportID), map[string]any{
			"lastVisibleActionCreated": stamp,
		}))
	}

	t.stage(store.Merge(store.ReportKey(chatReportID), map[string]any{
		"hasOutstandingChildRequest": true,
	}))

	// Search projection.
	t.stage(store.Merge(store.SnapshotKey(iouReportID), map[string]any{
		"reportID":       iouReportID,
		"total":          newTotal,
		"currency":       p.Currency,
		"ownerAccountID": b.actorAccountID,
	}))

	return &engine.UpdateSet{
		Command:   "RequestMoney",
		CommandID: uuid.NewString(),
		Parameters: map[string]any{
			"amount":         p.Amount,
			"currency":       p.Currency,
			"merchant":       p.Merchant,
			"category":       p.Category,
			"tag":            p.Tag,
			"comment":        p.Comment,
			"payerAccountID": payerAccountID,
			"payerEmail":     p.PayerLogin,
			"chatReportID":   chatReportID,
			"iouReportID":    iouReportID,
			"transactionID":  transactionID,
			"reportActionID": iouAction.ReportActionID,
		},
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: []string{store.TransactionKey(transactionID), store.ReportKey(iouReportID)},
	}, nil
}

// DeleteExpense builds the update set for removing a transaction. All
// affected entities ride in the same set: the transaction, its report
// (decremented, or removed on success when this was the last line item),
// the parent IOU action, transaction threads, and the search projection.
func (b *Builder) DeleteExpense(transactionID string) (*engine.UpdateSet, error) {
	t := newTracker(b.s)

	tx, err := b.getTransaction(t, transactionID)
	if err != nil {
		return nil, err
	}
	rpt, err := b.getReport(t, tx.ReportID)
	if err != nil {
		return nil, err
	}
	actions, err := b.getActions(t, rpt.ReportID)
	if err != nil {
		return nil, err
	}

	live, err := b.liveTransactions(t, rpt.ReportID)
	if err != nil {
		return nil, err
	}
	remaining := 0
	for _, other := range live {
		if other.TransactionID != transactionID {
			remaining++
		}
	}

	iouActionID := report.FindIOUActionID(actions, transactionID)

	// Optimistic: flag everything, keep it visible.
	t.stage(store.Merge(store.TransactionKey(transactionID), map[string]any{
		"pendingAction": models.PendingDelete,
	}))
	t.stage(store.Merge(store.ReportKey(rpt.ReportID), map[string]any{
		"total":         rpt.Total - tx.Amount,
		"pendingAction": models.PendingUpdate,
	}))
	if iouActionID != "" {
		t.stage(store.Merge(store.ReportActionsKey(rpt.ReportID), map[string]any{
			iouActionID: map[string]any{"pendingAction": models.PendingDelete},
		}))
		t.stage(store.Merge(store.ReportKey(rpt.ReportID), map[string]any{
			"lastVisibleActionCreated": report.LastVisibleCreatedExcluding(actions, iouActionID),
		}))
	}

	// Success: the server has removed the transaction.
	t.onSuccess(store.Set(store.TransactionKey(transactionID), nil))
	t.onSuccess(store.Set(store.ViolationsKey(transactionID), nil))

	if remaining == 0 {
		// Last line item: the report and its threads go with it.
		t.onSuccess(store.Set(store.ReportKey(rpt.ReportID), nil))
		t.onSuccess(store.Set(store.ReportActionsKey(rpt.ReportID), nil))
		t.onSuccess(store.Set(store.SnapshotKey(rpt.ReportID), nil))
		for _, action := range actions {
			if action.ChildReportID != "" {
				t.onSuccess(store.Set(store.ReportKey(action.ChildReportID), nil))
				t.onSuccess(store.Set(store.ReportActionsKey(action.ChildReportID), nil))
			}
		}
		if rpt.ChatReportID != "" {
			t.onSuccess(store.Merge(store.ReportKey(rpt.ChatReportID), map[string]any{
				"iouReportID":                nil,
				"hasOutstandingChildRequest": false,
			}))
			chatActions, err := b.getActions(t, rpt.ChatReportID)
			if err != nil {
				return nil, err
			}
			if previewID := report.FindPreviewActionID(chatActions, rpt.ReportID); previewID != "" {
				t.onSuccess(store.Merge(store.ReportActionsKey(rpt.ChatReportID), map[string]any{
					previewID: nil,
				}))
			}
		}
	} else {
		t.onSuccess(store.Merge(store.ReportKey(rpt.ReportID), map[string]any{"pendingAction": nil}))
		t.onSuccess(store.Merge(store.SnapshotKey(rpt.ReportID), map[string]any{
			"total": rpt.Total - tx.Amount,
		}))
		if iouActionID != "" {
			thread := actions[iouActionID].ChildReportID
			if thread != "" && !b.threadIsDisposable(t, thread) {
				// The thread still carries user comments: keep it and mark
				// the parent action deleted instead.
				t.onSuccess(store.Merge(store.ReportActionsKey(rpt.ReportID), map[string]any{
					iouActionID: map[string]any{
						"isDeletedParentAction": true,
						"pendingAction":         nil,
						"originalMessage":       map[string]any{"IOUTransactionID": nil},
					},
				}))
			} else {
				if thread != "" {
					t.onSuccess(store.Set(store.ReportKey(thread), nil))
					t.onSuccess(store.Set(store.ReportActionsKey(thread), nil))
				}
				t.onSuccess(store.Merge(store.ReportActionsKey(rpt.ReportID), map[string]any{
					iouActionID: nil,
				}))
			}
		}
	}

	return &engine.UpdateSet{
		Command:   "DeleteMoneyRequest",
		CommandID: uuid.NewString(),
		Parameters: map[string]any{
			"transactionID":  transactionID,
			"reportActionID": iouActionID,
		},
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: []string{store.TransactionKey(transactionID)},
	}, nil
}

// threadIsDisposable reports whether a transaction thread holds nothing a
// user would miss: only the creation action plus deleted or changelog
// entries.
func (b *Builder) threadIsDisposable(t *tracker, threadReportID string) bool {
	actions, err := b.getActions(t, threadReportID)
	if err != nil {
		return false
	}
	return report.OnlySystemActions(actions)
}

// HoldExpense builds the update set for putting a transaction on hold with
// an explanatory comment.
func (b *Builder) HoldExpense(transactionID, comment string) (*engine.UpdateSet, error) {
	if comment == "" {
		return nil, &engine.ValidationError{Field: "comment", Reason: "is required"}
	}

	t := newTracker(b.s)
	tx, err := b.getTransaction(t, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.IsOnHold() {
		return nil, fmt.Errorf("%w: transaction %s is already on hold", ErrInvalidIntent, transactionID)
	}

	holdAction := models.ReportAction{
		ReportActionID:  models.NewID(),
		ReportID:        tx.ReportID,
		ActionName:      models.ActionHold,
		ActorAccountID:  b.actorAccountID,
		Created:         models.Now(),
		OriginalMessage: models.EncodeMessage(models.CommentMessage{Comment: comment}),
		PendingAction:   models.PendingAdd,
	}
	b.stageAction(t, tx.ReportID, holdAction)
	clearActionPending(t, tx.ReportID, holdAction.ReportActionID)

	t.stage(store.Merge(store.TransactionKey(transactionID), map[string]any{
		"comment":       map[string]any{"hold": holdAction.ReportActionID},
		"pendingAction": models.PendingUpdate,
	}))
	clearPending(t, store.TransactionKey(transactionID))

	return &engine.UpdateSet{
		Command:   "HoldRequest",
		CommandID: uuid.NewString(),
		Parameters: map[string]any{
			"transactionID":  transactionID,
			"comment":        comment,
			"reportActionID": holdAction.ReportActionID,
		},
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: []string{store.TransactionKey(transactionID)},
	}, nil
}

// UnholdExpense builds the update set for releasing a held transaction
func (b *Builder) UnholdExpense(transactionID string) (*engine.UpdateSet, error) {
	t := newTracker(b.s)
	tx, err := b.getTransaction(t, transactionID)
	if err != nil {
		return nil, err
	}
	if !tx.IsOnHold() {
		return nil, fmt.Errorf("%w: transaction %s is not on hold", ErrInvalidIntent, transactionID)
	}

	unholdAction := models.ReportAction{
		ReportActionID: models.NewID(),
		ReportID:       tx.ReportID,
		ActionName:     models.ActionUnhold,
		ActorAccountID: b.actorAccountID,
		Created:        models.Now(),
		PendingAction:  models.PendingAdd,
	}
	b.stageAction(t, tx.ReportID, unholdAction)
	clearActionPending(t, tx.ReportID, unholdAction.ReportActionID)

	t.stage(store.Merge(store.TransactionKey(transactionID), map[string]any{
		"comment":       map[string]any{"hold": nil},
		"pendingAction": models.PendingUpdate,
	}))
	clearPending(t, store.TransactionKey(transactionID))

	return &engine.UpdateSet{
		Command:   "UnHoldRequest",
		CommandID: uuid.NewString(),
		Parameters: map[string]any{
			"transactionID":  transactionID,
			"reportActionID": unholdAction.ReportActionID,
		},
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: []string{store.TransactionKey(transactionID)},
	}, nil
}
