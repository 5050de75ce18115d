package builder

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/halden/outlay/internal/engine"
	"github.com/halden/outlay/internal/models"
	"github.com/halden/outlay/internal/report"
	"github.com/halden/outlay/internal/store"
)

// SplitExpenseParams describes a bill split among several participants
type SplitExpenseParams struct {
	Total             int64
	Currency          string
	Merchant          string
	Category          string
	Tag               string
	Comment           string
	PolicyID          string
	ParticipantLogins []string
}

// splitShare is one participant's slice of the bill, serialized into the
// splits parameter so the server can mirror the client-side IDs.
type splitShare struct {
	Email          string `json:"email"`
	AccountID      int64  `json:"accountID"`
	Amount         int64  `json:"amount"`
	ChatReportID   string `json:"chatReportID"`
	IOUReportID    string `json:"iouReportID"`
	TransactionID  string `json:"transactionID"`
	ReportActionID string `json:"reportActionID"`
}

// ShareAmounts divides total across n participants in minor units. Every
// share gets the integer quotient; the remainder is distributed one unit at
// a time starting from the first participant, so the shares always sum to
// the total.
func ShareAmounts(total int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	base := total / int64(n)
	rem := total % int64(n)
	if rem < 0 {
		// Keep remainder distribution consistent for negative totals.
		base--
		rem += int64(n)
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = base
		if int64(i) < rem {
			out[i]++
		}
	}
	return out
}

// SplitExpense builds the update set for splitting a bill: for every
// participant a one-on-one chat (found or created), an IOU report, a
// transaction for their share, and the audit actions, all staged as one
// atomic set.
func (b *Builder) SplitExpense(p SplitExpenseParams) (*engine.UpdateSet, error) {
	if p.Total == 0 {
		return nil, &engine.ValidationError{Field: "total", Reason: "must be non-zero"}
	}
	if p.Currency == "" {
		return nil, &engine.ValidationError{Field: "currency", Reason: "is required"}
	}
	if len(p.ParticipantLogins) == 0 {
		return nil, &engine.ValidationError{Field: "participants", Reason: "at least one is required"}
	}
	seen := make(map[string]bool, len(p.ParticipantLogins))
	for _, login := range p.ParticipantLogins {
		if seen[login] {
			return nil, &engine.ValidationError{Field: "participants", Reason: "duplicate participant " + login}
		}
		seen[login] = true
	}

	t := newTracker(b.s)
	shares := ShareAmounts(p.Total, len(p.ParticipantLogins))
	splits := make([]splitShare, 0, len(p.ParticipantLogins))

	for i, login := range p.ParticipantLogins {
		share, err := b.stageSplitShare(t, login, shares[i], p)
		if err != nil {
			return nil, fmt.Errorf("split for %s: %w", login, err)
		}
		splits = append(splits, share)
	}

	splitsJSON, err := json.Marshal(splits)
	if err != nil {
		return nil, fmt.Errorf("encoding splits: %w", err)
	}

	errorTargets := make([]string, 0, len(splits))
	for _, s := range splits {
		errorTargets = append(errorTargets, store.TransactionKey(s.TransactionID))
	}

	return &engine.UpdateSet{
		Command:   "SplitBill",
		CommandID: uuid.NewString(),
		Parameters: map[string]any{
			"amount":   p.Total,
			"currency": p.Currency,
			"merchant": p.Merchant,
			"category": p.Category,
			"tag":      p.Tag,
			"comment":  p.Comment,
			"splits":   string(splitsJSON),
		},
		Optimistic:   t.optimistic,
		Success:      t.success,
		Failure:      t.failure,
		ErrorTargets: errorTargets,
	}, nil
}

// stageSplitShare stages one participant's slice: their chat, IOU report,
// transaction and actions.
func (b *Builder) stageSplitShare(t *tracker, login string, amount int64, p SplitExpenseParams) (splitShare, error) {
	accountID := b.accountIDForLogin(t, login)
	if accountID == 0 {
		accountID = newOptimisticAccountID()
		t.stage(store.Merge(PersonalDetailsKey, map[string]any{
			fmt.Sprint(accountID): map[string]any{
				"accountID":    accountID,
				"login":        login,
				"isOptimistic": true,
			},
		}))
		t.onSuccess(store.Merge(PersonalDetailsKey, map[string]any{
			fmt.Sprint(accountID): map[string]any{"isOptimistic": nil},
		}))
	}

	chatReportID, chat, err := b.findOrStageChat(t, accountID)
	if err != nil {
		return splitShare{}, err
	}

	iouReportID := chat.IOUReportID
	var newTotal int64
	if iouReportID != "" {
		iou, err := b.getReport(t, iouReportID)
		if err != nil {
			return splitShare{}, err
		}
		newTotal = iou.Total + amount
		t.stage(store.Merge(store.ReportKey(iouReportID), map[string]any{
			"total":         newTotal,
			"pendingAction": models.PendingUpdate,
		}))
		clearPending(t, store.ReportKey(iouReportID))
	} else {
		iouReportID = models.NewID()
		newTotal = amount
		iou := &models.Report{
			ReportID:       iouReportID,
			Type:           models.ReportTypeIOU,
			Total:          amount,
			Currency:       p.Currency,
			StatusNum:      models.StatusOpen,
			StateNum:       models.StateOpen,
			OwnerAccountID: b.actorAccountID,
			ManagerID:      accountID,
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

	transactionID := models.NewID()
	tx := &models.Transaction{
		TransactionID: transactionID,
		ReportID:      iouReportID,
		Amount:        amount,
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

	iouAction := models.ReportAction{
		ReportActionID: models.NewID(),
		ReportID:       iouReportID,
		ActionName:     models.ActionIOU,
		ActorAccountID: b.actorAccountID,
		Created:        models.Now(),
		OriginalMessage: models.EncodeMessage(models.IOUMessage{
			IOUReportID:      iouReportID,
			IOUTransactionID: transactionID,
			Amount:           amount,
			Currency:         p.Currency,
			Type:             models.IOUSplit,
		}),
		PendingAction: models.PendingAdd,
	}
	b.stageAction(t, iouReportID, iouAction)
	clearActionPending(t, iouReportID, iouAction.ReportActionID)

	chatActions, err := b.getActions(t, chatReportID)
	if err != nil {
		return splitShare{}, err
	}
	if previewID := report.FindPreviewActionID(chatActions, iouReportID); previewID == "" {
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
	t.stage(store.Merge(store.SnapshotKey(iouReportID), map[string]any{
		"reportID":       iouReportID,
		"total":          newTotal,
		"currency":       p.Currency,
		"ownerAccountID": b.actorAccountID,
	}))

	return splitShare{
		Email:          login,
		AccountID:      accountID,
		Amount:         amount,
		ChatReportID:   chatReportID,
		IOUReportID:    iouReportID,
		TransactionID:  transactionID,
		ReportActionID: iouAction.ReportActionID,
	}, nil
}

// findOrStageChat returns the one-on-one chat between the actor and the
// given account, staging an optimistic one when none exists yet.
func (b *Builder) findOrStageChat(t *tracker, accountID int64) (string, *models.Report, error) {
	for key, v := range b.s.Collection(store.ReportPrefix) {
		if t.shadowSet[key] {
			v = t.current(key)
			if v == nil {
				continue
			}
		}
		var r models.Report
		if err := decode(v, &r); err != nil {
			return "", nil, fmt.Errorf("report %s: %w", key, err)
		}
		if r.Type == models.ReportTypeChat && isOneOnOne(&r, b.actorAccountID, accountID) {
			return r.ReportID, &r, nil
		}
	}

	chatReportID := models.NewID()
	chat := &models.Report{
		ReportID:              chatReportID,
		Type:                  models.ReportTypeChat,
		ParticipantAccountIDs: []int64{b.actorAccountID, accountID},
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

	return chatReportID, chat, nil
}

func isOneOnOne(r *models.Report, a, b int64) bool {
	if len(r.ParticipantAccountIDs) != 2 {
		return false
	}
	p := r.ParticipantAccountIDs
	return (p[0] == a && p[1] == b) || (p[0] == b && p[1] == a)
}
