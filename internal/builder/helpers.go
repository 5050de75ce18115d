package builder

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/halden/outlay/internal/models"
	"github.com/halden/outlay/internal/store"
)

// PersonalDetailsKey holds the account directory: accountID → details
const PersonalDetailsKey = "personalDetailsList"

// ErrInvalidIntent reports a consistency violation caught before any patch
// is built (e.g. an operation against an entity that does not exist).
// These are programmer errors, not retryable business failures.
var ErrInvalidIntent = errors.New("invalid intent")

// Builder constructs update sets on behalf of one acting user
type Builder struct {
	s              *store.Store
	actorAccountID int64
	actorEmail     string
}

// New creates a builder for the given actor
func New(s *store.Store, actorAccountID int64, actorEmail string) *Builder {
	return &Builder{s: s, actorAccountID: actorAccountID, actorEmail: actorEmail}
}

func (b *Builder) getReport(t *tracker, reportID string) (*models.Report, error) {
	v := t.current(store.ReportKey(reportID))
	if v == nil {
		return nil, fmt.Errorf("%w: report %s does not exist", ErrInvalidIntent, reportID)
	}
	var r models.Report
	if err := decode(v, &r); err != nil {
		return nil, fmt.Errorf("report %s: %w", reportID, err)
	}
	return &r, nil
}

func (b *Builder) getTransaction(t *tracker, transactionID string) (*models.Transaction, error) {
	v := t.current(store.TransactionKey(transactionID))
	if v == nil {
		return nil, fmt.Errorf("%w: transaction %s does not exist", ErrInvalidIntent, transactionID)
	}
	var tx models.Transaction
	if err := decode(v, &tx); err != nil {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, err)
	}
	return &tx, nil
}

func (b *Builder) getPolicy(t *tracker, policyID string) (*models.Policy, error) {
	v := t.current(store.PolicyKey(policyID))
	if v == nil {
		return nil, fmt.Errorf("%w: policy %s does not exist", ErrInvalidIntent, policyID)
	}
	var p models.Policy
	if err := decode(v, &p); err != nil {
		return nil, fmt.Errorf("policy %s: %w", policyID, err)
	}
	return &p, nil
}

// getActions returns a report's action log as actionID → action
func (b *Builder) getActions(t *tracker, reportID string) (map[string]models.ReportAction, error) {
	v := t.current(store.ReportActionsKey(reportID))
	if v == nil {
		return map[string]models.ReportAction{}, nil
	}
	var actions map[string]models.ReportAction
	if err := decode(v, &actions); err != nil {
		return nil, fmt.Errorf("reportActions %s: %w", reportID, err)
	}
	return actions, nil
}

// liveTransactions returns the report's transactions that are not pending
// deletion, from the staged view of the store.
func (b *Builder) liveTransactions(t *tracker, reportID string) ([]models.Transaction, error) {
	var out []models.Transaction
	for key, v := range b.s.Collection(store.TransactionPrefix) {
		if t.shadowSet[key] {
			v = t.current(key)
			if v == nil {
				continue
			}
		}
		var tx models.Transaction
		if err := decode(v, &tx); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", key, err)
		}
		if tx.ReportID == reportID && tx.PendingAction != models.PendingDelete {
			out = append(out, tx)
		}
	}
	return out, nil
}

// getViolations returns a transaction's violation list
func (b *Builder) getViolations(t *tracker, transactionID string) ([]models.Violation, error) {
	v := t.current(store.ViolationsKey(transactionID))
	if v == nil {
		return nil, nil
	}
	var violations []models.Violation
	if err := decode(v, &violations); err != nil {
		return nil, fmt.Errorf("violations %s: %w", transactionID, err)
	}
	return violations, nil
}

// decode converts a stored document into a typed record
func decode(v any, out any) error {
	return decodeJSON(v, out)
}

func decodeJSON(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// accountIDForLogin resolves a login via the personal details directory.
// Returns 0 when the login is unknown.
func (b *Builder) accountIDForLogin(t *tracker, login string) int64 {
	v := t.current(PersonalDetailsKey)
	if v == nil {
		return 0
	}
	var details map[string]struct {
		Login     string `json:"login"`
		AccountID int64  `json:"accountID"`
	}
	if err := decodeJSON(v, &details); err != nil {
		return 0
	}
	for _, d := range details {
		if d.Login == login {
			return d.AccountID
		}
	}
	return 0
}

// newOptimisticAccountID generates a placeholder accountID for a
// participant the server has not seen yet. The server replaces it on
// confirmation.
func newOptimisticAccountID() int64 {
	return rand.Int63n(1<<31-2) + 1
}

// stageAction appends a report action to the report's action log and
// advances lastVisibleActionCreated on the report.
func (b *Builder) stageAction(t *tracker, reportID string, action models.ReportAction) {
	t.stage(store.Merge(store.ReportActionsKey(reportID), map[string]any{
		action.ReportActionID: action,
	}))
	t.stage(store.Merge(store.ReportKey(reportID), map[string]any{
		"lastVisibleActionCreated": action.Created,
	}))
}

// clearPending emits a success patch that clears pendingAction on a key
func clearPending(t *tracker, key string) {
	t.onSuccess(store.Merge(key, map[string]any{"pendingAction": nil}))
}

// clearActionPending emits a success patch clearing pendingAction on one
// entry of a report's action log.
func clearActionPending(t *tracker, reportID, actionID string) {
	t.onSuccess(store.Merge(store.ReportActionsKey(reportID), map[string]any{
		actionID: map[string]any{"pendingAction": nil},
	}))
}
