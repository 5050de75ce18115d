package models

import (
	"encoding/json"
	"fmt"
)

// ReportType represents the kind of ledger container
type ReportType string

const (
	ReportTypeChat    ReportType = "chat"
	ReportTypeExpense ReportType = "expense"
	ReportTypeIOU     ReportType = "iou"
	ReportTypeInvoice ReportType = "invoice"
)

// StatusNum represents report lifecycle status
type StatusNum int

const (
	StatusOpen       StatusNum = 0
	StatusSubmitted  StatusNum = 1
	StatusClosed     StatusNum = 2
	StatusApproved   StatusNum = 3
	StatusReimbursed StatusNum = 4
)

// StateNum represents report lifecycle state
type StateNum int

const (
	StateOpen       StateNum = 0
	StateSubmitted  StateNum = 1
	StateApproved   StateNum = 2
	StateBilling    StateNum = 3
	StateReimbursed StateNum = 4
)

// PendingAction marks an entity as optimistically mutated, awaiting server confirmation
type PendingAction string

const (
	PendingAdd    PendingAction = "add"
	PendingUpdate PendingAction = "update"
	PendingDelete PendingAction = "delete"
)

// ErrorMap holds user-visible errors keyed by microsecond timestamp,
// so multiple concurrent errors on one entity never collide.
type ErrorMap map[string]string

// Report represents a ledger container (chat thread, expense report, IOU, or invoice)
type Report struct {
	ReportID                   string        `json:"reportID"`
	Type                       ReportType    `json:"type"`
	Total                      int64         `json:"total"`
	Currency                   string        `json:"currency,omitempty"`
	StatusNum                  StatusNum     `json:"statusNum"`
	StateNum                   StateNum      `json:"stateNum"`
	OwnerAccountID             int64         `json:"ownerAccountID,omitempty"`
	ManagerID                  int64         `json:"managerID,omitempty"`
	PolicyID                   string        `json:"policyID,omitempty"`
	ChatReportID               string        `json:"chatReportID,omitempty"`
	IOUReportID                string        `json:"iouReportID,omitempty"`
	ParentReportID             string        `json:"parentReportID,omitempty"`
	ParentReportActionID       string        `json:"parentReportActionID,omitempty"`
	LastVisibleActionCreated   string        `json:"lastVisibleActionCreated,omitempty"`
	HasOutstandingChildRequest bool          `json:"hasOutstandingChildRequest,omitempty"`
	ParticipantAccountIDs      []int64       `json:"participantAccountIDs,omitempty"`
	PendingAction              PendingAction `json:"pendingAction,omitempty"`
	Errors                     ErrorMap      `json:"errors,omitempty"`
	ErrorFields                map[string]ErrorMap `json:"errorFields,omitempty"`
}

// IsMoneyRequestReport reports whether the report carries transactions
func (r *Report) IsMoneyRequestReport() bool {
	return r.Type == ReportTypeIOU || r.Type == ReportTypeExpense || r.Type == ReportTypeInvoice
}

// TransactionStatus represents settlement state of a card transaction
type TransactionStatus string

const (
	TransactionPending TransactionStatus = "Pending"
	TransactionPosted  TransactionStatus = "Posted"
)

// ReceiptState tracks scan progress on an attached receipt
type ReceiptState string

const (
	ReceiptScanReady    ReceiptState = "SCANREADY"
	ReceiptScanning     ReceiptState = "SCANNING"
	ReceiptScanComplete ReceiptState = "SCANCOMPLETE"
	ReceiptScanFailed   ReceiptState = "SCANFAILED"
)

// Receipt is the scan metadata attached to a transaction
type Receipt struct {
	State ReceiptState `json:"state,omitempty"`
}

// Attendee is a person listed on an expense
type Attendee struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// SplitExpense is one share of a split transaction, nested in the parent comment
type SplitExpense struct {
	TransactionID string `json:"transactionID"`
	Amount        int64  `json:"amount"`
	Created       string `json:"created,omitempty"`
}

// TransactionComment is the nested structured comment payload on a transaction
type TransactionComment struct {
	Comment               string         `json:"comment,omitempty"`
	Attendees             []Attendee     `json:"attendees,omitempty"`
	SplitExpenses         []SplitExpense `json:"splitExpenses,omitempty"`
	OriginalTransactionID string         `json:"originalTransactionID,omitempty"`
	Hold                  string         `json:"hold,omitempty"` // reportActionID of the HOLD action
}

// Transaction represents a single expense line item owned by exactly one report
type Transaction struct {
	TransactionID string             `json:"transactionID"`
	ReportID      string             `json:"reportID"`
	Amount        int64              `json:"amount"`
	Currency      string             `json:"currency,omitempty"`
	Merchant      string             `json:"merchant,omitempty"`
	Category      string             `json:"category,omitempty"`
	Tag           string             `json:"tag,omitempty"`
	Created       string             `json:"created,omitempty"`
	Status        TransactionStatus  `json:"status,omitempty"`
	Receipt       *Receipt           `json:"receipt,omitempty"`
	Comment       TransactionComment `json:"comment,omitempty"`
	PendingAction PendingAction      `json:"pendingAction,omitempty"`
	Errors        ErrorMap           `json:"errors,omitempty"`
}

// IsSettled reports whether the transaction counts toward approval:
// not a still-pending card charge, and not a failed scan with no amount.
func (t *Transaction) IsSettled() bool {
	if t.Status == TransactionPending {
		return false
	}
	if t.Amount == 0 && t.Receipt != nil && t.Receipt.State == ReceiptScanFailed {
		return false
	}
	return true
}

// IsOnHold reports whether the transaction is currently held
func (t *Transaction) IsOnHold() bool {
	return t.Comment.Hold != ""
}

// ActionName tags the variant payload of a report action
type ActionName string

const (
	ActionCreated                ActionName = "CREATED"
	ActionIOU                    ActionName = "IOU"
	ActionAddComment             ActionName = "ADDCOMMENT"
	ActionModifiedExpense        ActionName = "MODIFIEDEXPENSE"
	ActionReportPreview          ActionName = "REPORTPREVIEW"
	ActionSubmitted              ActionName = "SUBMITTED"
	ActionApproved               ActionName = "APPROVED"
	ActionRejected               ActionName = "REJECTED"
	ActionForwarded              ActionName = "FORWARDED"
	ActionReimbursed             ActionName = "REIMBURSED"
	ActionReimbursementDequeued  ActionName = "REIMBURSEMENTDEQUEUED"
	ActionHold                   ActionName = "HOLD"
	ActionUnhold                 ActionName = "UNHOLD"
	ActionClosed                 ActionName = "CLOSED"
	ActionTrackExpenseWhisper    ActionName = "ACTIONABLETRACKEXPENSEWHISPER"
	ActionPolicyChangeLog        ActionName = "POLICYCHANGELOG"
	ActionRoomChangeLog          ActionName = "ROOMCHANGELOG"
)

// IOUType distinguishes what an IOU action did
type IOUType string

const (
	IOUCreate IOUType = "create"
	IOUDelete IOUType = "delete"
	IOUSplit  IOUType = "split"
	IOUPay    IOUType = "pay"
)

// IOUMessage is the originalMessage payload for ActionIOU
type IOUMessage struct {
	IOUReportID      string  `json:"IOUReportID"`
	IOUTransactionID string  `json:"IOUTransactionID,omitempty"`
	Amount           int64   `json:"amount"`
	Currency         string  `json:"currency"`
	Type             IOUType `json:"type"`
	PaymentType      string  `json:"paymentType,omitempty"`
	Participants     []int64 `json:"participantAccountIDs,omitempty"`
}

// SubmittedMessage is the originalMessage payload for ActionSubmitted
type SubmittedMessage struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	To       int64  `json:"to,omitempty"` // accountID of the receiving approver
}

// ApprovedMessage is the originalMessage payload for ActionApproved and ActionForwarded
type ApprovedMessage struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// RejectedMessage is the originalMessage payload for ActionRejected
type RejectedMessage struct {
	Comment string `json:"comment,omitempty"`
}

// ReimbursedMessage is the originalMessage payload for ActionReimbursed
type ReimbursedMessage struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	PaymentType string `json:"paymentType,omitempty"`
}

// CommentMessage is the originalMessage payload for ActionAddComment and hold actions
type CommentMessage struct {
	Comment string `json:"comment"`
}

// ReportAction is an immutable, ordered audit-log entry belonging to one report
type ReportAction struct {
	ReportActionID        string          `json:"reportActionID"`
	ReportID              string          `json:"reportID"`
	ActionName            ActionName      `json:"actionName"`
	ActorAccountID        int64           `json:"actorAccountID,omitempty"`
	Created               string          `json:"created"`
	OriginalMessage       json.RawMessage `json:"originalMessage,omitempty"`
	ChildReportID         string          `json:"childReportID,omitempty"`
	IsDeletedParentAction bool            `json:"isDeletedParentAction,omitempty"`
	PendingAction         PendingAction   `json:"pendingAction,omitempty"`
	Errors                ErrorMap        `json:"errors,omitempty"`
}

// DecodeOriginalMessage decodes the variant payload for the action's name.
// The returned value is one of the *Message types above; consumption sites
// must switch exhaustively on the concrete type.
func (a *ReportAction) DecodeOriginalMessage() (any, error) {
	if len(a.OriginalMessage) == 0 {
		return nil, nil
	}
	decode := func(v any) (any, error) {
		if err := json.Unmarshal(a.OriginalMessage, v); err != nil {
			return nil, fmt.Errorf("decode %s originalMessage: %w", a.ActionName, err)
		}
		return v, nil
	}
	switch a.ActionName {
	case ActionIOU, ActionReportPreview:
		return decode(&IOUMessage{})
	case ActionSubmitted:
		return decode(&SubmittedMessage{})
	case ActionApproved, ActionForwarded:
		return decode(&ApprovedMessage{})
	case ActionRejected:
		return decode(&RejectedMessage{})
	case ActionReimbursed, ActionReimbursementDequeued:
		return decode(&ReimbursedMessage{})
	case ActionAddComment, ActionHold, ActionUnhold:
		return decode(&CommentMessage{})
	case ActionCreated, ActionClosed, ActionModifiedExpense, ActionTrackExpenseWhisper,
		ActionPolicyChangeLog, ActionRoomChangeLog:
		return decode(&map[string]any{})
	default:
		return nil, fmt.Errorf("unknown actionName %q", a.ActionName)
	}
}

// EncodeMessage marshals an originalMessage payload for storage on an action
func EncodeMessage(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

// IOUMessage decodes the action's originalMessage as an IOU payload
func (a *ReportAction) IOUMessage() (*IOUMessage, error) {
	var m IOUMessage
	if err := json.Unmarshal(a.OriginalMessage, &m); err != nil {
		return nil, fmt.Errorf("decode IOU originalMessage: %w", err)
	}
	return &m, nil
}

// IsVisible reports whether the action still shows in the report's timeline
func (a *ReportAction) IsVisible() bool {
	return a.PendingAction != PendingDelete && !a.IsDeletedParentAction
}

// IsSystemAction reports whether the action is machine-generated bookkeeping
// rather than user-visible content. A transaction thread holding only system
// actions can be deleted along with its parent expense.
func (a *ReportAction) IsSystemAction() bool {
	switch a.ActionName {
	case ActionCreated, ActionModifiedExpense, ActionPolicyChangeLog, ActionRoomChangeLog:
		return true
	}
	return a.IsDeletedParentAction || a.PendingAction == PendingDelete
}

// IsValidReportType checks if a report type is valid
func IsValidReportType(t ReportType) bool {
	switch t {
	case ReportTypeChat, ReportTypeExpense, ReportTypeIOU, ReportTypeInvoice:
		return true
	}
	return false
}

// IsValidPendingAction checks if a pending action is valid
func IsValidPendingAction(p PendingAction) bool {
	switch p {
	case PendingAdd, PendingUpdate, PendingDelete, "":
		return true
	}
	return false
}
