package models

// ViolationName identifies a transaction violation
type ViolationName string

const (
	ViolationRejectedExpense ViolationName = "autoReportedRejectedExpense"
	ViolationMissingCategory ViolationName = "missingCategory"
	ViolationOverLimit       ViolationName = "overLimit"
	ViolationDuplicate       ViolationName = "duplicatedTransaction"
)

// ViolationType grades the severity of a violation
type ViolationType string

const (
	ViolationTypeViolation ViolationType = "violation"
	ViolationTypeWarning   ViolationType = "warning"
	ViolationTypeNotice    ViolationType = "notice"
)

// ViolationData carries the name-specific payload of a violation
type ViolationData struct {
	Comment       string `json:"comment,omitempty"`
	RejectedBy    string `json:"rejectedBy,omitempty"`
	Limit         int64  `json:"limit,omitempty"`
	DuplicateOfID string `json:"duplicateOfID,omitempty"`
}

// Violation is a rule breach attached to a transaction
type Violation struct {
	Name ViolationName `json:"name"`
	Type ViolationType `json:"type"`
	Data ViolationData `json:"data,omitempty"`
}
