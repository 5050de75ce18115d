package models

// ApprovalMode represents how approvals flow through a workspace
type ApprovalMode string

const (
	ApprovalOptional ApprovalMode = "OPTIONAL"
	ApprovalBasic    ApprovalMode = "BASIC"
	ApprovalAdvanced ApprovalMode = "ADVANCED"
)

// AutoReportingFrequency controls how often expenses are swept into reports.
// The wire format has no "manual" value: manual is instant with harvesting
// disabled. Keep that mapping as-is, server compatibility depends on it.
type AutoReportingFrequency string

const (
	FrequencyInstant   AutoReportingFrequency = "instant"
	FrequencyImmediate AutoReportingFrequency = "immediate"
	FrequencyWeekly    AutoReportingFrequency = "weekly"
	FrequencyMonthly   AutoReportingFrequency = "monthly"
	FrequencyManual    AutoReportingFrequency = "manual"
)

// Harvesting is the auto-reporting sweep flag kept outside the frequency enum
type Harvesting struct {
	Enabled bool `json:"enabled"`
}

// Employee is one row of a policy's employee list, keyed by email
type Employee struct {
	Role                string        `json:"role,omitempty"`
	SubmitsTo           string        `json:"submitsTo,omitempty"`
	ForwardsTo          string        `json:"forwardsTo,omitempty"`
	ApprovalLimit       int64         `json:"approvalLimit,omitempty"`
	OverLimitForwardsTo string        `json:"overLimitForwardsTo,omitempty"`
	PendingAction       PendingAction `json:"pendingAction,omitempty"`
	Errors              ErrorMap      `json:"errors,omitempty"`
}

// ConnectionName identifies an external accounting integration
type ConnectionName string

const (
	ConnectionQuickBooks ConnectionName = "quickbooksOnline"
	ConnectionXero       ConnectionName = "xero"
	ConnectionNetSuite   ConnectionName = "netsuite"
	ConnectionIntacct    ConnectionName = "intacct"
)

// IsValidConnectionName checks if an integration name is supported
func IsValidConnectionName(n ConnectionName) bool {
	switch n {
	case ConnectionQuickBooks, ConnectionXero, ConnectionNetSuite, ConnectionIntacct:
		return true
	}
	return false
}

// ConnectionLastSync records the outcome of the most recent sync run
type ConnectionLastSync struct {
	SuccessfulDate string `json:"successfulDate,omitempty"`
	IsSuccessful   bool   `json:"isSuccessful"`
	ErrorDate      string `json:"errorDate,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
}

// Connection is one external accounting integration attached to a policy
type Connection struct {
	Config        map[string]any      `json:"config,omitempty"`
	LastSync      *ConnectionLastSync `json:"lastSync,omitempty"`
	PendingAction PendingAction       `json:"pendingAction,omitempty"`
}

// RuleCondition is a single field match inside an approval or expense rule
type RuleCondition struct {
	Field     string `json:"field"` // "category" or "tag"
	Condition string `json:"condition"`
	Value     string `json:"value"`
}

// ApprovalRule routes matching expenses to a specific approver
type ApprovalRule struct {
	ApplyWhen []RuleCondition `json:"applyWhen"`
	Approver  string          `json:"approver"`
}

// ExpenseRule applies tax or coding overrides to matching expenses
type ExpenseRule struct {
	ApplyWhen []RuleCondition `json:"applyWhen"`
	TaxCode   string          `json:"taxCode,omitempty"`
}

// PolicyRules holds the condition→approver and condition→tax mappings
type PolicyRules struct {
	ApprovalRules []ApprovalRule `json:"approvalRules,omitempty"`
	ExpenseRules  []ExpenseRule  `json:"expenseRules,omitempty"`
}

// Policy is a workspace configuration: employees, approval flow, integrations
type Policy struct {
	PolicyID               string                        `json:"policyID"`
	Name                   string                        `json:"name,omitempty"`
	Owner                  string                        `json:"owner,omitempty"`
	Approver               string                        `json:"approver,omitempty"`
	ApprovalMode           ApprovalMode                  `json:"approvalMode,omitempty"`
	PreventSelfApproval    bool                          `json:"preventSelfApproval,omitempty"`
	AutoReportingFrequency AutoReportingFrequency        `json:"autoReportingFrequency,omitempty"`
	Harvesting             Harvesting                    `json:"harvesting"`
	EmployeeList           map[string]Employee           `json:"employeeList,omitempty"`
	Connections            map[ConnectionName]Connection `json:"connections,omitempty"`
	Rules                  PolicyRules                   `json:"rules"`
	PendingAction          PendingAction                 `json:"pendingAction,omitempty"`
	Errors                 ErrorMap                      `json:"errors,omitempty"`
}

// DefaultApprover returns the policy-wide fallback approver
func (p *Policy) DefaultApprover() string {
	if p.Approver != "" {
		return p.Approver
	}
	return p.Owner
}
