package store

import "strings"

// Collection key prefixes. A full key is prefix + entityID, e.g.
// "report_1234". Subscriptions may target one key or a whole prefix.
const (
	ReportPrefix        = "report_"
	ReportActionsPrefix = "reportActions_"
	TransactionPrefix   = "transaction_"
	ViolationsPrefix    = "transactionViolations_"
	PolicyPrefix        = "policy_"
	SnapshotPrefix      = "snapshot_"
)

// ReportKey returns the store key for a report
func ReportKey(reportID string) string { return ReportPrefix + reportID }

// ReportActionsKey returns the store key for a report's action log
func ReportActionsKey(reportID string) string { return ReportActionsPrefix + reportID }

// TransactionKey returns the store key for a transaction
func TransactionKey(transactionID string) string { return TransactionPrefix + transactionID }

// ViolationsKey returns the store key for a transaction's violations
func ViolationsKey(transactionID string) string { return ViolationsPrefix + transactionID }

// PolicyKey returns the store key for a policy
func PolicyKey(policyID string) string { return PolicyPrefix + policyID }

// SnapshotKey returns the store key for a report's search projection
func SnapshotKey(reportID string) string { return SnapshotPrefix + reportID }

// EntityID strips the collection prefix from a full key
func EntityID(key, prefix string) string { return strings.TrimPrefix(key, prefix) }
