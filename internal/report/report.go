// Package report holds derived views over reports and their action logs:
// timeline ordering, audit-action lookups, and totals.
package report

import (
	"github.com/halden/outlay/internal/models"
)

// Total sums the given transactions, skipping ones pending deletion. This
// is the invariant a report's total field must track.
func Total(txs []models.Transaction) int64 {
	var total int64
	for _, tx := range txs {
		if tx.PendingAction == models.PendingDelete {
			continue
		}
		total += tx.Amount
	}
	return total
}

// AllSettled reports whether every transaction has cleared with the card
// network. Approval is gated on this.
func AllSettled(txs []models.Transaction) bool {
	for _, tx := range txs {
		if !tx.IsSettled() {
			return false
		}
	}
	return true
}

// AnyOnHold reports whether any transaction is held
func AnyOnHold(txs []models.Transaction) bool {
	for _, tx := range txs {
		if tx.IsOnHold() {
			return true
		}
	}
	return false
}

// LastVisibleCreated returns the created stamp of the newest visible action
func LastVisibleCreated(actions map[string]models.ReportAction) string {
	return LastVisibleCreatedExcluding(actions, "")
}

// LastVisibleCreatedExcluding returns the created stamp of the newest
// visible action, ignoring the named one. Used when an action is about to
// be deleted and the report's timeline stamp must roll back to the next
// newest entry.
func LastVisibleCreatedExcluding(actions map[string]models.ReportAction, excludeID string) string {
	var latest string
	for id, a := range actions {
		if id == excludeID || !a.IsVisible() {
			continue
		}
		if a.Created > latest {
			latest = a.Created
		}
	}
	return latest
}

// FindIOUActionID returns the ID of the IOU action that references the
// given transaction, or "" when none does.
func FindIOUActionID(actions map[string]models.ReportAction, transactionID string) string {
	for id, a := range actions {
		if a.ActionName != models.ActionIOU {
			continue
		}
		m, err := a.IOUMessage()
		if err != nil {
			continue
		}
		if m.IOUTransactionID == transactionID {
			return id
		}
	}
	return ""
}

// FindPreviewActionID returns the ID of the report preview action pointing
// at the given child report, or "" when the chat has none yet.
func FindPreviewActionID(actions map[string]models.ReportAction, childReportID string) string {
	for id, a := range actions {
		if a.ActionName == models.ActionReportPreview && a.ChildReportID == childReportID {
			return id
		}
	}
	return ""
}

// OnlySystemActions reports whether a thread holds nothing but
// machine-generated entries. Such a thread can be deleted along with its
// parent expense; a thread with user comments must survive it.
func OnlySystemActions(actions map[string]models.ReportAction) bool {
	for _, a := range actions {
		if !a.IsSystemAction() {
			return false
		}
	}
	return true
}
