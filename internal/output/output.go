// Package output provides styled terminal output helpers (success, error,
// warning, report and queue formatting) using lipgloss.
package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/halden/outlay/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	statusStyles = map[models.StatusNum]lipgloss.Style{
		models.StatusOpen:       lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.StatusSubmitted:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.StatusClosed:     lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		models.StatusApproved:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.StatusReimbursed: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
	statusNames = map[models.StatusNum]string{
		models.StatusOpen:       "open",
		models.StatusSubmitted:  "submitted",
		models.StatusClosed:     "closed",
		models.StatusApproved:   "approved",
		models.StatusReimbursed: "reimbursed",
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// Amount formats a minor-unit amount with its currency, e.g. "123.45 USD"
func Amount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, currency)
}

// Status renders a report status with its color
func Status(s models.StatusNum) string {
	name, ok := statusNames[s]
	if !ok {
		name = fmt.Sprintf("status(%d)", s)
	}
	if style, ok := statusStyles[s]; ok {
		return style.Render(name)
	}
	return name
}

// Pending renders a pending-action marker, or "" when the entity is synced
func Pending(p models.PendingAction) string {
	if p == "" {
		return ""
	}
	return pendingStyle.Render("[" + string(p) + "]")
}

// ReportLine renders a one-line report summary
func ReportLine(r *models.Report) string {
	parts := []string{
		titleStyle.Render(r.ReportID),
		string(r.Type),
		Status(r.StatusNum),
		Amount(r.Total, r.Currency),
	}
	if marker := Pending(r.PendingAction); marker != "" {
		parts = append(parts, marker)
	}
	if len(r.Errors) > 0 {
		parts = append(parts, errorStyle.Render("!errors"))
	}
	return strings.Join(parts, "  ")
}

// TransactionLine renders a one-line transaction summary
func TransactionLine(t *models.Transaction) string {
	parts := []string{
		titleStyle.Render(t.TransactionID),
		Amount(t.Amount, t.Currency),
	}
	if t.Merchant != "" {
		parts = append(parts, t.Merchant)
	}
	if t.IsOnHold() {
		parts = append(parts, warningStyle.Render("on hold"))
	}
	if marker := Pending(t.PendingAction); marker != "" {
		parts = append(parts, marker)
	}
	if len(t.Errors) > 0 {
		parts = append(parts, errorStyle.Render("!errors"))
	}
	return strings.Join(parts, "  ")
}

// Errors renders an entity's error map, newest first marker omitted since
// keys are microsecond timestamps and sort naturally.
func Errors(errs models.ErrorMap) string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, k := range sortedKeys(errs) {
		b.WriteString(errorStyle.Render("  ✗ " + errs[k]))
		b.WriteString("\n")
	}
	return b.String()
}

// Subtle renders de-emphasized text
func Subtle(s string) string {
	return subtleStyle.Render(s)
}

func sortedKeys(m models.ErrorMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
