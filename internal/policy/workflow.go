// Package policy implements approval-workflow resolution: who a submitted
// report goes to, where an over-limit approval forwards, and whether a
// configured chain terminates.
package policy

import (
	"fmt"

	"github.com/halden/outlay/internal/models"
)

// maxChainHops bounds workflow walks so a corrupt employee list cannot
// spin forever.
const maxChainHops = 50

// SubmitApprover resolves the first approver for a report submitted by the
// given employee. Category-based approval rules win over tag-based ones;
// absent a matching rule, OPTIONAL and BASIC policies route to the default
// approver while ADVANCED policies follow the submitter's submitsTo entry.
// Self-approval is skipped forward when the policy forbids it.
func SubmitApprover(p *models.Policy, submitterLogin string, categories, tags []string) string {
	approver := ruleApprover(p, categories, tags)
	if approver == "" {
		switch p.ApprovalMode {
		case models.ApprovalAdvanced:
			if e, ok := p.EmployeeList[submitterLogin]; ok && e.SubmitsTo != "" {
				approver = e.SubmitsTo
			} else {
				approver = p.DefaultApprover()
			}
		default:
			approver = p.DefaultApprover()
		}
	}
	if p.PreventSelfApproval {
		approver = skipSelf(p, approver, submitterLogin)
	}
	return approver
}

// ruleApprover returns the approver of the first matching approval rule.
// Rules conditioned on category are considered before rules conditioned on
// tag, regardless of their order in the policy.
func ruleApprover(p *models.Policy, categories, tags []string) string {
	for _, field := range []string{"category", "tag"} {
		values := categories
		if field == "tag" {
			values = tags
		}
		for _, rule := range p.Rules.ApprovalRules {
			if rule.Approver == "" {
				continue
			}
			for _, cond := range rule.ApplyWhen {
				if cond.Field != field || cond.Condition != "matches" {
					continue
				}
				for _, v := range values {
					if v == cond.Value {
						return rule.Approver
					}
				}
			}
		}
	}
	return ""
}

// skipSelf advances past the submitter in the approval chain when the
// policy forbids approving your own report.
func skipSelf(p *models.Policy, approver, submitterLogin string) string {
	for hops := 0; approver == submitterLogin && hops < maxChainHops; hops++ {
		e, ok := p.EmployeeList[approver]
		if !ok {
			break
		}
		next := e.ForwardsTo
		if next == "" {
			next = e.SubmitsTo
		}
		if next == "" || next == approver {
			return p.DefaultApprover()
		}
		approver = next
	}
	return approver
}

// ForwardTo returns the next approver when the given approver's limit does
// not cover the amount, or "" when the approver can finish the approval
// themselves. The limit applies to the amount's magnitude, so negative-total
// reports forward the same way.
func ForwardTo(p *models.Policy, approverLogin string, amount int64) string {
	e, ok := p.EmployeeList[approverLogin]
	if !ok {
		return ""
	}
	if amount < 0 {
		amount = -amount
	}
	if e.ApprovalLimit <= 0 || amount <= e.ApprovalLimit {
		return ""
	}
	if e.OverLimitForwardsTo == "" || e.OverLimitForwardsTo == approverLogin {
		return ""
	}
	return e.OverLimitForwardsTo
}

// ValidateApprovalChain walks every employee's submitsTo/forwardsTo path
// and rejects workflows that loop or run past the hop bound.
func ValidateApprovalChain(p *models.Policy) error {
	for login := range p.EmployeeList {
		if err := walkChain(p, login, func(e models.Employee) string {
			if e.ForwardsTo != "" {
				return e.ForwardsTo
			}
			return e.SubmitsTo
		}); err != nil {
			return fmt.Errorf("approval chain from %s: %w", login, err)
		}
		if err := walkChain(p, login, func(e models.Employee) string {
			return e.OverLimitForwardsTo
		}); err != nil {
			return fmt.Errorf("over-limit chain from %s: %w", login, err)
		}
	}
	return nil
}

func walkChain(p *models.Policy, start string, next func(models.Employee) string) error {
	seen := map[string]bool{start: true}
	cur := start
	for hops := 0; hops < maxChainHops; hops++ {
		e, ok := p.EmployeeList[cur]
		if !ok {
			return nil
		}
		n := next(e)
		if n == "" {
			return nil
		}
		if seen[n] {
			return fmt.Errorf("cycle through %s", n)
		}
		seen[n] = true
		cur = n
	}
	return fmt.Errorf("chain exceeds %d hops", maxChainHops)
}
