package httpapi

import (
	"context"

	"github.com/eclosion-dev/ifttt-core/internal/broker"
)

// SeedDemoData populates the demo tenant's broker with plausible sample
// data right after its first approval, so IFTTT's review flow and the
// endpoint tester see believable triggers and field options without a
// real tunnel behind them (spec.md §4.3's "Demo tenant").
func SeedDemoData(mgr *broker.Manager) func(ctx context.Context, subdomain string) error {
	return func(ctx context.Context, subdomain string) error {
		mgr.PushTriggerEvent(subdomain, "goal_achieved", map[string]string{
			"goal_name": "Emergency Fund", "amount": "5000",
		})
		mgr.PushTriggerEvent(subdomain, "category_balance_threshold", map[string]string{
			"category": "Groceries", "balance": "120.50",
		})
		mgr.PushTriggerEvent(subdomain, "new_charge", map[string]string{
			"merchant": "Coffee Shop", "amount": "4.50", "is_pending": "false",
		})
		mgr.SetFieldOptions(subdomain, "actions.budget_to.category", []broker.FieldOption{
			{Label: "Groceries", Value: "groceries"},
			{Label: "Dining Out", Value: "dining-out"},
		})
		mgr.SetFieldOptions(subdomain, "actions.budget_to_goal.goal_name", []broker.FieldOption{
			{Label: "Emergency Fund", Value: "emergency-fund"},
		})
		return nil
	}
}
