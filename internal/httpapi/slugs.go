package httpapi

import (
	"strconv"
	"strings"
)

// triggerDef describes one trigger slug's required fields and the
// event filter it applies before returning events to IFTTT (spec.md §4.5).
type triggerDef struct {
	slug           string
	requiredFields []string
	filter         func(fields map[string]string, data map[string]string) bool
	sample         func() map[string]string
}

// actionDef describes one action slug's required fields, validator, and
// origin path (spec.md §4.6).
type actionDef struct {
	slug       string
	originPath string
	validate   func(fields map[string]string) string // returns non-empty message on failure
}

// queryDef describes one query slug: either broker-backed (triggerSlug
// set) or origin-proxied (originPath set).
type queryDef struct {
	slug        string
	triggerSlug string
	originPath  string
}

// fieldOptionsDef maps (slug, field) to either a static option list or
// an origin path to fetch and cache.
type fieldOptionsDef struct {
	slug       string
	field      string
	static     []map[string]string
	originPath string
}

// fieldValidateRule validates one (slug, field) pair for the
// /fields/<field>/validate endpoint (spec.md §4.7).
type fieldValidateRule struct {
	slug    string
	field   string
	message string
	check   func(value string) bool
}

func aboveOrBelow(fields map[string]string, data map[string]string) bool {
	threshold, err := strconv.ParseFloat(fields["threshold_amount"], 64)
	if err != nil {
		return false
	}
	balance, err := strconv.ParseFloat(data["balance"], 64)
	if err != nil {
		return false
	}
	if strings.EqualFold(fields["direction"], "below") {
		return balance < threshold
	}
	return balance >= threshold
}

func isPendingFilter(fields map[string]string, data map[string]string) bool {
	includePending := strings.EqualFold(fields["include_pending"], "true")
	pending := strings.EqualFold(data["is_pending"], "true")
	if includePending {
		return pending
	}
	return !pending
}

var triggerDefs = map[string]triggerDef{
	"goal_achieved": {
		slug:           "goal_achieved",
		requiredFields: []string{"goal_name"},
		sample: func() map[string]string {
			return map[string]string{"goal_name": "Emergency Fund", "amount": "5000"}
		},
	},
	"category_balance_threshold": {
		slug:           "category_balance_threshold",
		requiredFields: []string{"category", "threshold_amount", "direction"},
		filter:         aboveOrBelow,
		sample: func() map[string]string {
			return map[string]string{"category": "Groceries", "balance": "120.50"}
		},
	},
	"new_charge": {
		slug:           "new_charge",
		requiredFields: []string{"include_pending"},
		filter:         isPendingFilter,
		sample: func() map[string]string {
			return map[string]string{"merchant": "Coffee Shop", "amount": "4.50", "is_pending": "false"}
		},
	},
}

var actionDefs = map[string]actionDef{
	"budget_to": {
		slug:       "budget_to",
		originPath: "/ifttt/actions/budget-to",
		validate: func(fields map[string]string) string {
			if fields["category"] == "" {
				return "category is required"
			}
			if !positiveAmount(fields["amount"]) {
				return "amount must be a positive number"
			}
			return ""
		},
	},
	"budget_to_goal": {
		slug:       "budget_to_goal",
		originPath: "/ifttt/actions/budget-to-goal",
		validate: func(fields map[string]string) string {
			if fields["goal_name"] == "" {
				return "goal_name is required"
			}
			if !positiveAmount(fields["amount"]) {
				return "amount must be a positive number"
			}
			return ""
		},
	},
	"move_funds": {
		slug:       "move_funds",
		originPath: "/ifttt/actions/move-funds",
		validate: func(fields map[string]string) string {
			if fields["source_category"] == "" || fields["destination_category"] == "" {
				return "source_category and destination_category are required"
			}
			if fields["source_category"] == fields["destination_category"] {
				return "source_category and destination_category must differ"
			}
			if !positiveAmount(fields["amount"]) {
				return "amount must be a positive number"
			}
			return ""
		},
	},
}

var queryDefs = map[string]queryDef{
	"list_achieved_goals": {
		slug:        "list_achieved_goals",
		triggerSlug: "goal_achieved",
	},
	"list_category_budgets": {
		slug:       "list_category_budgets",
		originPath: "/ifttt/queries/category-budgets",
	},
	"list_under_budget_categories": {
		slug:       "list_under_budget_categories",
		originPath: "/ifttt/queries/under-budget-categories",
	},
	"budget_summary": {
		slug:       "budget_summary",
		originPath: "/ifttt/queries/budget-summary",
	},
}

var fieldOptionsDefs = map[string]fieldOptionsDef{
	"triggers/category_balance_threshold/direction": {
		slug: "category_balance_threshold", field: "direction",
		static: []map[string]string{{"label": "Above", "value": "above"}, {"label": "Below", "value": "below"}},
	},
	"actions/budget_to/category": {
		slug: "budget_to", field: "category", originPath: "/ifttt/field-options/category",
	},
	"actions/budget_to_goal/goal_name": {
		slug: "budget_to_goal", field: "goal_name", originPath: "/ifttt/field-options/goal",
	},
	"actions/move_funds/source_category": {
		slug: "move_funds", field: "source_category", originPath: "/ifttt/field-options/category-all",
	},
	"actions/move_funds/destination_category": {
		slug: "move_funds", field: "destination_category", originPath: "/ifttt/field-options/category-all",
	},
	"triggers/category_balance_threshold/category": {
		slug: "category_balance_threshold", field: "category", originPath: "/ifttt/field-options/category",
	},
}

var fieldValidateRules = []fieldValidateRule{
	{slug: "category_balance_threshold", field: "threshold_percent", message: "must be between 1 and 100", check: func(v string) bool {
		n, err := strconv.Atoi(v)
		return err == nil && n >= 1 && n <= 100
	}},
	{slug: "category_balance_threshold", field: "streak_months", message: "must be at least 2", check: func(v string) bool {
		n, err := strconv.Atoi(v)
		return err == nil && n >= 2
	}},
	{slug: "category_balance_threshold", field: "threshold_amount", message: "must be a positive whole number", check: func(v string) bool {
		if v == "" {
			return true
		}
		return positiveInteger(v)
	}},
}

func positiveAmount(v string) bool {
	n, err := strconv.ParseFloat(v, 64)
	return err == nil && n > 0
}

func positiveInteger(v string) bool {
	n, err := strconv.Atoi(v)
	return err == nil && n > 0
}

// validateField runs the matching rule for (slug, field); fields with
// no rule are always valid (spec.md §4.7 default).
func validateField(slug, field, value string) (valid bool, message string) {
	for _, rule := range fieldValidateRules {
		if rule.slug == slug && rule.field == field {
			if rule.check(value) {
				return true, ""
			}
			return false, rule.message
		}
	}
	return true, ""
}
