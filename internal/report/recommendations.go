// Package report renders analysis reports: remediation plans, the JSON
// artifact and the terminal summary.
package report

import (
	"github.com/steveyegge/debtneg/internal/cost"
	"github.com/steveyegge/debtneg/internal/types"
)

type planRule struct {
	priority int
	title    string
	match    func(types.DebtFinding) bool
}

var planRules = []planRule{
	{
		priority: 1,
		title:    "Fix Critical Security Issues",
		match: func(f types.DebtFinding) bool {
			return f.Severity == types.SeverityCritical && (f.RiskFlag || types.IsRiskType(f.Type))
		},
	},
	{
		priority: 2,
		title:    "Refactor Architecture",
		match: func(f types.DebtFinding) bool {
			switch f.Type {
			case types.DebtGodClass, types.DebtGodLibrary, types.DebtGodFunction:
				return true
			}
			return false
		},
	},
	{
		priority: 3,
		title:    "Retire ML and Pipeline Debt",
		match: func(f types.DebtFinding) bool {
			return f.Category == types.CategoryML || f.Category == types.CategoryDataPipeline
		},
	},
}

// Recommendations groups findings into prioritized remediation plans. Items
// are indexes into findings, which should be in report order. A finding can
// appear in more than one plan; plans with no findings are omitted.
func Recommendations(findings []types.DebtFinding) []types.RemediationPlan {
	plans := []types.RemediationPlan{}
	for _, rule := range planRules {
		var items []int
		var matched []types.DebtFinding
		for i, f := range findings {
			if rule.match(f) {
				items = append(items, i)
				matched = append(matched, f)
			}
		}
		if len(items) == 0 {
			continue
		}
		model := cost.Aggregate(matched, cost.DefaultParams())
		plans = append(plans, types.RemediationPlan{
			Priority:      rule.priority,
			Title:         rule.title,
			EffortWeeks:   model.RefactoringEffortWeeks,
			AnnualSavings: model.AnnualSavings,
			Items:         items,
		})
	}
	return plans
}
