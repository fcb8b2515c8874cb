// Package cost turns a set of debt findings into a financial model: what
// paying the debt down costs, what carrying it costs per year, and how long
// until the fix pays for itself.
//
// All functions here are pure. Sums are taken over sorted values so the
// result is bit-for-bit identical for any ordering of the input.
package cost

import (
	"math"
	"sort"

	"github.com/steveyegge/debtneg/internal/types"
)

// WeeksPerYear converts annual savings into a weekly rate.
const WeeksPerYear = 52

// epsilon absorbs float noise before rounding weeks up, so 24.0000000001 stays 24.
const epsilon = 1e-9

// Aggregate computes the cost model for a set of findings:
//
//	refactoring_cost   = Σ fix_effort_weeks × team_size × weekly_rate
//	annual_savings     = Σ annual_cost
//	break_even_weeks   = ceil(refactoring_cost / (annual_savings / 52)), never when savings are 0
//	roi_year_1_percent = (annual_savings − refactoring_cost) / refactoring_cost × 100, n/a when cost is 0
func Aggregate(findings []types.DebtFinding, p Params) types.CostModel {
	p = p.withDefaults()

	efforts := make([]float64, 0, len(findings))
	costs := make([]float64, 0, len(findings))
	var counts types.SeverityCounts
	for _, f := range findings {
		efforts = append(efforts, f.FixEffortWeeks)
		costs = append(costs, f.AnnualCost)
		counts.Add(f.Severity)
	}

	effort := sortedSum(efforts)
	savings := sortedSum(costs)
	refactoring := effort * p.WeeklyBurn()

	return types.CostModel{
		FindingCount:           len(findings),
		Severity:               counts,
		TeamSize:               p.TeamSize,
		WeeklyRate:             p.WeeklyRate,
		WorkStreams:            p.WorkStreams,
		RefactoringEffortWeeks: effort,
		CalendarRefactorWeeks:  CalendarWeeks(effort, p.WorkStreams),
		RefactoringCost:        refactoring,
		AnnualSavings:          savings,
		BreakEvenWeeks:         BreakEven(refactoring, savings),
		ROIYear1Percent:        ROI(refactoring, savings),
		HealthScore:            HealthScore(counts),
	}
}

// AggregatePortfolio computes one model across several repositories.
func AggregatePortfolio(sets [][]types.DebtFinding, p Params) types.CostModel {
	var all []types.DebtFinding
	for _, set := range sets {
		all = append(all, set...)
	}
	return Aggregate(all, p)
}

// AggregateSelected computes the model for the findings keep accepts.
// Used for partial-refactor subsets and what-if exploration.
func AggregateSelected(findings []types.DebtFinding, p Params, keep func(i int, f types.DebtFinding) bool) types.CostModel {
	var selected []types.DebtFinding
	for i, f := range findings {
		if keep(i, f) {
			selected = append(selected, f)
		}
	}
	return Aggregate(selected, p)
}

// BreakEven returns the weeks of savings needed to recover the refactoring cost.
func BreakEven(refactoringCost, annualSavings float64) types.Weeks {
	if annualSavings <= 0 {
		return types.NeverWeeks()
	}
	weekly := annualSavings / WeeksPerYear
	return types.WeeksOf(ceilWeeks(refactoringCost / weekly))
}

// ROI returns first-year return on the refactoring spend, rounded to 0.1%.
func ROI(refactoringCost, annualSavings float64) types.Percent {
	if refactoringCost <= 0 {
		return types.NotApplicable()
	}
	pct := (annualSavings - refactoringCost) / refactoringCost * 100
	return types.PercentOf(math.Round(pct*10) / 10)
}

// CalendarWeeks spreads the effort across parallel work streams.
func CalendarWeeks(effortWeeks float64, workStreams int) int {
	if workStreams < 1 {
		workStreams = 1
	}
	return ceilWeeks(effortWeeks / float64(workStreams))
}

// Health score penalties per finding.
const (
	criticalPenalty = 12
	highPenalty     = 6
	mediumPenalty   = 2
)

// HealthScore grades a codebase from 100 (no debt) down to 0.
func HealthScore(c types.SeverityCounts) int {
	score := 100 - (criticalPenalty*c.Critical + highPenalty*c.High + mediumPenalty*c.Medium)
	if score < 0 {
		return 0
	}
	return score
}

func ceilWeeks(v float64) int {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return int(math.Ceil(v - epsilon))
}

func sortedSum(values []float64) float64 {
	sort.Float64s(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}
