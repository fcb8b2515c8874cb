package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/debtneg/internal/types"
)

// topCritical is how many critical findings the summary lists.
const topCritical = 5

var rule = strings.Repeat("=", 60)

// PrintSummary writes the human-readable report summary.
func PrintSummary(w io.Writer, rep *types.Report) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	s := rep.Summary

	fmt.Fprintf(w, "\n%s\n%s\n%s\n", rule, cyan("TECHNICAL DEBT NEGOTIATION SUMMARY"), rule)
	fmt.Fprintf(w, "\nRepositories: %s\n", strings.Join(rep.Repositories, ", "))
	fmt.Fprintf(w, "Backlog: %s (%d tickets)\n", rep.BacklogSource, len(rep.Features))
	fmt.Fprintf(w, "Run: %s\n", gray(rep.RunID))

	fmt.Fprintf(w, "\n%s %d\n", bold("Debt Items Found:"), s.TotalDebtItems)
	fmt.Fprintf(w, "   Critical: %s\n", red(s.Critical))
	fmt.Fprintf(w, "   High:     %s\n", yellow(s.High))
	fmt.Fprintf(w, "   Medium:   %d\n", s.Medium)

	fmt.Fprintf(w, "\n%s %s\n", bold("Total Annual Cost:"), types.FormatUSD(s.TotalAnnualCost))
	fmt.Fprintf(w, "%s %s weeks (%s)\n", bold("Refactoring Effort:"), formatWeeks(s.RefactoringEffortWeeks), types.FormatUSD(s.RefactoringCost))
	fmt.Fprintf(w, "%s %s\n", bold("Break Even:"), breakEvenLabel(s.BreakEvenWeeks))
	fmt.Fprintf(w, "%s %s\n", bold("Year-1 ROI:"), s.ROIYear1Percent)
	fmt.Fprintf(w, "%s %s\n", bold("Health Score:"), healthLabel(s.HealthScore))

	printCritical(w, rep.AllFindings(), red)

	if len(rep.Recommendations) > 0 {
		fmt.Fprintf(w, "\n%s\n", green("RECOMMENDATIONS:"))
		for _, plan := range rep.Recommendations {
			fmt.Fprintf(w, "\n   Priority %d: %s\n", plan.Priority, plan.Title)
			fmt.Fprintf(w, "   Effort: %s weeks\n", formatWeeks(plan.EffortWeeks))
			fmt.Fprintf(w, "   Savings: %s/year\n", types.FormatUSD(plan.AnnualSavings))
		}
	}

	printNegotiation(w, rep.Negotiation, bold, cyan)

	if len(rep.Warnings) > 0 {
		fmt.Fprintf(w, "\n%s\n", yellow("WARNINGS:"))
		for _, warning := range rep.Warnings {
			fmt.Fprintf(w, "   - %s\n", warning)
		}
	}

	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintln(w, "\nNext Steps:")
	for i, step := range nextSteps(rep.Negotiation.OverallRecommendation) {
		fmt.Fprintf(w, "   %d. %s\n", i+1, step)
	}
	fmt.Fprintf(w, "\n%s\n", rule)
}

func printCritical(w io.Writer, findings []types.DebtFinding, red func(a ...interface{}) string) {
	var critical []types.DebtFinding
	for _, f := range findings {
		if f.Severity == types.SeverityCritical {
			critical = append(critical, f)
		}
	}
	if len(critical) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%s\n", red(fmt.Sprintf("CRITICAL ISSUES (%d):", len(critical))))
	for i, f := range critical {
		if i == topCritical {
			fmt.Fprintf(w, "\n   ... and %d more\n", len(critical)-topCritical)
			break
		}
		fmt.Fprintf(w, "\n   %s (%s)\n", f.Type, f.Repository)
		fmt.Fprintf(w, "   Location: %s\n", f.Location)
		fmt.Fprintf(w, "   Description: %s\n", f.Description)
		fmt.Fprintf(w, "   Cost: %s/year\n", types.FormatUSD(f.AnnualCost))
		fmt.Fprintf(w, "   Fix: %s weeks\n", formatWeeks(f.FixEffortWeeks))
	}
}

func printNegotiation(w io.Writer, n types.NegotiationResult, bold, cyan func(a ...interface{}) string) {
	fmt.Fprintf(w, "\n%s %s\n", bold("DECISION:"), cyan(strings.ToUpper(string(n.OverallRecommendation))))
	if n.RecommendationReason != "" {
		fmt.Fprintf(w, "   %s\n", n.RecommendationReason)
	}

	a, b := n.OptionA, n.OptionB
	fmt.Fprintf(w, "\n   Option A - %s: %d weeks, %.0f%% success, %s risk\n",
		a.Label, a.TotalWeeks, a.SuccessRate, a.RiskLevel)
	for _, risk := range a.Risks {
		fmt.Fprintf(w, "      - %s\n", risk)
	}
	fmt.Fprintf(w, "   Option B - %s: %d weeks (%d refactor + %d features), %.0f%% success, %s risk\n",
		b.Label, b.TotalWeeks, b.RefactorWeeks, b.FeatureWeeks, b.SuccessRate, b.RiskLevel)
	for _, benefit := range b.Benefits {
		fmt.Fprintf(w, "      + %s\n", benefit)
	}
	if p := n.Partial; p != nil {
		verdict := "not favorable"
		if p.Favorable {
			verdict = "favorable"
		}
		fmt.Fprintf(w, "   Partial (%s): %d findings, break-even %s, %s\n",
			strings.ReplaceAll(p.Strategy, "_", " "), p.FindingCount, breakEvenLabel(p.CostModel.BreakEvenWeeks), verdict)
	}

	if len(n.FeatureAnalysis) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", bold("FEATURES:"))
	for _, fa := range n.FeatureAnalysis {
		blocked := "not blocked"
		if len(fa.BlockedBy) > 0 {
			slugs := make([]string, len(fa.BlockedBy))
			for i, t := range fa.BlockedBy {
				slugs[i] = string(t)
			}
			blocked = "blocked by " + strings.Join(slugs, ", ")
		}
		fmt.Fprintf(w, "   %-10s %s (%d weeks, %s) -> %s\n",
			fa.Key, fa.Title, fa.FeatureWeeks, blocked, fa.Recommendation)
	}
}

func nextSteps(rec types.Recommendation) []string {
	steps := []string{"Review critical issues first"}
	switch rec {
	case types.RecommendRefactorFirst:
		steps = append(steps, "Schedule the refactoring before the next feature cycle")
	case types.RecommendPartialRefactor:
		steps = append(steps, "Fix the partial subset, then re-run the analysis")
	default:
		steps = append(steps, "Build features now and track the debt's monthly cost")
	}
	return append(steps,
		"Compare the break-even with the feature roadmap",
		"Share the report with product and engineering leads")
}

func breakEvenLabel(w types.Weeks) string {
	if !w.Finite() {
		return "never"
	}
	return fmt.Sprintf("week %d", w.Value)
}

func healthLabel(score int) string {
	label := fmt.Sprintf("%d/100", score)
	switch {
	case score >= 80:
		return color.GreenString(label)
	case score >= 50:
		return color.YellowString(label)
	default:
		return color.RedString(label)
	}
}

// formatWeeks prints whole weeks without a decimal point.
func formatWeeks(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
