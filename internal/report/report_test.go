package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/debtneg/internal/types"
)

func finding(repo string, dt types.DebtType, sev types.Severity, annual, effort float64) types.DebtFinding {
	return types.DebtFinding{
		Repository:     repo,
		Type:           dt,
		Category:       types.CategoryOf(dt),
		Severity:       sev,
		Location:       string(dt) + ".py",
		Description:    "found " + string(dt),
		AnnualCost:     annual,
		FixEffortWeeks: effort,
		Estimated:      true,
	}
}

func sampleReport() *types.Report {
	findings := []types.DebtFinding{
		finding("payments", types.DebtSQLInjectionRisk, types.SeverityCritical, 200_000, 1),
		finding("payments", types.DebtGodClass, types.SeverityHigh, 50_000, 2),
		finding("payments", types.DebtModelStaleness, types.SeverityCritical, 564_000, 1),
		finding("payments", types.DebtCodeDuplication, types.SeverityMedium, 8_000, 1),
	}
	return &types.Report{
		RunID:        "3f1c9a52-1111-5222-8333-444455556666",
		GeneratedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Repositories: []string{"payments"},
		Summary: types.Summary{
			TotalDebtItems:         4,
			Critical:               2,
			High:                   1,
			Medium:                 1,
			TotalAnnualCost:        822_000,
			RefactoringEffortWeeks: 5,
			RefactoringCost:        250_000,
			BreakEvenWeeks:         types.WeeksOf(16),
			ROIYear1Percent:        types.PercentOf(228.8),
			HealthScore:            62,
		},
		RepositoriesAnalysis: []types.RepositoryAnalysis{{
			Repository: "payments",
			Path:       "/src/payments",
			RepoType:   types.RepoMixed,
			DebtItems:  findings,
		}},
		BacklogSource: "demo",
		Features: []types.FeatureTicket{
			{Key: "PLAT-101", Title: "Add real-time fraud alerts", StoryPoints: 8},
		},
		Negotiation: types.NegotiationResult{
			OverallRecommendation: types.RecommendRefactorFirst,
			RecommendationReason:  "Refactoring pays for itself in 16 weeks",
			BreakEvenWeeks:        types.WeeksOf(16),
			OptionA: types.BuildNowOption{
				Label: "Build Features Now", FeatureWeeks: 1, TotalWeeks: 1,
				SuccessRate: 60, RiskLevel: types.RiskHigh, Risks: []string{"2 critical issues remain"},
			},
			OptionB: types.RefactorFirstOption{
				Label: "Refactor First, Then Build", RefactorWeeks: 5, FeatureWeeks: 1, TotalWeeks: 6,
				SuccessRate: 95, RiskLevel: types.RiskLow, Benefits: []string{"Save $822,000/year"},
			},
			FeatureAnalysis: []types.FeatureAssessment{{
				Key: "PLAT-101", Title: "Add real-time fraud alerts", FeatureWeeks: 1,
				BlockedBy: []types.DebtType{types.DebtGodClass}, Recommendation: types.RecommendRefactorFirst,
			}},
		},
		Recommendations: Recommendations(findings),
		Warnings:        []string{"backlog: using demo tickets"},
	}
}

func TestRecommendations_GroupsByRule(t *testing.T) {
	rep := sampleReport()
	plans := rep.Recommendations

	require.Len(t, plans, 3)

	assert.Equal(t, 1, plans[0].Priority)
	assert.Equal(t, "Fix Critical Security Issues", plans[0].Title)
	assert.Equal(t, []int{0}, plans[0].Items)
	assert.Equal(t, 1.0, plans[0].EffortWeeks)
	assert.Equal(t, 200_000.0, plans[0].AnnualSavings)

	assert.Equal(t, 2, plans[1].Priority)
	assert.Equal(t, []int{1}, plans[1].Items)

	assert.Equal(t, 3, plans[2].Priority)
	assert.Equal(t, []int{2}, plans[2].Items)
	assert.Equal(t, 564_000.0, plans[2].AnnualSavings)
}

func TestRecommendations_OmitsEmptyPlans(t *testing.T) {
	plans := Recommendations([]types.DebtFinding{
		finding("api", types.DebtCodeDuplication, types.SeverityMedium, 8_000, 1),
	})
	assert.NotNil(t, plans)
	assert.Empty(t, plans)

	plans = Recommendations([]types.DebtFinding{
		finding("api", types.DebtGodFunction, types.SeverityCritical, 80_000, 3),
	})
	require.Len(t, plans, 1)
	assert.Equal(t, 2, plans[0].Priority, "priority numbers stay fixed when earlier plans are empty")
}

func TestWriteFile_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	rep := sampleReport()

	require.NoError(t, WriteFile(fs, "out/report.json", rep))

	exists, err := afero.Exists(fs, "out/report.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temp file is renamed away")

	got, err := ReadFile(fs, "out/report.json")
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, got.RunID)
	assert.Equal(t, rep.Summary, got.Summary)
	assert.Equal(t, rep.Recommendations, got.Recommendations)
	assert.Len(t, got.AllFindings(), 4)
}

func TestEncode_Format(t *testing.T) {
	data, err := Encode(sampleReport())
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasSuffix(text, "}\n"))
	assert.Contains(t, text, "\n  \"run_id\": ")
	assert.Contains(t, text, `"break_even_weeks": 16`)
	assert.Contains(t, text, `"roi_year_1_percent": 228.8`)
	assert.NotContains(t, text, `>`)

	again, err := Encode(sampleReport())
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestEncode_NeverAndNotApplicable(t *testing.T) {
	rep := sampleReport()
	rep.Summary.BreakEvenWeeks = types.NeverWeeks()
	rep.Summary.ROIYear1Percent = types.NotApplicable()

	data, err := Encode(rep)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"break_even_weeks": "never"`)
	assert.Contains(t, string(data), `"roi_year_1_percent": "n/a"`)
}

func TestReadFile_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := ReadFile(fs, "missing.json")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "bad.json", []byte("{not json"), 0o644))
	_, err = ReadFile(fs, "bad.json")
	assert.ErrorContains(t, err, "parsing report bad.json")
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	PrintSummary(&buf, sampleReport())
	out := buf.String()

	assert.Contains(t, out, "TECHNICAL DEBT NEGOTIATION SUMMARY")
	assert.Contains(t, out, "Backlog: demo (1 tickets)")
	assert.Contains(t, out, "Debt Items Found: 4")
	assert.Contains(t, out, "Total Annual Cost: $822,000")
	assert.Contains(t, out, "Refactoring Effort: 5 weeks ($250,000)")
	assert.Contains(t, out, "Break Even: week 16")
	assert.Contains(t, out, "Year-1 ROI: 228.8%")
	assert.Contains(t, out, "Health Score: 62/100")
	assert.Contains(t, out, "CRITICAL ISSUES (2):")
	assert.Contains(t, out, "Cost: $564,000/year")
	assert.Contains(t, out, "Priority 1: Fix Critical Security Issues")
	assert.Contains(t, out, "DECISION: REFACTOR_FIRST")
	assert.Contains(t, out, "blocked by god_class")
	assert.Contains(t, out, "- backlog: using demo tickets")
	assert.Contains(t, out, "1. Review critical issues first")
}

func TestPrintSummary_TruncatesCriticalList(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	rep := sampleReport()
	var items []types.DebtFinding
	for i := 0; i < 7; i++ {
		items = append(items, finding("payments", types.DebtHardcodedCredentials, types.SeverityCritical, 100_000, 1))
	}
	rep.RepositoriesAnalysis[0].DebtItems = items
	rep.Summary.BreakEvenWeeks = types.NeverWeeks()

	var buf bytes.Buffer
	PrintSummary(&buf, rep)
	out := buf.String()

	assert.Contains(t, out, "CRITICAL ISSUES (7):")
	assert.Equal(t, 5, strings.Count(out, "Location: "))
	assert.Contains(t, out, "... and 2 more")
	assert.Contains(t, out, "Break Even: never")
}

func TestFormatWeeks(t *testing.T) {
	assert.Equal(t, "3", formatWeeks(3))
	assert.Equal(t, "2.5", formatWeeks(2.5))
	assert.Equal(t, "0", formatWeeks(0))
}
