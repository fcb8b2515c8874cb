package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityForCost(t *testing.T) {
	tests := []struct {
		cost     float64
		expected Severity
	}{
		{0, SeverityMedium},
		{4_999, SeverityMedium},
		{29_999, SeverityMedium},
		{30_000, SeverityHigh},
		{99_999, SeverityHigh},
		{100_000, SeverityCritical},
		{268_000, SeverityCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SeverityForCost(tt.cost), "cost %.0f", tt.cost)
	}
}

func TestMaxSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, MaxSeverity(SeverityHigh, SeverityCritical, SeverityMedium))
	assert.Equal(t, SeverityHigh, MaxSeverity(SeverityHigh, "bogus"))
	assert.Equal(t, SeverityMedium, MaxSeverity())
}

func TestRepoTypeCatalogOrder(t *testing.T) {
	assert.Equal(t, CategoryML, RepoML.CatalogOrder()[0])
	assert.Equal(t, CategoryDataPipeline, RepoDataPipeline.CatalogOrder()[0])
	assert.Equal(t, CategorySoftware, RepoSWE.CatalogOrder()[0])
	for _, rt := range []RepoType{RepoSWE, RepoML, RepoDataPipeline, RepoMixed} {
		assert.Len(t, rt.CatalogOrder(), 3, "every repo type sees all catalogs")
	}
}

func TestCatalog(t *testing.T) {
	assert.Equal(t, CategorySoftware, CategoryOf(DebtGodLibrary))
	assert.Equal(t, CategoryUncategorized, CategoryOf("quantum_entanglement"))
	assert.True(t, IsRiskType(DebtHardcodedCredentials))
	assert.False(t, IsRiskType(DebtGodClass))
	assert.Len(t, Catalog(CategoryDataPipeline), 4)
	assert.Equal(t, DebtType("god_class"), NormalizeDebtType(" God-Class "))
	assert.Equal(t, DebtUnknown, NormalizeDebtType(""))
}

func TestRawFindingLenientDecode(t *testing.T) {
	payload := `[
		{"type": "god_library", "annual_cost": 268000, "fix_effort_weeks": 3, "location": "lib/core.py"},
		{"type": "test_debt", "annual_cost": "$45,000", "fix_effort_weeks": "2", "security": "yes"},
		{"type": "version_sprawl", "annual_cost": null, "file": "dags/etl.py", "line": 12, "extra": {"x": 1}},
		{"type": 42, "annual_cost": "lots", "risk_flag": "maybe"}
	]`

	var raw []RawFinding
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))
	require.Len(t, raw, 4)

	require.NotNil(t, raw[0].AnnualCost)
	assert.Equal(t, 268000.0, *raw[0].AnnualCost)

	require.NotNil(t, raw[1].AnnualCost)
	assert.Equal(t, 45000.0, *raw[1].AnnualCost)
	require.NotNil(t, raw[1].RiskFlag)
	assert.True(t, *raw[1].RiskFlag)

	assert.Nil(t, raw[2].AnnualCost)
	assert.Equal(t, "dags/etl.py:12", raw[2].Location)

	assert.Equal(t, "42", raw[3].Type)
	assert.Nil(t, raw[3].AnnualCost)
	assert.Nil(t, raw[3].RiskFlag)

	var nulls RawFinding
	require.NoError(t, json.Unmarshal([]byte(`{"type": null, "annual_cost": null, "cost": 7, "risk_flag": null}`), &nulls))
	assert.Equal(t, "", nulls.Type)
	require.NotNil(t, nulls.AnnualCost, "a null key falls through to its alias")
	assert.Equal(t, 7.0, *nulls.AnnualCost)
	assert.Nil(t, nulls.RiskFlag)
}

func TestRawFindingRejectsNonObject(t *testing.T) {
	var raw RawFinding
	assert.Error(t, json.Unmarshal([]byte(`"god_class"`), &raw))
}

func TestWeeksJSON(t *testing.T) {
	data, err := json.Marshal(NeverWeeks())
	require.NoError(t, err)
	assert.Equal(t, `"never"`, string(data))

	data, err = json.Marshal(WeeksOf(24))
	require.NoError(t, err)
	assert.Equal(t, `24`, string(data))

	var w Weeks
	require.NoError(t, json.Unmarshal([]byte(`"never"`), &w))
	assert.True(t, w.Never)
	require.NoError(t, json.Unmarshal([]byte(`19`), &w))
	assert.Equal(t, WeeksOf(19), w)

	assert.True(t, WeeksOf(19).Within(0))
	assert.True(t, WeeksOf(19).Within(52))
	assert.False(t, WeeksOf(60).Within(52))
	assert.False(t, NeverWeeks().Within(0))
}

func TestPercentJSON(t *testing.T) {
	data, err := json.Marshal(NotApplicable())
	require.NoError(t, err)
	assert.Equal(t, `"n/a"`, string(data))

	data, err = json.Marshal(PercentOf(123.3))
	require.NoError(t, err)
	assert.Equal(t, `123.3`, string(data))

	var p Percent
	require.NoError(t, json.Unmarshal([]byte(`"n/a"`), &p))
	assert.False(t, p.Defined)
	require.NoError(t, json.Unmarshal([]byte(`-12.5`), &p))
	assert.Equal(t, PercentOf(-12.5), p)
	assert.Equal(t, "-12.5%", p.String())
}

func TestDebtFindingValidate(t *testing.T) {
	f := DebtFinding{Type: DebtGodClass, Severity: SeverityHigh, AnnualCost: 50_000, FixEffortWeeks: 2}
	assert.NoError(t, f.Validate())

	f.Severity = SeverityMedium
	assert.Error(t, f.Validate(), "medium is below the high band")

	f.Severity = SeverityHigh
	f.AnnualCost = -1
	assert.Error(t, f.Validate())
}

func TestSnapshotHelpers(t *testing.T) {
	snap := &RepositorySnapshot{
		Files: []SnapshotFile{
			{Path: "pom.xml", Lines: 10},
			{Path: "src/App.java", Lines: 40, Truncated: true},
			{Path: "Dockerfile", Lines: 5},
		},
	}

	f, ok := snap.File("src/App.java")
	require.True(t, ok)
	assert.True(t, f.Truncated)
	assert.Equal(t, 1, snap.TruncatedCount())
	assert.Equal(t, 55, snap.TotalLines())
	assert.Equal(t, map[string]int{"xml": 1, "java": 1, "Dockerfile": 1}, snap.Languages())
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$268,000", FormatUSD(268_000))
	assert.Equal(t, "$22,333", FormatUSD(22_333.33))
	assert.Equal(t, "$0", FormatUSD(0))
	assert.Equal(t, "-$1,500", FormatUSD(-1_500))
}
