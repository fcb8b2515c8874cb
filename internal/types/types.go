package types

import (
	"fmt"
	"sort"
	"strings"
)

// RepoType classifies a repository so the oracle knows which debt catalog to lead with.
type RepoType string

const (
	RepoSWE          RepoType = "swe"
	RepoML           RepoType = "ml"
	RepoDataPipeline RepoType = "data_pipeline"
	RepoMixed        RepoType = "mixed"
)

// IsValid checks if the repo type value is valid
func (r RepoType) IsValid() bool {
	switch r {
	case RepoSWE, RepoML, RepoDataPipeline, RepoMixed:
		return true
	}
	return false
}

// CatalogOrder returns the debt categories in the order the oracle should prioritize them.
// Every category is always included; only the order changes.
func (r RepoType) CatalogOrder() []DebtCategory {
	switch r {
	case RepoML:
		return []DebtCategory{CategoryML, CategorySoftware, CategoryDataPipeline}
	case RepoDataPipeline:
		return []DebtCategory{CategoryDataPipeline, CategorySoftware, CategoryML}
	case RepoMixed:
		return []DebtCategory{CategoryML, CategoryDataPipeline, CategorySoftware}
	default:
		return []DebtCategory{CategorySoftware, CategoryML, CategoryDataPipeline}
	}
}

// Severity ranks how urgently a debt finding needs attention
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Cost bands that imply a minimum severity (annual USD).
const (
	CriticalCostFloor = 100_000
	HighCostFloor     = 30_000
	MediumCostFloor   = 5_000
)

// IsValid checks if the severity value is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Weight returns a numeric rank for comparisons. Unknown severities rank lowest.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// MaxSeverity returns the highest of the given severities (medium if none are valid).
func MaxSeverity(severities ...Severity) Severity {
	best := SeverityMedium
	for _, s := range severities {
		if s.Weight() > best.Weight() {
			best = s
		}
	}
	return best
}

// SeverityForCost maps an annual cost onto its band.
// Costs below the medium floor still rank medium: there is no lower severity.
func SeverityForCost(annualCost float64) Severity {
	switch {
	case annualCost >= CriticalCostFloor:
		return SeverityCritical
	case annualCost >= HighCostFloor:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// ParseSeverity parses an oracle-supplied severity leniently.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "blocker", "p0":
		return SeverityCritical, true
	case "high", "major", "p1":
		return SeverityHigh, true
	case "medium", "moderate", "low", "minor", "p2", "p3":
		return SeverityMedium, true
	}
	return "", false
}

// DebtCategory groups debt types into the three catalogs.
type DebtCategory string

const (
	CategorySoftware      DebtCategory = "software"
	CategoryML            DebtCategory = "ml"
	CategoryDataPipeline  DebtCategory = "data_pipeline"
	CategoryUncategorized DebtCategory = "uncategorized"
)

// DebtType is the slug identifying a kind of technical debt.
type DebtType string

const (
	DebtDependencyHell        DebtType = "dependency_hell"
	DebtOutdatedDependency    DebtType = "outdated_dependency"
	DebtGodLibrary            DebtType = "god_library"
	DebtGodClass              DebtType = "god_class"
	DebtGodFunction           DebtType = "god_function"
	DebtSecurityVulnerability DebtType = "security_vulnerability"
	DebtHardcodedCredentials  DebtType = "hardcoded_credentials"
	DebtSQLInjectionRisk      DebtType = "sql_injection_risk"
	DebtZombieFeatureFlags    DebtType = "zombie_feature_flags"
	DebtTestDebt              DebtType = "test_debt"
	DebtHardcodedLogic        DebtType = "hardcoded_logic"
	DebtCodeDuplication       DebtType = "code_duplication"

	DebtModelStaleness       DebtType = "model_staleness"
	DebtDataStaleness        DebtType = "data_staleness"
	DebtUndocumentedFeatures DebtType = "undocumented_features"
	DebtDeadModelVersions    DebtType = "dead_model_versions"
	DebtNoExperimentTracking DebtType = "no_experiment_tracking"
	DebtInferenceBottleneck  DebtType = "inference_bottleneck"
	DebtFrameworkLockin      DebtType = "framework_lockin"

	DebtVersionSprawl   DebtType = "version_sprawl"
	DebtStorageHoarding DebtType = "storage_hoarding"
	DebtNoBatching      DebtType = "no_batching"
	DebtManualBackfills DebtType = "manual_backfills"

	// DebtUnknown is used when the oracle omits the type entirely.
	DebtUnknown DebtType = "unknown"
)

// DebtTypeInfo describes one entry in the debt catalog.
type DebtTypeInfo struct {
	Type     DebtType
	Category DebtCategory
	// Risk marks security-class debt: it escalates to critical regardless of cost.
	Risk bool
	Hint string
}

var catalog = []DebtTypeInfo{
	{DebtDependencyHell, CategorySoftware, false, "outdated packages blocking features (flag >2yr old)"},
	{DebtOutdatedDependency, CategorySoftware, false, "pinned dependency on a known-old release"},
	{DebtGodLibrary, CategorySoftware, false, "single module imported by many services (>10 files)"},
	{DebtGodClass, CategorySoftware, false, "files >500 lines that should be split"},
	{DebtGodFunction, CategorySoftware, false, "function too large to test in isolation"},
	{DebtSecurityVulnerability, CategorySoftware, true, "known CVEs or insecure configuration"},
	{DebtHardcodedCredentials, CategorySoftware, true, "passwords, API keys or secrets committed in source"},
	{DebtSQLInjectionRisk, CategorySoftware, true, "SQL built by string interpolation"},
	{DebtZombieFeatureFlags, CategorySoftware, false, "old A/B test flags never cleaned up"},
	{DebtTestDebt, CategorySoftware, false, "low test coverage causing manual QA cycles"},
	{DebtHardcodedLogic, CategorySoftware, false, "business rules in source code (pricing, thresholds)"},
	{DebtCodeDuplication, CategorySoftware, false, "same logic in multiple places"},

	{DebtModelStaleness, CategoryML, false, "model not retrained in >90 days (accuracy degrading)"},
	{DebtDataStaleness, CategoryML, false, "training data >6 months old"},
	{DebtUndocumentedFeatures, CategoryML, false, "magic feature names like feature_22, feature_v3_final"},
	{DebtDeadModelVersions, CategoryML, false, "multiple .pkl/.h5 files when only one needed"},
	{DebtNoExperimentTracking, CategoryML, false, "no MLflow/W&B imports in training scripts"},
	{DebtInferenceBottleneck, CategoryML, false, "batch-only pipeline where real-time needed"},
	{DebtFrameworkLockin, CategoryML, false, "old TF/torch versions blocking modern tools"},

	{DebtVersionSprawl, CategoryDataPipeline, false, "multiple versions of same DAG/script"},
	{DebtStorageHoarding, CategoryDataPipeline, false, "old S3/data buckets never cleaned"},
	{DebtNoBatching, CategoryDataPipeline, false, "row-by-row DB operations"},
	{DebtManualBackfills, CategoryDataPipeline, false, "comments about running scripts manually"},
}

var catalogIndex = func() map[DebtType]DebtTypeInfo {
	idx := make(map[DebtType]DebtTypeInfo, len(catalog))
	for _, info := range catalog {
		idx[info.Type] = info
	}
	return idx
}()

// LookupDebtType returns the catalog entry for a type.
func LookupDebtType(t DebtType) (DebtTypeInfo, bool) {
	info, ok := catalogIndex[t]
	return info, ok
}

// CategoryOf returns the catalog category for a type, or CategoryUncategorized.
func CategoryOf(t DebtType) DebtCategory {
	if info, ok := catalogIndex[t]; ok {
		return info.Category
	}
	return CategoryUncategorized
}

// IsRiskType reports whether a type belongs to the security/risk class.
func IsRiskType(t DebtType) bool {
	info, ok := catalogIndex[t]
	return ok && info.Risk
}

// Catalog returns the entries of one category in catalog order.
func Catalog(category DebtCategory) []DebtTypeInfo {
	var out []DebtTypeInfo
	for _, info := range catalog {
		if info.Category == category {
			out = append(out, info)
		}
	}
	return out
}

// NormalizeDebtType turns an oracle slug ("God Class", "god-class") into catalog form.
func NormalizeDebtType(s string) DebtType {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DebtUnknown
	}
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return DebtType(s)
}

// SortDebtTypes sorts and de-duplicates a list of types.
func SortDebtTypes(in []DebtType) []DebtType {
	seen := make(map[DebtType]bool, len(in))
	out := make([]DebtType, 0, len(in))
	for _, t := range in {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String implements fmt.Stringer for log output.
func (i DebtTypeInfo) String() string {
	return fmt.Sprintf("%s (%s)", i.Type, i.Category)
}
