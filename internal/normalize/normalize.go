// Package normalize turns untrusted oracle output into canonical debt findings.
//
// The oracle's numbers are taken as given (they are the cost estimate), but
// severity is always recomputed: it is never allowed to sit below the band its
// annual cost implies, and security-class findings are always critical.
// Normalizing an already normalized list returns it unchanged.
package normalize

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/steveyegge/debtneg/internal/types"
)

// Names recorded in DebtFinding.DefaultedFields.
const (
	FieldAnnualCost     = "annual_cost"
	FieldFixEffortWeeks = "fix_effort_weeks"
)

// Normalize converts raw findings for one repository into canonical findings:
// types are slugged and categorized, missing numbers are zero-filled and marked,
// severity is recomputed, duplicates are merged and the result is sorted.
// It never fails; a finding it cannot make sense of still comes out as an
// uncategorized, zero-cost entry so nothing the oracle said is silently lost.
func Normalize(repo string, raw []types.RawFinding) []types.DebtFinding {
	out := make([]types.DebtFinding, 0, len(raw))
	for _, r := range raw {
		out = append(out, normalizeOne(repo, r))
	}
	return finalize(out)
}

// Renormalize runs normalized findings through the normalizer again, keeping
// each finding's repository. Renormalize(Normalize(x)) equals Normalize(x).
func Renormalize(findings []types.DebtFinding) []types.DebtFinding {
	out := make([]types.DebtFinding, 0, len(findings))
	for _, f := range findings {
		out = append(out, normalizeOne(f.Repository, f.ToRaw()))
	}
	return finalize(out)
}

func normalizeOne(repo string, r types.RawFinding) types.DebtFinding {
	debtType := types.NormalizeDebtType(r.Type)

	var defaulted []string
	defaulted = append(defaulted, r.DefaultedFields...)

	cost, ok := nonNegative(r.AnnualCost)
	if !ok {
		defaulted = append(defaulted, FieldAnnualCost)
	}
	effort, ok := nonNegative(r.FixEffortWeeks)
	if !ok {
		defaulted = append(defaulted, FieldFixEffortWeeks)
	}
	defaulted = dedupe(defaulted)

	estimated := len(defaulted) == 0
	if r.Estimated != nil && !*r.Estimated {
		estimated = false
	}

	risk := types.IsRiskType(debtType) || (r.RiskFlag != nil && *r.RiskFlag)

	f := types.DebtFinding{
		Repository:      repo,
		Type:            debtType,
		Category:        types.CategoryOf(debtType),
		Location:        strings.TrimSpace(r.Location),
		Description:     strings.TrimSpace(r.Description),
		BusinessImpact:  strings.TrimSpace(r.BusinessImpact),
		AnnualCost:      cost,
		FixEffortWeeks:  effort,
		RiskFlag:        risk,
		Estimated:       estimated,
		DefaultedFields: defaulted,
	}
	f.Severity = severityFor(cost, risk)

	if advisory, ok := types.ParseSeverity(r.Severity); ok && advisory != f.Severity {
		slog.Debug("oracle severity overridden",
			"type", f.Type, "location", f.Location,
			"oracle", advisory, "computed", f.Severity)
	}
	return f
}

// severityFor applies the cost band floor and the security escalation.
func severityFor(annualCost float64, risk bool) types.Severity {
	sev := types.SeverityForCost(annualCost)
	if risk {
		sev = types.SeverityCritical
	}
	return sev
}

// nonNegative returns the value when it is present and usable. Missing, NaN,
// infinite and negative values become 0 and report false.
func nonNegative(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return 0, false
	}
	return *v, true
}

// finalize merges duplicates and sorts.
func finalize(in []types.DebtFinding) []types.DebtFinding {
	index := make(map[string]int, len(in))
	out := make([]types.DebtFinding, 0, len(in))
	for _, f := range in {
		key := f.Repository + "\x00" + f.Key()
		if i, ok := index[key]; ok {
			out[i] = Merge(out[i], f)
			slog.Debug("merged duplicate finding", "repository", f.Repository, "type", f.Type, "location", f.Location)
			continue
		}
		index[key] = len(out)
		out = append(out, f)
	}
	Sort(out)
	return out
}

// Merge combines two findings of the same type at the same location: costs add
// up, effort is the larger of the two (the fix is shared), and severity is the
// highest of either input and the band of the combined cost.
func Merge(a, b types.DebtFinding) types.DebtFinding {
	m := a
	m.AnnualCost = a.AnnualCost + b.AnnualCost
	m.FixEffortWeeks = math.Max(a.FixEffortWeeks, b.FixEffortWeeks)
	m.RiskFlag = a.RiskFlag || b.RiskFlag
	m.Severity = types.MaxSeverity(a.Severity, b.Severity, severityFor(m.AnnualCost, m.RiskFlag))
	m.Estimated = a.Estimated && b.Estimated
	m.DefaultedFields = dedupe(append(append([]string(nil), a.DefaultedFields...), b.DefaultedFields...))
	if m.Description == "" {
		m.Description = b.Description
	}
	if m.BusinessImpact == "" {
		m.BusinessImpact = b.BusinessImpact
	}
	return m
}

// Sort orders findings by severity (critical first), then annual cost
// (largest first), then type and location for a total, stable order.
func Sort(findings []types.DebtFinding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if wa, wb := a.Severity.Weight(), b.Severity.Weight(); wa != wb {
			return wa > wb
		}
		if a.AnnualCost != b.AnnualCost {
			return a.AnnualCost > b.AnnualCost
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.Repository < b.Repository
	})
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
