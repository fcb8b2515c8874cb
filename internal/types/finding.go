package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RawFinding is a debt finding as the classification oracle reported it.
// Nothing about it is trusted: every field may be absent, and numbers or booleans
// may arrive as strings. Pointer fields are nil when the oracle omitted them.
type RawFinding struct {
	Type           string   `json:"type,omitempty"`
	Severity       string   `json:"severity,omitempty"`
	Location       string   `json:"location,omitempty"`
	Description    string   `json:"description,omitempty"`
	BusinessImpact string   `json:"business_impact,omitempty"`
	AnnualCost     *float64 `json:"annual_cost,omitempty"`
	FixEffortWeeks *float64 `json:"fix_effort_weeks,omitempty"`
	RiskFlag       *bool    `json:"risk_flag,omitempty"`

	// Carried through when already-normalized findings are fed back in.
	Estimated       *bool    `json:"estimated,omitempty"`
	DefaultedFields []string `json:"defaulted_fields,omitempty"`
}

// PartialFindingsError is returned by an oracle together with the findings it
// could decode when some elements of its reply were malformed.
type PartialFindingsError struct {
	Skipped int
	Kept    int
}

func (e *PartialFindingsError) Error() string {
	return fmt.Sprintf("%d malformed findings dropped, %d kept", e.Skipped, e.Kept)
}

// UnmarshalJSON decodes leniently. Unknown keys are ignored, type mismatches
// leave the field unset instead of failing the whole payload.
func (r *RawFinding) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("finding is not an object: %w", err)
	}

	*r = RawFinding{
		Type:            lenientString(fields, "type", "debt_type", "category"),
		Severity:        lenientString(fields, "severity"),
		Location:        lenientString(fields, "location"),
		Description:     lenientString(fields, "description", "title"),
		BusinessImpact:  lenientString(fields, "business_impact", "impact"),
		AnnualCost:      lenientNumber(fields, "annual_cost", "cost"),
		FixEffortWeeks:  lenientNumber(fields, "fix_effort_weeks", "effort_weeks"),
		RiskFlag:        lenientBool(fields, "risk_flag", "security", "risk"),
		Estimated:       lenientBool(fields, "estimated"),
		DefaultedFields: lenientStrings(fields, "defaulted_fields"),
	}

	if r.Location == "" {
		file := lenientString(fields, "file", "path")
		if file != "" {
			if line := lenientNumber(fields, "line"); line != nil && *line > 0 {
				file = fmt.Sprintf("%s:%d", file, int(*line))
			}
			r.Location = file
		}
	}
	return nil
}

// DebtFinding is a validated, canonical debt finding. Never mutated after
// normalization: corrections produce a new value.
type DebtFinding struct {
	Repository     string       `json:"repository,omitempty"`
	Type           DebtType     `json:"type"`
	Category       DebtCategory `json:"category"`
	Severity       Severity     `json:"severity"`
	Location       string       `json:"location"`
	Description    string       `json:"description"`
	BusinessImpact string       `json:"business_impact,omitempty"`
	AnnualCost     float64      `json:"annual_cost"`
	FixEffortWeeks float64      `json:"fix_effort_weeks"`
	RiskFlag       bool         `json:"risk_flag,omitempty"`

	// Estimated is true when both numbers came from the oracle; false when at
	// least one was missing and zero-filled (see DefaultedFields).
	Estimated       bool     `json:"estimated"`
	DefaultedFields []string `json:"defaulted_fields,omitempty"`
}

// Key identifies duplicates: same type at the same location.
func (f DebtFinding) Key() string {
	return string(f.Type) + "\x00" + f.Location
}

// Validate checks the finding invariants
func (f DebtFinding) Validate() error {
	if f.Type == "" {
		return fmt.Errorf("type is required")
	}
	if !f.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", f.Severity)
	}
	if f.AnnualCost < 0 || math.IsNaN(f.AnnualCost) {
		return fmt.Errorf("annual_cost must be non-negative (got %v)", f.AnnualCost)
	}
	if f.FixEffortWeeks < 0 || math.IsNaN(f.FixEffortWeeks) {
		return fmt.Errorf("fix_effort_weeks must be non-negative (got %v)", f.FixEffortWeeks)
	}
	if f.Severity.Weight() < SeverityForCost(f.AnnualCost).Weight() {
		return fmt.Errorf("severity %s is below the %s band for $%.0f", f.Severity, SeverityForCost(f.AnnualCost), f.AnnualCost)
	}
	return nil
}

// ToRaw converts a normalized finding back into oracle shape, preserving the
// traceability flags so a second normalization pass is a no-op.
func (f DebtFinding) ToRaw() RawFinding {
	cost := f.AnnualCost
	effort := f.FixEffortWeeks
	risk := f.RiskFlag
	estimated := f.Estimated
	var defaulted []string
	if len(f.DefaultedFields) > 0 {
		defaulted = append(defaulted, f.DefaultedFields...)
	}
	return RawFinding{
		Type:            string(f.Type),
		Severity:        string(f.Severity),
		Location:        f.Location,
		Description:     f.Description,
		BusinessImpact:  f.BusinessImpact,
		AnnualCost:      &cost,
		FixEffortWeeks:  &effort,
		RiskFlag:        &risk,
		Estimated:       &estimated,
		DefaultedFields: defaulted,
	}
}

func lenientString(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func lenientNumber(fields map[string]json.RawMessage, keys ...string) *float64 {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil
			}
			return &f
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if v, ok := parseMoney(s); ok {
				return &v
			}
		}
	}
	return nil
}

// parseMoney accepts "150000", "$150,000", "150k" and "1.2M".
func parseMoney(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.NewReplacer("$", "", ",", "", "_", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1_000, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1_000_000, strings.TrimSuffix(s, "m")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v * mult, true
}

func lenientBool(fields map[string]json.RawMessage, keys ...string) *bool {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return &b
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "true", "yes", "1", "y":
				b = true
				return &b
			case "false", "no", "0", "n":
				return &b
			}
		}
	}
	return nil
}

// isNull reports whether raw is a JSON null, which counts as a missing field.
func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func lenientStrings(fields map[string]json.RawMessage, key string) []string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
