package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
)

// NeverLabel is how an unreachable break-even is rendered.
const NeverLabel = "never"

// NotApplicableLabel is how an undefined ROI is rendered.
const NotApplicableLabel = "n/a"

// Weeks is a week count that may be "never" (e.g. break-even with zero savings).
type Weeks struct {
	Value int
	Never bool
}

// WeeksOf returns a finite week count.
func WeeksOf(n int) Weeks { return Weeks{Value: n} }

// NeverWeeks returns the "never" sentinel.
func NeverWeeks() Weeks { return Weeks{Never: true} }

// Finite reports whether the value is a real week count.
func (w Weeks) Finite() bool { return !w.Never }

// Within reports whether w is finite and no later than horizon.
// A horizon of zero or less means no limit.
func (w Weeks) Within(horizon int) bool {
	if w.Never {
		return false
	}
	return horizon <= 0 || w.Value <= horizon
}

func (w Weeks) String() string {
	if w.Never {
		return NeverLabel
	}
	return strconv.Itoa(w.Value)
}

// MarshalJSON renders a number or "never".
func (w Weeks) MarshalJSON() ([]byte, error) {
	if w.Never {
		return json.Marshal(NeverLabel)
	}
	return json.Marshal(w.Value)
}

// UnmarshalJSON accepts a number or "never".
func (w *Weeks) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*w = NeverWeeks()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == NeverLabel {
			*w = NeverWeeks()
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid week count %q", s)
		}
		*w = WeeksOf(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid week count %s: %w", data, err)
	}
	*w = WeeksOf(n)
	return nil
}

// Percent is a percentage that may be undefined ("n/a"), e.g. ROI with zero cost.
type Percent struct {
	Value   float64
	Defined bool
}

// PercentOf returns a defined percentage.
func PercentOf(v float64) Percent { return Percent{Value: v, Defined: true} }

// NotApplicable returns the "n/a" sentinel.
func NotApplicable() Percent { return Percent{} }

func (p Percent) String() string {
	if !p.Defined {
		return NotApplicableLabel
	}
	return strconv.FormatFloat(p.Value, 'f', 1, 64) + "%"
}

// MarshalJSON renders a number or "n/a".
func (p Percent) MarshalJSON() ([]byte, error) {
	if !p.Defined {
		return json.Marshal(NotApplicableLabel)
	}
	return json.Marshal(p.Value)
}

// UnmarshalJSON accepts a number or "n/a".
func (p *Percent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == NotApplicableLabel || s == "" {
			*p = NotApplicable()
			return nil
		}
		return fmt.Errorf("invalid percentage %q", s)
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = NotApplicable()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid percentage %s: %w", data, err)
	}
	*p = PercentOf(v)
	return nil
}

// SeverityCounts tallies findings per severity.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
}

// Add counts one finding of the given severity.
func (c *SeverityCounts) Add(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	default:
		c.Medium++
	}
}

// Total returns the number of counted findings.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium
}

// CostModel is the financial view of a set of findings. Derived on every run.
type CostModel struct {
	FindingCount           int            `json:"finding_count"`
	Severity               SeverityCounts `json:"severity_counts"`
	TeamSize               int            `json:"team_size"`
	WeeklyRate             float64        `json:"weekly_rate"`
	WorkStreams            int            `json:"work_streams"`
	RefactoringEffortWeeks float64        `json:"refactoring_effort_weeks"`
	CalendarRefactorWeeks  int            `json:"calendar_refactor_weeks"`
	RefactoringCost        float64        `json:"refactoring_cost"`
	AnnualSavings          float64        `json:"annual_savings"`
	BreakEvenWeeks         Weeks          `json:"break_even_weeks"`
	ROIYear1Percent        Percent        `json:"roi_year_1_percent"`
	HealthScore            int            `json:"health_score"`
}

// FormatUSD renders a dollar amount rounded to whole dollars with thousands separators.
func FormatUSD(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "$?"
	}
	if v < 0 {
		return "-$" + humanize.Comma(int64(math.Round(-v)))
	}
	return "$" + humanize.Comma(int64(math.Round(v)))
}
