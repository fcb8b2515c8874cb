package cost

import (
	"fmt"
)

// Params holds the team assumptions the cost model is computed from
type Params struct {
	// TeamSize is the number of engineers assigned to refactoring work
	// Default: 5
	TeamSize int `json:"team_size" yaml:"team_size" mapstructure:"team_size" validate:"gt=0"`

	// WeeklyRate is the loaded cost of one engineer-week in USD
	// Default: 10000
	WeeklyRate float64 `json:"weekly_rate" yaml:"weekly_rate" mapstructure:"weekly_rate" validate:"gt=0"`

	// WorkStreams is how many findings the team can fix in parallel.
	// It only affects the calendar timeline, never the cost.
	// Default: 1 (everything is fixed sequentially)
	WorkStreams int `json:"work_streams" yaml:"work_streams" mapstructure:"work_streams" validate:"gte=1"`
}

// DefaultParams returns the default team assumptions
func DefaultParams() Params {
	return Params{
		TeamSize:    5,
		WeeklyRate:  10000,
		WorkStreams: 1,
	}
}

// Validate checks that the parameters can produce a cost model
func (p Params) Validate() error {
	if p.TeamSize <= 0 {
		return fmt.Errorf("team_size must be positive, got %d", p.TeamSize)
	}

	if p.WeeklyRate <= 0 {
		return fmt.Errorf("weekly_rate must be positive, got %.2f", p.WeeklyRate)
	}

	if p.WorkStreams < 1 {
		return fmt.Errorf("work_streams must be at least 1, got %d", p.WorkStreams)
	}

	return nil
}

// WeeklyBurn is what one calendar week of the whole team costs
func (p Params) WeeklyBurn() float64 {
	return float64(p.TeamSize) * p.WeeklyRate
}

// withDefaults fills zero values so a partially populated Params is still usable.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.TeamSize <= 0 {
		p.TeamSize = d.TeamSize
	}
	if p.WeeklyRate <= 0 {
		p.WeeklyRate = d.WeeklyRate
	}
	if p.WorkStreams < 1 {
		p.WorkStreams = d.WorkStreams
	}
	return p
}
