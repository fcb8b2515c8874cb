package ai

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrBudgetExceeded is returned when a call would exceed the run's token budget.
var ErrBudgetExceeded = errors.New("AI budget exceeded")

// BudgetStatus represents the current budget state
type BudgetStatus int

const (
	// BudgetHealthy indicates normal operation - under budget limits
	BudgetHealthy BudgetStatus = iota
	// BudgetWarning indicates approaching budget limits (AlertThreshold of a limit)
	BudgetWarning
	// BudgetExceeded indicates budget limits have been exceeded
	BudgetExceeded
)

// String returns a human-readable string representation of the budget status
func (s BudgetStatus) String() string {
	switch s {
	case BudgetHealthy:
		return "HEALTHY"
	case BudgetWarning:
		return "WARNING"
	case BudgetExceeded:
		return "EXCEEDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// BudgetConfig limits the oracle spend of a single run.
type BudgetConfig struct {
	MaxTokens      int64   `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=0"`       // 0 = unlimited
	MaxCostUSD     float64 `json:"max_cost_usd" yaml:"max_cost_usd" mapstructure:"max_cost_usd" validate:"gte=0"` // 0 = unlimited
	AlertThreshold float64 `json:"alert_threshold" yaml:"alert_threshold" mapstructure:"alert_threshold" validate:"gte=0,lte=1"`

	// Pricing per million tokens. Default: Sonnet list prices.
	InputCostPerMTok  float64 `json:"input_cost_per_mtok" yaml:"input_cost_per_mtok" mapstructure:"input_cost_per_mtok" validate:"gte=0"`
	OutputCostPerMTok float64 `json:"output_cost_per_mtok" yaml:"output_cost_per_mtok" mapstructure:"output_cost_per_mtok" validate:"gte=0"`
}

// DefaultBudgetConfig returns an unlimited budget with Sonnet pricing.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		AlertThreshold:    0.8,
		InputCostPerMTok:  3.0,
		OutputCostPerMTok: 15.0,
	}
}

// Validate checks the budget configuration
func (c BudgetConfig) Validate() error {
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d", c.MaxTokens)
	}
	if c.MaxCostUSD < 0 {
		return fmt.Errorf("max_cost_usd must be non-negative, got %.2f", c.MaxCostUSD)
	}
	if c.AlertThreshold < 0 || c.AlertThreshold > 1 {
		return fmt.Errorf("alert_threshold must be between 0 and 1, got %.2f", c.AlertThreshold)
	}
	if c.InputCostPerMTok < 0 || c.OutputCostPerMTok < 0 {
		return fmt.Errorf("token prices must be non-negative")
	}
	return nil
}

// Budget tracks token usage across the oracle calls of one run.
type Budget struct {
	config BudgetConfig

	mu            sync.Mutex
	inputTokens   int64
	outputTokens  int64
	costUSD       float64
	calls         int
	warningLogged bool
}

// BudgetStats contains budget statistics
type BudgetStats struct {
	Status       BudgetStatus `json:"status"`
	Calls        int          `json:"calls"`
	InputTokens  int64        `json:"input_tokens"`
	OutputTokens int64        `json:"output_tokens"`
	CostUSD      float64      `json:"cost_usd"`
}

// NewBudget creates a budget tracker.
func NewBudget(cfg BudgetConfig) (*Budget, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid budget config: %w", err)
	}
	return &Budget{config: cfg}, nil
}

// RecordUsage adds one call's token usage and returns the new status.
func (b *Budget) RecordUsage(inputTokens, outputTokens int64) BudgetStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls++
	b.inputTokens += inputTokens
	b.outputTokens += outputTokens
	b.costUSD += float64(inputTokens)/1e6*b.config.InputCostPerMTok +
		float64(outputTokens)/1e6*b.config.OutputCostPerMTok

	status := b.statusLocked()
	switch status {
	case BudgetWarning:
		if !b.warningLogged {
			slog.Warn("AI budget nearly spent",
				"tokens", b.inputTokens+b.outputTokens, "max_tokens", b.config.MaxTokens,
				"cost_usd", b.costUSD, "max_cost_usd", b.config.MaxCostUSD)
			b.warningLogged = true
		}
	case BudgetExceeded:
		slog.Warn("AI budget exceeded, further oracle calls will be refused",
			"tokens", b.inputTokens+b.outputTokens, "cost_usd", b.costUSD)
	}
	return status
}

// CanProceed returns true if we can make another AI call without exceeding budget
func (b *Budget) CanProceed() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tokens := b.inputTokens + b.outputTokens
	if b.config.MaxTokens > 0 && tokens >= b.config.MaxTokens {
		return false, fmt.Sprintf("token budget exceeded (%d/%d tokens used)", tokens, b.config.MaxTokens)
	}
	if b.config.MaxCostUSD > 0 && b.costUSD >= b.config.MaxCostUSD {
		return false, fmt.Sprintf("cost budget exceeded ($%.2f/$%.2f used)", b.costUSD, b.config.MaxCostUSD)
	}
	return true, ""
}

// Stats returns current budget statistics
func (b *Budget) Stats() BudgetStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BudgetStats{
		Status:       b.statusLocked(),
		Calls:        b.calls,
		InputTokens:  b.inputTokens,
		OutputTokens: b.outputTokens,
		CostUSD:      b.costUSD,
	}
}

func (b *Budget) statusLocked() BudgetStatus {
	tokens := float64(b.inputTokens + b.outputTokens)
	status := BudgetHealthy
	check := func(used, limit float64) {
		if limit <= 0 {
			return
		}
		switch {
		case used >= limit:
			status = BudgetExceeded
		case used >= limit*b.config.AlertThreshold && status < BudgetWarning:
			status = BudgetWarning
		}
	}
	check(tokens, float64(b.config.MaxTokens))
	check(b.costUSD, b.config.MaxCostUSD)
	return status
}
