package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudget(t *testing.T) {
	t.Run("unlimited stays healthy", func(t *testing.T) {
		b, err := NewBudget(DefaultBudgetConfig())
		require.NoError(t, err)

		assert.Equal(t, BudgetHealthy, b.RecordUsage(1_000_000, 1_000_000))
		ok, _ := b.CanProceed()
		assert.True(t, ok)
		assert.InDelta(t, 18.0, b.Stats().CostUSD, 1e-9)
	})

	t.Run("token limit", func(t *testing.T) {
		cfg := DefaultBudgetConfig()
		cfg.MaxTokens = 10_000
		b, err := NewBudget(cfg)
		require.NoError(t, err)

		assert.Equal(t, BudgetHealthy, b.RecordUsage(5_000, 1_000))
		assert.Equal(t, BudgetWarning, b.RecordUsage(2_000, 500))
		ok, _ := b.CanProceed()
		assert.True(t, ok)

		assert.Equal(t, BudgetExceeded, b.RecordUsage(2_000, 0))
		ok, reason := b.CanProceed()
		assert.False(t, ok)
		assert.Contains(t, reason, "10500/10000")
		assert.Equal(t, 3, b.Stats().Calls)
	})

	t.Run("cost limit", func(t *testing.T) {
		cfg := DefaultBudgetConfig()
		cfg.MaxCostUSD = 1.0
		b, err := NewBudget(cfg)
		require.NoError(t, err)

		// 100K output tokens at $15/MTok is $1.50.
		assert.Equal(t, BudgetExceeded, b.RecordUsage(0, 100_000))
		ok, reason := b.CanProceed()
		assert.False(t, ok)
		assert.Contains(t, reason, "$1.50/$1.00")
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := DefaultBudgetConfig()
		cfg.AlertThreshold = 1.5
		_, err := NewBudget(cfg)
		assert.Error(t, err)
	})

	assert.Equal(t, "WARNING", BudgetWarning.String())
}
