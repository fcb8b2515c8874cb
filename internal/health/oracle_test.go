package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/debtneg/internal/types"
)

func TestOracle(t *testing.T) {
	oracle, err := NewOracle()
	require.NoError(t, err)
	assert.Equal(t, "heuristic", oracle.Name())
	assert.Equal(t, []string{
		"dependency_auditor",
		"god_class_monitor",
		"ml_monitor",
		"pipeline_monitor",
		"security_monitor",
	}, oracle.Registry().ListMonitors())

	t.Run("empty snapshot", func(t *testing.T) {
		findings, err := oracle.ClassifyRepository(context.Background(), &types.RepositorySnapshot{Name: "empty"})
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("findings carry estimates", func(t *testing.T) {
		snap := snapshotOf(types.RepoSWE,
			snapFile("requirements.txt", "numpy==1.16.0\n"),
			snapFile("app/settings.py", "SECRET = 'abc123'\n"),
		)
		findings, err := oracle.ClassifyRepository(context.Background(), snap)
		require.NoError(t, err)
		require.Len(t, findings, 2)

		// dependency_auditor runs before security_monitor.
		assert.Equal(t, "outdated_dependency", findings[0].Type)
		assert.Equal(t, "requirements.txt:1", findings[0].Location)
		require.NotNil(t, findings[0].AnnualCost)
		assert.Equal(t, 45000.0, *findings[0].AnnualCost)
		assert.Nil(t, findings[0].RiskFlag)

		assert.Equal(t, "hardcoded_credentials", findings[1].Type)
		assert.Equal(t, "app/settings.py:1", findings[1].Location)
		require.NotNil(t, findings[1].RiskFlag)
		assert.True(t, *findings[1].RiskFlag)
	})

	t.Run("duplicate monitors rejected", func(t *testing.T) {
		_, err := NewOracleWith(NewMLMonitor(), NewMLMonitor())
		assert.Error(t, err)
	})
}
