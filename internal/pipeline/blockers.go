package pipeline

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/steveyegge/debtneg/internal/ai"
)

// LoadBlockers reads a blocker mapping file for offline runs. The file holds
// either {"TICKET-1": ["god_class"]} or {"feature_analysis": [{"key", "blocked_by"}]}.
func LoadBlockers(fs afero.Fs, path string) (map[string][]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading blockers file: %w", err)
	}
	blockers, err := ai.ParseBlockers(data)
	if err != nil {
		return nil, fmt.Errorf("parsing blockers file %s: %w", path, err)
	}
	return blockers, nil
}
