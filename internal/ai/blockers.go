package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/steveyegge/debtneg/internal/types"
)

// MapBlockers asks the model which debt types block each ticket. Tickets the
// model does not mention map to nothing. With no tickets or no findings there
// is nothing to map and no call is made.
func (s *Supervisor) MapBlockers(ctx context.Context, tickets []types.FeatureTicket, findings []types.DebtFinding) (map[string][]string, error) {
	if len(tickets) == 0 || len(findings) == 0 {
		return map[string][]string{}, nil
	}

	schema, err := BlockerSchema()
	if err != nil {
		return nil, fmt.Errorf("blocker schema: %w", err)
	}

	text, err := s.CallAI(ctx, blockerSystem+schema, buildBlockerPrompt(tickets, findings), "map blockers", s.simpleModel, 0)
	if err != nil {
		return nil, err
	}

	blockers, err := decodeBlockers(text)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(tickets))
	for _, t := range tickets {
		known[t.Key] = true
	}
	for key := range blockers {
		if !known[key] {
			delete(blockers, key)
		}
	}
	return blockers, nil
}

// ParseBlockers decodes a blocker mapping written by hand or saved from an
// earlier run. It accepts the same shapes as the model's reply.
func ParseBlockers(data []byte) (map[string][]string, error) {
	return decodeBlockers(string(data))
}

// decodeBlockers accepts {"feature_analysis": [{"key", "blocked_by"}]} or a
// plain {"KEY": ["slug", ...]} object. Slugs are sorted and de-duplicated.
func decodeBlockers(text string) (map[string][]string, error) {
	payload, err := extractPayload(text, "blocker mapping")
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string)

	var analysis struct {
		FeatureAnalysis []struct {
			Key       string   `json:"key"`
			BlockedBy []string `json:"blocked_by"`
		} `json:"feature_analysis"`
	}
	if err := json.Unmarshal(payload, &analysis); err == nil && analysis.FeatureAnalysis != nil {
		for _, fa := range analysis.FeatureAnalysis {
			if fa.Key != "" {
				out[fa.Key] = append(out[fa.Key], fa.BlockedBy...)
			}
		}
		return sortedBlockers(out), nil
	}

	var flat map[string][]string
	if err := json.Unmarshal(payload, &flat); err != nil {
		return nil, fmt.Errorf("%w: blocker mapping has an unexpected shape: %v", ErrUnparseableResponse, err)
	}
	for key, slugs := range flat {
		out[key] = slugs
	}
	return sortedBlockers(out), nil
}

func sortedBlockers(m map[string][]string) map[string][]string {
	for key, slugs := range m {
		seen := make(map[string]bool, len(slugs))
		clean := make([]string, 0, len(slugs))
		for _, s := range slugs {
			slug := string(types.NormalizeDebtType(s))
			if slug == string(types.DebtUnknown) || seen[slug] {
				continue
			}
			seen[slug] = true
			clean = append(clean, slug)
		}
		sort.Strings(clean)
		m[key] = clean
	}
	return m
}
