package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/steveyegge/debtneg/internal/types"
)

// ErrUnparseableResponse is returned when no JSON could be recovered from a reply.
var ErrUnparseableResponse = errors.New("unparseable oracle response")

// ClassifyRepository asks the model for the debt findings of one snapshot.
// An empty snapshot is answered locally with no findings. When some elements
// of the reply are malformed the rest are returned with a
// *types.PartialFindingsError.
func (s *Supervisor) ClassifyRepository(ctx context.Context, snap *types.RepositorySnapshot) ([]types.RawFinding, error) {
	if snap == nil || snap.IsEmpty() {
		return nil, nil
	}

	schema, err := ClassificationSchema()
	if err != nil {
		return nil, fmt.Errorf("classification schema: %w", err)
	}

	system := buildClassificationSystem(snap.RepoType, schema)
	prompt := buildClassificationPrompt(snap)

	text, err := s.CallAI(ctx, system, prompt, "classify "+snap.Name, s.model, 0)
	if err != nil {
		return nil, err
	}

	findings, skipped, err := decodeFindings(text)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", snap.Name, err)
	}
	if skipped > 0 {
		slog.Warn("dropped malformed findings from oracle response",
			"repository", snap.Name, "skipped", skipped, "kept", len(findings))
		return findings, &types.PartialFindingsError{Skipped: skipped, Kept: len(findings)}
	}
	return findings, nil
}

// decodeFindings accepts a bare array of findings or an object with a
// "debt_items" (or "findings") array. Elements that are not objects are
// skipped and counted.
func decodeFindings(text string) ([]types.RawFinding, int, error) {
	payload, err := extractPayload(text, "debt classification")
	if err != nil {
		return nil, 0, err
	}

	items, err := findingItems(payload)
	if err != nil {
		return nil, 0, err
	}

	findings := make([]types.RawFinding, 0, len(items))
	skipped := 0
	for _, item := range items {
		var raw types.RawFinding
		if err := json.Unmarshal(item, &raw); err != nil {
			skipped++
			continue
		}
		findings = append(findings, raw)
	}
	return findings, skipped, nil
}

func findingItems(data json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrUnparseableResponse
	}

	var items []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseableResponse, err)
		}
		return items, nil
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparseableResponse, err)
		}
		for _, key := range []string{"debt_items", "findings"} {
			field, ok := envelope[key]
			if !ok || bytes.Equal(bytes.TrimSpace(field), []byte("null")) {
				continue
			}
			if err := json.Unmarshal(field, &items); err != nil {
				return nil, fmt.Errorf("%w: %q is not a list: %v", ErrUnparseableResponse, key, err)
			}
			return items, nil
		}
		// An object without a findings list reads as a single finding.
		if _, ok := envelope["type"]; ok {
			return []json.RawMessage{trimmed}, nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("%w: expected a JSON array or object", ErrUnparseableResponse)
}
