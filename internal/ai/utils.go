package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
)

// CallAI makes a generic AI API call with the given system and user prompts.
// Retry, circuit breaking, rate limiting and budget accounting all happen here
// so callers only build prompts and parse replies.
func (s *Supervisor) CallAI(ctx context.Context, system, prompt, operation, model string, maxTokens int) (string, error) {
	startTime := time.Now()

	// Use default model if not specified
	if model == "" {
		model = s.model
	}

	// Use default maxTokens if not specified
	if maxTokens == 0 {
		maxTokens = s.maxTokens
	}

	if s.budget != nil {
		if ok, reason := s.budget.CanProceed(); !ok {
			return "", fmt.Errorf("%s skipped: %w: %s", operation, ErrBudgetExceeded, reason)
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}

	// Call Anthropic API with retry logic
	var response *anthropic.Message
	err := s.retryWithBackoff(ctx, operation, func(attemptCtx context.Context) error {
		resp, apiErr := s.client.Messages.New(attemptCtx, params)
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	// Extract the text content from the response
	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if s.budget != nil {
		s.budget.RecordUsage(response.Usage.InputTokens, response.Usage.OutputTokens)
	}

	slog.Debug("AI call complete",
		"operation", operation,
		"model", model,
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
		"stop_reason", string(response.StopReason),
		"duration", time.Since(startTime))

	if response.StopReason == anthropic.StopReasonMaxTokens {
		slog.Warn("AI response hit the token limit and may be cut off",
			"operation", operation, "max_tokens", maxTokens)
	}

	return text.String(), nil
}

// truncateString truncates a string to maxLen bytes, adding "..." if truncated
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return safeTruncateString(s, maxLen)
	}
	return safeTruncateString(s, maxLen-3) + "..."
}

// safeTruncateString truncates a string to at most maxLen bytes without
// splitting a multi-byte character.
func safeTruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}

	// Truncate at maxLen initially
	truncated := s[:maxLen]

	// Walk backwards to find a valid UTF-8 boundary
	// We only need to check up to 4 bytes back (max UTF-8 sequence length)
	for i := 0; i < 4 && len(truncated) > 0; i++ {
		if utf8.ValidString(truncated) {
			return truncated
		}
		truncated = truncated[:len(truncated)-1]
	}

	// Invalid UTF-8 in the input itself; cut at the byte limit
	return s[:maxLen]
}
