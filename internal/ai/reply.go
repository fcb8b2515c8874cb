package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// maxReplySize bounds how much of a model reply is searched for JSON.
const maxReplySize = 4 << 20

var (
	// A fenced block anywhere in the reply: ```json ... ``` or ``` ... ```.
	fenceRegex = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)\\n?```")

	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex   = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
	lineCommentRegex   = regexp.MustCompile(`(?m)^\s*//.*$`)
	blockCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// extractPayload finds the JSON document in a model reply. Replies come bare,
// fenced, wrapped in prose, or with small slips such as trailing commas,
// comment lines and unquoted keys. what names the call in errors and logs.
func extractPayload(reply, what string) (json.RawMessage, error) {
	if len(reply) > maxReplySize {
		return nil, fmt.Errorf("%w: %s reply is %d bytes (limit %d)", ErrUnparseableResponse, what, len(reply), maxReplySize)
	}
	text := strings.TrimSpace(reply)
	if text == "" {
		return nil, fmt.Errorf("%w: %s reply is empty", ErrUnparseableResponse, what)
	}

	for i, candidate := range payloadCandidates(text) {
		if candidate == "" || !gjson.Valid(candidate) {
			continue
		}
		if i > 0 {
			slog.Debug("recovered JSON from model reply", "call", what, "step", i, "preview", truncateString(text, 100))
		}
		return json.RawMessage(candidate), nil
	}
	return nil, fmt.Errorf("%w: no JSON in %s reply %q", ErrUnparseableResponse, what, truncateString(text, 120))
}

// payloadCandidates lists progressively more invasive readings of the reply.
func payloadCandidates(text string) []string {
	unfenced := text
	if m := fenceRegex.FindStringSubmatch(text); m != nil {
		unfenced = strings.TrimSpace(m[1])
	}
	repaired := repairJSON(unfenced)
	return []string{
		text,
		unfenced,
		balancedSpan(unfenced),
		repaired,
		balancedSpan(repaired),
	}
}

// repairJSON fixes the slips models make most often. Single quotes are left
// alone: rewriting them would corrupt apostrophes inside strings.
func repairJSON(text string) string {
	out := blockCommentRegex.ReplaceAllString(text, "")
	out = lineCommentRegex.ReplaceAllString(out, "")
	out = trailingCommaRegex.ReplaceAllString(out, "$1")
	out = unquotedKeyRegex.ReplaceAllString(out, `$1"$2":`)
	return strings.TrimSpace(out)
}

// balancedSpan returns the first complete JSON object or array in text,
// matching brackets outside of string literals. Empty when there is none.
func balancedSpan(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}

	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return ""
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
