package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPayload(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"bare object", `{"debt_items": []}`, `{"debt_items": []}`},
		{"bare array", ` [{"type": "god_class"}] `, `[{"type": "god_class"}]`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence without language", "```\n[1, 2]\n```", `[1, 2]`},
		{"fence inside prose", "Here is the analysis:\n```json\n{\"a\": 1}\n```\nLet me know.", `{"a": 1}`},
		{"prose around object", `The result is {"a": {"b": [1, 2]}} as requested.`, `{"a": {"b": [1, 2]}}`},
		{"first of two objects", `{"a": 1} and then {"b": 2}`, `{"a": 1}`},
		{"brackets inside strings", `note: {"loc": "main.go:12 }]", "x": 1} done`, `{"loc": "main.go:12 }]", "x": 1}`},
		{"trailing commas", `{"items": [1, 2,], "x": 3,}`, `{"items": [1, 2], "x": 3}`},
		{"unquoted keys", `{type: "god_class", annual_cost: 5}`, `{"type": "god_class", "annual_cost": 5}`},
		{"comment lines", "{\n  // the main finding\n  \"a\": 1\n}", "{\n\n  \"a\": 1\n}"},
		{"url survives", `{"url": "https://example.com/x"}`, `{"url": "https://example.com/x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractPayload(tt.reply, "test")
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestExtractPayload_Failures(t *testing.T) {
	for name, reply := range map[string]string{
		"empty":      "   ",
		"prose":      "I could not analyze this repository.",
		"unbalanced": `{"a": [1, 2}`,
		"too large":  strings.Repeat(" ", maxReplySize+1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := extractPayload(reply, "test")
			assert.ErrorIs(t, err, ErrUnparseableResponse)
			assert.ErrorContains(t, err, "test")
		})
	}
}

func TestBalancedSpan(t *testing.T) {
	assert.Equal(t, `{"a": "\"}"}`, balancedSpan(`x {"a": "\"}"} y`))
	assert.Equal(t, "", balancedSpan("no json here"))
	assert.Equal(t, "", balancedSpan(`{"a": [}`))
	assert.Equal(t, "", balancedSpan(`{"open": true`))
}
