package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCandidateFencedBlock(t *testing.T) {
	text := "Sure, here you go:\n```json\n{\"name\": \"demo\", \"count\": 3}\n```\nLet me know if you need more."
	got := JSONCandidate(text)
	assert.Equal(t, `{"name": "demo", "count": 3}`, got)
}

func TestJSONCandidateFencedBlockWithoutTag(t *testing.T) {
	text := "```\n{\"type\": \"library\", \"confidence\": 0.8}\n```"
	got := JSONCandidate(text)
	assert.Equal(t, `{"type": "library", "confidence": 0.8}`, got)
}

func TestJSONCandidateShortFencedBlockFallsThrough(t *testing.T) {
	// The fenced body is too short to be a real payload; the brace span
	// heuristic picks up the full object instead.
	text := "```\n{}\n``` actual payload: {\"a\": 1, \"b\": 2}"
	got := JSONCandidate(text)
	assert.Equal(t, "{}\n``` actual payload: {\"a\": 1, \"b\": 2}", got)
}

func TestJSONCandidateBraceSpan(t *testing.T) {
	text := `The analysis produced {"type": "monorepo", "packages": []} as requested.`
	got := JSONCandidate(text)
	assert.Equal(t, `{"type": "monorepo", "packages": []}`, got)
}

func TestJSONCandidateNoJSON(t *testing.T) {
	assert.Equal(t, "no json here", JSONCandidate("no json here"))
}

func TestJSONCandidateBraceSpanSpansNestedObjects(t *testing.T) {
	text := `prefix {"outer": {"inner": 1}} suffix`
	got := JSONCandidate(text)
	assert.Equal(t, `{"outer": {"inner": 1}}`, got)
}

func TestRepairJSONTrailingComma(t *testing.T) {
	got := RepairJSON(`{"a":1,}`)
	assert.Equal(t, `{"a":1}`, got)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &parsed))
	assert.Equal(t, float64(1), parsed["a"])
}

func TestRepairJSONTrailingCommaInArray(t *testing.T) {
	got := RepairJSON(`{"items":[1,2,],}`)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &parsed))
}

func TestRepairJSONAppendsMissingBraces(t *testing.T) {
	got := RepairJSON(`{"a":{"b":1}`)
	assert.Equal(t, `{"a":{"b":1}}`, got)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &parsed))
}

func TestRepairJSONValidInputUnchanged(t *testing.T) {
	in := `{"a":{"b":1},"c":[1,2]}`
	assert.Equal(t, in, RepairJSON(in))
}
