package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantJSON string
	}{
		{
			name:     "plain JSON object",
			input:    `{"key": "value"}`,
			wantJSON: `{"key": "value"}`,
		},
		{
			name:     "JSON with markdown code block",
			input:    "```json\n{\"key\": \"value\"}\n```",
			wantJSON: `{"key": "value"}`,
		},
		{
			name:     "JSON with triple backticks",
			input:    "```\n{\"key\": \"value\"}\n```",
			wantJSON: `{"key": "value"}`,
		},
		{
			name:     "JSON with surrounding text",
			input:    "Here is the JSON:\n{\"key\": \"value\"}\nEnd of JSON",
			wantJSON: `{"key": "value"}`,
		},
		{
			name:     "nested JSON object",
			input:    `{"outer": {"inner": "value"}}`,
			wantJSON: `{"outer": {"inner": "value"}}`,
		},
		{
			name:     "braces inside strings",
			input:    `{"text": "a } inside"} trailing`,
			wantJSON: `{"text": "a } inside"}`,
		},
		{
			name:     "JSON with escaped quotes in string",
			input:    `{"text": "He said \"hello\""}`,
			wantJSON: `{"text": "He said \"hello\""}`,
		},
		{
			name:     "no JSON present",
			input:    "just some text without json",
			wantJSON: "just some text without json",
		},
		{
			name:     "empty string",
			input:    "",
			wantJSON: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantJSON, extractJSON(tt.input))
		})
	}
}

func TestParseAnalysis_FencedReply(t *testing.T) {
	reply := "```json\n" + `{
  "topic": "Hiking plans",
  "emotion": "excited",
  "timeReference": "next Saturday",
  "actionItems": ["bring snacks"],
  "keyDetails": ["loves mountains", "  "],
  "summary": "Planning a hike."
}` + "\n```"

	a, ok := ParseAnalysis(reply)
	require.True(t, ok)
	assert.Equal(t, "Hiking plans", a.Topic)
	require.NotNil(t, a.Emotion)
	assert.Equal(t, "excited", *a.Emotion)
	require.NotNil(t, a.TimeReference)
	assert.Equal(t, "next Saturday", *a.TimeReference)
	assert.Equal(t, []string{"bring snacks"}, a.ActionItems)
	assert.Equal(t, []string{"loves mountains"}, a.KeyDetails)
	assert.Equal(t, "Planning a hike.", a.Summary)
}

func TestParseAnalysis_NullsAndLooseTypes(t *testing.T) {
	a, ok := ParseAnalysis(`{"topic":"work","emotion":null,"timeReference":"null","actionItems":"email boss","keyDetails":null,"summary":""}`)
	require.True(t, ok)
	assert.Nil(t, a.Emotion)
	assert.Nil(t, a.TimeReference)
	assert.Equal(t, []string{"email boss"}, a.ActionItems)
	assert.Equal(t, []string{}, a.KeyDetails)
}

func TestParseAnalysis_Malformed(t *testing.T) {
	for _, reply := range []string{"", "not json", `{"topic": "unterminated`, `[1,2,3]`} {
		a, ok := ParseAnalysis(reply)
		assert.False(t, ok, reply)
		assert.True(t, a.IsEmpty(), reply)
		assert.NotNil(t, a.ActionItems)
		assert.NotNil(t, a.KeyDetails)
	}
}

func FuzzParseAnalysis(f *testing.F) {
	f.Add(`{"topic": "x", "actionItems": [], "keyDetails": []}`)
	f.Add(``)
	f.Add("```json\n{\"topic\": null}\n```")
	f.Add(`{"actionItems": [1, 2], "keyDetails": {"a": 1}}`)
	f.Add(`{{{`)

	f.Fuzz(func(t *testing.T, input string) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("ParseAnalysis panicked on input %q: %v", input, r)
			}
		}()
		_, _ = ParseAnalysis(input)
	})
}
