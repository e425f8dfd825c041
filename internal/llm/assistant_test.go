package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/companion/pkg/types"
)

// stubGenerator returns canned replies and records prompts.
type stubGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (s *stubGenerator) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func (s *stubGenerator) GetModel() string { return "stub" }

func (s *stubGenerator) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func TestAssistant_Analyze(t *testing.T) {
	gen := &stubGenerator{reply: `{"topic":"music","emotion":"happy","actionItems":[],"keyDetails":["loves jazz"],"summary":"Sam loves jazz."}`}
	var ops []string
	a := NewAssistant(gen, WithCallObserver(func(op string, _ time.Duration, _ error) { ops = append(ops, op) }))

	analysis, err := a.Analyze(context.Background(), "Sam loves jazz")
	require.NoError(t, err)
	assert.Equal(t, "music", analysis.Topic)
	assert.Equal(t, []string{"loves jazz"}, analysis.KeyDetails)
	assert.Equal(t, []string{"analyze"}, ops)
	assert.Equal(t, "stub", a.Model())
}

func TestAssistant_AnalyzeErrors(t *testing.T) {
	tests := []struct {
		name    string
		gen     *stubGenerator
		wantMsg string
	}{
		{"empty reply", &stubGenerator{reply: "  "}, "Empty response from AI"},
		{"transport failure", &stubGenerator{err: errors.New("dial tcp: connection refused")}, "AI analysis failed: dial tcp: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAssistant(tt.gen).Analyze(context.Background(), "text")
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestAssistant_AnalyzeMalformedReplyIsEmpty(t *testing.T) {
	a := NewAssistant(&stubGenerator{reply: "I cannot help with that"})
	analysis, err := a.Analyze(context.Background(), "text")
	require.NoError(t, err)
	assert.True(t, analysis.IsEmpty())
}

func TestAssistant_AnalyzeUsesCache(t *testing.T) {
	cache, err := NewAnalysisCache(100, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	gen := &stubGenerator{reply: `{"topic":"work","summary":"s"}`}
	var lookups []bool
	a := NewAssistant(gen, WithAnalysisCache(cache), WithCacheObserver(func(hit bool) { lookups = append(lookups, hit) }))

	_, err = a.Analyze(context.Background(), "  meeting notes ")
	require.NoError(t, err)
	cache.Wait()

	analysis, err := a.Analyze(context.Background(), "meeting notes")
	require.NoError(t, err)
	assert.Equal(t, "work", analysis.Topic)
	assert.Equal(t, 1, gen.calls())
	assert.Equal(t, []bool{false, true}, lookups)
}

func TestAssistant_Answer(t *testing.T) {
	gen := &stubGenerator{reply: "Sam loves jazz."}
	a := NewAssistant(gen)
	memories := []types.Memory{{RawInput: "Sam loves jazz", Topic: "music"}}

	answer, err := a.Answer(context.Background(), "What does Sam like?", memories)
	require.NoError(t, err)
	assert.Equal(t, "Sam loves jazz.", answer)
	assert.Contains(t, gen.prompts[0], "Text: Sam loves jazz")

	_, err = NewAssistant(&stubGenerator{reply: ""}).Answer(context.Background(), "q", nil)
	assert.EqualError(t, err, "No response from AI")

	_, err = NewAssistant(&stubGenerator{err: errors.New("timeout")}).Answer(context.Background(), "q", nil)
	assert.EqualError(t, err, "Query failed: timeout")
}
