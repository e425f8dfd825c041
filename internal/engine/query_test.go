package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/llm"
	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

func memo(id, raw, summary, topic string) types.Memory {
	return types.Memory{ID: id, RawInput: raw, AISummary: summary, Topic: topic}
}

func ids(memories []types.Memory) []string {
	out := make([]string, 0, len(memories))
	for _, m := range memories {
		out = append(out, m.ID)
	}
	return out
}

func TestKeywordSources(t *testing.T) {
	memories := []types.Memory{
		memo("m1", "Sam loves hiking", "", "Outdoors"),
		memo("m2", "Dinner with Alex", "Alex cooked pasta", "Food"),
		memo("m3", "", "", "Birthday Plans"),
		memo("m4", "Alex's birthday gift ideas", "", ""),
		memo("m5", "Alex again", "", ""),
		memo("m6", "Fuimos a la playa, un día precioso", "", ""),
	}

	tests := []struct {
		name     string
		question string
		want     []string
	}{
		{"short words ignored", "who is Sam", []string{}},
		{"punctuation stays attached", "what did we eat, pasta?", []string{}},
		{"word match", "what about pasta", []string{"m2"}},
		{"topic match case folded", "BIRTHDAY", []string{"m3", "m4"}},
		{"capped at three in store order", "alex hiking", []string{"m1", "m2", "m4"}},
		{"blank", "", []string{}},
		{"three-letter non-ASCII words ignored", "qué día", []string{}},
		{"non-ASCII keyword", "precioso", []string{"m6"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(KeywordSources(tt.question, memories)))
		})
	}
}

func TestQueryAssistant_Ask(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedPerson(t, "Sam", t0)
	env.seedMemory(t, p.ID, "Sam loves hiking", "Outdoors", t0)
	env.seedMemory(t, p.ID, "Sam's hiking boots are worn out", "", t0)

	ai := &mockAssistant{}
	ai.On("Answer", mock.Anything, "what does Sam enjoy hiking", mock.MatchedBy(func(m []types.Memory) bool {
		return len(m) == 1 && m[0].IsProcessed
	})).Return("Sam enjoys hiking.", nil).Once()

	q := NewQueryAssistant(env.memories, ai, nil, zap.NewNop())

	msg, err := q.Ask(context.Background(), "   ")
	assert.NoError(t, err)
	assert.Nil(t, msg)
	assert.Empty(t, q.Messages())

	msg, err = q.Ask(context.Background(), "what does Sam enjoy hiking")
	require.NoError(t, err)
	assert.Equal(t, "Sam enjoys hiking.", msg.Text)
	assert.False(t, msg.IsUser)
	require.Len(t, msg.SourceMemories, 1)
	assert.Equal(t, "Sam loves hiking", msg.SourceMemories[0].RawInput)

	messages := q.Messages()
	require.Len(t, messages, 2)
	assert.True(t, messages[0].IsUser)
	assert.Empty(t, q.LastError())
	ai.AssertExpectations(t)
}

func TestQueryAssistant_AskFailure(t *testing.T) {
	env := newTestEnv(t)
	ai := &mockAssistant{}
	ai.On("Answer", mock.Anything, "anything there", mock.Anything).
		Return("", errors.New("Query failed: gemini returned status 503")).Once()

	q := NewQueryAssistant(env.memories, ai, nil, zap.NewNop())
	msg, err := q.Ask(context.Background(), "anything there")
	require.Error(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "Sorry, I couldn't process your question.", msg.Text)
	assert.Equal(t, "AI Error: Query failed: gemini returned status 503", q.LastError())

	snap := q.Snapshot()
	assert.Len(t, snap.Messages, 2)
	assert.False(t, snap.Loading)

	q.ClearError()
	assert.Empty(t, q.LastError())
	q.ClearChat()
	assert.Empty(t, q.Messages())
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) { return s.vec, s.err }
func (s stubEmbedder) GetModel() string                                 { return "stub" }

func TestSemanticSources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedPerson(t, "Sam", t0)
	hiking := env.seedMemory(t, p.ID, "Sam loves hiking", "Outdoors", t0)
	cooking := env.seedMemory(t, p.ID, "Sam cooks risotto", "Food", t0)
	require.NoError(t, env.store.StoreEmbedding(ctx, hiking.ID, []float32{1, 0}, "stub"))
	require.NoError(t, env.store.StoreEmbedding(ctx, cooking.ID, []float32{0, 1}, "stub"))

	memories, err := env.memories.ProcessedMemories(ctx)
	require.NoError(t, err)

	sel := NewSemanticSources(stubEmbedder{vec: []float32{0.1, 0.9}}, env.store, zap.NewNop())
	got := sel.Select(ctx, "what food", memories)
	require.NotEmpty(t, got)
	assert.Equal(t, cooking.ID, got[0].ID)

	fallback := NewSemanticSources(stubEmbedder{err: errors.New("offline")}, env.store, zap.NewNop())
	assert.Equal(t, []string{hiking.ID}, ids(fallback.Select(ctx, "hiking trips", memories)))
}

var _ storage.EmbeddingStore = (*failingEmbeddings)(nil)

type failingEmbeddings struct{}

func (failingEmbeddings) StoreEmbedding(context.Context, string, []float32, string) error {
	return errors.New("down")
}
func (failingEmbeddings) GetEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("down")
}
func (failingEmbeddings) NearestMemories(context.Context, []float32, int) ([]storage.ScoredID, error) {
	return nil, errors.New("down")
}

func TestSemanticSources_StoreFailureFallsBack(t *testing.T) {
	memories := []types.Memory{memo("m1", "garden party", "", "")}
	sel := NewSemanticSources(stubEmbedder{vec: []float32{1}}, failingEmbeddings{}, zap.NewNop())
	assert.Equal(t, []string{"m1"}, ids(sel.Select(context.Background(), "garden", memories)))
}

func TestQueryAssistant_LastErrorHidesAPIKey(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedPerson(t, "Sam", t0)
	env.seedMemory(t, p.ID, "Sam loves hiking", "Outdoors", t0)

	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	gen := llm.NewGeminiClient(llm.GeminiConfig{APIKey: "SUPERSECRETKEY", BaseURL: baseURL})
	q := NewQueryAssistant(env.memories, llm.NewAssistant(gen), nil, zap.NewNop())

	_, err := q.Ask(context.Background(), "what does Sam enjoy")
	require.Error(t, err)
	assert.Contains(t, q.LastError(), "AI Error: Query failed")
	assert.NotContains(t, q.LastError(), "SUPERSECRETKEY")
	assert.NotContains(t, err.Error(), "SUPERSECRETKEY")
}
