package engine

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/llm"
	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

const (
	// MaxSourceMemories is the number of memories shown next to an answer.
	MaxSourceMemories = 3

	// queryApology is the assistant reply recorded when a question fails.
	queryApology = "Sorry, I couldn't process your question."
)

// SourceSelector picks the memories shown as the sources of an answer.
type SourceSelector interface {
	Select(ctx context.Context, question string, memories []types.Memory) []types.Memory
}

// SourceSelectorFunc adapts a function to SourceSelector.
type SourceSelectorFunc func(ctx context.Context, question string, memories []types.Memory) []types.Memory

// Select calls f.
func (f SourceSelectorFunc) Select(ctx context.Context, question string, memories []types.Memory) []types.Memory {
	return f(ctx, question, memories)
}

// KeywordSources returns up to three memories, in the given order, whose
// text contains any word of the question longer than three characters.
func KeywordSources(question string, memories []types.Memory) []types.Memory {
	var keywords []string
	for _, word := range strings.Split(strings.ToLower(question), " ") {
		if utf8.RuneCountInString(word) > 3 {
			keywords = append(keywords, word)
		}
	}

	matches := make([]types.Memory, 0, MaxSourceMemories)
	if len(keywords) == 0 {
		return matches
	}
	for i := range memories {
		text := memories[i].SearchText()
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				matches = append(matches, memories[i])
				break
			}
		}
		if len(matches) == MaxSourceMemories {
			break
		}
	}
	return matches
}

// KeywordSelector selects sources with KeywordSources.
var KeywordSelector SourceSelector = SourceSelectorFunc(func(_ context.Context, question string, memories []types.Memory) []types.Memory {
	return KeywordSources(question, memories)
})

// SemanticSources ranks memories by embedding similarity to the question.
// Any failure falls back to keyword selection.
type SemanticSources struct {
	embedder llm.EmbeddingGenerator
	store    storage.EmbeddingStore
	logger   *zap.Logger
}

// NewSemanticSources creates a semantic selector.
func NewSemanticSources(embedder llm.EmbeddingGenerator, store storage.EmbeddingStore, logger *zap.Logger) *SemanticSources {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticSources{embedder: embedder, store: store, logger: logger}
}

// Select implements SourceSelector.
func (s *SemanticSources) Select(ctx context.Context, question string, memories []types.Memory) []types.Memory {
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		s.logger.Debug("question embedding failed, using keywords", zap.Error(err))
		return KeywordSources(question, memories)
	}

	byID := make(map[string]types.Memory, len(memories))
	for _, m := range memories {
		byID[m.ID] = m
	}

	// Over-fetch: unprocessed or foreign memories may rank high.
	nearest, err := s.store.NearestMemories(ctx, vec, MaxSourceMemories*4)
	if err != nil {
		s.logger.Debug("nearest memory lookup failed, using keywords", zap.Error(err))
		return KeywordSources(question, memories)
	}

	picked := make([]types.Memory, 0, MaxSourceMemories)
	for _, hit := range nearest {
		if m, ok := byID[hit.MemoryID]; ok {
			picked = append(picked, m)
			if len(picked) == MaxSourceMemories {
				break
			}
		}
	}
	if len(picked) == 0 {
		return KeywordSources(question, memories)
	}
	return picked
}

// ConversationSnapshot is a point-in-time copy of a conversation.
type ConversationSnapshot struct {
	ID        string              `json:"id"`
	Messages  []types.ChatMessage `json:"messages"`
	Loading   bool                `json:"loading"`
	LastError string              `json:"last_error,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// QueryAssistant holds one chat conversation over the stored memories.
type QueryAssistant struct {
	id       string
	memories *MemoryService
	answerer Answerer
	sources  SourceSelector
	logger   *zap.Logger

	mu       sync.Mutex
	messages []types.ChatMessage
	inFlight int
	lastErr  string
	touched  time.Time
}

// NewQueryAssistant creates an empty conversation. A nil selector uses
// keyword selection.
func NewQueryAssistant(memories *MemoryService, answerer Answerer, sources SourceSelector, logger *zap.Logger) *QueryAssistant {
	if sources == nil {
		sources = KeywordSelector
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryAssistant{
		id:       uuid.New().String(),
		memories: memories,
		answerer: answerer,
		sources:  sources,
		logger:   logger,
		touched:  time.Now(),
	}
}

// ID returns the conversation identifier.
func (q *QueryAssistant) ID() string { return q.id }

// Ask answers a question from the processed memories and records both sides
// of the exchange. A blank question is ignored and returns nil. A failure is
// recorded in the transcript and in LastError; the error is also returned.
func (q *QueryAssistant) Ask(ctx context.Context, question string) (*types.ChatMessage, error) {
	if strings.TrimSpace(question) == "" {
		return nil, nil
	}

	q.mu.Lock()
	q.messages = append(q.messages, types.NewUserMessage(question))
	q.inFlight++
	q.lastErr = ""
	q.touched = time.Now()
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.inFlight--
		q.mu.Unlock()
	}()

	memories, err := q.memories.ProcessedMemories(ctx)
	if err != nil {
		return q.failed(err.Error()+": "+Cause(err).Error(), err)
	}

	answer, err := q.answerer.Answer(ctx, question, memories)
	if err != nil {
		q.logger.Warn("query failed", zap.String("conversation_id", q.id), zap.Error(err))
		return q.failed("AI Error: "+err.Error(), err)
	}

	reply := types.NewAssistantMessage(answer, q.sources.Select(ctx, question, memories))

	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, reply)
	q.touched = time.Now()
	return &reply, nil
}

func (q *QueryAssistant) failed(msg string, err error) (*types.ChatMessage, error) {
	reply := types.NewAssistantMessage(queryApology, nil)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.lastErr = msg
	q.messages = append(q.messages, reply)
	q.touched = time.Now()
	return &reply, err
}

// Messages returns a copy of the transcript.
func (q *QueryAssistant) Messages() []types.ChatMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]types.ChatMessage{}, q.messages...)
}

// LastError returns the message of the last failed question, if any.
func (q *QueryAssistant) LastError() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastErr
}

// ClearChat empties the transcript.
func (q *QueryAssistant) ClearChat() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = nil
	q.touched = time.Now()
}

// ClearError forgets the last error.
func (q *QueryAssistant) ClearError() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lastErr = ""
	q.touched = time.Now()
}

// LastActive returns the time of the last interaction.
func (q *QueryAssistant) LastActive() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.touched
}

// Snapshot returns a copy of the conversation state.
func (q *QueryAssistant) Snapshot() ConversationSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return ConversationSnapshot{
		ID:        q.id,
		Messages:  append([]types.ChatMessage{}, q.messages...),
		Loading:   q.inFlight > 0,
		LastError: q.lastErr,
		UpdatedAt: q.touched,
	}
}
