package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/companion/pkg/types"
)

var (
	// ErrEmptyResponse is returned when the model answers an analysis
	// request with no text.
	ErrEmptyResponse = errors.New("Empty response from AI")

	// ErrNoResponse is returned when the model answers a question with
	// blank text.
	ErrNoResponse = errors.New("No response from AI")
)

// CallObserver is notified after every model call. op is "analyze" or
// "query".
type CallObserver func(op string, elapsed time.Duration, err error)

// Assistant turns memory texts into analyses and questions into answers
// using a TextGenerator.
type Assistant struct {
	gen      TextGenerator
	cache    *AnalysisCache
	logger   *zap.Logger
	observer CallObserver
	onCache  func(hit bool)
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithAnalysisCache memoizes analyses in cache.
func WithAnalysisCache(cache *AnalysisCache) AssistantOption {
	return func(a *Assistant) { a.cache = cache }
}

// WithLogger sets the assistant logger.
func WithLogger(logger *zap.Logger) AssistantOption {
	return func(a *Assistant) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithCallObserver registers fn to observe model calls.
func WithCallObserver(fn CallObserver) AssistantOption {
	return func(a *Assistant) { a.observer = fn }
}

// WithCacheObserver registers fn to observe analysis cache lookups. It is
// only called when a cache is configured.
func WithCacheObserver(fn func(hit bool)) AssistantOption {
	return func(a *Assistant) { a.onCache = fn }
}

// NewAssistant creates an Assistant over gen.
func NewAssistant(gen TextGenerator, opts ...AssistantOption) *Assistant {
	a := &Assistant{gen: gen, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Model returns the model name of the underlying generator.
func (a *Assistant) Model() string {
	return a.gen.GetModel()
}

// Analyze extracts a structured analysis from text. A reply that is not
// valid JSON yields an empty analysis without error.
func (a *Assistant) Analyze(ctx context.Context, text string) (types.Analysis, error) {
	cached, hit := a.cache.Get(text)
	if a.cache != nil && a.onCache != nil {
		a.onCache(hit)
	}
	if hit {
		a.logger.Debug("analysis cache hit")
		return cached, nil
	}

	start := time.Now()
	reply, err := a.gen.Complete(ctx, BuildAnalysisPrompt(text))
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyResponse
	}
	a.observe("analyze", start, err)

	if errors.Is(err, ErrEmptyResponse) {
		return types.Analysis{}, err
	}
	if err != nil {
		return types.Analysis{}, fmt.Errorf("AI analysis failed: %w", err)
	}

	analysis, ok := ParseAnalysis(reply)
	if !ok {
		a.logger.Debug("failed to parse AI response", zap.String("reply", reply))
		return analysis, nil
	}
	a.cache.Set(text, analysis)
	return analysis, nil
}

// Answer answers question using only the given memories.
func (a *Assistant) Answer(ctx context.Context, question string, memories []types.Memory) (string, error) {
	start := time.Now()
	reply, err := a.gen.Complete(ctx, BuildQueryPrompt(question, memories))
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrNoResponse
	}
	a.observe("query", start, err)

	if errors.Is(err, ErrNoResponse) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("Query failed: %w", err)
	}
	return reply, nil
}

func (a *Assistant) observe(op string, start time.Time, err error) {
	if a.observer != nil {
		a.observer(op, time.Since(start), err)
	}
}
