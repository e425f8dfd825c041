package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/companion/pkg/types"
)

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = 30 * time.Minute

// SessionRegistry keeps the capture sessions and conversations of HTTP
// clients in memory. Entries idle for longer than the TTL are pruned.
type SessionRegistry struct {
	persons   *PersonService
	memories  *MemoryService
	assistant Assistant
	sources   SourceSelector
	ttl       time.Duration
	logger    *zap.Logger

	mu            sync.Mutex
	captures      map[string]*CaptureSession
	conversations map[string]*QueryAssistant
}

// NewSessionRegistry creates a registry. A ttl <= 0 uses DefaultSessionTTL.
func NewSessionRegistry(persons *PersonService, memories *MemoryService, assistant Assistant, sources SourceSelector, ttl time.Duration, logger *zap.Logger) *SessionRegistry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRegistry{
		persons:       persons,
		memories:      memories,
		assistant:     assistant,
		sources:       sources,
		ttl:           ttl,
		logger:        logger,
		captures:      make(map[string]*CaptureSession),
		conversations: make(map[string]*QueryAssistant),
	}
}

// NewCapture creates and registers a capture session. When personID is set
// it is selected instead of the most recent person.
func (r *SessionRegistry) NewCapture(ctx context.Context, personID string) (*CaptureSession, error) {
	s := NewCaptureSession(ctx, r.persons, r.memories, r.assistant, r.logger)
	if personID != "" {
		if err := s.SelectPerson(ctx, personID); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	r.captures[s.ID()] = s
	r.mu.Unlock()
	return s, nil
}

// Capture returns a registered capture session.
func (r *SessionRegistry) Capture(id string) (*CaptureSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.captures[id]
	return s, ok
}

// RemoveCapture drops a capture session. It reports whether it existed.
func (r *SessionRegistry) RemoveCapture(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.captures[id]
	delete(r.captures, id)
	return ok
}

// NewConversation creates and registers a conversation.
func (r *SessionRegistry) NewConversation() *QueryAssistant {
	q := NewQueryAssistant(r.memories, r.assistant, r.sources, r.logger)

	r.mu.Lock()
	r.conversations[q.ID()] = q
	r.mu.Unlock()
	return q
}

// Conversation returns a registered conversation.
func (r *SessionRegistry) Conversation(id string) (*QueryAssistant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.conversations[id]
	return q, ok
}

// RemoveConversation drops a conversation. It reports whether it existed.
func (r *SessionRegistry) RemoveConversation(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conversations[id]
	delete(r.conversations, id)
	return ok
}

// Len returns the number of capture sessions and conversations.
func (r *SessionRegistry) Len() (captures, conversations int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.captures), len(r.conversations)
}

// Prune removes entries idle since before now minus the TTL and returns how
// many were removed.
func (r *SessionRegistry) Prune(now time.Time) int {
	cutoff := now.Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.captures {
		if s.LastActive().Before(cutoff) {
			delete(r.captures, id)
			removed++
		}
	}
	for id, q := range r.conversations {
		if q.LastActive().Before(cutoff) {
			delete(r.conversations, id)
			removed++
		}
	}
	return removed
}

// Run prunes stale entries every interval until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Prune(now); n > 0 {
				r.logger.Debug("pruned idle sessions", zap.Int("removed", n))
			}
		}
	}
}

// Notify implements Notifier. A deleted person moves capture sessions that
// selected them to the newest remaining person.
func (r *SessionRegistry) Notify(event types.Event) {
	if event.Type != types.EventPersonDeleted {
		return
	}

	r.mu.Lock()
	sessions := make([]*CaptureSession, 0, len(r.captures))
	for _, s := range r.captures {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, s := range sessions {
			s.PersonDeleted(ctx, event.PersonID)
		}
	}()
}
