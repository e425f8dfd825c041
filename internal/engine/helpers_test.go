package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/storage/sqlite"
	"github.com/scrypster/companion/pkg/types"
)

// mockAssistant is a testify mock of the AI surface.
type mockAssistant struct {
	mock.Mock
}

func (m *mockAssistant) Analyze(ctx context.Context, text string) (types.Analysis, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(types.Analysis), args.Error(1)
}

func (m *mockAssistant) Answer(ctx context.Context, question string, memories []types.Memory) (string, error) {
	args := m.Called(ctx, question, memories)
	return args.String(0), args.Error(1)
}

// eventRecorder collects notified events.
type eventRecorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *eventRecorder) Notify(e types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) Types() []types.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeQueue records enqueued memory IDs.
type fakeQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *fakeQueue) Enqueue(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return true
}

func (q *fakeQueue) IDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.ids...)
}

type testEnv struct {
	store    *sqlite.Store
	persons  *PersonService
	memories *MemoryService
	events   *eventRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	events := &eventRecorder{}
	return &testEnv{
		store:    store,
		persons:  NewPersonService(store, events, zap.NewNop()),
		memories: NewMemoryService(store, events, zap.NewNop()),
		events:   events,
	}
}

// seedPerson stores a person with a fixed creation time.
func (env *testEnv) seedPerson(t *testing.T, name string, createdAt time.Time) *types.Person {
	t.Helper()
	p := types.NewPerson(name, nil)
	p.CreatedAt = createdAt
	require.NoError(t, env.store.CreatePerson(context.Background(), p))
	return p
}

// seedMemory stores a memory with a fixed creation time, processed when a
// topic is given.
func (env *testEnv) seedMemory(t *testing.T, personID, raw, topic string, createdAt time.Time) *types.Memory {
	t.Helper()
	m := types.NewUnprocessedMemory(personID, raw)
	m.CreatedAt = createdAt
	if topic != "" {
		m = m.WithAnalysis(types.Analysis{Topic: topic, Summary: raw})
	}
	require.NoError(t, env.store.CreateMemory(context.Background(), m))
	return m
}

func sampleAnalysis() types.Analysis {
	emotion := "happy"
	return types.Analysis{
		Topic:       "Birthday Plans",
		Emotion:     &emotion,
		ActionItems: []string{"buy a cake"},
		KeyDetails:  []string{"turning 30"},
		Summary:     "Sam's birthday is next week.",
	}
}

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
