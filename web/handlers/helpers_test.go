package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/internal/importer"
	"github.com/scrypster/companion/internal/services"
	"github.com/scrypster/companion/internal/storage/sqlite"
	"github.com/scrypster/companion/pkg/types"
	"github.com/scrypster/companion/web/handlers"
)

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

type fixedQueue int

func (q fixedQueue) QueueLength() int { return int(q) }

type testAPI struct {
	router   chi.Router
	store    *sqlite.Store
	persons  *engine.PersonService
	memories *engine.MemoryService
	ai       *mockAssistant
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store, err := sqlite.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	persons := engine.NewPersonService(store, nil, nil)
	memories := engine.NewMemoryService(store, nil, nil)
	ai := &mockAssistant{}
	sessions := engine.NewSessionRegistry(persons, memories, ai, nil, time.Minute, nil)

	api := handlers.NewAPIHandlers(handlers.Deps{
		Persons:   persons,
		Memories:  memories,
		Directory: engine.NewDirectory(persons, memories, nil),
		Sessions:  sessions,
		Analyzer:  ai,
		Settings:  services.NewSettingsService(store, config.Default(), nil),
		Queue:     fixedQueue(3),
	})
	imports := handlers.NewImportHandlers(importer.NewJournalImporter(persons, memories, nil), nil)

	r := chi.NewRouter()
	r.Get("/health", handlers.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/persons", api.ListPersons)
		r.Post("/persons", api.CreatePerson)
		r.Get("/persons/{id}", api.GetPerson)
		r.Patch("/persons/{id}", api.UpdatePerson)
		r.Delete("/persons/{id}", api.DeletePerson)

		r.Get("/memories", api.ListMemories)
		r.Post("/memories", api.CreateMemory)
		r.Get("/memories/{id}", api.GetMemory)
		r.Patch("/memories/{id}", api.UpdateMemory)
		r.Delete("/memories/{id}", api.DeleteMemory)
		r.Post("/memories/{id}/analyze", api.ReanalyzeMemory)
		r.Post("/analyze", api.Analyze)

		r.Post("/captures", api.NewCapture)
		r.Get("/captures/{id}", api.GetCapture)
		r.Put("/captures/{id}/person", api.SetCapturePerson)
		r.Put("/captures/{id}/text", api.SetCaptureText)
		r.Post("/captures/{id}/analyze", api.AnalyzeCapture)
		r.Put("/captures/{id}/analysis", api.UpdateCaptureAnalysis)
		r.Post("/captures/{id}/save", api.SaveCapture)
		r.Post("/captures/{id}/discard", api.DiscardCapture)
		r.Delete("/captures/{id}", api.DeleteCapture)

		r.Post("/conversations", api.NewConversation)
		r.Get("/conversations/{id}", api.GetConversation)
		r.Post("/conversations/{id}/messages", api.Ask)
		r.Delete("/conversations/{id}/messages", api.ClearConversation)
		r.Delete("/conversations/{id}/error", api.ClearConversationError)
		r.Delete("/conversations/{id}", api.DeleteConversation)

		r.Get("/search", api.Search)
		r.Get("/stats", api.GetStats)
		r.Get("/config/user", api.GetUserConfig)
		r.Post("/config/user", api.PostUserConfig)

		r.Post("/import", imports.PostImport)
		r.Get("/import/{job_id}", imports.GetImportStatus)
	})

	return &testAPI{router: r, store: store, persons: persons, memories: memories, ai: ai}
}

// do sends a request with an optional JSON body and returns the recorder.
func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (a *testAPI) seedPerson(t *testing.T, name string) *types.Person {
	t.Helper()
	p, err := a.persons.CreatePerson(context.Background(), name, nil)
	require.NoError(t, err)
	return p
}

func (a *testAPI) seedMemory(t *testing.T, personID, raw string, analysis *types.Analysis) *types.Memory {
	t.Helper()
	m := types.NewUnprocessedMemory(personID, raw)
	if analysis != nil {
		m = m.WithAnalysis(*analysis)
	}
	require.NoError(t, a.store.CreateMemory(context.Background(), m))
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
