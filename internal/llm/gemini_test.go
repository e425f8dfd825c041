package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiClient_Complete(t *testing.T) {
	var got geminiGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.RawQuery)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello there"}]}}]}`))
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: server.URL})
	text, err := client.Complete(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)

	require.Len(t, got.Contents, 1)
	assert.Equal(t, "say hi", got.Contents[0].Parts[0].Text)
	assert.Equal(t, 0.7, got.GenerationConfig.Temperature)
	assert.Equal(t, 1000, got.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, "gemini-2.5-flash", client.GetModel())
}

func TestGeminiClient_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{BaseURL: server.URL})
	text, err := client.Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestGeminiClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{BaseURL: server.URL})
	_, err := client.Complete(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini returned status 403")
}

func TestGeminiClient_CircuitOpensAfterFailures(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{BaseURL: server.URL})
	for i := 0; i < 3; i++ {
		_, err := client.Complete(context.Background(), "x")
		require.Error(t, err)
	}

	_, err := client.Complete(context.Background(), "x")
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "gemini circuit breaker open")
	assert.Equal(t, 3, calls)
}

func TestGeminiEmbeddingClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/text-embedding-004:embedContent", r.URL.Path)
		var req geminiEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "models/text-embedding-004", req.Model)
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.1,0.2]}}`))
	}))
	defer server.Close()

	client := NewGeminiEmbeddingClient(GeminiEmbeddingConfig{BaseURL: server.URL})
	vec, err := client.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestGeminiClient_TransportErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client := NewGeminiClient(GeminiConfig{APIKey: "SUPERSECRETKEY", BaseURL: baseURL})
	_, err := client.Complete(context.Background(), "x")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SUPERSECRETKEY")
	assert.NotContains(t, err.Error(), baseURL)
	assert.Contains(t, err.Error(), "failed to send request to gemini")
}
