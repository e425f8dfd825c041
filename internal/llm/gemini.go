package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultGeminiBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultGeminiEmbeddingModel = "text-embedding-004"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey          string
	Model           string        // default: gemini-2.5-flash
	BaseURL         string        // default: https://generativelanguage.googleapis.com/v1beta
	Timeout         time.Duration // default: 60s
	Temperature     float64       // default: 0.7
	MaxOutputTokens int           // default: 1000
	Logger          *zap.Logger
}

// GeminiClient implements TextGenerator using the Gemini generateContent API.
type GeminiClient struct {
	cfg            GeminiConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewGeminiClient creates a new Gemini client with the given configuration.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 1000
	}
	return &GeminiClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewCircuitBreaker("gemini", cfg.Logger),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// geminiGenerateRequest is the request body for models/{model}:generateContent.
type geminiGenerateRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

// geminiGenerateResponse is the response body of generateContent.
type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// text returns the first part of the first candidate, or "".
func (r *geminiGenerateResponse) text() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}

// Complete sends a single-turn prompt to Gemini and returns the response text.
// A response without candidates yields an empty string, not an error.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return guard(ctx, c.circuitBreaker, func() (string, error) {
		return c.complete(ctx, prompt)
	})
}

func (c *GeminiClient) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := geminiGenerateRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
		},
	}

	var respData geminiGenerateResponse
	endpoint := geminiEndpoint(c.cfg.BaseURL, c.cfg.Model, "generateContent")
	if err := postJSON(ctx, c.client, "gemini", endpoint, reqBody, &respData, geminiKeyHeader, c.cfg.APIKey); err != nil {
		return "", err
	}
	return respData.text(), nil
}

// GetModel returns the configured model name.
func (c *GeminiClient) GetModel() string {
	return c.cfg.Model
}

var _ TextGenerator = (*GeminiClient)(nil)

// GeminiEmbeddingConfig holds configuration for the Gemini embedding client.
type GeminiEmbeddingConfig struct {
	APIKey  string
	Model   string        // default: text-embedding-004
	BaseURL string        // default: https://generativelanguage.googleapis.com/v1beta
	Timeout time.Duration // default: 30s
	Logger  *zap.Logger
}

// GeminiEmbeddingClient implements EmbeddingGenerator using embedContent.
type GeminiEmbeddingClient struct {
	cfg            GeminiEmbeddingConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewGeminiEmbeddingClient creates a new Gemini embedding client.
func NewGeminiEmbeddingClient(cfg GeminiEmbeddingConfig) *GeminiEmbeddingClient {
	if cfg.Model == "" {
		cfg.Model = defaultGeminiEmbeddingModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &GeminiEmbeddingClient{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: NewCircuitBreaker("gemini-embedding", cfg.Logger),
	}
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed generates an embedding vector for the given text.
func (c *GeminiEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return guard(ctx, c.circuitBreaker, func() ([]float32, error) {
		return c.embed(ctx, text)
	})
}

func (c *GeminiEmbeddingClient) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := geminiEmbedRequest{
		Model:   "models/" + c.cfg.Model,
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	}

	var respData geminiEmbedResponse
	endpoint := geminiEndpoint(c.cfg.BaseURL, c.cfg.Model, "embedContent")
	if err := postJSON(ctx, c.client, "gemini", endpoint, reqBody, &respData, geminiKeyHeader, c.cfg.APIKey); err != nil {
		return nil, err
	}
	if len(respData.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini returned empty embedding")
	}
	return respData.Embedding.Values, nil
}

// GetModel returns the configured model name.
func (c *GeminiEmbeddingClient) GetModel() string {
	return c.cfg.Model
}

var _ EmbeddingGenerator = (*GeminiEmbeddingClient)(nil)

// geminiKeyHeader carries the API key so it never appears in a request URL.
const geminiKeyHeader = "x-goog-api-key"

func geminiEndpoint(baseURL, model, method string) string {
	return fmt.Sprintf("%s/models/%s:%s", baseURL, model, method)
}

// postJSON POSTs body as JSON and decodes a 200 response into out. Any other
// status is returned as an error carrying the provider name and body.
// Transport errors drop the request URL, which can hold credentials.
func postJSON(ctx context.Context, client *http.Client, provider, endpoint string, body, out interface{}, headers ...string) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("failed to send request to %s: %w", provider, urlErr.Err)
		}
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned status %d: %s", provider, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
