package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	defaultOllamaModel          = "llama3:8b"
	defaultOllamaEmbeddingModel = "nomic-embed-text"
)

// OllamaProvider implements Provider and Embedder for self-hosted Ollama.
// Completions go through the OpenAI-compatible /v1/chat/completions endpoint,
// embeddings through the native /api/embeddings endpoint.
type OllamaProvider struct {
	baseURL        string
	client         *http.Client
	embeddingModel string
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithOllamaHTTPClient sets a custom HTTP client.
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(p *OllamaProvider) {
		p.client = client
	}
}

// WithOllamaEmbeddingModel sets the model used by Embed.
func WithOllamaEmbeddingModel(model string) OllamaOption {
	return func(p *OllamaProvider) {
		if model != "" {
			p.embeddingModel = model
		}
	}
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(baseURL string, opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		baseURL:        baseURL,
		client:         http.DefaultClient,
		embeddingModel: defaultOllamaEmbeddingModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultOllamaModel
	}

	var resp openaiResponse
	if err := postJSON(ctx, p.client, p.baseURL+"/v1/chat/completions", nil, toOpenAIRequest(model, req), &resp); err != nil {
		return CompletionResponse{}, fmt.Errorf("ollama: %w", err)
	}
	return fromOpenAIResponse(resp)
}

// Embed returns the embedding of text.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaEmbeddingResponse
	body := ollamaEmbeddingRequest{Model: p.embeddingModel, Prompt: text}
	if err := postJSON(ctx, p.client, p.baseURL+"/api/embeddings", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("ollama embed: empty embedding in response")
	}
	return resp.Embedding, nil
}

func (p *OllamaProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: defaultOllamaModel, Name: "Llama 3 8B", MaxTokens: 8192, Description: "Free self-hosted model via Ollama"},
	}
}

func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	return getOK(ctx, p.client, p.baseURL+"/api/tags", nil)
}
