package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Router tries registered providers in registration order until one succeeds.
type Router struct {
	providers map[string]Provider
	fallback  []string
	model     string
	maxTokens int
	mu        sync.RWMutex
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithGenerateModel sets the model requested by Generate. Empty lets each provider choose.
func WithGenerateModel(model string) RouterOption {
	return func(r *Router) {
		r.model = model
	}
}

// WithGenerateMaxTokens caps the output length requested by Generate.
func WithGenerateMaxTokens(n int) RouterOption {
	return func(r *Router) {
		r.maxTokens = n
	}
}

// NewRouter creates a new AI router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		providers: make(map[string]Provider),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a provider to the end of the fallback chain.
// Registering an existing name replaces the provider and keeps its position.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		r.fallback = append(r.fallback, name)
	}
	r.providers[name] = provider
}

// Complete routes a request to the first provider that answers.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var lastErr error
	for _, name := range r.fallback {
		if err := ctx.Err(); err != nil {
			return CompletionResponse{}, err
		}

		resp, err := r.providers[name].Complete(ctx, req)
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", name,
				"error", err,
			)
			lastErr = err
			continue
		}

		slog.Debug("AI request completed",
			"provider", name,
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	if lastErr == nil {
		return CompletionResponse{}, fmt.Errorf("%w: none registered", ErrNoProvider)
	}
	return CompletionResponse{}, fmt.Errorf("%w: all providers failed, last: %w", ErrNoProvider, lastErr)
}

// Generate sends prompt as a single user message and returns the reply text.
// It satisfies docproc.Generator.
func (r *Router) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := r.Complete(ctx, CompletionRequest{
		Messages:  []Message{{Role: "user", Content: prompt}},
		Model:     r.model,
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}
