package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("Ollama should not send Authorization header")
		}

		var req openaiRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "llama3:8b" {
			t.Errorf("model = %q, want default", req.Model)
		}
		_ = json.NewEncoder(w).Encode(chatReply("Ollama response", "llama3:8b", 5, 10))
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL)
	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Ollama response" {
		t.Errorf("content = %q, want %q", resp.Content, "Ollama response")
	}
	if resp.InputTokens != 5 {
		t.Errorf("input_tokens = %d, want 5", resp.InputTokens)
	}
}

func TestOllamaProvider_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`model not loaded`))
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL)
	if _, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	}); err == nil {
		t.Fatal("Complete() should return error on API error")
	}
}

func TestOllamaProvider_Embed(t *testing.T) {
	var got ollamaEmbeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"embedding":[1,0,0.25]}`))
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, WithOllamaEmbeddingModel("mxbai-embed-large"))
	v, err := provider.Embed(context.Background(), "torque")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(v) != 3 || v[2] != 0.25 {
		t.Errorf("Embed() = %v", v)
	}
	if got.Model != "mxbai-embed-large" || got.Prompt != "torque" {
		t.Errorf("request = %+v", got)
	}

	if NewOllamaProvider(server.URL, WithOllamaEmbeddingModel("")).embeddingModel != defaultOllamaEmbeddingModel {
		t.Error("empty embedding model should keep the default")
	}
}

func TestOllamaProvider_Embed_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[]}`))
	}))
	defer server.Close()

	if _, err := NewOllamaProvider(server.URL).Embed(context.Background(), "x"); err == nil {
		t.Error("Embed() should fail on an empty vector")
	}
}

func TestOllamaProvider_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := server.Client()
	if err := NewOllamaProvider(server.URL, WithOllamaHTTPClient(client)).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	server.Close()
	if err := NewOllamaProvider(server.URL).HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail when the server is down")
	}
}
