package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func newTestOpenAIEmbedder(t *testing.T, handler http.HandlerFunc) *OpenAIEmbedder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(config),
		model:  string(openai.SmallEmbedding3),
	}
}

func TestOpenAIEmbedder_HappyPath(t *testing.T) {
	var gotInput []string
	handler := func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotInput = body.Input

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  body.Model,
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float32{0, 1}},
				{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
			},
			"usage": map[string]any{"prompt_tokens": 4, "total_tokens": 4},
		})
	}
	e := newTestOpenAIEmbedder(t, handler)

	vecs, err := e.Embed(context.Background(), []string{"cat", "dog"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotInput) != 2 || gotInput[0] != "cat" {
		t.Errorf("request input = %v", gotInput)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors not ordered by index: %v", vecs)
	}
}

func TestOpenAIEmbedder_RateLimit(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit_error"},
		})
	}
	e := newTestOpenAIEmbedder(t, handler)

	_, err := e.Embed(context.Background(), []string{"cat"})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got %T: %v", err, err)
	}
}

func TestOpenAIEmbedder_CountMismatch(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": []float32{1}}},
		})
	}
	e := newTestOpenAIEmbedder(t, handler)

	_, err := e.Embed(context.Background(), []string{"a", "b"})
	var bad *ErrBadResponse
	if !errors.As(err, &bad) {
		t.Fatalf("expected ErrBadResponse, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Provider = "openai"
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing key error")
	}
	cfg.Provider = "anthropic"
	if err := cfg.Validate(); err == nil {
		t.Error("expected unknown provider error")
	}
}

func TestNewEmbedder_None(t *testing.T) {
	e, err := NewEmbedder(context.Background(), DefaultConfig(), nil)
	if err != nil || e != nil {
		t.Fatalf("got %v, %v; want nil, nil", e, err)
	}
}
