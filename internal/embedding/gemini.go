package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// geminiModels maps friendly names to Gemini embedding model IDs.
var geminiModels = map[string]string{
	"gemini-embedding": "gemini-embedding-001",
}

// GeminiEmbedder implements Embedder using the Google GenAI SDK.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates a new Gemini embedder.
func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return &GeminiEmbedder{
		client: client,
		model:  resolveModel(cfg.Model, geminiModels),
	}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, mapGeminiError(err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, &ErrBadResponse{Want: len(texts), Got: len(result.Embeddings)}
	}

	out := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if emb != nil {
			out[i] = emb.Values
		}
	}
	return out, nil
}

func (e *GeminiEmbedder) ModelID() string {
	return e.model
}

func mapGeminiError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return &ErrRateLimit{Err: err}
		case apiErr.Code >= 500:
			return &ErrProviderUnavailable{Err: err}
		case apiErr.Code >= 400:
			return err
		}
	}
	return &ErrProviderUnavailable{Err: err}
}
