package embedding

import "context"

// Embedder turns texts into semantic vectors. The i-th vector of the
// result belongs to texts[i].
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// ModelID returns the model identifier this embedder is configured to use.
	ModelID() string
}

// resolveModel maps a friendly name to a model ID.
// If the name is not in the map, it is returned as-is.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
