package embedding

import (
	"context"
	"hash/fnv"
	"sync"
)

// MockResponse is a canned response for the MockEmbedder.
type MockResponse struct {
	Vectors [][]float32
	Err     error
}

// MockEmbedder is a deterministic Embedder for testing. Canned responses
// are returned in FIFO order; once the queue is empty it derives vectors
// from a hash of each text, so equal texts get equal vectors.
type MockEmbedder struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     [][]string

	// Dims is the size of derived vectors. Default: 8.
	Dims int
}

// NewMockEmbedder creates a MockEmbedder with the given canned responses.
func NewMockEmbedder(responses ...MockResponse) *MockEmbedder {
	return &MockEmbedder{responses: responses, Dims: 8}
}

func (m *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, texts)

	if len(m.responses) > 0 {
		resp := m.responses[0]
		m.responses = m.responses[1:]
		if resp.Err != nil {
			return nil, resp.Err
		}
		return resp.Vectors, nil
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, m.Dims)
	}
	return out, nil
}

// ModelID returns "mock".
func (m *MockEmbedder) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockEmbedder) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Embed calls made.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func hashVector(text string, dims int) []float32 {
	if dims <= 0 {
		dims = 8
	}
	vec := make([]float32, dims)
	for i := range vec {
		h := fnv.New32a()
		h.Write([]byte{byte(i)})
		h.Write([]byte(text))
		vec[i] = float32(h.Sum32()%2000)/1000 - 1
	}
	return vec
}
