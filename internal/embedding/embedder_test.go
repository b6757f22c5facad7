package embedding

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOpenAI serves the /embeddings endpoint of an OpenAI-compatible API.
type fakeOpenAI struct {
	mu     sync.Mutex
	inputs []string
	models []string
	status int
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !strings.HasSuffix(r.URL.Path, "/embeddings") {
		http.NotFound(w, r)
		return
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"message":"model not loaded"}}`))
		return
	}

	var req struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}
	body, _ := io.ReadAll(r.Body)
	if err := json.Unmarshal(body, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.models = append(f.models, req.Model)
	f.inputs = append(f.inputs, req.Input...)

	type item struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	}
	data := make([]item, len(req.Input))
	for i, text := range req.Input {
		data[i] = item{Object: "embedding", Index: i, Embedding: []float32{float32(len(text)), 1}}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"model":  req.Model,
		"data":   data,
		"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
	})
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoBaseURL))
}

func TestNew_DefaultModel(t *testing.T) {
	e, err := New(Config{BaseURL: "http://127.0.0.1:1/v1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, e.Model())
	assert.Equal(t, "all-minilm", e.Model(), "matches the memory worker's all-MiniLM-L6-v2")
}

func TestEmbedder_EmbedDocuments(t *testing.T) {
	fake := &fakeOpenAI{}
	server := httptest.NewServer(fake)
	defer server.Close()

	e, err := New(Config{BaseURL: server.URL + "/v1", Model: "nomic-embed-text"})
	require.NoError(t, err)

	vectors, err := e.EmbedDocuments(context.Background(), []string{"abc", "line one\nline two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{3, 1}, vectors[0])

	assert.Contains(t, fake.models, "nomic-embed-text")
	assert.Contains(t, fake.inputs, "line one line two", "newlines are stripped")
}

func TestEmbedder_ServerError(t *testing.T) {
	fake := &fakeOpenAI{status: http.StatusInternalServerError}
	server := httptest.NewServer(fake)
	defer server.Close()

	e, err := New(Config{BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	_, err = e.EmbedDocuments(context.Background(), []string{"abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed 1 documents")
}
