// Package embedding computes document embeddings through an OpenAI-compatible API.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultModel is the embedding model requested when none is configured.
// It serves all-MiniLM-L6-v2, the model the memory worker embeds with.
const DefaultModel = "all-minilm"

// ErrNoBaseURL is returned when the embedder has no endpoint to call.
var ErrNoBaseURL = errors.New("embedding base URL is required")

// Config holds embedder configuration.
type Config struct {
	BaseURL string // e.g. http://localhost:11434/v1
	Model   string
	Token   string // "none" for local services without auth
}

// Embedder wraps a langchaingo embedder.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
}

// New creates an Embedder for an OpenAI-compatible endpoint.
func New(cfg Config) (*Embedder, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Token == "" {
		cfg.Token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.Token),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &Embedder{embedder: embedder, model: cfg.Model}, nil
}

// Model returns the configured embedding model.
func (e *Embedder) Model() string {
	return e.model
}

// EmbedDocuments returns one vector per text, in order.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	log.Debug().Str("model", e.model).Int("count", len(texts)).Msg("Generating embeddings")

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d documents: %w", len(texts), err)
	}
	return vectors, nil
}
