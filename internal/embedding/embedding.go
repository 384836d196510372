// Package embedding provides pluggable text embedding generation with provider abstractions.
package embedding

import (
	"context"
)

// Vector represents a dense embedding vector.
type Vector []float32

// Embedding is a text embedding with metadata.
type Embedding struct {
	Text   string  // Original text that was embedded
	Vector Vector  // Dense vector representation
	Model  string  // Model used for embedding (e.g., "mock", "openai/text-embedding-3-small")
}

// Pipeline is a loaded, model-bound embedder: one instantiated provider
// ready to vectorize text. Embedder (pipeline.go) caches these by model
// id so a given model is only loaded once per process.
type Pipeline interface {
	// Embed generates an embedding for a single text input.
	Embed(ctx context.Context, text string) (*Embedding, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([]*Embedding, error)

	// Dimensions returns the dimensionality of vectors produced by this pipeline.
	Dimensions() int

	// Model returns the identifier of the embedding model.
	Model() string
}

// Provider is a factory for creating pipelines with specific configurations.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "voyage", "mock").
	Name() string

	// Create instantiates a pipeline with the given configuration.
	Create(config map[string]interface{}) (Pipeline, error)
}
