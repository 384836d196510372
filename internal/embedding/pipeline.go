package embedding

import (
	"context"
	"fmt"
	"sync"
)

// Config selects and parameterizes an embedding provider.
type Config struct {
	Provider   string
	Model      string
	Dimensions int
	APIKey     string
}

// Embedder owns a process-wide cache of loaded embedding pipelines, keyed
// by model id, so the same model is only instantiated once no matter how
// many ingests or searches request it. It replaces a package-level
// provider registry with explicit state the caller constructs, passes
// around, and tears down with Clear.
type Embedder struct {
	mu        sync.Mutex
	providers map[string]Provider
	pipelines map[string]Pipeline
}

// NewEmbedder constructs an Embedder with the built-in providers
// registered (mock and the anthropic placeholder). Callers may register
// additional providers with RegisterProvider before first use.
func NewEmbedder() *Embedder {
	e := &Embedder{
		providers: make(map[string]Provider),
		pipelines: make(map[string]Pipeline),
	}
	e.providers["mock"] = &MockProvider{}
	e.providers["anthropic"] = &AnthropicProvider{}
	return e
}

// RegisterProvider adds or replaces a provider by name.
func (e *Embedder) RegisterProvider(p Provider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.providers[p.Name()] = p
}

// pipelineFor returns the cached pipeline for cfg's model, creating and
// caching it on first use. Concurrent callers requesting the same model
// block on each other rather than racing duplicate instantiation.
func (e *Embedder) pipelineFor(cfg Config) (Pipeline, error) {
	key := cfg.Provider + "/" + cfg.Model

	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.pipelines[key]; ok {
		return p, nil
	}

	provider, ok := e.providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("embedding provider %q not registered", cfg.Provider)
	}

	instance, err := provider.Create(map[string]interface{}{
		"model":      cfg.Model,
		"dimensions": cfg.Dimensions,
		"api_key":    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline for %q: %w", key, err)
	}

	e.pipelines[key] = instance
	return instance, nil
}

// EmbedBatch embeds texts using the pipeline for cfg's model, loading
// and caching that pipeline on first use.
func (e *Embedder) EmbedBatch(ctx context.Context, cfg Config, texts []string) ([]*Embedding, error) {
	pipeline, err := e.pipelineFor(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.EmbedBatch(ctx, texts)
}

// Clear discards every loaded pipeline. Called during shutdown so no
// provider resource (HTTP clients, handles) outlives the service.
func (e *Embedder) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pipelines = make(map[string]Pipeline)
}
