package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/planora-ai/planora/config"
)

// Error taxonomy for the generation and embedding capabilities. Callers decide
// whether a failure is fatal: deduplication fails open on
// ErrEmbeddingUnavailable, backfill operations fail closed.
var (
	ErrEmbeddingUnavailable  = errors.New("embedding backend unavailable")
	ErrGenerationUnavailable = errors.New("generation backend unavailable")
	ErrGenerationMalformed   = errors.New("generation output malformed")
)

// Provider is the capability interface over a text-generation/embedding backend.
type Provider interface {
	// CreateEmbedding returns one fixed-dimension vector per input text.
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	// GenerateJSON sends a system+user prompt pair and returns the raw model
	// output, which is expected to contain a single JSON document.
	GenerateJSON(ctx context.Context, system, user string) (string, error)
}

// NewProvider creates an LLM provider based on configuration.
func NewProvider(cfg config.OpenAIConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api_key not configured")
	}
	return NewOpenAIClient(cfg), nil
}
