package semantic

import (
	"context"
	"fmt"

	"github.com/planora-ai/planora/internal/llm"
	"github.com/planora-ai/planora/internal/telemetry"
)

// Gateway wraps the embedding capability and enforces the configured vector
// dimension. It carries no retry policy; callers decide how to treat failure.
type Gateway struct {
	provider llm.Provider
	dims     int
}

// NewGateway builds an embedding gateway. dims <= 0 disables the dimension check.
func NewGateway(provider llm.Provider, dims int) *Gateway {
	return &Gateway{provider: provider, dims: dims}
}

// Embed produces a vector for a single text signal.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch produces one vector per input text in input order.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := g.provider.CreateEmbedding(ctx, texts)
	if err != nil {
		telemetry.EmbeddingFailures.Inc()
		return nil, err
	}
	if len(vecs) != len(texts) {
		telemetry.EmbeddingFailures.Inc()
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", llm.ErrEmbeddingUnavailable, len(texts), len(vecs))
	}
	for _, v := range vecs {
		if g.dims > 0 && len(v) != g.dims {
			telemetry.EmbeddingFailures.Inc()
			return nil, fmt.Errorf("%w: dimension mismatch (got %d want %d)", llm.ErrEmbeddingUnavailable, len(v), g.dims)
		}
	}
	return vecs, nil
}
