package semantic

import (
	"context"
	"log"

	"github.com/planora-ai/planora/models"
)

// DefaultDedupThreshold is the cosine similarity above which a candidate topic
// is considered a duplicate of prior content.
const DefaultDedupThreshold = 0.85

// RecordSource supplies the owner's previously embedded topic signals.
type RecordSource interface {
	ListTopicEmbeddings(ctx context.Context, owner models.Owner) ([]models.EmbeddedRecord, error)
}

// Verdict is the outcome of a duplicate check.
type Verdict struct {
	IsDuplicate bool
	SimilarTo   string
	Score       float64
	// Vector is the candidate's embedding, surfaced so callers can extend
	// their in-run corpus without re-embedding. Nil when the embedding call
	// failed and the guard failed open.
	Vector []float32
}

// Guard decides whether a candidate topic is too similar to already-published
// or already-planned topics. Embedding failures fail open: a false negative
// costs minor content overlap, a false positive wrongly blocks a valid topic.
type Guard struct {
	gateway   *Gateway
	index     Index
	source    RecordSource
	threshold float64
	logger    *log.Logger
}

// NewGuard builds a dedup guard. threshold <= 0 falls back to the default.
func NewGuard(gateway *Gateway, index Index, source RecordSource, threshold float64, logger *log.Logger) *Guard {
	if threshold <= 0 {
		threshold = DefaultDedupThreshold
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[DEDUP] ", log.LstdFlags)
	}
	return &Guard{gateway: gateway, index: index, source: source, threshold: threshold, logger: logger}
}

// TopicSignal concatenates title and primary keyword to bias the embedding
// toward semantic topic rather than surface keyword.
func TopicSignal(title, keyword string) string {
	if keyword == "" {
		return title
	}
	return title + " | " + keyword
}

// Check embeds the candidate's topic signal and scans the owner's corpus plus
// any extra records accepted earlier in the same run.
func (g *Guard) Check(ctx context.Context, owner models.Owner, title, keyword string, extra []models.EmbeddedRecord) (Verdict, error) {
	vec, err := g.gateway.Embed(ctx, TopicSignal(title, keyword))
	if err != nil {
		// Fail open: never block planning because the embedding backend is down.
		g.logger.Printf("warn: embedding failed, treating %q as not duplicate: %v", title, err)
		return Verdict{IsDuplicate: false}, nil
	}

	candidates, err := g.source.ListTopicEmbeddings(ctx, owner)
	if err != nil {
		return Verdict{}, err
	}
	candidates = append(candidates, extra...)

	match, err := g.index.FindBestMatch(owner, vec, candidates, g.threshold)
	if err != nil {
		return Verdict{}, err
	}
	if match == nil {
		return Verdict{Vector: vec}, nil
	}
	return Verdict{
		IsDuplicate: true,
		SimilarTo:   match.Record.TextSignal,
		Score:       match.Score,
		Vector:      vec,
	}, nil
}
