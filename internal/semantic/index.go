package semantic

import (
	"errors"
	"fmt"
	"math"

	"github.com/planora-ai/planora/models"
)

// ErrOwnerScope indicates a candidate record crossing the (user, brand)
// boundary was passed to the index. This is a programmer error and is never
// swallowed.
var ErrOwnerScope = errors.New("candidate record crosses owner scope")

// Match is the best-scoring candidate above the similarity threshold.
type Match struct {
	Record models.EmbeddedRecord
	Score  float64
}

// Index finds the most similar previously embedded record for a query vector.
// The linear-scan implementation below is bounded by per-owner corpus size; an
// approximate nearest-neighbor backend can be substituted without changing
// callers.
type Index interface {
	FindBestMatch(owner models.Owner, query []float32, candidates []models.EmbeddedRecord, threshold float64) (*Match, error)
}

// LinearIndex scans every candidate and returns the single highest-scoring one.
type LinearIndex struct{}

func NewLinearIndex() *LinearIndex { return &LinearIndex{} }

// FindBestMatch computes cosine similarity between the query and every
// candidate restricted to the owner scope. Returns nil when no candidate
// reaches the threshold. Exact ties resolve to the most recently created
// record.
func (LinearIndex) FindBestMatch(owner models.Owner, query []float32, candidates []models.EmbeddedRecord, threshold float64) (*Match, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("query vector must not be empty")
	}
	var best *Match
	for _, cand := range candidates {
		if cand.Owner != owner {
			return nil, fmt.Errorf("%w: record %s belongs to %s/%s", ErrOwnerScope, cand.SourceID, cand.Owner.UserID, cand.Owner.BrandID)
		}
		if len(cand.Vector) != len(query) {
			continue
		}
		score := CosineSimilarity(query, cand.Vector)
		if score < threshold {
			continue
		}
		switch {
		case best == nil,
			score > best.Score,
			score == best.Score && cand.CreatedAt.After(best.Record.CreatedAt):
			m := Match{Record: cand, Score: score}
			best = &m
		}
	}
	return best, nil
}

// CosineSimilarity returns the cosine of the angle between two vectors.
// Zero-magnitude vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
