package coverage

import (
	"context"

	"github.com/planora-ai/planora/models"
)

// Summary partitions stored questions by coverage strength for use as
// planning constraints.
type Summary struct {
	StronglyAnswered  []string `json:"strongly_answered"`
	PartiallyAnswered []string `json:"partially_answered"`
	Total             int      `json:"total"`
}

// Summarizer reduces the coverage store into strongly vs partially answered
// question lists. Pure projection, no scoring.
type Summarizer struct {
	store UnitStore
}

func NewSummarizer(store UnitStore) *Summarizer { return &Summarizer{store: store} }

// Summarize partitions the owner's units: strong and dominant merge into
// strongly_answered, partial becomes partially_answered. cluster may be empty
// to cover the whole brand.
func (s *Summarizer) Summarize(ctx context.Context, owner models.Owner, cluster string) (Summary, error) {
	units, err := s.store.QueryAnswerUnits(ctx, owner, cluster)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{
		StronglyAnswered:  []string{},
		PartiallyAnswered: []string{},
	}
	for _, u := range units {
		if u.CoverageState.Rank() >= models.CoverageStrong.Rank() {
			out.StronglyAnswered = append(out.StronglyAnswered, u.Question)
		} else {
			out.PartiallyAnswered = append(out.PartiallyAnswered, u.Question)
		}
	}
	out.Total = len(units)
	return out, nil
}
