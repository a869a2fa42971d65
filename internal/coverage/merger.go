package coverage

import (
	"context"
	"fmt"

	"github.com/planora-ai/planora/internal/telemetry"
	"github.com/planora-ai/planora/models"
)

// UnitStore is the keyed coverage store capability. UpsertAnswerUnit must be
// atomic per key and must apply the promotion merge rule: coverage_state only
// moves to the max of existing and incoming, and first_covered_by is
// write-once.
type UnitStore interface {
	UpsertAnswerUnit(ctx context.Context, unit models.AnswerUnit) error
	QueryAnswerUnits(ctx context.Context, owner models.Owner, cluster string) ([]models.AnswerUnit, error)
}

// Merger upserts extracted units into the per-owner coverage store.
type Merger struct {
	store UnitStore
}

func NewMerger(store UnitStore) *Merger { return &Merger{store: store} }

// Apply merges one article's extracted units. Upserts target disjoint keys
// almost always, so they are applied independently; each key's upsert is
// atomic in the store.
func (m *Merger) Apply(ctx context.Context, owner models.Owner, cluster, sourceArticle string, units []ExtractedUnit) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if sourceArticle == "" {
		return fmt.Errorf("source article id required")
	}
	for _, u := range units {
		unit := models.AnswerUnit{
			Owner:          owner,
			Cluster:        cluster,
			Question:       u.Question,
			QuestionKey:    NormalizeQuestion(u.Question),
			IntentRole:     u.IntentRole,
			CoverageState:  u.CoverageState,
			FirstCoveredBy: sourceArticle,
		}
		if err := m.store.UpsertAnswerUnit(ctx, unit); err != nil {
			return fmt.Errorf("upsert answer unit %q: %w", unit.QuestionKey, err)
		}
		telemetry.AnswerUnitsMerged.Inc()
	}
	return nil
}
