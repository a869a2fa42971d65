package coverage

import (
	"context"
	"testing"

	"github.com/planora-ai/planora/models"
)

// fakeUnitStore applies the same promotion merge rule as the SQL upsert.
type fakeUnitStore struct {
	units map[string]models.AnswerUnit
	err   error
}

func newFakeUnitStore() *fakeUnitStore {
	return &fakeUnitStore{units: map[string]models.AnswerUnit{}}
}

func (f *fakeUnitStore) UpsertAnswerUnit(ctx context.Context, unit models.AnswerUnit) error {
	if f.err != nil {
		return f.err
	}
	key := unit.Cluster + "|" + unit.QuestionKey
	existing, ok := f.units[key]
	if !ok {
		f.units[key] = unit
		return nil
	}
	if unit.CoverageState.Rank() > existing.CoverageState.Rank() {
		existing.CoverageState = unit.CoverageState
		existing.Question = unit.Question
		existing.IntentRole = unit.IntentRole
	}
	// first_covered_by is write-once
	f.units[key] = existing
	return nil
}

func (f *fakeUnitStore) QueryAnswerUnits(ctx context.Context, owner models.Owner, cluster string) ([]models.AnswerUnit, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.AnswerUnit
	for _, u := range f.units {
		if cluster == "" || u.Cluster == cluster {
			out = append(out, u)
		}
	}
	return out, nil
}

var testOwner = models.Owner{UserID: "u1", BrandID: "b1"}

func TestMergerApplyNormalizesKeys(t *testing.T) {
	st := newFakeUnitStore()
	m := NewMerger(st)

	units := []ExtractedUnit{
		{Question: "How does X work?", IntentRole: models.RoleCoreAnswer, CoverageState: models.CoveragePartial},
	}
	if err := m.Apply(context.Background(), testOwner, "cluster-a", "article-1", units); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	stored, ok := st.units["cluster-a|how does x work"]
	if !ok {
		t.Fatal("unit not stored under normalized key")
	}
	if stored.Question != "How does X work?" {
		t.Fatalf("original question text lost: %q", stored.Question)
	}
	if stored.FirstCoveredBy != "article-1" {
		t.Fatalf("first_covered_by = %q, want article-1", stored.FirstCoveredBy)
	}
}

func TestMergerPromotionNeverDemotes(t *testing.T) {
	st := newFakeUnitStore()
	m := NewMerger(st)

	strong := []ExtractedUnit{{Question: "How does X work?", IntentRole: models.RoleCoreAnswer, CoverageState: models.CoverageStrong}}
	if err := m.Apply(context.Background(), testOwner, "", "article-1", strong); err != nil {
		t.Fatalf("Apply strong: %v", err)
	}
	partial := []ExtractedUnit{{Question: "how does x work?", IntentRole: models.RoleCoreAnswer, CoverageState: models.CoveragePartial}}
	if err := m.Apply(context.Background(), testOwner, "", "article-2", partial); err != nil {
		t.Fatalf("Apply partial: %v", err)
	}

	stored := st.units["|how does x work"]
	if stored.CoverageState != models.CoverageStrong {
		t.Fatalf("coverage demoted to %s", stored.CoverageState)
	}
	if stored.FirstCoveredBy != "article-1" {
		t.Fatalf("first_covered_by overwritten: %q", stored.FirstCoveredBy)
	}
}

func TestMergerPromotesAndKeepsFirstCoveredBy(t *testing.T) {
	st := newFakeUnitStore()
	m := NewMerger(st)

	partial := []ExtractedUnit{{Question: "How does X work?", IntentRole: models.RoleCoreAnswer, CoverageState: models.CoveragePartial}}
	if err := m.Apply(context.Background(), testOwner, "", "article-1", partial); err != nil {
		t.Fatalf("Apply partial: %v", err)
	}
	dominant := []ExtractedUnit{{Question: "How does X work?", IntentRole: models.RoleCoreAnswer, CoverageState: models.CoverageDominant}}
	if err := m.Apply(context.Background(), testOwner, "", "article-2", dominant); err != nil {
		t.Fatalf("Apply dominant: %v", err)
	}

	stored := st.units["|how does x work"]
	if stored.CoverageState != models.CoverageDominant {
		t.Fatalf("coverage not promoted: %s", stored.CoverageState)
	}
	if stored.FirstCoveredBy != "article-1" {
		t.Fatalf("first_covered_by must stay article-1, got %q", stored.FirstCoveredBy)
	}
}

func TestMergerRequiresSourceArticle(t *testing.T) {
	m := NewMerger(newFakeUnitStore())
	units := []ExtractedUnit{{Question: "How does X work?", IntentRole: models.RoleCoreAnswer, CoverageState: models.CoveragePartial}}
	if err := m.Apply(context.Background(), testOwner, "", "", units); err == nil {
		t.Fatal("expected error for empty source article")
	}
}
