package coverage

import (
	"context"
	"testing"

	"github.com/planora-ai/planora/models"
)

func TestSummarizePartitionsByStrength(t *testing.T) {
	st := newFakeUnitStore()
	m := NewMerger(st)

	units := []ExtractedUnit{
		{Question: "What is X used for?", IntentRole: models.RoleCoreAnswer, CoverageState: models.CoveragePartial},
		{Question: "How does X compare to Y?", IntentRole: models.RoleComparison, CoverageState: models.CoverageStrong},
		{Question: "Why does X fail under load?", IntentRole: models.RoleAuthorityEdge, CoverageState: models.CoverageDominant},
	}
	if err := m.Apply(context.Background(), testOwner, "", "article-1", units); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	s := NewSummarizer(st)
	summary, err := s.Summarize(context.Background(), testOwner, "")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Total != 3 {
		t.Fatalf("total = %d, want 3", summary.Total)
	}
	// strong and dominant both count as strongly answered
	if len(summary.StronglyAnswered) != 2 {
		t.Fatalf("strongly answered = %d, want 2", len(summary.StronglyAnswered))
	}
	if len(summary.PartiallyAnswered) != 1 {
		t.Fatalf("partially answered = %d, want 1", len(summary.PartiallyAnswered))
	}
	if summary.PartiallyAnswered[0] != "What is X used for?" {
		t.Fatalf("unexpected partial question: %q", summary.PartiallyAnswered[0])
	}
}

func TestSummarizeEmptyStore(t *testing.T) {
	s := NewSummarizer(newFakeUnitStore())
	summary, err := s.Summarize(context.Background(), testOwner, "")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Total != 0 || len(summary.StronglyAnswered) != 0 || len(summary.PartiallyAnswered) != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}

func TestSummarizeClusterFilter(t *testing.T) {
	st := newFakeUnitStore()
	m := NewMerger(st)

	if err := m.Apply(context.Background(), testOwner, "hosting",
		"a1", []ExtractedUnit{{Question: "What is managed hosting?", IntentRole: models.RoleCoreAnswer, CoverageState: models.CoverageStrong}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := m.Apply(context.Background(), testOwner, "security",
		"a2", []ExtractedUnit{{Question: "How do I rotate keys safely?", IntentRole: models.RoleProblemSpecific, CoverageState: models.CoveragePartial}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	s := NewSummarizer(st)
	summary, err := s.Summarize(context.Background(), testOwner, "hosting")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Total != 1 {
		t.Fatalf("cluster filter leaked: total = %d", summary.Total)
	}
}
