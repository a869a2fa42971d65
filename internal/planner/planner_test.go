package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/planora-ai/planora/internal/coverage"
	"github.com/planora-ai/planora/internal/llm"
	"github.com/planora-ai/planora/internal/opportunity"
	"github.com/planora-ai/planora/internal/semantic"
	"github.com/planora-ai/planora/models"
)

var testOwner = models.Owner{UserID: "u1", BrandID: "b1"}

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, llm.ErrEmbeddingUnavailable
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, system, user string) (string, error) {
	return f.response, f.err
}

// fakeGuard flags titles listed in duplicates, and any title already present
// in the extra corpus under a "planned:" source.
type fakeGuard struct {
	duplicates map[string]bool
	err        error
}

func (f *fakeGuard) Check(ctx context.Context, owner models.Owner, title, keyword string, extra []models.EmbeddedRecord) (semantic.Verdict, error) {
	if f.err != nil {
		return semantic.Verdict{}, f.err
	}
	for _, rec := range extra {
		if rec.SourceID == "planned:"+title {
			return semantic.Verdict{IsDuplicate: true, SimilarTo: rec.TextSignal, Score: 0.99, Vector: []float32{1}}, nil
		}
	}
	if f.duplicates[title] {
		return semantic.Verdict{IsDuplicate: true, SimilarTo: "existing article", Score: 0.9, Vector: []float32{1}}, nil
	}
	return semantic.Verdict{Vector: []float32{1}}, nil
}

type fakeCoverage struct {
	summary coverage.Summary
	err     error
}

func (f *fakeCoverage) Summarize(ctx context.Context, owner models.Owner, cluster string) (coverage.Summary, error) {
	return f.summary, f.err
}

func planResponse(titles ...string) string {
	type item struct {
		Title              string   `json:"title"`
		MainKeyword        string   `json:"main_keyword"`
		SupportingKeywords []string `json:"supporting_keywords"`
		ArticleType        string   `json:"article_type"`
		IntentRole         string   `json:"intent_role"`
		Cluster            string   `json:"cluster"`
	}
	items := make([]item, 0, len(titles))
	for i, title := range titles {
		items = append(items, item{
			Title:       title,
			MainKeyword: strings.ToLower(title),
			ArticleType: "informational",
			IntentRole:  string(models.IntentRoles[i%len(models.IntentRoles)]),
		})
	}
	b, _ := json.Marshal(map[string]interface{}{"items": items})
	return string(b)
}

func newTestSynthesizer(provider llm.Provider, guard DedupGuard, batchSize int) *Synthesizer {
	s := NewSynthesizer(provider, guard, &fakeCoverage{}, batchSize, nil)
	s.now = func() time.Time { return time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC) }
	return s
}

func TestAllocationSumsToBatchSize(t *testing.T) {
	for _, n := range []int{1, 5, 7, 10, 30, 60, 100} {
		alloc := Allocation(n)
		sum := 0
		for _, count := range alloc {
			sum += count
		}
		if sum != n {
			t.Errorf("Allocation(%d) sums to %d", n, sum)
		}
	}
}

func TestAllocationDefaultBatch(t *testing.T) {
	alloc := Allocation(30)
	want := map[models.IntentRole]int{
		models.RoleCoreAnswer:       6,
		models.RoleDecision:         5,
		models.RoleComparison:       6,
		models.RoleProblemSpecific:  7,
		models.RoleEmotionalUseCase: 3,
		models.RoleAuthorityEdge:    3,
	}
	for role, count := range want {
		if alloc[role] != count {
			t.Errorf("Allocation(30)[%s] = %d, want %d", role, alloc[role], count)
		}
	}
}

func TestGeneratePlanSchedulesContiguously(t *testing.T) {
	provider := &fakeGenerator{response: planResponse("Topic A", "Topic B", "Topic C")}
	s := newTestSynthesizer(provider, &fakeGuard{}, 30)

	result, err := s.GeneratePlan(context.Background(), Request{Owner: testOwner})
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(result.Items))
	}

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i, item := range result.Items {
		if !item.ScheduledDate.Equal(start.AddDate(0, 0, i)) {
			t.Errorf("item %d scheduled %s, want %s", i, item.ScheduledDate, start.AddDate(0, 0, i))
		}
		if item.Status != models.StatusPending {
			t.Errorf("item %d status = %s, want pending", i, item.Status)
		}
		if item.ID == "" || seen[item.ID] {
			t.Errorf("item %d has missing or duplicate id", i)
		}
		seen[item.ID] = true
	}
}

func TestGeneratePlanRejectsDuplicates(t *testing.T) {
	provider := &fakeGenerator{response: planResponse("Fresh Topic", "Known Topic", "Another Fresh")}
	guard := &fakeGuard{duplicates: map[string]bool{"Known Topic": true}}
	s := newTestSynthesizer(provider, guard, 30)

	result, err := s.GeneratePlan(context.Background(), Request{Owner: testOwner})
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if result.AcceptedCount != 2 || result.RejectedCount != 1 {
		t.Fatalf("accepted=%d rejected=%d, want 2/1", result.AcceptedCount, result.RejectedCount)
	}
	if result.Items[0].Title != "Fresh Topic" || result.Items[1].Title != "Another Fresh" {
		t.Fatalf("generation order not preserved: %q, %q", result.Items[0].Title, result.Items[1].Title)
	}
	// Rejection shifts later items forward; no schedule gaps.
	if !result.Items[1].ScheduledDate.Equal(result.Items[0].ScheduledDate.AddDate(0, 0, 1)) {
		t.Fatal("schedule has a gap after rejection")
	}
}

func TestGeneratePlanRejectsInBatchDuplicates(t *testing.T) {
	// The same title twice: the second occurrence must be caught via the
	// in-run corpus, not accepted as a fresh topic.
	provider := &fakeGenerator{response: planResponse("Repeated Topic", "Repeated Topic", "Other Topic")}
	s := newTestSynthesizer(provider, &fakeGuard{}, 30)

	result, err := s.GeneratePlan(context.Background(), Request{Owner: testOwner})
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if result.AcceptedCount != 2 {
		t.Fatalf("accepted = %d, want 2", result.AcceptedCount)
	}
	if result.RejectedCount != 1 {
		t.Fatalf("rejected = %d, want 1", result.RejectedCount)
	}
}

func TestGeneratePlanStopsAtBatchSize(t *testing.T) {
	provider := &fakeGenerator{response: planResponse("A1", "A2", "A3", "A4", "A5")}
	s := newTestSynthesizer(provider, &fakeGuard{}, 3)

	result, err := s.GeneratePlan(context.Background(), Request{Owner: testOwner})
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected batch size cap of 3, got %d", len(result.Items))
	}
}

func TestGeneratePlanEmptyIsValid(t *testing.T) {
	provider := &fakeGenerator{response: `{"items": []}`}
	s := newTestSynthesizer(provider, &fakeGuard{}, 30)

	result, err := s.GeneratePlan(context.Background(), Request{Owner: testOwner})
	if err != nil {
		t.Fatalf("empty plan must not error: %v", err)
	}
	if len(result.Items) != 0 {
		t.Fatalf("expected empty plan, got %d items", len(result.Items))
	}
}

func TestGeneratePlanGenerationFailure(t *testing.T) {
	provider := &fakeGenerator{err: llm.ErrGenerationUnavailable}
	s := newTestSynthesizer(provider, &fakeGuard{}, 30)

	if _, err := s.GeneratePlan(context.Background(), Request{Owner: testOwner}); err == nil {
		t.Fatal("expected error when generation backend fails")
	}
}

func TestGeneratePlanSkipsInvalidCandidates(t *testing.T) {
	response := `{"items": [
		{"title": "", "main_keyword": "kw", "article_type": "informational", "intent_role": "core_answer"},
		{"title": "Bad Role", "main_keyword": "kw", "article_type": "informational", "intent_role": "navigational"},
		{"title": "Good Topic", "main_keyword": "kw", "article_type": "recipe", "intent_role": "core_answer"}
	]}`
	s := newTestSynthesizer(&fakeGenerator{response: response}, &fakeGuard{}, 30)

	result, err := s.GeneratePlan(context.Background(), Request{Owner: testOwner})
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 surviving item, got %d", len(result.Items))
	}
	// Unknown article types default rather than reject.
	if result.Items[0].ArticleType != models.ArticleInformational {
		t.Fatalf("article type = %s, want informational", result.Items[0].ArticleType)
	}
}

func TestGeneratePlanRerankByOpportunity(t *testing.T) {
	provider := &fakeGenerator{response: planResponse("Plain One", "Scored Low", "Scored High", "Plain Two")}
	s := newTestSynthesizer(provider, &fakeGuard{}, 30)

	scored := opportunity.ScoreSignals([]opportunity.Signal{
		{Keyword: "scored low", Impressions: 100, AvgPosition: 35, CTR: 0.05},
		{Keyword: "scored high", Impressions: 2000, AvgPosition: 10, CTR: 0.01},
	})
	result, err := s.GeneratePlan(context.Background(), Request{Owner: testOwner, Opportunities: scored})
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}

	wantOrder := []string{"Scored High", "Scored Low", "Plain One", "Plain Two"}
	for i, want := range wantOrder {
		if result.Items[i].Title != want {
			t.Fatalf("position %d = %q, want %q (full order: %v)", i, result.Items[i].Title, want, titles(result.Items))
		}
	}
	if result.Items[0].OpportunityScore != 100 || result.Items[0].OpportunityBadge != string(opportunity.BadgeHighImpact) {
		t.Fatalf("top item annotations wrong: %+v", result.Items[0])
	}
	if result.Items[2].OpportunityScore != 0 || result.Items[2].OpportunityBadge != "" {
		t.Fatalf("unmatched item should carry no annotations: %+v", result.Items[2])
	}

	// Dates are reassigned after the reorder; still one per day from today.
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i, item := range result.Items {
		if !item.ScheduledDate.Equal(start.AddDate(0, 0, i)) {
			t.Fatalf("item %d scheduled %s after rerank, want %s", i, item.ScheduledDate, start.AddDate(0, 0, i))
		}
	}
}

func titles(items []models.PlanItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Title
	}
	return out
}

func TestGeneratePlanCoverageFailureAborts(t *testing.T) {
	s := NewSynthesizer(&fakeGenerator{response: planResponse("A")}, &fakeGuard{},
		&fakeCoverage{err: fmt.Errorf("store down")}, 30, nil)

	if _, err := s.GeneratePlan(context.Background(), Request{Owner: testOwner}); err == nil {
		t.Fatal("expected error when coverage summary fails")
	}
}
