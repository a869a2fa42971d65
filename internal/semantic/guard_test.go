package semantic

import (
	"context"
	"testing"
	"time"

	"github.com/planora-ai/planora/internal/llm"
	"github.com/planora-ai/planora/models"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := f.vectors[text]
		if !ok {
			vec = []float32{0, 0, 1}
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) GenerateJSON(ctx context.Context, system, user string) (string, error) {
	return "", llm.ErrGenerationUnavailable
}

type fakeSource struct {
	records []models.EmbeddedRecord
	err     error
}

func (f *fakeSource) ListTopicEmbeddings(ctx context.Context, o models.Owner) ([]models.EmbeddedRecord, error) {
	return f.records, f.err
}

func TestGuardDetectsDuplicate(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		TopicSignal("Best CRM Tools", "crm tools"): {1, 0, 0},
	}}
	source := &fakeSource{records: []models.EmbeddedRecord{{
		Owner:      owner,
		SourceID:   "published-1",
		TextSignal: "Top CRM Software Compared",
		Vector:     []float32{0.99, 0.01, 0},
		CreatedAt:  time.Now(),
	}}}
	g := NewGuard(NewGateway(embedder, 3), NewLinearIndex(), source, 0.85, nil)

	verdict, err := g.Check(context.Background(), owner, "Best CRM Tools", "crm tools", nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !verdict.IsDuplicate {
		t.Fatal("expected duplicate verdict")
	}
	if verdict.SimilarTo != "Top CRM Software Compared" {
		t.Fatalf("similar_to = %q", verdict.SimilarTo)
	}
	if verdict.Vector == nil {
		t.Fatal("verdict should carry the candidate vector")
	}
}

func TestGuardAcceptsDistinctTopic(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		TopicSignal("Kubernetes Cost Control", "k8s costs"): {1, 0, 0},
	}}
	source := &fakeSource{records: []models.EmbeddedRecord{{
		Owner:      owner,
		SourceID:   "published-1",
		TextSignal: "Gardening For Beginners",
		Vector:     []float32{0, 1, 0},
		CreatedAt:  time.Now(),
	}}}
	g := NewGuard(NewGateway(embedder, 3), NewLinearIndex(), source, 0.85, nil)

	verdict, err := g.Check(context.Background(), owner, "Kubernetes Cost Control", "k8s costs", nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if verdict.IsDuplicate {
		t.Fatalf("distinct topic flagged duplicate: %+v", verdict)
	}
	if verdict.Vector == nil {
		t.Fatal("accepted verdict should carry the candidate vector")
	}
}

func TestGuardFailsOpenOnEmbeddingError(t *testing.T) {
	embedder := &fakeEmbedder{err: llm.ErrEmbeddingUnavailable}
	g := NewGuard(NewGateway(embedder, 3), NewLinearIndex(), &fakeSource{}, 0.85, nil)

	verdict, err := g.Check(context.Background(), owner, "Any Topic", "kw", nil)
	if err != nil {
		t.Fatalf("fail-open should not return an error, got %v", err)
	}
	if verdict.IsDuplicate {
		t.Fatal("fail-open must not flag duplicates")
	}
	if verdict.Vector != nil {
		t.Fatal("failed embedding must not produce a vector")
	}
}

func TestGuardPropagatesSourceError(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{}}
	source := &fakeSource{err: context.DeadlineExceeded}
	g := NewGuard(NewGateway(embedder, 3), NewLinearIndex(), source, 0.85, nil)

	if _, err := g.Check(context.Background(), owner, "Any Topic", "kw", nil); err == nil {
		t.Fatal("corpus listing failure must propagate")
	}
}

func TestGuardChecksExtraRecords(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		TopicSignal("Best CRM Tools", "crm tools"): {1, 0, 0},
	}}
	extra := []models.EmbeddedRecord{{
		Owner:      owner,
		SourceID:   "planned:Top CRM Picks",
		Kind:       "planned",
		TextSignal: "Top CRM Picks | crm tools",
		Vector:     []float32{0.999, 0.001, 0},
		CreatedAt:  time.Now(),
	}}
	g := NewGuard(NewGateway(embedder, 3), NewLinearIndex(), &fakeSource{}, 0.85, nil)

	verdict, err := g.Check(context.Background(), owner, "Best CRM Tools", "crm tools", extra)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !verdict.IsDuplicate {
		t.Fatal("in-run extra record should trigger duplicate verdict")
	}
}

func TestTopicSignal(t *testing.T) {
	if got := TopicSignal("Title", "kw"); got != "Title | kw" {
		t.Fatalf("TopicSignal = %q", got)
	}
	if got := TopicSignal("Title", ""); got != "Title" {
		t.Fatalf("TopicSignal without keyword = %q", got)
	}
}
