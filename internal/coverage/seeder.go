package coverage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/planora-ai/planora/internal/llm"
	"github.com/planora-ai/planora/internal/semantic"
	"github.com/planora-ai/planora/models"
)

// RecordSink persists embedded topic signals for later similarity scans.
type RecordSink interface {
	UpsertTopicEmbedding(ctx context.Context, rec models.EmbeddedRecord) error
}

// SeedResult reports what a sitemap pre-seeding run produced.
type SeedResult struct {
	PagesEmbedded int `json:"pages_embedded"`
	UnitsSeeded   int `json:"units_seeded"`
}

// SitemapSeeder backfills the similarity corpus (and optionally the coverage
// store) from a brand's existing pages. Unlike the dedup guard, seeding is an
// explicit backfill operation: embedding failure is fatal here, not swallowed.
type SitemapSeeder struct {
	gateway     *semantic.Gateway
	provider    llm.Provider
	sink        RecordSink
	merger      *Merger
	concurrency int
	logger      *log.Logger
}

func NewSitemapSeeder(gateway *semantic.Gateway, provider llm.Provider, sink RecordSink, merger *Merger, concurrency int, logger *log.Logger) *SitemapSeeder {
	if concurrency <= 0 {
		concurrency = 5
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SEED] ", log.LstdFlags)
	}
	return &SitemapSeeder{gateway: gateway, provider: provider, sink: sink, merger: merger, concurrency: concurrency, logger: logger}
}

// Seed embeds every page title with a bounded concurrency window to respect
// upstream rate limits, then optionally derives partial-strength answer units
// from the titles in a single structured-generation call.
func (s *SitemapSeeder) Seed(ctx context.Context, owner models.Owner, pages []models.SitemapPage, deriveUnits bool) (SeedResult, error) {
	if err := owner.Validate(); err != nil {
		return SeedResult{}, err
	}
	var result SeedResult
	if len(pages) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, page := range pages {
		page := page
		g.Go(func() error {
			vec, err := s.gateway.Embed(gctx, page.Title)
			if err != nil {
				return fmt.Errorf("embed sitemap title %q: %w", page.Title, err)
			}
			rec := models.EmbeddedRecord{
				Owner:      owner,
				SourceID:   page.URL,
				Kind:       "internal_link",
				TextSignal: page.Title,
				Vector:     vec,
				CreatedAt:  time.Now().UTC(),
			}
			if err := s.sink.UpsertTopicEmbedding(gctx, rec); err != nil {
				return fmt.Errorf("store sitemap embedding %q: %w", page.URL, err)
			}
			mu.Lock()
			result.PagesEmbedded++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	if deriveUnits && s.merger != nil {
		seeded, err := s.seedUnitsFromTitles(ctx, owner, pages)
		if err != nil {
			return result, err
		}
		result.UnitsSeeded = seeded
	}
	return result, nil
}

const seederSystemPrompt = `You are a content coverage analyst. Given a list of page titles from a website, infer for each page the primary reader question it likely answers and the strategic role it serves.

For each page report:
- "url": the page url, copied verbatim
- "question": a full natural-language question (a complete interrogative sentence ending in "?")
- "intent_role": one of core_answer, decision, comparison, problem_specific, emotional_use_case, authority_edge
- "cluster": a short topic cluster label

Respond ONLY with valid JSON:
{"pages": [{"url": "...", "question": "...", "intent_role": "...", "cluster": "..."}]}
Do not include any other text or explanation.`

// seedUnitsFromTitles asks the generation backend to map titles to questions.
// A title alone cannot prove thorough coverage, so seeded units always enter
// the store at partial strength; later article analysis promotes them.
func (s *SitemapSeeder) seedUnitsFromTitles(ctx context.Context, owner models.Owner, pages []models.SitemapPage) (int, error) {
	var sb strings.Builder
	sb.WriteString("PAGES:\n")
	for _, p := range pages {
		fmt.Fprintf(&sb, "- %s :: %s\n", p.URL, p.Title)
	}

	raw, err := s.provider.GenerateJSON(ctx, seederSystemPrompt, sb.String())
	if err != nil {
		return 0, fmt.Errorf("derive units from sitemap: %w", err)
	}
	jsonStr, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return 0, fmt.Errorf("derive units from sitemap: %w", err)
	}

	var parsed struct {
		Pages []struct {
			URL        string `json:"url"`
			Question   string `json:"question"`
			IntentRole string `json:"intent_role"`
			Cluster    string `json:"cluster"`
		} `json:"pages"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return 0, fmt.Errorf("%w: %v", llm.ErrGenerationMalformed, err)
	}

	seeded := 0
	for _, p := range parsed.Pages {
		if !IsFullQuestion(p.Question) {
			s.logger.Printf("skip non-interrogative seed for %s: %q", p.URL, p.Question)
			continue
		}
		role, err := models.ParseIntentRole(p.IntentRole)
		if err != nil {
			s.logger.Printf("skip seed for %s: %v", p.URL, err)
			continue
		}
		unit := ExtractedUnit{Question: p.Question, IntentRole: role, CoverageState: models.CoveragePartial}
		if err := s.merger.Apply(ctx, owner, p.Cluster, p.URL, []ExtractedUnit{unit}); err != nil {
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}
