package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planora-ai/planora/internal/coverage"
	"github.com/planora-ai/planora/internal/llm"
	"github.com/planora-ai/planora/internal/opportunity"
	"github.com/planora-ai/planora/internal/semantic"
	"github.com/planora-ai/planora/internal/telemetry"
	"github.com/planora-ai/planora/models"
)

// DefaultBatchSize is the number of candidates requested per planning run.
const DefaultBatchSize = 30

// DedupGuard decides whether a candidate topic duplicates prior content.
// extra lets the caller extend the corpus with items accepted earlier in the
// same run, so in-batch duplicates are rejected too.
type DedupGuard interface {
	Check(ctx context.Context, owner models.Owner, title, keyword string, extra []models.EmbeddedRecord) (semantic.Verdict, error)
}

// CoverageSource supplies the owner's coverage summary as a planning constraint.
type CoverageSource interface {
	Summarize(ctx context.Context, owner models.Owner, cluster string) (coverage.Summary, error)
}

// Request describes one plan synthesis run.
type Request struct {
	Owner         models.Owner
	SeedTopics    []string
	BrandContext  string
	Cluster       string
	Opportunities map[string]opportunity.ScoredSignal
}

// Result is the synthesis outcome. AcceptedCount below RequestedCount means
// heavy deduplication, not failure; an empty item list is a valid terminal
// state.
type Result struct {
	Items          []models.PlanItem `json:"items"`
	RequestedCount int               `json:"requested_count"`
	AcceptedCount  int               `json:"accepted_count"`
	RejectedCount  int               `json:"rejected_count"`
}

// Synthesizer orchestrates one planning run: coverage fetch, candidate
// generation, dedup filtering, scheduling, and the optional opportunity
// re-rank. A failed generation call fails the whole run; the caller may
// re-invoke.
type Synthesizer struct {
	provider  llm.Provider
	guard     DedupGuard
	coverage  CoverageSource
	batchSize int
	logger    *log.Logger
	now       func() time.Time
}

func NewSynthesizer(provider llm.Provider, guard DedupGuard, cov CoverageSource, batchSize int, logger *log.Logger) *Synthesizer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[PLAN] ", log.LstdFlags)
	}
	return &Synthesizer{
		provider:  provider,
		guard:     guard,
		coverage:  cov,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// GeneratePlan runs the full synthesis pipeline for one owner.
func (s *Synthesizer) GeneratePlan(ctx context.Context, req Request) (Result, error) {
	if err := req.Owner.Validate(); err != nil {
		return Result{}, err
	}
	started := s.now()
	defer func() {
		telemetry.PlanRunDuration.Observe(s.now().Sub(started).Seconds())
	}()

	summary, err := s.coverage.Summarize(ctx, req.Owner, req.Cluster)
	if err != nil {
		telemetry.PlanRuns.WithLabelValues("failed").Inc()
		return Result{}, fmt.Errorf("fetch coverage summary: %w", err)
	}

	candidates, err := s.generateCandidates(ctx, req, summary)
	if err != nil {
		telemetry.PlanRuns.WithLabelValues("failed").Inc()
		return Result{}, err
	}

	accepted, rejected, err := s.filterCandidates(ctx, req.Owner, candidates)
	if err != nil {
		telemetry.PlanRuns.WithLabelValues("failed").Inc()
		return Result{}, err
	}

	items := s.schedule(accepted)
	if len(req.Opportunities) > 0 {
		items = s.rerankByOpportunity(items, req.Opportunities)
	}

	telemetry.PlanRuns.WithLabelValues("succeeded").Inc()
	return Result{
		Items:          items,
		RequestedCount: s.batchSize,
		AcceptedCount:  len(items),
		RejectedCount:  rejected,
	}, nil
}

// candidate is one raw generated topic before dedup filtering.
type candidate struct {
	Title              string
	MainKeyword        string
	SupportingKeywords []string
	ArticleType        models.ArticleType
	IntentRole         models.IntentRole
	Cluster            string
}

const plannerSystemPrompt = `You are an SEO/AEO content strategist. You design blog content plans that balance reader intent coverage and avoid repeating topics the brand already answers well.

Respond ONLY with valid JSON:
{"items": [{"title": "...", "main_keyword": "...", "supporting_keywords": ["..."], "article_type": "informational|commercial|howto", "intent_role": "...", "cluster": "..."}]}
Do not include any other text or explanation.`

func (s *Synthesizer) buildPrompt(req Request, summary coverage.Summary) string {
	alloc := Allocation(s.batchSize)

	var b strings.Builder
	fmt.Fprintf(&b, "Design %d article topics for this brand.\n\n", s.batchSize)
	if req.BrandContext != "" {
		fmt.Fprintf(&b, "BRAND CONTEXT:\n%s\n\n", req.BrandContext)
	}
	if len(req.SeedTopics) > 0 {
		fmt.Fprintf(&b, "SEED TOPICS:\n- %s\n\n", strings.Join(req.SeedTopics, "\n- "))
	}
	if req.Cluster != "" {
		fmt.Fprintf(&b, "TOPIC CLUSTER: %s\n\n", req.Cluster)
	}

	b.WriteString("Distribute items across intent roles as follows:\n")
	for _, role := range models.IntentRoles {
		fmt.Fprintf(&b, "- %s (%d items): %s\n", role, alloc[role], roleDescriptions[role])
	}

	if len(summary.StronglyAnswered) > 0 {
		b.WriteString("\nThe brand already answers these questions well. Do NOT repeat them unless a candidate brings a materially new angle:\n")
		for _, q := range summary.StronglyAnswered {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	if len(summary.PartiallyAnswered) > 0 {
		b.WriteString("\nThese questions are only partially answered; deepening them is welcome:\n")
		for _, q := range summary.PartiallyAnswered {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	return b.String()
}

func (s *Synthesizer) generateCandidates(ctx context.Context, req Request, summary coverage.Summary) ([]candidate, error) {
	raw, err := s.provider.GenerateJSON(ctx, plannerSystemPrompt, s.buildPrompt(req, summary))
	if err != nil {
		return nil, fmt.Errorf("generate candidates: %w", err)
	}
	jsonStr, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("generate candidates: %w", err)
	}

	var parsed struct {
		Items []struct {
			Title              string   `json:"title"`
			MainKeyword        string   `json:"main_keyword"`
			SupportingKeywords []string `json:"supporting_keywords"`
			ArticleType        string   `json:"article_type"`
			IntentRole         string   `json:"intent_role"`
			Cluster            string   `json:"cluster"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrGenerationMalformed, err)
	}

	var out []candidate
	for _, item := range parsed.Items {
		if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.MainKeyword) == "" {
			telemetry.PlanCandidates.WithLabelValues(telemetry.CandidateRejectedInvalid).Inc()
			continue
		}
		role, err := models.ParseIntentRole(item.IntentRole)
		if err != nil {
			s.logger.Printf("skip candidate %q: %v", item.Title, err)
			telemetry.PlanCandidates.WithLabelValues(telemetry.CandidateRejectedInvalid).Inc()
			continue
		}
		articleType := models.ArticleType(item.ArticleType)
		if !articleType.Valid() {
			articleType = models.ArticleInformational
		}
		cluster := item.Cluster
		if cluster == "" {
			cluster = req.Cluster
		}
		out = append(out, candidate{
			Title:              strings.TrimSpace(item.Title),
			MainKeyword:        strings.TrimSpace(item.MainKeyword),
			SupportingKeywords: item.SupportingKeywords,
			ArticleType:        articleType,
			IntentRole:         role,
			Cluster:            cluster,
		})
	}
	return out, nil
}

// filterCandidates runs each candidate through the dedup guard in generation
// order. Accepted items extend the guard's corpus so duplicates within one
// batch are rejected too. Stops once the batch target is reached or the
// candidate source is exhausted.
func (s *Synthesizer) filterCandidates(ctx context.Context, owner models.Owner, candidates []candidate) ([]candidate, int, error) {
	var accepted []candidate
	var acceptedRecords []models.EmbeddedRecord
	rejected := 0
	for _, cand := range candidates {
		if len(accepted) == s.batchSize {
			break
		}
		verdict, err := s.guard.Check(ctx, owner, cand.Title, cand.MainKeyword, acceptedRecords)
		if err != nil {
			return nil, rejected, fmt.Errorf("dedup check %q: %w", cand.Title, err)
		}
		if verdict.IsDuplicate {
			s.logger.Printf("reject duplicate %q (%.2f vs %q)", cand.Title, verdict.Score, verdict.SimilarTo)
			telemetry.PlanCandidates.WithLabelValues(telemetry.CandidateRejectedDuplicate).Inc()
			rejected++
			continue
		}
		accepted = append(accepted, cand)
		telemetry.PlanCandidates.WithLabelValues(telemetry.CandidateAccepted).Inc()
		if verdict.Vector != nil {
			acceptedRecords = append(acceptedRecords, models.EmbeddedRecord{
				Owner:      owner,
				SourceID:   "planned:" + cand.Title,
				Kind:       "planned",
				TextSignal: semantic.TopicSignal(cand.Title, cand.MainKeyword),
				Vector:     verdict.Vector,
				CreatedAt:  s.now().UTC(),
			})
		}
	}
	return accepted, rejected, nil
}

// schedule assigns one item per day starting today, preserving acceptance
// order. No gaps, no weekend skipping.
func (s *Synthesizer) schedule(accepted []candidate) []models.PlanItem {
	start := s.today()
	items := make([]models.PlanItem, 0, len(accepted))
	for i, cand := range accepted {
		items = append(items, models.PlanItem{
			ID:                 uuid.New().String(),
			Title:              cand.Title,
			MainKeyword:        cand.MainKeyword,
			SupportingKeywords: cand.SupportingKeywords,
			ArticleType:        cand.ArticleType,
			IntentRole:         cand.IntentRole,
			Cluster:            cand.Cluster,
			ScheduledDate:      start.AddDate(0, 0, i),
			Status:             models.StatusPending,
		})
	}
	return items
}

// rerankByOpportunity moves opportunity-matched items to the front, ordered
// by descending score; unmatched items keep their relative order after them.
// This is a stable reorder: scheduled dates are reassigned afterwards so the
// one-per-day contiguous invariant holds.
func (s *Synthesizer) rerankByOpportunity(items []models.PlanItem, scored map[string]opportunity.ScoredSignal) []models.PlanItem {
	for i := range items {
		if match, ok := opportunity.Lookup(scored, items[i].MainKeyword); ok {
			items[i].OpportunityScore = match.Result.Score
			items[i].OpportunityBadge = string(match.Result.Badge)
			items[i].Impressions = match.Signal.Impressions
			items[i].AvgPosition = match.Signal.AvgPosition
			items[i].CTR = match.Signal.CTR
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		iScored := items[i].OpportunityBadge != ""
		jScored := items[j].OpportunityBadge != ""
		if iScored != jScored {
			return iScored
		}
		if iScored && jScored {
			return items[i].OpportunityScore > items[j].OpportunityScore
		}
		return false
	})
	start := s.today()
	for i := range items {
		items[i].ScheduledDate = start.AddDate(0, 0, i)
	}
	return items
}

func (s *Synthesizer) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
