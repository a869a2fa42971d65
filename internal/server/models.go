package server

import (
	"github.com/planora-ai/planora/internal/opportunity"
	"github.com/planora-ai/planora/internal/store"
	"github.com/planora-ai/planora/models"
)

// HTTPError is the unified error envelope returned by all endpoints.
type HTTPError struct {
	Error string `json:"error"`
}

type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type BrandCreateRequest struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Description string `json:"description"`
}

// AnalyzeArticleRequest submits one published article for coverage analysis.
// SourceID identifies the article (url or slug) and becomes first_covered_by
// for any new answer units.
type AnalyzeArticleRequest struct {
	SourceID    string `json:"source_id"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	MainKeyword string `json:"main_keyword"`
	Cluster     string `json:"cluster"`
}

type AnalyzeArticleResponse struct {
	UnitsExtracted int  `json:"units_extracted"`
	TopicIndexed   bool `json:"topic_indexed"`
}

type SeedSitemapRequest struct {
	Pages       []models.SitemapPage `json:"pages"`
	DeriveUnits bool                 `json:"derive_units"`
}

type GeneratePlanRequest struct {
	SeedTopics   []string             `json:"seed_topics"`
	BrandContext string               `json:"brand_context"`
	Cluster      string               `json:"cluster"`
	Signals      []opportunity.Signal `json:"signals"`
}

type UpdateItemStatusRequest struct {
	Status string `json:"status"`
}

type ScoreSignalsRequest struct {
	Signals []opportunity.Signal `json:"signals"`
}

type ScoredSignalResponse struct {
	Keyword string `json:"keyword"`
	Score   int    `json:"score"`
	Badge   string `json:"badge"`
}

// PlanResponse is the plan shell plus its scheduled items.
type PlanResponse struct {
	PlanID string            `json:"plan_id"`
	Items  []models.PlanItem `json:"items"`

	RequestedCount int `json:"requested_count,omitempty"`
	AcceptedCount  int `json:"accepted_count,omitempty"`
	RejectedCount  int `json:"rejected_count,omitempty"`
}

// BrandStatusResponse is a lightweight dashboard summary for one brand.
type BrandStatusResponse struct {
	Brand            store.BrandRecord `json:"brand"`
	CoverageTotal    int               `json:"coverage_total"`
	StronglyAnswered int               `json:"strongly_answered"`
	HasPlan          bool              `json:"has_plan"`
	PlanItems        int               `json:"plan_items"`
}
