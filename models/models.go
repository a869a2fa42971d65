package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrPlanNotFound is returned when no content plan exists for an owner.
var ErrPlanNotFound = errors.New("content plan not found")

// Owner scopes every coverage and planning record to a (user, brand) pair.
// Records must never be visible across this boundary.
type Owner struct {
	UserID  string `json:"user_id"`
	BrandID string `json:"brand_id"`
}

func (o Owner) Validate() error {
	if o.UserID == "" {
		return errors.New("owner user_id required")
	}
	if o.BrandID == "" {
		return errors.New("owner brand_id required")
	}
	return nil
}

// CoverageState is the ordered strength of an answer unit.
type CoverageState string

const (
	CoveragePartial  CoverageState = "partial"
	CoverageStrong   CoverageState = "strong"
	CoverageDominant CoverageState = "dominant"
)

var coverageRanks = map[CoverageState]int{
	CoveragePartial:  0,
	CoverageStrong:   1,
	CoverageDominant: 2,
}

// Rank returns the position of the state in the order partial < strong < dominant.
func (s CoverageState) Rank() int {
	r, ok := coverageRanks[s]
	if !ok {
		return -1
	}
	return r
}

func (s CoverageState) Valid() bool { return s.Rank() >= 0 }

// PromoteCoverage merges two coverage states, keeping the stronger one.
// Promotion is commutative and idempotent; states are never demoted.
func PromoteCoverage(a, b CoverageState) CoverageState {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseCoverageState validates a raw state string, typically from LLM output.
func ParseCoverageState(raw string) (CoverageState, error) {
	s := CoverageState(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown coverage state %q", raw)
	}
	return s, nil
}

// IntentRole is one of the six fixed strategic categories an article can serve.
type IntentRole string

const (
	RoleCoreAnswer       IntentRole = "core_answer"
	RoleDecision         IntentRole = "decision"
	RoleComparison       IntentRole = "comparison"
	RoleProblemSpecific  IntentRole = "problem_specific"
	RoleEmotionalUseCase IntentRole = "emotional_use_case"
	RoleAuthorityEdge    IntentRole = "authority_edge"
)

// IntentRoles lists all roles in their canonical order.
var IntentRoles = []IntentRole{
	RoleCoreAnswer,
	RoleDecision,
	RoleComparison,
	RoleProblemSpecific,
	RoleEmotionalUseCase,
	RoleAuthorityEdge,
}

func (r IntentRole) Valid() bool {
	for _, known := range IntentRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseIntentRole validates a raw role string, typically from LLM output.
func ParseIntentRole(raw string) (IntentRole, error) {
	r := IntentRole(raw)
	if !r.Valid() {
		return "", fmt.Errorf("unknown intent role %q", raw)
	}
	return r, nil
}

// AnswerUnit is a single (question, role, strength) fact contributed by one article.
// At most one unit exists per (owner, cluster, normalized question) key.
type AnswerUnit struct {
	Owner          Owner         `json:"owner"`
	Cluster        string        `json:"cluster"`
	Question       string        `json:"question"`
	QuestionKey    string        `json:"question_key"`
	IntentRole     IntentRole    `json:"intent_role"`
	CoverageState  CoverageState `json:"coverage_state"`
	FirstCoveredBy string        `json:"first_covered_by"`
	CreatedAt      time.Time     `json:"created_at"`
	LastUpdatedAt  time.Time     `json:"last_updated_at"`
}

// EmbeddedRecord associates a semantic vector with an owner and a topic text signal.
// Recomputed whenever the source text changes; otherwise kept indefinitely for
// similarity lookups.
type EmbeddedRecord struct {
	Owner      Owner     `json:"owner"`
	SourceID   string    `json:"source_id"`
	Kind       string    `json:"kind"` // article | internal_link | planned
	TextSignal string    `json:"text_signal"`
	Vector     []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// ArticleType categorises a planned article.
type ArticleType string

const (
	ArticleInformational ArticleType = "informational"
	ArticleCommercial    ArticleType = "commercial"
	ArticleHowTo         ArticleType = "howto"
)

func (t ArticleType) Valid() bool {
	switch t {
	case ArticleInformational, ArticleCommercial, ArticleHowTo:
		return true
	}
	return false
}

// ItemStatus is the lifecycle state of a plan item.
// pending -> writing -> published, or pending -> skipped; skipped and
// published are terminal.
type ItemStatus string

const (
	StatusPending   ItemStatus = "pending"
	StatusWriting   ItemStatus = "writing"
	StatusPublished ItemStatus = "published"
	StatusSkipped   ItemStatus = "skipped"
)

var allowedTransitions = map[ItemStatus][]ItemStatus{
	StatusPending: {StatusWriting, StatusSkipped},
	StatusWriting: {StatusPublished},
}

// CanTransition reports whether a plan item may move from one status to another.
func CanTransition(from, to ItemStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PlanItem is one scheduled unit of work in a content plan.
type PlanItem struct {
	ID                 string      `json:"id"`
	Title              string      `json:"title"`
	MainKeyword        string      `json:"main_keyword"`
	SupportingKeywords []string    `json:"supporting_keywords"`
	ArticleType        ArticleType `json:"article_type"`
	IntentRole         IntentRole  `json:"intent_role"`
	Cluster            string      `json:"cluster"`
	ScheduledDate      time.Time   `json:"scheduled_date"`
	Status             ItemStatus  `json:"status"`

	// Optional opportunity signal fields, populated when an external
	// query-performance record matched the item's main keyword.
	OpportunityScore int     `json:"opportunity_score,omitempty"`
	OpportunityBadge string  `json:"opportunity_badge,omitempty"`
	Impressions      int64   `json:"impressions,omitempty"`
	AvgPosition      float64 `json:"avg_position,omitempty"`
	CTR              float64 `json:"ctr,omitempty"`
}

// SitemapPage is one parsed entry from a brand's sitemap import.
type SitemapPage struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}
