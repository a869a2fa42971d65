package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/planora-ai/planora/models"
)

// Store wraps the Postgres connection for coverage and planning records.
type Store struct {
	DB *sql.DB
}

// ErrInvalidTransition is returned when a plan item status change violates
// the pending -> writing -> published / pending -> skipped lifecycle.
var ErrInvalidTransition = errors.New("invalid plan item status transition")

// DefaultEmbeddingDimensions indicates the expected length of semantic
// vectors stored in pgvector columns.
const DefaultEmbeddingDimensions = 1536

// New wraps an existing database handle.
func New(db *sql.DB) *Store { return &Store{DB: db} }

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// ---- users ----

// CreateUser inserts a new user account.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO users (id, email, password_hash, created_at)
VALUES ($1,$2,$3,NOW())
`, uuid.New().String(), email, passwordHash)
	return err
}

// GetUserByEmail returns a user's id and password hash.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (string, string, error) {
	var id, hash string
	err := s.DB.QueryRowContext(ctx, `
SELECT id, password_hash FROM users WHERE email=$1
`, email).Scan(&id, &hash)
	if err != nil {
		return "", "", err
	}
	return id, hash, nil
}

// ---- brands ----

// BrandRecord is a brand owned by a user; all coverage and planning records
// hang off a (user, brand) pair.
type BrandRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Domain      string    `json:"domain"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateBrand inserts a brand for a user.
func (s *Store) CreateBrand(ctx context.Context, userID, name, domain, description string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("brand name required")
	}
	id := uuid.New().String()
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO brands (id, user_id, name, domain, description, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
`, id, userID, name, nullableString(domain), nullableString(description))
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListBrands returns the user's brands, newest first.
func (s *Store) ListBrands(ctx context.Context, userID string) ([]BrandRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, name, domain, description, created_at
FROM brands
WHERE user_id=$1
ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BrandRecord
	for rows.Next() {
		var rec BrandRecord
		var domain, description sql.NullString
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Name, &domain, &description, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Domain = domain.String
		rec.Description = description.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetBrand fetches a brand scoped to its owning user.
func (s *Store) GetBrand(ctx context.Context, id, userID string) (BrandRecord, bool, error) {
	var rec BrandRecord
	var domain, description sql.NullString
	err := s.DB.QueryRowContext(ctx, `
SELECT id, user_id, name, domain, description, created_at
FROM brands
WHERE id=$1 AND user_id=$2
`, id, userID).Scan(&rec.ID, &rec.UserID, &rec.Name, &domain, &description, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return BrandRecord{}, false, nil
	}
	if err != nil {
		return BrandRecord{}, false, err
	}
	rec.Domain = domain.String
	rec.Description = description.String
	return rec, true, nil
}

// ---- answer units ----

// UpsertAnswerUnit inserts or promotes an answer unit keyed by
// (user, brand, cluster, question_key). The update clause only ever raises
// coverage_state (max-based promotion) and never touches first_covered_by,
// so merges are commutative and the first covering article is write-once.
// Atomic per key by virtue of the single upsert statement.
func (s *Store) UpsertAnswerUnit(ctx context.Context, unit models.AnswerUnit) error {
	if err := unit.Owner.Validate(); err != nil {
		return err
	}
	if unit.QuestionKey == "" {
		return fmt.Errorf("question_key required")
	}
	if !unit.CoverageState.Valid() {
		return fmt.Errorf("invalid coverage state %q", unit.CoverageState)
	}
	if unit.FirstCoveredBy == "" {
		return fmt.Errorf("first_covered_by required")
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO answer_units (user_id, brand_id, cluster, question_key, question, intent_role, coverage_state, state_rank, first_covered_by, created_at, last_updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
ON CONFLICT (user_id, brand_id, cluster, question_key) DO UPDATE SET
  question = CASE WHEN EXCLUDED.state_rank > answer_units.state_rank THEN EXCLUDED.question ELSE answer_units.question END,
  intent_role = CASE WHEN EXCLUDED.state_rank > answer_units.state_rank THEN EXCLUDED.intent_role ELSE answer_units.intent_role END,
  coverage_state = CASE WHEN EXCLUDED.state_rank > answer_units.state_rank THEN EXCLUDED.coverage_state ELSE answer_units.coverage_state END,
  state_rank = GREATEST(answer_units.state_rank, EXCLUDED.state_rank),
  last_updated_at = NOW();
`, unit.Owner.UserID, unit.Owner.BrandID, unit.Cluster, unit.QuestionKey, unit.Question,
		string(unit.IntentRole), string(unit.CoverageState), unit.CoverageState.Rank(), unit.FirstCoveredBy)
	return err
}

// QueryAnswerUnits returns the owner's units, optionally filtered by cluster.
func (s *Store) QueryAnswerUnits(ctx context.Context, owner models.Owner, cluster string) ([]models.AnswerUnit, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT cluster, question_key, question, intent_role, coverage_state, first_covered_by, created_at, last_updated_at
FROM answer_units
WHERE user_id=$1 AND brand_id=$2 AND ($3 = '' OR cluster = $3)
ORDER BY created_at ASC
`, owner.UserID, owner.BrandID, cluster)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AnswerUnit
	for rows.Next() {
		unit := models.AnswerUnit{Owner: owner}
		var role, state string
		if err := rows.Scan(&unit.Cluster, &unit.QuestionKey, &unit.Question, &role, &state, &unit.FirstCoveredBy, &unit.CreatedAt, &unit.LastUpdatedAt); err != nil {
			return nil, err
		}
		unit.IntentRole = models.IntentRole(role)
		unit.CoverageState = models.CoverageState(state)
		out = append(out, unit)
	}
	return out, rows.Err()
}

// ---- topic embeddings ----

// UpsertTopicEmbedding stores or refreshes the semantic vector for a topic
// signal. Keyed by source so re-analyzing an article replaces its vector.
func (s *Store) UpsertTopicEmbedding(ctx context.Context, rec models.EmbeddedRecord) error {
	if err := rec.Owner.Validate(); err != nil {
		return err
	}
	if rec.SourceID == "" {
		return fmt.Errorf("source_id required")
	}
	if len(rec.Vector) == 0 {
		return fmt.Errorf("embedding vector required")
	}
	vectorLiteral, err := encodeVectorLiteral(rec.Vector)
	if err != nil {
		return err
	}
	kind := rec.Kind
	if kind == "" {
		kind = "article"
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO topic_embeddings (user_id, brand_id, source_id, kind, text_signal, embedding, created_at)
VALUES ($1,$2,$3,$4,$5,$6::vector,NOW())
ON CONFLICT (user_id, brand_id, source_id) DO UPDATE SET
  kind = EXCLUDED.kind,
  text_signal = EXCLUDED.text_signal,
  embedding = EXCLUDED.embedding,
  created_at = NOW();
`, rec.Owner.UserID, rec.Owner.BrandID, rec.SourceID, kind, rec.TextSignal, vectorLiteral)
	return err
}

// ListTopicEmbeddings returns all embedded records for an owner, decoded for
// in-process similarity scanning.
func (s *Store) ListTopicEmbeddings(ctx context.Context, owner models.Owner) ([]models.EmbeddedRecord, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT source_id, kind, text_signal, embedding::text, created_at
FROM topic_embeddings
WHERE user_id=$1 AND brand_id=$2
ORDER BY created_at ASC
`, owner.UserID, owner.BrandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EmbeddedRecord
	for rows.Next() {
		rec := models.EmbeddedRecord{Owner: owner}
		var literal string
		if err := rows.Scan(&rec.SourceID, &rec.Kind, &rec.TextSignal, &literal, &rec.CreatedAt); err != nil {
			return nil, err
		}
		vec, err := decodeVectorLiteral(literal)
		if err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", rec.SourceID, err)
		}
		rec.Vector = vec
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ---- content plans ----

// PlanRecord is the plan shell owning an ordered list of items.
type PlanRecord struct {
	ID        string       `json:"id"`
	Owner     models.Owner `json:"owner"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ReplaceContentPlan atomically replaces the owner's single active plan with
// the supplied items. The unique constraint on (user_id, brand_id) enforces
// the one-active-plan invariant; there is no delete/insert race visible to
// readers because the swap happens in one transaction.
func (s *Store) ReplaceContentPlan(ctx context.Context, owner models.Owner, items []models.PlanItem) (planID string, err error) {
	if err := owner.Validate(); err != nil {
		return "", err
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = tx.QueryRowContext(ctx, `
INSERT INTO content_plans (id, user_id, brand_id, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW())
ON CONFLICT (user_id, brand_id) DO UPDATE SET updated_at = NOW()
RETURNING id
`, uuid.New().String(), owner.UserID, owner.BrandID).Scan(&planID)
	if err != nil {
		return "", fmt.Errorf("upsert plan: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM plan_items WHERE plan_id=$1`, planID); err != nil {
		return "", fmt.Errorf("clear plan items: %w", err)
	}
	if len(items) == 0 {
		return planID, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO plan_items (id, plan_id, position, title, main_keyword, supporting_keywords, article_type, intent_role, cluster, scheduled_date, status, opportunity_score, opportunity_badge, impressions, avg_position, ctr, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NOW(),NOW())
`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i, item := range items {
		id := item.ID
		if id == "" {
			id = uuid.New().String()
		}
		status := item.Status
		if status == "" {
			status = models.StatusPending
		}
		if _, err = stmt.ExecContext(ctx, id, planID, i, item.Title, item.MainKeyword,
			pq.Array(item.SupportingKeywords), string(item.ArticleType), string(item.IntentRole),
			nullableString(item.Cluster), item.ScheduledDate, string(status),
			item.OpportunityScore, nullableString(item.OpportunityBadge),
			item.Impressions, item.AvgPosition, item.CTR); err != nil {
			return "", fmt.Errorf("insert plan item %d: %w", i, err)
		}
	}
	return planID, nil
}

// GetContentPlan returns the owner's active plan and its items in schedule order.
func (s *Store) GetContentPlan(ctx context.Context, owner models.Owner) (PlanRecord, []models.PlanItem, error) {
	if err := owner.Validate(); err != nil {
		return PlanRecord{}, nil, err
	}
	var rec PlanRecord
	rec.Owner = owner
	err := s.DB.QueryRowContext(ctx, `
SELECT id, created_at, updated_at
FROM content_plans
WHERE user_id=$1 AND brand_id=$2
`, owner.UserID, owner.BrandID).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PlanRecord{}, nil, models.ErrPlanNotFound
	}
	if err != nil {
		return PlanRecord{}, nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
SELECT id, title, main_keyword, supporting_keywords, article_type, intent_role, cluster, scheduled_date, status, opportunity_score, opportunity_badge, impressions, avg_position, ctr
FROM plan_items
WHERE plan_id=$1
ORDER BY position ASC
`, rec.ID)
	if err != nil {
		return PlanRecord{}, nil, err
	}
	defer rows.Close()

	var items []models.PlanItem
	for rows.Next() {
		var item models.PlanItem
		var articleType, role, status string
		var cluster, badge sql.NullString
		if err := rows.Scan(&item.ID, &item.Title, &item.MainKeyword, pq.Array(&item.SupportingKeywords),
			&articleType, &role, &cluster, &item.ScheduledDate, &status,
			&item.OpportunityScore, &badge, &item.Impressions, &item.AvgPosition, &item.CTR); err != nil {
			return PlanRecord{}, nil, err
		}
		item.ArticleType = models.ArticleType(articleType)
		item.IntentRole = models.IntentRole(role)
		item.Status = models.ItemStatus(status)
		item.Cluster = cluster.String
		item.OpportunityBadge = badge.String
		items = append(items, item)
	}
	return rec, items, rows.Err()
}

// UpdatePlanItemStatus moves a plan item through its lifecycle. The current
// status is read under a row lock so concurrent transitions serialize.
func (s *Store) UpdatePlanItemStatus(ctx context.Context, planID, itemID string, next models.ItemStatus) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var current string
	err = tx.QueryRowContext(ctx, `
SELECT status FROM plan_items WHERE id=$1 AND plan_id=$2 FOR UPDATE
`, itemID, planID).Scan(&current)
	if err != nil {
		return err
	}
	if !models.CanTransition(models.ItemStatus(current), next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}
	_, err = tx.ExecContext(ctx, `
UPDATE plan_items SET status=$1, updated_at=NOW() WHERE id=$2 AND plan_id=$3
`, string(next), itemID, planID)
	return err
}

// ---- helpers ----

func nullableString(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}

func decodeVectorLiteral(literal string) ([]float32, error) {
	literal = strings.TrimSpace(literal)
	if len(literal) < 2 || literal[0] != '[' || literal[len(literal)-1] != ']' {
		return nil, fmt.Errorf("malformed vector literal")
	}
	body := literal[1 : len(literal)-1]
	if body == "" {
		return nil, fmt.Errorf("vector literal empty")
	}
	parts := strings.Split(body, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %d: %w", i, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}
