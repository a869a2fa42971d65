package server

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/planora-ai/planora/internal/opportunity"
	"github.com/planora-ai/planora/internal/planner"
	"github.com/planora-ai/planora/internal/store"
	"github.com/planora-ai/planora/models"
)

// planLockTTL bounds how long a planning run may hold the per-brand lock.
// A crashed run frees the brand after expiry without manual cleanup.
const planLockTTL = 2 * time.Minute

type PlansHandler struct {
	Store  *store.Store
	Synth  *planner.Synthesizer
	Rdb    *redis.Client
	Logger *log.Logger
}

func (h *PlansHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("/:id/plan/generate", h.generate)
	g.GET("/:id/plan", h.get)
	g.PATCH("/:id/plan/items/:itemID", h.updateItemStatus)
}

// generate runs one plan synthesis and atomically replaces the brand's plan.
// A redis lock serializes runs per brand; a concurrent request gets 409
// instead of queueing.
func (h *PlansHandler) generate(c echo.Context) error {
	_, owner, err := requireBrand(c, h.Store)
	if err != nil {
		return err
	}
	var req GeneratePlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()

	lockKey := fmt.Sprintf("plan:lock:%s:%s", owner.UserID, owner.BrandID)
	ok, err := h.Rdb.SetNX(ctx, lockKey, time.Now().UTC().Format(time.RFC3339), planLockTTL).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("acquire plan lock: %v", err))
	}
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "a planning run is already in progress for this brand")
	}
	defer func() {
		if err := h.Rdb.Del(ctx, lockKey).Err(); err != nil {
			h.Logger.Printf("release plan lock %s failed: %v", lockKey, err)
		}
	}()

	result, err := h.Synth.GeneratePlan(ctx, planner.Request{
		Owner:         owner,
		SeedTopics:    req.SeedTopics,
		BrandContext:  req.BrandContext,
		Cluster:       req.Cluster,
		Opportunities: opportunity.ScoreSignals(req.Signals),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	planID, err := h.Store.ReplaceContentPlan(ctx, owner, result.Items)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, PlanResponse{
		PlanID:         planID,
		Items:          result.Items,
		RequestedCount: result.RequestedCount,
		AcceptedCount:  result.AcceptedCount,
		RejectedCount:  result.RejectedCount,
	})
}

func (h *PlansHandler) get(c echo.Context) error {
	_, owner, err := requireBrand(c, h.Store)
	if err != nil {
		return err
	}
	rec, items, err := h.Store.GetContentPlan(c.Request().Context(), owner)
	if errors.Is(err, models.ErrPlanNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no content plan for this brand")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []models.PlanItem{}
	}
	return c.JSON(http.StatusOK, PlanResponse{PlanID: rec.ID, Items: items})
}

func (h *PlansHandler) updateItemStatus(c echo.Context) error {
	_, owner, err := requireBrand(c, h.Store)
	if err != nil {
		return err
	}
	var req UpdateItemStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	next := models.ItemStatus(req.Status)
	switch next {
	case models.StatusWriting, models.StatusPublished, models.StatusSkipped:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown status %q", req.Status))
	}
	ctx := c.Request().Context()

	rec, _, err := h.Store.GetContentPlan(ctx, owner)
	if errors.Is(err, models.ErrPlanNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no content plan for this brand")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	err = h.Store.UpdatePlanItemStatus(ctx, rec.ID, c.Param("itemID"), next)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return echo.NewHTTPError(http.StatusNotFound, "plan item not found")
	case errors.Is(err, store.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}
