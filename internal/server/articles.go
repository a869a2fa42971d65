package server

import (
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/planora-ai/planora/internal/coverage"
	"github.com/planora-ai/planora/internal/semantic"
	"github.com/planora-ai/planora/internal/store"
	"github.com/planora-ai/planora/models"
)

type ArticlesHandler struct {
	Store     *store.Store
	Extractor *coverage.Extractor
	Merger    *coverage.Merger
	Gateway   *semantic.Gateway
	Rdb       *redis.Client
	Logger    *log.Logger
}

func (h *ArticlesHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("/:id/articles/analyze", h.analyze)
}

// analyze extracts answer units from a published article, merges them into
// the coverage store, and indexes the article's topic signal for dedup. The
// coverage merge is the primary effect; a failed embedding only costs future
// dedup accuracy, so it is logged and the request still succeeds.
func (h *ArticlesHandler) analyze(c echo.Context) error {
	_, owner, err := requireBrand(c, h.Store)
	if err != nil {
		return err
	}
	var req AnalyzeArticleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SourceID == "" || req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_id and text required")
	}
	ctx := c.Request().Context()

	units, err := h.Extractor.Extract(ctx, req.Text, req.MainKeyword, req.Cluster)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if err := h.Merger.Apply(ctx, owner, req.Cluster, req.SourceID, units); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.invalidateSummary(c, owner, req.Cluster)

	resp := AnalyzeArticleResponse{UnitsExtracted: len(units)}
	if vec, err := h.Gateway.Embed(ctx, semantic.TopicSignal(req.Title, req.MainKeyword)); err != nil {
		h.Logger.Printf("topic embedding for %s failed: %v", req.SourceID, err)
	} else {
		rec := models.EmbeddedRecord{
			Owner:      owner,
			SourceID:   req.SourceID,
			Kind:       "article",
			TextSignal: semantic.TopicSignal(req.Title, req.MainKeyword),
			Vector:     vec,
			CreatedAt:  time.Now().UTC(),
		}
		if err := h.Store.UpsertTopicEmbedding(ctx, rec); err != nil {
			h.Logger.Printf("store topic embedding for %s failed: %v", req.SourceID, err)
		} else {
			resp.TopicIndexed = true
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// invalidateSummary drops cached coverage summaries touched by a merge.
func (h *ArticlesHandler) invalidateSummary(c echo.Context, owner models.Owner, cluster string) {
	if h.Rdb == nil {
		return
	}
	keys := []string{summaryCacheKey(owner, "")}
	if cluster != "" {
		keys = append(keys, summaryCacheKey(owner, cluster))
	}
	if err := h.Rdb.Del(c.Request().Context(), keys...).Err(); err != nil {
		h.Logger.Printf("summary cache invalidation failed: %v", err)
	}
}
