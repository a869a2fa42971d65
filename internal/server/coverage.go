package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/planora-ai/planora/internal/coverage"
	"github.com/planora-ai/planora/internal/store"
	"github.com/planora-ai/planora/models"
)

type CoverageHandler struct {
	Store      *store.Store
	Summarizer *coverage.Summarizer
	Seeder     *coverage.SitemapSeeder
	Rdb        *redis.Client
	CacheTTL   time.Duration
	Logger     *log.Logger
}

func (h *CoverageHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("/:id/coverage", h.summary)
	g.GET("/:id/coverage/units", h.units)
	g.POST("/:id/sitemap/seed", h.seed)
}

// summary returns the strongly/partially answered partition, cached briefly
// in redis since plan generation and dashboards hit it repeatedly.
func (h *CoverageHandler) summary(c echo.Context) error {
	_, owner, err := requireBrand(c, h.Store)
	if err != nil {
		return err
	}
	cluster := c.QueryParam("cluster")
	ctx := c.Request().Context()

	key := summaryCacheKey(owner, cluster)
	if h.Rdb != nil {
		if cached, err := h.Rdb.Get(ctx, key).Result(); err == nil {
			var s coverage.Summary
			if json.Unmarshal([]byte(cached), &s) == nil {
				return c.JSON(http.StatusOK, s)
			}
		}
	}

	summary, err := h.Summarizer.Summarize(ctx, owner, cluster)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if h.Rdb != nil {
		if b, err := json.Marshal(summary); err == nil {
			if err := h.Rdb.Set(ctx, key, b, h.CacheTTL).Err(); err != nil {
				h.Logger.Printf("summary cache write failed: %v", err)
			}
		}
	}
	return c.JSON(http.StatusOK, summary)
}

// units returns the raw answer units, optionally filtered by cluster.
func (h *CoverageHandler) units(c echo.Context) error {
	_, owner, err := requireBrand(c, h.Store)
	if err != nil {
		return err
	}
	units, err := h.Store.QueryAnswerUnits(c.Request().Context(), owner, c.QueryParam("cluster"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if units == nil {
		units = []models.AnswerUnit{}
	}
	return c.JSON(http.StatusOK, units)
}

// seed backfills the similarity corpus from the brand's existing pages.
func (h *CoverageHandler) seed(c echo.Context) error {
	_, owner, err := requireBrand(c, h.Store)
	if err != nil {
		return err
	}
	var req SeedSitemapRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Pages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "pages required")
	}
	for i, p := range req.Pages {
		if p.URL == "" || p.Title == "" {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("page %d: url and title required", i))
		}
	}
	result, err := h.Seeder.Seed(c.Request().Context(), owner, req.Pages, req.DeriveUnits)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if req.DeriveUnits && h.Rdb != nil {
		_ = h.Rdb.Del(c.Request().Context(), summaryCacheKey(owner, "")).Err()
	}
	return c.JSON(http.StatusOK, result)
}

func summaryCacheKey(owner models.Owner, cluster string) string {
	return fmt.Sprintf("coverage:summary:%s:%s:%s", owner.UserID, owner.BrandID, cluster)
}
