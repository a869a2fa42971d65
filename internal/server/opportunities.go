package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/planora-ai/planora/internal/opportunity"
)

type OpportunitiesHandler struct{}

func (h *OpportunitiesHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("/score", h.score)
}

// score previews opportunity scoring for a batch of query-performance rows
// without touching any plan. Useful for dashboards and for callers deciding
// which signals to attach to a planning run.
func (h *OpportunitiesHandler) score(c echo.Context) error {
	var req ScoreSignalsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Signals) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "signals required")
	}
	out := make([]ScoredSignalResponse, 0, len(req.Signals))
	for _, s := range req.Signals {
		r := opportunity.Score(s.Impressions, s.AvgPosition, s.CTR)
		out = append(out, ScoredSignalResponse{
			Keyword: s.Keyword,
			Score:   r.Score,
			Badge:   string(r.Badge),
		})
	}
	return c.JSON(http.StatusOK, out)
}
