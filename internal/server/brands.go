package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/planora-ai/planora/internal/coverage"
	"github.com/planora-ai/planora/internal/store"
	"github.com/planora-ai/planora/models"
)

type BrandsHandler struct {
	Store      *store.Store
	Summarizer *coverage.Summarizer
}

func (h *BrandsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.GET("/:id/status", h.status)
}

func (h *BrandsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	items, err := h.Store.ListBrands(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.BrandRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *BrandsHandler) create(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req BrandCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	id, err := h.Store.CreateBrand(c.Request().Context(), userID, req.Name, req.Domain, req.Description)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *BrandsHandler) get(c echo.Context) error {
	rec, _, err := requireBrand(c, h.Store)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

// status is a dashboard rollup: coverage depth plus plan presence.
func (h *BrandsHandler) status(c echo.Context) error {
	rec, owner, err := requireBrand(c, h.Store)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	summary, err := h.Summarizer.Summarize(ctx, owner, "")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := BrandStatusResponse{
		Brand:            rec,
		CoverageTotal:    summary.Total,
		StronglyAnswered: len(summary.StronglyAnswered),
	}
	_, items, err := h.Store.GetContentPlan(ctx, owner)
	switch {
	case errors.Is(err, models.ErrPlanNotFound):
		// no plan yet; zero values stand
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	default:
		resp.HasPlan = true
		resp.PlanItems = len(items)
	}
	return c.JSON(http.StatusOK, resp)
}

// requireBrand resolves the :id path param to a brand owned by the
// authenticated user. Cross-user access surfaces as 404, never as a leak.
func requireBrand(c echo.Context, st *store.Store) (store.BrandRecord, models.Owner, error) {
	userID := c.Get("user_id").(string)
	brandID := c.Param("id")
	rec, ok, err := st.GetBrand(c.Request().Context(), brandID, userID)
	if err != nil {
		return store.BrandRecord{}, models.Owner{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return store.BrandRecord{}, models.Owner{}, echo.NewHTTPError(http.StatusNotFound, "brand not found")
	}
	return rec, models.Owner{UserID: userID, BrandID: brandID}, nil
}
