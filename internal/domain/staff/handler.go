package staff

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/liveintake/intake/pkg/pagination"
)

type Handler struct {
	agg *Aggregator
}

func NewHandler(agg *Aggregator) *Handler {
	return &Handler{agg: agg}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/staff")
	g.GET("/patients", h.ListPatients)
	g.GET("/patients/:id", h.GetPatient)
}

// ListPatients serves the live entries in first-seen order.
func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.Page(h.agg.Snapshot(), pg, c.Path()))
}

func (h *Handler) GetPatient(c echo.Context) error {
	e, ok := h.agg.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, e)
}
