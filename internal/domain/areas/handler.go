package areas

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Suggestion levels accepted by GET /areas/suggest.
const (
	LevelProvince    = "province"
	LevelDistrict    = "district"
	LevelSubdistrict = "subdistrict"
)

type Handler struct {
	dir *Directory
}

func NewHandler(dir *Directory) *Handler {
	if dir == nil {
		dir = &Directory{}
	}
	return &Handler{dir: dir}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/areas", h.GetDirectory)
	api.GET("/areas/suggest", h.Suggest)
}

// GetDirectory serves the whole reference tree; an unavailable directory is
// served as an empty one.
func (h *Handler) GetDirectory(c echo.Context) error {
	provinces := h.dir.Provinces
	if provinces == nil {
		provinces = []Province{}
	} else {
		c.Response().Header().Set("Cache-Control", "public, max-age=3600")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"provinces": provinces})
}

// Suggest filters one level of the directory. district requires province;
// subdistrict requires province and district.
func (h *Handler) Suggest(c echo.Context) error {
	level := c.QueryParam("level")
	q := c.QueryParam("q")

	var candidates []string
	switch level {
	case LevelProvince:
		candidates = h.dir.ProvinceNames()
	case LevelDistrict:
		candidates = DistrictNames(h.dir.Districts(c.QueryParam("province")))
	case LevelSubdistrict:
		candidates = SubdistrictNames(h.dir.Subdistricts(c.QueryParam("province"), c.QueryParam("district")))
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "level must be province, district or subdistrict")
	}

	suggestions := Suggest(candidates, q)
	if suggestions == nil {
		suggestions = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"level":       level,
		"query":       q,
		"suggestions": suggestions,
	})
}
