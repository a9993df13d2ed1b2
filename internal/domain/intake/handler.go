package intake

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/liveintake/intake/pkg/pagination"
)

type Handler struct {
	mgr *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/intake/sessions")
	g.POST("", h.OpenSession)
	g.GET("", h.ListSessions)
	g.GET("/:id", h.GetSession)
	g.DELETE("/:id", h.CloseSession)
	g.PUT("/:id/fields/:field", h.SetField)
	g.PUT("/:id/location/:field", h.SelectLocation)
	g.POST("/:id/submit", h.Submit)

	// Autocomplete inputs for the location fields.
	g.PUT("/:id/suggest/:field", h.TypeSuggestion)
	g.POST("/:id/suggest/:field/key", h.SuggestionKey)
	g.POST("/:id/suggest/:field/pick", h.PickSuggestion)
	g.POST("/:id/suggest/:field/blur", h.BlurSuggestion)
}

type openRequest struct {
	ID string `json:"id"`
}

type valueRequest struct {
	Value string `json:"value"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type keyRequest struct {
	Key string `json:"key"`
}

type pickRequest struct {
	Index int `json:"index"`
}

type suggestionResponse struct {
	Suggestions SuggestionState `json:"suggestions"`
	Session     View            `json:"session"`
}

// -- Session lifecycle --

func (h *Handler) OpenSession(c echo.Context) error {
	var req openRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	f, err := h.mgr.Open(req.ID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, f.View())
}

func (h *Handler) ListSessions(c echo.Context) error {
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.Page(h.mgr.Views(), pg, c.Path()))
}

func (h *Handler) GetSession(c echo.Context) error {
	f, err := h.mgr.Get(c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, f.View())
}

func (h *Handler) CloseSession(c echo.Context) error {
	if err := h.mgr.Close(c.Param("id")); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Field edits --

func (h *Handler) SetField(c echo.Context) error {
	f, err := h.mgr.Get(c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	var req valueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := f.SetField(c.Request().Context(), c.Param("field"), req.Value); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, f.View())
}

func (h *Handler) SelectLocation(c echo.Context) error {
	f, err := h.mgr.Get(c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	var req valueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := f.Select(c.Request().Context(), c.Param("field"), req.Value); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, f.View())
}

// Submit answers 200 with the submitted and next session ids, or 422 with the
// field errors when validation fails.
func (h *Handler) Submit(c echo.Context) error {
	res, errs, err := h.mgr.Submit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	if len(errs) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{"errors": errs})
	}
	return c.JSON(http.StatusOK, res)
}

// -- Suggestions --

func (h *Handler) TypeSuggestion(c echo.Context) error {
	f, err := h.mgr.Get(c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	state, err := f.Type(c.Request().Context(), c.Param("field"), req.Query)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, suggestionResponse{Suggestions: state, Session: f.View()})
}

func (h *Handler) SuggestionKey(c echo.Context) error {
	f, list, err := h.suggestionList(c)
	if err != nil {
		return err
	}
	var req keyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := list.Key(c.Request().Context(), req.Key); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, suggestionResponse{Suggestions: list.State(), Session: f.View()})
}

func (h *Handler) PickSuggestion(c echo.Context) error {
	f, list, err := h.suggestionList(c)
	if err != nil {
		return err
	}
	var req pickRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	_, ok, err := list.Pick(c.Request().Context(), req.Index)
	if err != nil {
		return mapError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "no suggestion at that index")
	}
	return c.JSON(http.StatusOK, suggestionResponse{Suggestions: list.State(), Session: f.View()})
}

func (h *Handler) BlurSuggestion(c echo.Context) error {
	f, list, err := h.suggestionList(c)
	if err != nil {
		return err
	}
	list.Blur()
	return c.JSON(http.StatusOK, suggestionResponse{Suggestions: list.State(), Session: f.View()})
}

func (h *Handler) suggestionList(c echo.Context) (*Form, *SuggestionList, error) {
	f, err := h.mgr.Get(c.Param("id"))
	if err != nil {
		return nil, nil, mapError(err)
	}
	list, err := f.Suggestions(c.Param("field"))
	if err != nil {
		return nil, nil, mapError(err)
	}
	return f, list, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	case errors.Is(err, ErrSessionExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrFormClosed):
		return echo.NewHTTPError(http.StatusGone, err.Error())
	case errors.Is(err, ErrUnknownField), errors.Is(err, ErrNotSuggestible), errors.Is(err, ErrUnknownKey):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
