package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/HugPhiluu/PhilCard/internal/model"
	"github.com/HugPhiluu/PhilCard/internal/service"
	"github.com/HugPhiluu/PhilCard/internal/snowflake"
)

type LinkHandler struct {
	service  service.LinkService
	previews service.PreviewService
}

func NewLinkHandler(service service.LinkService, previews service.PreviewService) *LinkHandler {
	return &LinkHandler{service: service, previews: previews}
}

type linkRequest struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Subtitle string `json:"subtitle"`
	IconName string `json:"iconName"`
	IconType string `json:"iconType"`
}

// reorderRequest accepts ids as strings or numbers.
type reorderRequest struct {
	IDs []json.Number `json:"ids"`
}

type linkResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Subtitle  string    `json:"subtitle"`
	IconName  string    `json:"iconName"`
	IconType  string    `json:"iconType"`
	IconURL   string    `json:"iconUrl,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RegisterPublicRoutes registers the read-only link routes.
func (h *LinkHandler) RegisterPublicRoutes(g *echo.Group) {
	g.GET("/links", h.List)
	g.GET("/links/:id", h.Get)
}

// RegisterProtectedRoutes registers the admin link routes.
func (h *LinkHandler) RegisterProtectedRoutes(g *echo.Group) {
	g.POST("/links", h.Create)
	g.GET("/links/preview", h.Preview)
	g.PUT("/links/order", h.Reorder)
	g.PUT("/links/:id", h.Update)
	g.DELETE("/links/:id", h.Delete)
}

// List returns all links in display order.
// @Summary List links
// @Description Get all links ordered by position
// @Tags links
// @Produce json
// @Success 200 {array} linkResponse
// @Failure 500 {object} errorResponse
// @Router /links [get]
func (h *LinkHandler) List(c echo.Context) error {
	links, err := h.service.List(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toLinkResponses(links))
}

// Get returns one link.
// @Summary Get link
// @Tags links
// @Produce json
// @Param id path string true "Link ID"
// @Success 200 {object} linkResponse
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /links/{id} [get]
func (h *LinkHandler) Get(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	link, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toLinkResponse(link))
}

// Create adds a link at the end of the list.
// @Summary Create link
// @Description Create a new link; favicon links get their icon fetched
// @Tags links
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param link body linkRequest true "Link"
// @Success 201 {object} linkResponse
// @Failure 400 {object} errorResponse
// @Router /links [post]
func (h *LinkHandler) Create(c echo.Context) error {
	var req linkRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	link, err := h.service.Create(c.Request().Context(), req.toInput())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toLinkResponse(link))
}

// Update replaces the editable fields of a link.
// @Summary Update link
// @Tags links
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Link ID"
// @Param link body linkRequest true "Link"
// @Success 200 {object} linkResponse
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /links/{id} [put]
func (h *LinkHandler) Update(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req linkRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	link, err := h.service.Update(c.Request().Context(), id, req.toInput())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toLinkResponse(link))
}

// Delete removes a link.
// @Summary Delete link
// @Tags links
// @Security BearerAuth
// @Param id path string true "Link ID"
// @Success 204
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /links/{id} [delete]
func (h *LinkHandler) Delete(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Reorder stores a new display order.
// @Summary Reorder links
// @Description Set the display order; ids must list every link exactly once
// @Tags links
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param order body reorderRequest true "Ordered link ids"
// @Success 200 {array} linkResponse
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /links/order [put]
func (h *LinkHandler) Reorder(c echo.Context) error {
	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	ids := make([]int64, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, ok := snowflake.ParseID(raw.String())
		if !ok {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id " + raw.String()})
		}
		ids = append(ids, id)
	}
	links, err := h.service.Reorder(c.Request().Context(), ids)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toLinkResponses(links))
}

// Preview suggests title and description for a URL.
// @Summary Preview link
// @Description Fetch a page and read its title, description, site name and image
// @Tags links
// @Produce json
// @Security BearerAuth
// @Param url query string true "Page URL"
// @Success 200 {object} service.LinkPreview
// @Failure 400 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Router /links/preview [get]
func (h *LinkHandler) Preview(c echo.Context) error {
	preview, err := h.previews.Preview(c.Request().Context(), c.QueryParam("url"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, preview)
}

func (r linkRequest) toInput() service.LinkInput {
	return service.LinkInput{
		Title:    r.Title,
		URL:      r.URL,
		Subtitle: r.Subtitle,
		IconName: r.IconName,
		IconType: r.IconType,
	}
}

func toLinkResponse(link model.Link) linkResponse {
	resp := linkResponse{
		ID:        snowflake.FormatID(link.ID),
		Title:     link.Title,
		URL:       link.URL,
		Subtitle:  link.Subtitle,
		IconName:  link.IconName,
		IconType:  link.IconType,
		Position:  link.Position,
		CreatedAt: link.CreatedAt,
		UpdatedAt: link.UpdatedAt,
	}
	switch link.IconType {
	case model.IconTypeFavicon:
		if link.IconName != "" {
			resp.IconURL = iconURLPrefix + link.IconName
		}
	case model.IconTypeCustom:
		resp.IconURL = link.IconName
	}
	return resp
}

func toLinkResponses(links []model.Link) []linkResponse {
	out := make([]linkResponse, 0, len(links))
	for _, link := range links {
		out = append(out, toLinkResponse(link))
	}
	return out
}
