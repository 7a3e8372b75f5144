package handler

import (
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/HugPhiluu/PhilCard/internal/service"
)

const iconURLPrefix = "/icons/"

type IconHandler struct {
	iconService service.IconService
}

func NewIconHandler(iconService service.IconService) *IconHandler {
	return &IconHandler{
		iconService: iconService,
	}
}

func (h *IconHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/icons/:filename", h.GetIcon)
}

func (h *IconHandler) RegisterProtectedRoutes(g *echo.Group) {
	g.POST("/icons/refresh", h.Refresh)
}

// GetIcon serves cached favicons.
// Icons are named by host (e.g., "example.com.png"), not by link ID.
func (h *IconHandler) GetIcon(c echo.Context) error {
	filename := filepath.Base(c.Param("filename"))
	fullPath, err := h.iconService.IconPath(filename)
	if err != nil {
		// missing icon - the page shows a fallback
		return c.NoContent(http.StatusNotFound)
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return c.File(fullPath)
}

// Refresh re-downloads every favicon.
// @Summary Refresh favicons
// @Description Re-fetch the favicon of every favicon link
// @Tags icons
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.IconRefreshResult
// @Failure 500 {object} errorResponse
// @Router /icons/refresh [post]
func (h *IconHandler) Refresh(c echo.Context) error {
	result, err := h.iconService.RefreshAll(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
