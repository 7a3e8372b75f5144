package handler

import (
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/HugPhiluu/PhilCard/internal/service"
)

// multipartOverhead leaves room for form boundaries and fields around the file.
const multipartOverhead = 64 << 10

type UploadHandler struct {
	service service.UploadService
	maxSize int64
}

func NewUploadHandler(service service.UploadService, maxSize int64) *UploadHandler {
	return &UploadHandler{service: service, maxSize: maxSize}
}

func (h *UploadHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/uploads/:filename", h.Serve)
}

func (h *UploadHandler) RegisterProtectedRoutes(g *echo.Group) {
	g.POST("/uploads", h.Upload)
	g.DELETE("/uploads/:filename", h.Delete)
}

// Upload stores an image.
// @Summary Upload image
// @Description Upload an avatar, background or icon image (PNG, JPEG, GIF, WebP)
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image file"
// @Param kind query string true "avatar, background or icon"
// @Param crop query string false "square to center-crop an avatar"
// @Success 201 {object} service.UploadResult
// @Failure 400 {object} errorResponse
// @Failure 413 {object} errorResponse
// @Router /uploads [post]
func (h *UploadHandler) Upload(c echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response().Writer, req.Body, h.maxSize+multipartOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large"})
		}
		if err == http.ErrMissingFile {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "missing file"})
		}
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if file.Size > h.maxSize {
		return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large"})
	}
	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	defer src.Close()

	kind := c.QueryParam("kind")
	if kind == "" {
		kind = c.FormValue("kind")
	}
	crop := c.QueryParam("crop")
	if crop == "" {
		crop = c.FormValue("crop")
	}

	result, err := h.service.Upload(req.Context(), kind, crop == "square", src)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

// Delete removes an upload and clears references to it.
// @Summary Delete upload
// @Tags uploads
// @Security BearerAuth
// @Param filename path string true "File name"
// @Success 204
// @Failure 404 {object} errorResponse
// @Router /uploads/{filename} [delete]
func (h *UploadHandler) Delete(c echo.Context) error {
	filename := filepath.Base(c.Param("filename"))
	if err := h.service.Delete(c.Request().Context(), filename); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Serve returns an uploaded file.
func (h *UploadHandler) Serve(c echo.Context) error {
	filename := filepath.Base(c.Param("filename"))
	fullPath, err := h.service.Path(filename)
	if err != nil {
		return c.NoContent(http.StatusNotFound)
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	c.Response().Header().Set("X-Content-Type-Options", "nosniff")
	return c.File(fullPath)
}
