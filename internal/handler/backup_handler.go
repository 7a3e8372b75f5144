package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/HugPhiluu/PhilCard/internal/service"
)

const maxBackupSize = 10 << 20

type BackupHandler struct {
	service service.BackupService
}

func NewBackupHandler(service service.BackupService) *BackupHandler {
	return &BackupHandler{service: service}
}

func (h *BackupHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/backup", h.Export)
	g.POST("/backup", h.Import)
}

// Export downloads every link and the page configuration.
// @Summary Export backup
// @Description Download links, profile and settings as a JSON file
// @Tags backup
// @Produce json
// @Security BearerAuth
// @Success 200 {string} string "Backup JSON"
// @Router /backup [get]
func (h *BackupHandler) Export(c echo.Context) error {
	payload, err := h.service.Export(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	filename := fmt.Sprintf("philcard-backup-%s.json", time.Now().UTC().Format("20060102"))
	c.Response().Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, payload)
}

// Import replaces links and configuration from a backup file.
// @Summary Import backup
// @Description Replace all links, profile and settings from a backup file or JSON body
// @Tags backup
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param file formData file false "Backup file to import"
// @Success 200 {object} service.ImportResult
// @Failure 400 {object} errorResponse
// @Failure 413 {object} errorResponse
// @Router /backup [post]
func (h *BackupHandler) Import(c echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response().Writer, req.Body, maxBackupSize)

	var reader io.Reader
	contentType := req.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/") {
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
		src, err := file.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		}
		defer src.Close()
		reader = io.LimitReader(src, maxBackupSize)
	} else {
		reader = req.Body
	}

	result, err := h.service.Import(req.Context(), reader)
	if err != nil {
		if isTooLarge(err) {
			return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large"})
		}
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
