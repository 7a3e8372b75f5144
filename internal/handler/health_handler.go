package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HugPhiluu/PhilCard/internal/config"
)

// Health reports liveness. It lives outside /api, so it is not in the API docs.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Version: config.AppVersion})
}
