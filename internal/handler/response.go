package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HugPhiluu/PhilCard/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func writeServiceError(c echo.Context, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: verr.Error()})
	case errors.Is(err, service.ErrInvalid):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "resource not found"})
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, errorResponse{Error: "conflict"})
	case errors.Is(err, service.ErrTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large"})
	case errors.Is(err, service.ErrFetch):
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "upstream fetch failed"})
	case errors.Is(err, service.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
