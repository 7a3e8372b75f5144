package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HugPhiluu/PhilCard/internal/snowflake"
)

var errBadID = errors.New("invalid id")

func parseIDParam(c echo.Context, name string) (int64, error) {
	id, ok := snowflake.ParseID(c.Param(name))
	if !ok {
		return 0, errBadID
	}
	return id, nil
}

// isTooLarge reports whether err came from an http.MaxBytesReader.
func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
