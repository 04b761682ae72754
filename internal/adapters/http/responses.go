package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/studylog/core/internal/domain/entities"
)

// MessageResponse is the body of successful mutations
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	msgEntrySaved     = "Study time recorded successfully!"
	msgDateRequired   = "Date is required"
	msgSaveFailed     = "Failed to save data"
	msgInvalidRequest = "Invalid request format"
	msgInvalidName    = "Invalid database name. Use letters, numbers, dashes and underscores only."
	msgNotFound       = "Database not found"
	msgExists         = "Database already exists"
	msgLastDatabase   = "Cannot delete the last database"
	msgInternal       = "Internal server error"
)

// toHTTPError maps domain errors onto status codes and user facing messages
func toHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, entities.ErrDateRequired):
		return echo.NewHTTPError(http.StatusBadRequest, msgDateRequired)
	case errors.Is(err, entities.ErrInvalidCollectionName):
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidName)
	case errors.Is(err, entities.ErrCollectionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, msgNotFound)
	case errors.Is(err, entities.ErrCollectionExists):
		return echo.NewHTTPError(http.StatusBadRequest, msgExists)
	case errors.Is(err, entities.ErrLastCollection):
		return echo.NewHTTPError(http.StatusBadRequest, msgLastDatabase)
	case errors.Is(err, entities.ErrPersist):
		return echo.NewHTTPError(http.StatusInternalServerError, msgSaveFailed).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, msgInternal).SetInternal(err)
	}
}
