package http

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/studylog/core/internal/application/services"
	"github.com/studylog/core/internal/infrastructure/logger"
	"github.com/studylog/core/internal/ports"
)

// StudyHandler handles the page and the JSON API
type StudyHandler struct {
	studyService *services.StudyService
	logger       *logger.Logger
}

// NewStudyHandler creates a new study handler
func NewStudyHandler(studyService *services.StudyService, logger *logger.Logger) *StudyHandler {
	return &StudyHandler{
		studyService: studyService,
		logger:       logger,
	}
}

// Index renders the main page
func (h *StudyHandler) Index(c echo.Context) error {
	page, err := h.studyService.Page(c.Request().Context(), SessionID(c))
	if err != nil {
		h.logger.Errorw("Render page failed", "error", err)
		return toHTTPError(err)
	}
	return c.Render(http.StatusOK, "index.html", page)
}

// SubmitEntry godoc
// @Summary Record study time
// @Description Append an entry to the selected database. Minute values are coerced to whole non-negative numbers.
// @Tags entries
// @Accept json
// @Produce json
// @Param request body ports.SubmitEntryRequest true "Date and minutes per category"
// @Success 200 {object} ports.SubmitEntryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /submit [post]
func (h *StudyHandler) SubmitEntry(c echo.Context) error {
	var req ports.SubmitEntryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidRequest)
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgDateRequired)
	}

	entry, err := h.studyService.SubmitEntry(c.Request().Context(), SessionID(c), req)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, ports.SubmitEntryResponse{
		Message: msgEntrySaved,
		Entry:   entry,
	})
}

// GetData godoc
// @Summary Raw entries
// @Description Full content of the selected database
// @Tags entries
// @Produce json
// @Success 200 {object} entities.Collection
// @Failure 500 {object} ErrorResponse
// @Router /api/data [get]
func (h *StudyHandler) GetData(c echo.Context) error {
	collection, _, err := h.studyService.Data(c.Request().Context(), SessionID(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, collection)
}

// GetStats godoc
// @Summary Totals and percentages
// @Tags entries
// @Produce json
// @Success 200 {object} ports.StatsResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/stats [get]
func (h *StudyHandler) GetStats(c echo.Context) error {
	resp, err := h.studyService.Stats(c.Request().Context(), SessionID(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetSeries godoc
// @Summary Chart series
// @Description Running totals per entry and cumulative daily averages
// @Tags entries
// @Produce json
// @Success 200 {object} ports.SeriesResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/series [get]
func (h *StudyHandler) GetSeries(c echo.Context) error {
	resp, err := h.studyService.Series(c.Request().Context(), SessionID(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ListDatabases godoc
// @Summary List databases
// @Tags databases
// @Produce json
// @Success 200 {object} ports.CollectionsResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/databases [get]
func (h *StudyHandler) ListDatabases(c echo.Context) error {
	resp, err := h.studyService.ListCollections(c.Request().Context(), SessionID(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// SwitchDatabase godoc
// @Summary Select a database
// @Tags databases
// @Accept json
// @Produce json
// @Param request body ports.SwitchCollectionRequest true "Database file name"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/switch-db [post]
func (h *StudyHandler) SwitchDatabase(c echo.Context) error {
	var req ports.SwitchCollectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidRequest)
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidName)
	}

	if err := h.studyService.SwitchCollection(c.Request().Context(), SessionID(c), req.Database); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: fmt.Sprintf("Switched to %s", req.Database)})
}

// CreateDatabase godoc
// @Summary Create a database
// @Description Creates an empty database and selects it. A trailing .json is accepted.
// @Tags databases
// @Accept json
// @Produce json
// @Param request body ports.CreateCollectionRequest true "Base name"
// @Success 200 {object} ports.CreateCollectionResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/create-db [post]
func (h *StudyHandler) CreateDatabase(c echo.Context) error {
	var req ports.CreateCollectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidRequest)
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidName)
	}

	file, err := h.studyService.CreateCollection(c.Request().Context(), SessionID(c), req.Name)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, ports.CreateCollectionResponse{
		Message:  fmt.Sprintf("Database %s created", file),
		Database: file,
	})
}

// DeleteDatabase godoc
// @Summary Delete a database
// @Description Sessions that had it selected move to a remaining database.
// @Tags databases
// @Accept json
// @Produce json
// @Param request body ports.DeleteCollectionRequest true "Database file name"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/delete-db [post]
func (h *StudyHandler) DeleteDatabase(c echo.Context) error {
	var req ports.DeleteCollectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidRequest)
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidName)
	}

	if _, err := h.studyService.DeleteCollection(c.Request().Context(), SessionID(c), req.Database); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: fmt.Sprintf("Database %s deleted", req.Database)})
}
