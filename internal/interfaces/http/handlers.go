package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/application/service"
	"github.com/garyjia/travel-approval/internal/domain/approval"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
	"github.com/garyjia/travel-approval/pkg/utils"
)

const (
	// userHeader carries the acting user id; there is no authentication
	userHeader = "X-User-ID"
	actorKey   = "actor_id"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	travelService service.TravelService
	exportService service.ExportService
	health        HealthFunc
	logger        Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	travelService service.TravelService,
	exportService service.ExportService,
	health HealthFunc,
	logger Logger,
) *Handlers {
	return &Handlers{
		travelService: travelService,
		exportService: exportService,
		health:        health,
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// ListApplicationsRequest represents query parameters for listing applications
type ListApplicationsRequest struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// ActionRequest is the body of POST /approvals
type ActionRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject"`
	Notes  string `json:"notes"`
}

// NotesRequest is the optional body of cancel and return-to-draft
type NotesRequest struct {
	Notes string `json:"notes"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	healthy := true
	var components interface{}
	if h.health != nil {
		healthy, components = h.health(c.Request.Context())
	}

	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}
	code := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, Response{
		Success: healthy,
		Data:    response,
	})
}

// RequireActor parses X-User-ID and aborts when it is missing or invalid
func (h *Handlers) RequireActor(c *gin.Context) {
	raw := c.GetHeader(userHeader)
	actorID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || actorID <= 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
			Success: false,
			Error:   fmt.Sprintf("missing or invalid %s header", userHeader),
		})
		return
	}
	c.Set(actorKey, actorID)
	c.Next()
}

// ListApplications handles GET /api/applications
func (h *Handlers) ListApplications(c *gin.Context) {
	var req ListApplicationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	apps, err := h.travelService.List(c.Request.Context(), req.Status, req.Limit, req.Offset)
	if err != nil {
		h.writeError(c, "list applications", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: apps})
}

// GetApplication handles GET /api/applications/:id
func (h *Handlers) GetApplication(c *gin.Context) {
	id, ok := h.applicationID(c)
	if !ok {
		return
	}
	app, err := h.travelService.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get application", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: app})
}

// GetFlows handles GET /api/applications/:id/flows
func (h *Handlers) GetFlows(c *gin.Context) {
	id, ok := h.applicationID(c)
	if !ok {
		return
	}
	flows, err := h.travelService.Flows(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get flows", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: flows})
}

// GetHistory handles GET /api/applications/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id, ok := h.applicationID(c)
	if !ok {
		return
	}
	history, err := h.travelService.History(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get history", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// PreviewResolution handles GET /api/applications/:id/resolution
func (h *Handlers) PreviewResolution(c *gin.Context) {
	id, ok := h.applicationID(c)
	if !ok {
		return
	}
	result, err := h.travelService.Preview(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "preview resolution", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ExportReport handles GET /api/applications/:id/report.xlsx
func (h *Handlers) ExportReport(c *gin.Context) {
	id, ok := h.applicationID(c)
	if !ok {
		return
	}

	// buffer so a failed export still gets a JSON error
	var buf bytes.Buffer
	if err := h.exportService.Export(c.Request.Context(), id, &buf); err != nil {
		h.writeError(c, "export report", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="application-%d-chain.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Submit handles POST /api/applications/:id/submit
func (h *Handlers) Submit(c *gin.Context) {
	id, ok := h.applicationID(c)
	if !ok {
		return
	}
	out, err := h.travelService.Submit(c.Request.Context(), id, c.GetInt64(actorKey))
	if err != nil {
		h.writeError(c, "submit application", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// Act handles POST /api/applications/:id/approvals
func (h *Handlers) Act(c *gin.Context) {
	id, ok := h.applicationID(c)
	if !ok {
		return
	}

	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "action must be approve or reject",
		})
		return
	}

	out, err := h.travelService.Act(c.Request.Context(), id, c.GetInt64(actorKey), req.Action, utils.SanitizeString(req.Notes))
	if err != nil {
		h.writeError(c, "record approval action", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// Cancel handles POST /api/applications/:id/cancel
func (h *Handlers) Cancel(c *gin.Context) {
	id, ok := h.applicationID(c)
	if !ok {
		return
	}
	notes, ok := h.notes(c)
	if !ok {
		return
	}
	app, err := h.travelService.Cancel(c.Request.Context(), id, c.GetInt64(actorKey), notes)
	h.respondApplication(c, "cancel application", app, err)
}

// ReturnToDraft handles POST /api/applications/:id/return-to-draft
func (h *Handlers) ReturnToDraft(c *gin.Context) {
	id, ok := h.applicationID(c)
	if !ok {
		return
	}
	notes, ok := h.notes(c)
	if !ok {
		return
	}
	app, err := h.travelService.ReturnToDraft(c.Request.Context(), id, c.GetInt64(actorKey), notes)
	h.respondApplication(c, "return application to draft", app, err)
}

// StartBooking handles POST /api/applications/:id/booking/start
func (h *Handlers) StartBooking(c *gin.Context) {
	id, ok := h.applicationID(c)
	if !ok {
		return
	}
	app, err := h.travelService.StartBooking(c.Request.Context(), id, c.GetInt64(actorKey))
	h.respondApplication(c, "start booking", app, err)
}

// MarkBooked handles POST /api/applications/:id/booking/complete
func (h *Handlers) MarkBooked(c *gin.Context) {
	id, ok := h.applicationID(c)
	if !ok {
		return
	}
	app, err := h.travelService.MarkBooked(c.Request.Context(), id, c.GetInt64(actorKey))
	h.respondApplication(c, "mark booked", app, err)
}

// Complete handles POST /api/applications/:id/complete
func (h *Handlers) Complete(c *gin.Context) {
	id, ok := h.applicationID(c)
	if !ok {
		return
	}
	app, err := h.travelService.Complete(c.Request.Context(), id, c.GetInt64(actorKey))
	h.respondApplication(c, "complete application", app, err)
}

func (h *Handlers) respondApplication(c *gin.Context, op string, app interface{}, err error) {
	if err != nil {
		h.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: app})
}

func (h *Handlers) applicationID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid application ID",
		})
		return 0, false
	}
	return id, true
}

// notes reads an optional JSON notes body
func (h *Handlers) notes(c *gin.Context) (string, bool) {
	if c.Request.ContentLength == 0 {
		return "", true
	}
	var req NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return "", false
	}
	return utils.SanitizeString(req.Notes), true
}

// writeError maps service errors onto status codes
func (h *Handlers) writeError(c *gin.Context, op string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "operation", op, "error", err)
		c.JSON(code, Response{Success: false, Error: op + " failed"})
		return
	}
	h.logger.Warn("Request rejected", "operation", op, "status", code, "error", err)
	c.JSON(code, Response{Success: false, Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, approval.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, approval.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, port.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, approval.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domainwf.ErrInvalidTransition),
		errors.Is(err, domainwf.ErrGuardFailed),
		errors.Is(err, domainwf.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
