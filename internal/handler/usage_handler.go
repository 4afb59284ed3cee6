package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/campus-ops-api/internal/models"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
	"github.com/noah-isme/campus-ops-api/pkg/response"
)

type usageService interface {
	SubmitLogs(ctx context.Context, submitterID string, req models.DailyLogsRequest) (*models.DailyLogsResult, error)
	Pending(ctx context.Context) ([]models.ResourceUsage, error)
	Decide(ctx context.Context, id string, req models.ApproveUsageRequest) (*models.ResourceUsage, error)
	Import(ctx context.Context, submitterID, filename string, r io.Reader) (*models.ImportResult, error)
	Export(ctx context.Context, format string) ([]byte, string, string, error)
	Analytics(ctx context.Context, hostelID string) (*models.UsageAnalytics, error)
	Recent(ctx context.Context) ([]models.ResourceUsage, error)
	Hostels(ctx context.Context) ([]models.Hostel, error)
	CreateHostel(ctx context.Context, req models.CreateHostelRequest) (*models.Hostel, error)
	DeleteHostel(ctx context.Context, id string) error
	Dashboard(ctx context.Context) (*models.DashboardStats, error)
}

// UsageHandler exposes hostel resource logging, approval and reporting.
type UsageHandler struct {
	service        usageService
	maxUploadBytes int64
}

// NewUsageHandler constructs the handler.
func NewUsageHandler(svc usageService, maxUploadBytes int64) *UsageHandler {
	return &UsageHandler{service: svc, maxUploadBytes: maxUploadBytes}
}

// Upload godoc
// @Summary Import a usage spreadsheet
// @Description CSV or XLSX with HostelName, Date, Water, Electricity and FoodWaste columns
// @Tags Resources
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Spreadsheet"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /resources/upload [post]
func (h *UsageHandler) Upload(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Please upload an Excel or CSV file"))
		return
	}
	src, err := file.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer src.Close()

	result, err := h.service.Import(c.Request.Context(), actor.ID, file.Filename, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DailyLog godoc
// @Summary Submit manual readings
// @Description Readings are stored Pending; the response carries quick insights
// @Tags Resources
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.DailyLogsRequest true "Readings"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /resources/daily-log [post]
func (h *UsageHandler) DailyLog(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.DailyLogsRequest
	if !bindJSON(c, &req, "invalid usage logs") {
		return
	}
	result, err := h.service.SubmitLogs(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Pending godoc
// @Summary Readings awaiting approval
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /resources/pending-logs [get]
func (h *UsageHandler) Pending(c *gin.Context) {
	rows, err := h.service.Pending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Decide godoc
// @Summary Approve or reject a reading
// @Description Approval runs the usage analyzer and may raise alerts
// @Tags Resources
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Reading ID"
// @Param payload body models.ApproveUsageRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /resources/logs/{id}/status [put]
func (h *UsageHandler) Decide(c *gin.Context) {
	var req models.ApproveUsageRequest
	if !bindJSON(c, &req, "status must be Approved or Rejected") {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	usage, err := h.service.Decide(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, usage, nil)
}

// Stats godoc
// @Summary Operations dashboard
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /resources/stats [get]
func (h *UsageHandler) Stats(c *gin.Context) {
	stats, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Recent godoc
// @Summary Latest readings
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /resources/my-logs [get]
func (h *UsageHandler) Recent(c *gin.Context) {
	rows, err := h.service.Recent(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Analytics godoc
// @Summary Usage history and day-over-day change
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Param hostelId query string false "Hostel ID; campus totals when empty"
// @Success 200 {object} response.Envelope
// @Router /resources/analytics [get]
func (h *UsageHandler) Analytics(c *gin.Context) {
	hostelID := c.Query("hostelId")
	if hostelID != "" {
		parsed, err := uuid.Parse(hostelID)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid hostelId"))
			return
		}
		hostelID = parsed.String()
	}
	analytics, err := h.service.Analytics(c.Request.Context(), hostelID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, nil)
}

// Export godoc
// @Summary Download the resource report
// @Tags Resources
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv, xlsx or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /resources/export [get]
func (h *UsageHandler) Export(c *gin.Context) {
	body, filename, contentType, err := h.service.Export(c.Request.Context(), c.DefaultQuery("format", "xlsx"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, contentType, body)
}

// Hostels godoc
// @Summary List hostels
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /resources/hostels [get]
func (h *UsageHandler) Hostels(c *gin.Context) {
	hostels, err := h.service.Hostels(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hostels, nil)
}

// CreateHostel godoc
// @Summary Add a hostel
// @Tags Resources
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateHostelRequest true "Hostel"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /resources/hostels [post]
func (h *UsageHandler) CreateHostel(c *gin.Context) {
	var req models.CreateHostelRequest
	if !bindJSON(c, &req, "Hostel name and capacity are required") {
		return
	}
	hostel, err := h.service.CreateHostel(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, hostel)
}

// DeleteHostel godoc
// @Summary Remove a hostel and its readings
// @Tags Resources
// @Security BearerAuth
// @Param id path string true "Hostel ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /resources/hostels/{id} [delete]
func (h *UsageHandler) DeleteHostel(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteHostel(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
