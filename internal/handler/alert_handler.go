package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-ops-api/internal/models"
	"github.com/noah-isme/campus-ops-api/pkg/response"
)

type alertService interface {
	List(ctx context.Context, status string) ([]models.Alert, error)
	Resolve(ctx context.Context, id string) error
	Test(ctx context.Context, req models.TestAlertRequest) (int, error)
}

// AlertHandler exposes usage alerts.
type AlertHandler struct {
	service alertService
}

// NewAlertHandler constructs the handler.
func NewAlertHandler(svc alertService) *AlertHandler {
	return &AlertHandler{service: svc}
}

// List godoc
// @Summary List alerts
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Param status query string false "Open or Resolved"
// @Success 200 {object} response.Envelope
// @Router /alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	alerts, err := h.service.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// Resolve godoc
// @Summary Resolve an alert
// @Tags Alerts
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /alerts/{id}/resolve [put]
func (h *AlertHandler) Resolve(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.Resolve(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Test godoc
// @Summary Publish a test alert on the realtime channel
// @Tags Alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.TestAlertRequest true "Message"
// @Success 200 {object} response.Envelope
// @Router /alerts/test [post]
func (h *AlertHandler) Test(c *gin.Context) {
	var req models.TestAlertRequest
	if !bindJSON(c, &req, "message is required") {
		return
	}
	delivered, err := h.service.Test(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"delivered": delivered}, nil)
}
