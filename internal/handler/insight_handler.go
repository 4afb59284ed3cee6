package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-ops-api/internal/models"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
	"github.com/noah-isme/campus-ops-api/pkg/response"
)

type insightService interface {
	Insights(ctx context.Context, audience models.InsightAudience) ([]models.Insight, error)
}

// InsightHandler exposes the campus sustainability board.
type InsightHandler struct {
	service insightService
}

// NewInsightHandler constructs the handler.
func NewInsightHandler(svc insightService) *InsightHandler {
	return &InsightHandler{service: svc}
}

// List godoc
// @Summary Campus sustainability insights
// @Description Insights are filtered to the caller's audience. Admins may preview another audience.
// @Tags Insights
// @Produce json
// @Security BearerAuth
// @Param audience query string false "Admin, Staff or Student (Admin only)"
// @Success 200 {object} response.Envelope
// @Router /insights [get]
func (h *InsightHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	audience := models.AudienceFor(actor.Role)
	if requested := c.Query("audience"); requested != "" && actor.Role == models.RoleAdmin {
		switch a := models.InsightAudience(requested); a {
		case models.AudienceAdmin, models.AudienceStaff, models.AudienceStudent:
			audience = a
		default:
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "audience must be Admin, Staff or Student"))
			return
		}
	}
	insights, err := h.service.Insights(c.Request.Context(), audience)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insights, nil)
}
