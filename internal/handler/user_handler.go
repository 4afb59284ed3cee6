package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-ops-api/internal/models"
	"github.com/noah-isme/campus-ops-api/pkg/response"
)

const maxAuditEntries = 200

type userService interface {
	Pending(ctx context.Context) ([]models.User, error)
	List(ctx context.Context, callerID, role string) ([]models.User, error)
	Approve(ctx context.Context, adminID, userID string, req models.ApproveUserRequest) (*models.User, error)
	Reject(ctx context.Context, adminID, userID string) (*models.User, error)
	ManageAccess(ctx context.Context, adminID, userID string, req models.AccessRequest) (*models.User, error)
	Stats(ctx context.Context) (*models.UserStats, error)
	AuditTrail(ctx context.Context, userID string, limit int) ([]models.AuditLog, error)
}

// UserHandler exposes admin user management.
type UserHandler struct {
	service userService
}

// NewUserHandler constructs the handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// Pending godoc
// @Summary Pending registrations
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /users/pending [get]
func (h *UserHandler) Pending(c *gin.Context) {
	users, err := h.service.Pending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// List godoc
// @Summary List users
// @Description Lists users other than the caller, optionally filtered by role
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param role query string false "Role filter"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	users, err := h.service.List(c.Request.Context(), actor.ID, c.Query("role"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// Stats godoc
// @Summary User statistics
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /users/stats [get]
func (h *UserHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Approve godoc
// @Summary Approve registration
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body models.ApproveUserRequest true "Granted role"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/{id}/approve [put]
func (h *UserHandler) Approve(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.ApproveUserRequest
	if !bindJSON(c, &req, "role is required") {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	user, err := h.service.Approve(c.Request.Context(), actor.ID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Reject godoc
// @Summary Reject registration
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/reject [put]
func (h *UserHandler) Reject(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	user, err := h.service.Reject(c.Request.Context(), actor.ID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Access godoc
// @Summary Moderate account access
// @Description warn, block_temp (30 days), block_perm or unblock
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body models.AccessRequest true "Access action"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id}/access [put]
func (h *UserHandler) Access(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.AccessRequest
	if !bindJSON(c, &req, "invalid access action") {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	user, err := h.service.ManageAccess(c.Request.Context(), actor.ID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// AuditTrail godoc
// @Summary Audit entries of a user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/audit [get]
func (h *UserHandler) AuditTrail(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > maxAuditEntries {
		limit = maxAuditEntries
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	logs, err := h.service.AuditTrail(c.Request.Context(), id, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
