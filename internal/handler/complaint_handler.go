package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-ops-api/internal/models"
	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
	"github.com/noah-isme/campus-ops-api/pkg/response"
)

type complaintService interface {
	Create(ctx context.Context, student models.Actor, req models.CreateComplaintRequest, image *models.Upload) (*models.Complaint, error)
	List(ctx context.Context, actor models.Actor) ([]models.Complaint, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Complaint, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id string, req models.UpdateComplaintRequest) (*models.Complaint, error)
	Assign(ctx context.Context, actor models.Actor, id string, req models.AssignComplaintRequest) (*models.Complaint, error)
	Escalate(ctx context.Context, student models.Actor, id string) (*models.Complaint, error)
	AddMessage(ctx context.Context, actor models.Actor, id string, req models.ComplaintMessageRequest) (*models.ComplaintMessage, error)
}

// ComplaintHandler exposes the complaint workflow.
type ComplaintHandler struct {
	service        complaintService
	maxUploadBytes int64
}

// NewComplaintHandler constructs the handler. Images larger than
// maxUploadBytes are rejected.
func NewComplaintHandler(svc complaintService, maxUploadBytes int64) *ComplaintHandler {
	return &ComplaintHandler{service: svc, maxUploadBytes: maxUploadBytes}
}

// Create godoc
// @Summary File a complaint
// @Description Multipart form with an optional image. Congested categories are auto-assigned.
// @Tags Complaints
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param category formData string true "Category"
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param target_role formData string false "staff or Admin"
// @Param image formData file false "Photo (jpeg, png, webp, gif)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /complaints [post]
func (h *ComplaintHandler) Create(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	}

	var req models.CreateComplaintRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid complaint payload"))
		return
	}

	var upload *models.Upload
	file, err := c.FormFile("image")
	switch {
	case err == nil:
		if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image is too large"))
			return
		}
		src, err := file.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable image"))
			return
		}
		defer src.Close()
		upload = &models.Upload{Reader: src, Size: file.Size, ContentType: file.Header.Get("Content-Type"), Filename: file.Filename}
	case !errors.Is(err, http.ErrMissingFile):
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid image upload"))
		return
	}

	complaint, err := h.service.Create(c.Request.Context(), actor, req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, complaint)
}

// List godoc
// @Summary List complaints
// @Description Students see their own, employees the staff pool and their assignments, admins everything
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /complaints [get]
func (h *ComplaintHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	complaints, err := h.service.List(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaints, nil)
}

// Get godoc
// @Summary Complaint with its messages
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaints/{id} [get]
func (h *ComplaintHandler) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	complaint, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// UpdateStatus godoc
// @Summary Change status, comment or feedback
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body models.UpdateComplaintRequest true "Update"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /complaints/{id}/status [put]
func (h *ComplaintHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.UpdateComplaintRequest
	if !bindJSON(c, &req, "invalid status update") {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	complaint, err := h.service.UpdateStatus(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// Assign godoc
// @Summary Accept or assign a complaint
// @Description Staff accept for themselves; admins may name another staff member
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body models.AssignComplaintRequest false "Explicit assignee"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /complaints/{id}/assign [post]
func (h *ComplaintHandler) Assign(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.AssignComplaintRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	complaint, err := h.service.Assign(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// Escalate godoc
// @Summary Escalate to admin
// @Description Allowed once the complaint has waited long enough
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaints/{id}/escalate [post]
func (h *ComplaintHandler) Escalate(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	complaint, err := h.service.Escalate(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// AddMessage godoc
// @Summary Post a chat message
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body models.ComplaintMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaints/{id}/message [post]
func (h *ComplaintHandler) AddMessage(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.ComplaintMessageRequest
	if !bindJSON(c, &req, "text is required") {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	msg, err := h.service.AddMessage(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}
