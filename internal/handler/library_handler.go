package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-ops-api/internal/models"
	"github.com/noah-isme/campus-ops-api/pkg/response"
)

type libraryService interface {
	List(ctx context.Context) ([]models.Library, error)
	Create(ctx context.Context, adminID string, req models.CreateLibraryRequest) (*models.Library, error)
	Delete(ctx context.Context, adminID, id string) error
	MyBooking(ctx context.Context, userID string) (*models.LibraryBooking, error)
	Book(ctx context.Context, userID string, req models.BookSlotRequest) (*models.LibraryBooking, error)
	Cancel(ctx context.Context, userID string) (*models.LibraryBooking, error)
}

// LibraryHandler exposes reading rooms and seat bookings.
type LibraryHandler struct {
	service libraryService
}

// NewLibraryHandler constructs the handler.
func NewLibraryHandler(svc libraryService) *LibraryHandler {
	return &LibraryHandler{service: svc}
}

// List godoc
// @Summary List libraries with seat counts
// @Tags Library
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /library [get]
func (h *LibraryHandler) List(c *gin.Context) {
	libraries, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, libraries, nil)
}

// Create godoc
// @Summary Create a library
// @Tags Library
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateLibraryRequest true "Library"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /library [post]
func (h *LibraryHandler) Create(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.CreateLibraryRequest
	if !bindJSON(c, &req, "name and total_seats are required") {
		return
	}
	library, err := h.service.Create(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, library)
}

// Delete godoc
// @Summary Delete a library
// @Description Active bookings are cancelled first
// @Tags Library
// @Security BearerAuth
// @Param id path string true "Library ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /library/{id} [delete]
func (h *LibraryHandler) Delete(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor.ID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MyBooking godoc
// @Summary Current active booking
// @Description Returns null data when the caller holds no seat
// @Tags Library
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /library/my-booking [get]
func (h *LibraryHandler) MyBooking(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	booking, err := h.service.MyBooking(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Book godoc
// @Summary Book a seat
// @Tags Library
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.BookSlotRequest true "Booking"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /library/book [post]
func (h *LibraryHandler) Book(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.BookSlotRequest
	if !bindJSON(c, &req, "library_id is required") {
		return
	}
	booking, err := h.service.Book(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Cancel godoc
// @Summary Cancel the active booking
// @Tags Library
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /library/cancel [post]
func (h *LibraryHandler) Cancel(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	booking, err := h.service.Cancel(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}
