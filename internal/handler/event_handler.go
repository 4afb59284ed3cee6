package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-ops-api/internal/models"
	"github.com/noah-isme/campus-ops-api/pkg/response"
)

type eventService interface {
	List(ctx context.Context) ([]models.Event, error)
	Create(ctx context.Context, req models.CreateEventRequest) (*models.Event, error)
	Book(ctx context.Context, userID string, req models.BookEventRequest) (*models.EventBooking, error)
	MyBookings(ctx context.Context, userID string) ([]models.EventBooking, error)
	Attendees(ctx context.Context, eventID string) ([]models.EventBooking, error)
}

// EventHandler exposes campus events and passes.
type EventHandler struct {
	service eventService
}

// NewEventHandler constructs the handler.
func NewEventHandler(svc eventService) *EventHandler {
	return &EventHandler{service: svc}
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	events, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Create godoc
// @Summary Create an event
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateEventRequest true "Event"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req models.CreateEventRequest
	if !bindJSON(c, &req, "invalid event payload") {
		return
	}
	event, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Book godoc
// @Summary Book a pass
// @Description A confirmation email is sent asynchronously
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.BookEventRequest true "Booking"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events/book [post]
func (h *EventHandler) Book(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.BookEventRequest
	if !bindJSON(c, &req, "event_id and payment_id are required") {
		return
	}
	booking, err := h.service.Book(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// MyBookings godoc
// @Summary Passes held by the caller
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /events/my-bookings [get]
func (h *EventHandler) MyBookings(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	bookings, err := h.service.MyBookings(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

// Attendees godoc
// @Summary Confirmed attendees of an event
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id}/attendees [get]
func (h *EventHandler) Attendees(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	attendees, err := h.service.Attendees(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attendees, nil)
}
