package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-ops-api/internal/models"
	"github.com/noah-isme/campus-ops-api/pkg/response"
)

type foodService interface {
	Submit(ctx context.Context, actor models.Actor, req models.CreateFoodLogRequest) (*models.FoodLog, error)
	List(ctx context.Context) ([]models.FoodLog, error)
	UpdateAction(ctx context.Context, actor models.Actor, id string, req models.FoodActionRequest) (*models.FoodLog, error)
}

// FoodHandler exposes kitchen food logs.
type FoodHandler struct {
	service foodService
}

// NewFoodHandler constructs the handler.
func NewFoodHandler(svc foodService) *FoodHandler {
	return &FoodHandler{service: svc}
}

// Submit godoc
// @Summary Log a meal service
// @Description Food stored more than four hours after cooking is marked Unsafe.
// @Tags Food
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateFoodLogRequest true "Food log"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /food [post]
func (h *FoodHandler) Submit(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.CreateFoodLogRequest
	if !bindJSON(c, &req, "invalid food log") {
		return
	}
	log, err := h.service.Submit(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, log)
}

// List godoc
// @Summary List recent food logs
// @Tags Food
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /food [get]
func (h *FoodHandler) List(c *gin.Context) {
	logs, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// UpdateAction godoc
// @Summary Record what was done with leftovers
// @Tags Food
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Food log ID"
// @Param payload body models.FoodActionRequest true "Action"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /food/{id}/action [put]
func (h *FoodHandler) UpdateAction(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req models.FoodActionRequest
	if !bindJSON(c, &req, "action is required") {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	log, err := h.service.UpdateAction(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, log, nil)
}
