package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type roomServer interface {
	Serve(w http.ResponseWriter, r *http.Request, room string) error
	RoomSize(room string) int
}

// RealtimeHandler upgrades authenticated clients to the websocket hub.
type RealtimeHandler struct {
	hub    roomServer
	logger *zap.Logger
}

// NewRealtimeHandler constructs the handler.
func NewRealtimeHandler(hub roomServer, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHandler{hub: hub, logger: logger}
}

// Connect godoc
// @Summary Realtime channel
// @Description Websocket upgrade. The connection joins the room named after the caller's role.
// @Tags Realtime
// @Param token query string true "Access token"
// @Success 101
// @Failure 401 {object} response.Envelope
// @Router /ws [get]
func (h *RealtimeHandler) Connect(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, string(actor.Role)); err != nil {
		h.logger.Debug("websocket upgrade failed", zap.String("user_id", actor.ID), zap.Error(err))
	}
}
