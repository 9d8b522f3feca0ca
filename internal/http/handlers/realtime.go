package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studysprint/studysprint-backend/internal/http/response"
	"github.com/studysprint/studysprint-backend/internal/platform/logger"
	"github.com/studysprint/studysprint-backend/internal/services"
	"github.com/studysprint/studysprint-backend/internal/sse"
)

type RealtimeHandler struct {
	log      *logger.Logger
	hub      *sse.Hub
	sessions services.SessionService
}

func NewRealtimeHandler(log *logger.Logger, hub *sse.Hub, sessions services.SessionService) *RealtimeHandler {
	return &RealtimeHandler{
		log:      log.With("handler", "RealtimeHandler"),
		hub:      hub,
		sessions: sessions,
	}
}

// GET /api/sessions/:id/stream
//
// Any number of observers can hold a stream on the same session; each gets
// every frame independently. The initial snapshot is sent before the live
// feed so a late joiner does not wait a tick for its first state.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	if _, err := h.sessions.Get(c.Request.Context(), id); err != nil {
		response.RespondDomainError(c, err)
		return
	}

	client := h.hub.NewClient()
	channel := sse.SessionChannel(id)
	h.hub.Subscribe(client, channel)
	h.log.Info("stream open", "session_id", id, "client_id", client.ID, "observers", h.hub.ObserverCount(channel))

	if snap, err := h.sessions.TimerState(id); err == nil {
		select {
		case client.Outbound <- sse.TimerFrame(id, snap):
		default:
		}
	}

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Info("stream closed", "session_id", id, "client_id", client.ID)
}
