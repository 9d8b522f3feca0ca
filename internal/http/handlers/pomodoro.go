package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studysprint/studysprint-backend/internal/http/response"
	"github.com/studysprint/studysprint-backend/internal/services"
)

type PomodoroHandler struct {
	pomodoro services.PomodoroService
}

func NewPomodoroHandler(pomodoro services.PomodoroService) *PomodoroHandler {
	return &PomodoroHandler{pomodoro: pomodoro}
}

// POST /api/pomodoro/start
func (h *PomodoroHandler) Start(c *gin.Context) {
	var req services.StartCycleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.SessionID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("missing session_id"))
		return
	}
	cycle, err := h.pomodoro.StartCycle(c.Request.Context(), req)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"cycle": cycle})
}

// POST /api/pomodoro/:id/complete
func (h *PomodoroHandler) Complete(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var req services.CompleteCycleInput
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	cycle, err := h.pomodoro.CompleteCycle(c.Request.Context(), cycleID, req)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"cycle": cycle})
}
