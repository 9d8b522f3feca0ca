package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studysprint/studysprint-backend/internal/domain"
	"github.com/studysprint/studysprint-backend/internal/http/response"
	"github.com/studysprint/studysprint-backend/internal/services"
)

type SessionHandler struct {
	sessions services.SessionService
}

func NewSessionHandler(sessions services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return uuid.Nil, false
	}
	return id, true
}

// POST /api/sessions/start
func (h *SessionHandler) Start(c *gin.Context) {
	var req services.StartSessionInput
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	session, err := h.sessions.Start(c.Request.Context(), req)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// GET /api/sessions/current
func (h *SessionHandler) Current(c *gin.Context) {
	session, err := h.sessions.Current(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// GET /api/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	session, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// PATCH /api/sessions/:id
func (h *SessionHandler) Update(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req services.UpdateSessionInput
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	session, err := h.sessions.Update(c.Request.Context(), id, req)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// POST /api/sessions/:id/pause
func (h *SessionHandler) Pause(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req struct {
		BreakType domain.BreakType `json:"break_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	session, err := h.sessions.Pause(c.Request.Context(), id, req.BreakType)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// POST /api/sessions/:id/resume
func (h *SessionHandler) Resume(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	session, err := h.sessions.Resume(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// POST /api/sessions/:id/end
//
// On a storage failure the session is still finalized in memory; the
// finalized record rides along with the error so the client sees the
// outcome of the study time it just spent.
func (h *SessionHandler) End(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	session, err := h.sessions.End(c.Request.Context(), id)
	if err != nil {
		if domain.IsStorageError(err) && session != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"session": session,
				"error":   gin.H{"message": err.Error(), "code": "persist_failed"},
			})
			return
		}
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// GET /api/sessions/:id/timer-state
func (h *SessionHandler) TimerState(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	snap, err := h.sessions.TimerState(id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"state": snap})
}

type activityRequest struct {
	Type     domain.ActivityType `json:"type"`
	Source   string              `json:"source"`
	FromPage int                 `json:"from_page"`
	ToPage   int                 `json:"to_page"`
	NoteID   uuid.UUID           `json:"note_id"`
	Page     int                 `json:"page"`
	Subtype  string              `json:"subtype"`
}

func (r activityRequest) payload() (domain.ActivityType, domain.ActivityPayload) {
	switch r.Type {
	case domain.ActivityPageChange:
		return r.Type, domain.PageChangePayload{FromPage: r.FromPage, ToPage: r.ToPage}
	case domain.ActivityNote:
		return r.Type, domain.NotePayload{NoteID: r.NoteID}
	case domain.ActivityHighlight:
		return r.Type, domain.HighlightPayload{Page: r.Page}
	case domain.ActivityInterruption:
		return r.Type, domain.InterruptionPayload{Subtype: r.Subtype}
	case domain.ActivityInteraction, "":
		return domain.ActivityInteraction, domain.InteractionPayload{Source: r.Source}
	default:
		return "", nil
	}
}

// POST /api/sessions/:id/activity
func (h *SessionHandler) Activity(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	typ, payload := req.payload()
	if typ == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("unknown activity type"))
		return
	}
	recorded := h.sessions.RecordActivity(id, typ, payload)
	response.RespondOK(c, gin.H{"recorded": recorded})
}

// POST /api/sessions/:id/interruption
func (h *SessionHandler) Interruption(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req struct {
		Subtype string `json:"subtype"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Subtype == "" {
		req.Subtype = "unknown"
	}
	recorded := h.sessions.RecordInterruption(id, req.Subtype)
	response.RespondOK(c, gin.H{"recorded": recorded})
}

// POST /api/sessions/:id/timer/messages
//
// The client half of the stream protocol: the server pushes timer_update
// frames over SSE, the client posts its activity and interruption frames
// here. Unknown frame types are acknowledged and dropped, which keeps old
// servers compatible with newer clients.
func (h *SessionHandler) TimerMessage(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req struct {
		Type         string              `json:"type"`
		ActivityType domain.ActivityType `json:"activity_type"`
		Source       string              `json:"source"`
		FromPage     int                 `json:"from_page"`
		ToPage       int                 `json:"to_page"`
		NoteID       uuid.UUID           `json:"note_id"`
		Page         int                 `json:"page"`
		Subtype      string              `json:"subtype"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	switch req.Type {
	case "activity":
		typ, payload := activityRequest{
			Type:     req.ActivityType,
			Source:   req.Source,
			FromPage: req.FromPage,
			ToPage:   req.ToPage,
			NoteID:   req.NoteID,
			Page:     req.Page,
			Subtype:  req.Subtype,
		}.payload()
		if typ == "" {
			typ, payload = domain.ActivityInteraction, domain.InteractionPayload{Source: req.Source}
		}
		recorded := h.sessions.RecordActivity(id, typ, payload)
		response.RespondOK(c, gin.H{"recorded": recorded})
	case "interruption":
		subtype := req.Subtype
		if subtype == "" {
			subtype = "unknown"
		}
		recorded := h.sessions.RecordInterruption(id, subtype)
		response.RespondOK(c, gin.H{"recorded": recorded})
	default:
		response.RespondOK(c, gin.H{"recorded": false})
	}
}
