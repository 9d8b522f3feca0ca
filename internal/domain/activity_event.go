package domain

import (
	"time"

	"github.com/google/uuid"
)

type ActivityType string

const (
	ActivityInteraction  ActivityType = "interaction"
	ActivityPageChange   ActivityType = "page_change"
	ActivityNote         ActivityType = "note"
	ActivityHighlight    ActivityType = "highlight"
	ActivityInterruption ActivityType = "interruption"
)

// ActivityPayload is a tagged variant: each event type carries its own
// statically known fields instead of an open map.
type ActivityPayload interface {
	activityPayload()
}

type InteractionPayload struct {
	Source string `json:"source,omitempty"` // scroll, click, keypress, zoom
}

type PageChangePayload struct {
	FromPage int `json:"from_page"`
	ToPage   int `json:"to_page"`
}

type NotePayload struct {
	NoteID uuid.UUID `json:"note_id,omitempty"`
}

type HighlightPayload struct {
	Page int `json:"page,omitempty"`
}

type InterruptionPayload struct {
	Subtype string `json:"subtype"` // phone, noise, person, fatigue, unknown
}

func (InteractionPayload) activityPayload()  {}
func (PageChangePayload) activityPayload()   {}
func (NotePayload) activityPayload()         {}
func (HighlightPayload) activityPayload()    {}
func (InterruptionPayload) activityPayload() {}

// ActivityEvent belongs to exactly one session's in-process ledger. Events
// are appended only by that session's timer task, so the slice order is the
// timestamp order used for gap analysis. The ledger dies with the session.
type ActivityEvent struct {
	SessionID uuid.UUID       `json:"session_id"`
	Type      ActivityType    `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   ActivityPayload `json:"payload,omitempty"`
}
