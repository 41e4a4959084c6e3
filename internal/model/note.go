package model

import "time"

// Note is an append-only text record attached to an assignment. Notes may
// contain @First Last mentions that fan out to notifications.
type Note struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	AuthorID     string    `json:"author_id"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
}

// ActivityEntry is one row of the audit trail for awards, not-awards,
// status changes, stage changes, and notes.
type ActivityEntry struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id,omitempty"`
	EventID      string    `json:"event_id,omitempty"`
	Actor        string    `json:"actor"`
	Action       string    `json:"action"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Activity actions recorded by the workflow.
const (
	ActionInvited      = "carrier_invited"
	ActionStatusChange = "status_changed"
	ActionAwarded      = "awarded"
	ActionNotAwarded   = "not_awarded"
	ActionStageChange  = "stage_changed"
	ActionNoteAdded    = "note_added"
)
