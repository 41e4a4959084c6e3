package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// NotificationType identifies what produced a notification.
type NotificationType string

const (
	NotificationMention NotificationType = "mention"
)

// DirectoryUser is one entry from the external directory (CRM users).
type DirectoryUser struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
}

// Notification is a message to a directory identity, generated by mention
// resolution. The idempotency key makes fanout retries safe: re-enqueueing
// the same (note, recipient) pair never produces a second row.
type Notification struct {
	ID             string           `json:"id"`
	RecipientID    string           `json:"recipient_id"`
	Type           NotificationType `json:"type"`
	NoteID         string           `json:"note_id"`
	AssignmentID   string           `json:"assignment_id"`
	EventID        string           `json:"event_id"`
	AuthorID       string           `json:"author_id"`
	Body           string           `json:"body"`
	IdempotencyKey string           `json:"idempotency_key"`
	Delivered      bool             `json:"delivered"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NotificationKey derives the idempotency key for a (note, recipient) pair.
func NotificationKey(noteID, recipientID string) string {
	sum := sha256.Sum256([]byte(noteID + ":" + recipientID))
	return hex.EncodeToString(sum[:])
}
