package models

import "time"

// NotificationType mirrors the transition kind that produced the record.
type NotificationType string

const (
	NotificationOutpassCreated    NotificationType = "OUTPASS_CREATED"
	NotificationOutpassApproved   NotificationType = "OUTPASS_APPROVED"
	NotificationOutpassRejected   NotificationType = "OUTPASS_REJECTED"
	NotificationOutpassCancelled  NotificationType = "OUTPASS_CANCELLED"
	NotificationOutpassCheckedOut NotificationType = "OUTPASS_CHECKED_OUT"
	NotificationOutpassCheckedIn  NotificationType = "OUTPASS_CHECKED_IN"
	NotificationOutpassOverdue    NotificationType = "OUTPASS_OVERDUE"
)

// Notification is an immutable per-recipient record of what was
// communicated when a transition fired. Its lifetime is independent of
// the outpass it references.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	OutpassID string           `db:"outpass_id" json:"outpass_id"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter scopes notification listings to one recipient.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
