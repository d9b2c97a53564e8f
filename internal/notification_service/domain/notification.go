package domain

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageStatus is the lifecycle state of a notification record.
type MessageStatus string

const (
	// StatusPending is the initial state; the record is due for delivery as
	// long as retry_count < max_retries.
	StatusPending MessageStatus = "pending"
	// StatusSent is terminal; there is no transition out of it.
	StatusSent MessageStatus = "sent"
	// StatusFailed is terminal; set once the retry ceiling is reached.
	StatusFailed MessageStatus = "failed"
)

// NotificationType identifies the template used to render a notification.
// The set is closed; adding a type means adding a formatter to the template
// package's dispatch table.
type NotificationType string

const (
	TypeBookingConfirmation NotificationType = "booking_confirmation"
	TypeRepairRequest       NotificationType = "repair_request"
	TypeRepairStatusUpdate  NotificationType = "repair_status_update"
	TypeRepairReady         NotificationType = "repair_ready"
	TypeAppointmentReminder NotificationType = "appointment_reminder"
	TypeEmailConfirmation   NotificationType = "email_confirmation"
	// TypeTest is an internal tag for end-to-end diagnostics.
	TypeTest NotificationType = "test"
)

// NotificationRecord is a durable outbox entry representing one queued, sent
// or failed email. Content is rendered once at creation time and never
// re-rendered at send time.
type NotificationRecord struct {
	ID uuid.UUID `json:"id"`

	// NotificationID is the caller-assigned idempotency/correlation token.
	// Unique and immutable once assigned, e.g. "notif_1717000000000_a1b2c3d4".
	NotificationID string `json:"notification_id"`

	Type NotificationType `json:"type"`

	RecipientEmail string         `json:"recipient_email"`
	RecipientName  sql.NullString `json:"recipient_name,omitempty"`

	Subject     string `json:"subject"`
	HTMLContent string `json:"html_content"`
	TextContent string `json:"text_content"`

	Status     MessageStatus `json:"status"`
	RetryCount int           `json:"retry_count"`
	MaxRetries int           `json:"max_retries"`

	// ErrorMessage keeps the last-known delivery failure; it is not cleared
	// on a later success.
	ErrorMessage sql.NullString `json:"error_message,omitempty"`

	// Data is the original structured payload the template was rendered
	// from, kept for audit and debugging.
	Data json.RawMessage `json:"data,omitempty"`

	// Metadata holds free-form correlation info (originating entity ids,
	// source component) and, after a successful send, the provider message
	// id under "provider_message_id".
	Metadata json.RawMessage `json:"metadata,omitempty"`

	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	SentAt    sql.NullTime `json:"sent_at,omitempty"`
}

// IsTerminal reports whether the record's status accepts no further
// transitions.
func (n *NotificationRecord) IsTerminal() bool {
	return n.Status == StatusSent || n.Status == StatusFailed
}
