package http

import "time"

// --- Request DTOs ---

// EnqueueNotificationRequestDTO queues one notification for delivery.
type EnqueueNotificationRequestDTO struct {
	NotificationID string         `json:"notification_id,omitempty" validate:"omitempty,max=128"`
	Type           string         `json:"type" validate:"required,max=64"`
	RecipientEmail string         `json:"recipient_email" validate:"required,email"`
	RecipientName  string         `json:"recipient_name,omitempty" validate:"omitempty,max=200"`
	Data           map[string]any `json:"data,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	MaxRetries     int            `json:"max_retries,omitempty" validate:"omitempty,min=1,max=10"`
}

// DispatchRequestDTO triggers one sweep. With notification_ids the sweep is
// restricted to those records (targeted redelivery); otherwise it covers all
// due records. An empty body is valid.
type DispatchRequestDTO struct {
	NotificationIDs []string `json:"notification_ids,omitempty" validate:"omitempty,dive,required,max=128"`
}

// --- Response DTOs ---

type EnqueueNotificationResponseDTO struct {
	Success        bool   `json:"success"`
	NotificationID string `json:"notification_id"`
	Status         string `json:"status"`
	AlreadyQueued  bool   `json:"already_queued,omitempty"`
}

type DispatchDetailDTO struct {
	NotificationID string `json:"notification_id"`
	Recipient      string `json:"recipient"`
	Outcome        string `json:"outcome"`
	Error          string `json:"error,omitempty"`
}

type DispatchResponseDTO struct {
	Success bool                `json:"success"`
	Total   int                 `json:"total"`
	Sent    int                 `json:"sent"`
	Failed  int                 `json:"failed"`
	Details []DispatchDetailDTO `json:"details"`
}

type NotificationStatusResponseDTO struct {
	NotificationID string         `json:"notification_id"`
	Type           string         `json:"type"`
	RecipientEmail string         `json:"recipient_email"`
	Subject        string         `json:"subject"`
	Status         string         `json:"status"`
	RetryCount     int            `json:"retry_count"`
	MaxRetries     int            `json:"max_retries"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
}

type ErrorResponseDTO struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
