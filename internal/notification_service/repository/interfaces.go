// Package repository defines the persistence contracts of the notification
// service. Implementations live in subpackages (postgres).
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/techserwis/notification_service/internal/notification_service/domain"
)

// NotificationRepository is the durable store of notification records.
// Every operation is a single atomic write or read; no multi-record
// transactions are required by the dispatch design.
type NotificationRepository interface {
	// Create inserts a new record in pending status. Returns
	// domain.ErrDuplicateNotificationID when the notification_id is already
	// taken.
	Create(ctx context.Context, record *domain.NotificationRecord) error

	// FindDue returns up to limit pending records below their retry ceiling,
	// ordered by created_at ascending (oldest first).
	FindDue(ctx context.Context, limit int) ([]*domain.NotificationRecord, error)

	// FindDueByNotificationIDs restricts the due-work query to an explicit
	// list of notification_ids (targeted redelivery). Ordering matches
	// FindDue; ids that are unknown or not due are silently skipped.
	FindDueByNotificationIDs(ctx context.Context, notificationIDs []string) ([]*domain.NotificationRecord, error)

	// MarkSent transitions a pending record to sent, stamps sent_at and
	// merges the provider message id into metadata. Calling it on an
	// already terminal record is a no-op success.
	MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string) error

	// MarkFailedAttempt records one failed delivery attempt. The record
	// freezes at failed once nextRetryCount reaches its max_retries,
	// otherwise it stays pending and will be picked up by a later FindDue.
	MarkFailedAttempt(ctx context.Context, id uuid.UUID, errorMessage string, nextRetryCount int) error

	// GetByNotificationID is a point lookup by the caller-assigned
	// idempotency token.
	GetByNotificationID(ctx context.Context, notificationID string) (*domain.NotificationRecord, error)
}
