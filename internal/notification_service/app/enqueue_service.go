package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/techserwis/notification_service/internal/notification_service/domain"
	"github.com/techserwis/notification_service/internal/notification_service/repository"
	"github.com/techserwis/notification_service/internal/notification_service/template"
)

// EnqueueInput is what an event producer supplies to queue a notification.
// Content is rendered here, once, at creation time.
type EnqueueInput struct {
	// NotificationID is optional; one is generated when absent. Producers
	// that derive it from the originating business entity get idempotent
	// enqueueing for free.
	NotificationID string
	Type           domain.NotificationType
	RecipientEmail string
	RecipientName  string
	// Data feeds the template and is persisted verbatim for audit.
	Data map[string]any
	// Metadata carries correlation info (originating entity ids, source).
	Metadata map[string]any
	// MaxRetries overrides the configured default when > 0.
	MaxRetries int
}

// EnqueueResult reports the stored record and whether this call created it.
type EnqueueResult struct {
	Record *domain.NotificationRecord
	// AlreadyQueued is true when the notification_id was taken by an
	// earlier insert; the earlier record is returned.
	AlreadyQueued bool
}

// EnqueueService renders and persists notification records on behalf of
// event producers. It never calls the email provider; delivery is the
// dispatcher's job.
type EnqueueService struct {
	repo              repository.NotificationRepository
	logger            *slog.Logger
	defaultMaxRetries int
}

func NewEnqueueService(repo repository.NotificationRepository, logger *slog.Logger, defaultMaxRetries int) *EnqueueService {
	return &EnqueueService{
		repo:              repo,
		logger:            logger.With("component", "enqueue_service"),
		defaultMaxRetries: defaultMaxRetries,
	}
}

// Enqueue renders the template for input.Type and inserts a pending record.
// A duplicate notification_id is success-equivalent: the existing record is
// returned with AlreadyQueued set. Notification failures are expected to be
// best-effort relative to the producer's primary business action, so every
// failure surfaces as a plain error and never panics.
func (s *EnqueueService) Enqueue(ctx context.Context, input EnqueueInput) (*EnqueueResult, error) {
	rendered, err := template.Render(input.Type, input.Data)
	if err != nil {
		notificationsEnqueuedCounter.WithLabelValues(string(input.Type), "error").Inc()
		return nil, fmt.Errorf("failed to render notification: %w", err)
	}

	notificationID := input.NotificationID
	if notificationID == "" {
		notificationID = newNotificationID()
	}

	maxRetries := input.MaxRetries
	if maxRetries <= 0 {
		maxRetries = s.defaultMaxRetries
	}

	record := &domain.NotificationRecord{
		NotificationID: notificationID,
		Type:           input.Type,
		RecipientEmail: input.RecipientEmail,
		Subject:        rendered.Subject,
		HTMLContent:    rendered.HTML,
		TextContent:    rendered.Text,
		Status:         domain.StatusPending,
		RetryCount:     0,
		MaxRetries:     maxRetries,
	}
	if input.RecipientName != "" {
		record.RecipientName = sql.NullString{String: input.RecipientName, Valid: true}
	}
	if record.Data, err = marshalBag(input.Data); err != nil {
		return nil, fmt.Errorf("failed to encode data payload: %w", err)
	}
	if record.Metadata, err = marshalBag(input.Metadata); err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, domain.ErrDuplicateNotificationID) {
			existing, getErr := s.repo.GetByNotificationID(ctx, notificationID)
			if getErr != nil {
				return nil, fmt.Errorf("duplicate notification_id but lookup failed: %w", getErr)
			}
			s.logger.InfoContext(ctx, "Notification already queued", "notification_id", notificationID)
			notificationsEnqueuedCounter.WithLabelValues(string(input.Type), "duplicate").Inc()
			return &EnqueueResult{Record: existing, AlreadyQueued: true}, nil
		}
		notificationsEnqueuedCounter.WithLabelValues(string(input.Type), "error").Inc()
		return nil, fmt.Errorf("failed to queue notification: %w", err)
	}

	s.logger.InfoContext(ctx, "Notification queued",
		"notification_id", notificationID, "type", input.Type, "recipient", input.RecipientEmail)
	notificationsEnqueuedCounter.WithLabelValues(string(input.Type), "created").Inc()
	return &EnqueueResult{Record: record}, nil
}

// GetStatus is the diagnostic point lookup behind the status endpoint.
func (s *EnqueueService) GetStatus(ctx context.Context, notificationID string) (*domain.NotificationRecord, error) {
	return s.repo.GetByNotificationID(ctx, notificationID)
}

// newNotificationID builds a human-traceable idempotency token,
// e.g. "notif_1717000000000_9f86d081".
func newNotificationID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("notif_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

func marshalBag(bag map[string]any) (json.RawMessage, error) {
	if len(bag) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(bag)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
