package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/techserwis/notification_service/internal/notification_service/domain"
	"github.com/techserwis/notification_service/internal/notification_service/repository"
)

const uniqueViolationCode = "23505"

// PgxIface is the subset of pgxpool.Pool used by the repository. Declared
// here so tests can substitute a pgxmock pool.
type PgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgNotificationRepository struct {
	db     PgxIface
	logger *slog.Logger
}

// NewPgNotificationRepository creates a PostgreSQL-backed notification store.
func NewPgNotificationRepository(db PgxIface, logger *slog.Logger) repository.NotificationRepository {
	return &pgNotificationRepository{db: db, logger: logger.With("component", "notification_repository")}
}

const notificationColumns = `id, notification_id, type, recipient_email, recipient_name,
		subject, html_content, text_content, status, retry_count, max_retries,
		error_message, data, metadata, created_at, updated_at, sent_at`

func (r *pgNotificationRepository) Create(ctx context.Context, record *domain.NotificationRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.Status == "" {
		record.Status = domain.StatusPending
	}

	query := `
		INSERT INTO notifications (
			id, notification_id, type, recipient_email, recipient_name,
			subject, html_content, text_content, status, retry_count, max_retries,
			error_message, data, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.Exec(ctx, query,
		record.ID, record.NotificationID, record.Type, record.RecipientEmail, record.RecipientName,
		record.Subject, record.HTMLContent, record.TextContent, record.Status, record.RetryCount, record.MaxRetries,
		record.ErrorMessage, record.Data, record.Metadata, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			r.logger.WarnContext(ctx, "Duplicate notification_id on insert", "notification_id", record.NotificationID)
			return domain.ErrDuplicateNotificationID
		}
		r.logger.ErrorContext(ctx, "Error creating notification", "error", err, "notification_id", record.NotificationID)
		return err
	}
	return nil
}

func (r *pgNotificationRepository) FindDue(ctx context.Context, limit int) ([]*domain.NotificationRecord, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE status = $1 AND retry_count < max_retries
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, domain.StatusPending, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error querying due notifications", "error", err)
		return nil, err
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func (r *pgNotificationRepository) FindDueByNotificationIDs(ctx context.Context, notificationIDs []string) ([]*domain.NotificationRecord, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE status = $1 AND retry_count < max_retries AND notification_id = ANY($2)
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, domain.StatusPending, notificationIDs)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error querying due notifications by ids", "error", err)
		return nil, err
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func (r *pgNotificationRepository) MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string) error {
	now := time.Now().UTC()
	query := `
		UPDATE notifications
		SET status = $2, sent_at = $3, updated_at = $3,
		    metadata = COALESCE(metadata, '{}'::jsonb) || jsonb_build_object('provider_message_id', $4::text)
		WHERE id = $1 AND status = $5
	`
	tag, err := r.db.Exec(ctx, query, id, domain.StatusSent, now, providerMessageID, domain.StatusPending)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking notification sent", "error", err, "id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the record is already terminal (idempotent no-op) or it
		// does not exist at all.
		var status domain.MessageStatus
		err := r.db.QueryRow(ctx, `SELECT status FROM notifications WHERE id = $1`, id).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotificationNotFound
			}
			return err
		}
		r.logger.DebugContext(ctx, "MarkSent no-op on terminal record", "id", id, "status", status)
	}
	return nil
}

func (r *pgNotificationRepository) MarkFailedAttempt(ctx context.Context, id uuid.UUID, errorMessage string, nextRetryCount int) error {
	now := time.Now().UTC()
	// A single atomic write: the record freezes at failed exactly when the
	// incremented retry count reaches its own ceiling.
	query := `
		UPDATE notifications
		SET retry_count = LEAST($2, max_retries),
		    error_message = $3,
		    status = CASE WHEN $2 >= max_retries THEN $4::text ELSE $5::text END,
		    updated_at = $6
		WHERE id = $1 AND status = $5
	`
	tag, err := r.db.Exec(ctx, query, id, nextRetryCount, errorMessage, domain.StatusFailed, domain.StatusPending, now)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking failed attempt", "error", err, "id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "MarkFailedAttempt matched no pending record", "id", id)
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *pgNotificationRepository) GetByNotificationID(ctx context.Context, notificationID string) (*domain.NotificationRecord, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE notification_id = $1
	`
	record := &domain.NotificationRecord{}
	err := r.db.QueryRow(ctx, query, notificationID).Scan(
		&record.ID, &record.NotificationID, &record.Type, &record.RecipientEmail, &record.RecipientName,
		&record.Subject, &record.HTMLContent, &record.TextContent, &record.Status, &record.RetryCount, &record.MaxRetries,
		&record.ErrorMessage, &record.Data, &record.Metadata, &record.CreatedAt, &record.UpdatedAt, &record.SentAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting notification", "error", err, "notification_id", notificationID)
		return nil, err
	}
	return record, nil
}

func scanNotifications(rows pgx.Rows) ([]*domain.NotificationRecord, error) {
	var records []*domain.NotificationRecord
	for rows.Next() {
		record := &domain.NotificationRecord{}
		err := rows.Scan(
			&record.ID, &record.NotificationID, &record.Type, &record.RecipientEmail, &record.RecipientName,
			&record.Subject, &record.HTMLContent, &record.TextContent, &record.Status, &record.RetryCount, &record.MaxRetries,
			&record.ErrorMessage, &record.Data, &record.Metadata, &record.CreatedAt, &record.UpdatedAt, &record.SentAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
