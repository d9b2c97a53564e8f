package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techserwis/notification_service/internal/notification_service/domain"
	"github.com/techserwis/notification_service/internal/notification_service/repository"
)

// anyArgs builds n pgxmock.AnyArg() matchers; pgxmock v3 requires the
// expected argument count to match even when the values are irrelevant.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func setupRepoTest(t *testing.T) (repository.NotificationRepository, pgxmock.PgxPoolIface) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewPgNotificationRepository(mockPool, logger)
	return repo, mockPool
}

func notificationRow(pool pgxmock.PgxPoolIface, record *domain.NotificationRecord) *pgxmock.Rows {
	return pool.NewRows([]string{
		"id", "notification_id", "type", "recipient_email", "recipient_name",
		"subject", "html_content", "text_content", "status", "retry_count", "max_retries",
		"error_message", "data", "metadata", "created_at", "updated_at", "sent_at",
	}).AddRow(
		record.ID, record.NotificationID, record.Type, record.RecipientEmail, record.RecipientName,
		record.Subject, record.HTMLContent, record.TextContent, record.Status, record.RetryCount, record.MaxRetries,
		record.ErrorMessage, record.Data, record.Metadata, record.CreatedAt, record.UpdatedAt, record.SentAt,
	)
}

func sampleRecord() *domain.NotificationRecord {
	return &domain.NotificationRecord{
		ID:             uuid.New(),
		NotificationID: "notif_1717000000000_a1b2c3d4",
		Type:           domain.TypeTest,
		RecipientEmail: "test@example.com",
		Subject:        "Test",
		HTMLContent:    "<p>hi</p>",
		TextContent:    "hi",
		Status:         domain.StatusPending,
		RetryCount:     0,
		MaxRetries:     3,
		CreatedAt:      time.Now().UTC().Add(-time.Minute),
		UpdatedAt:      time.Now().UTC().Add(-time.Minute),
	}
}

func TestPgNotificationRepository_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)
		defer mockPool.Close()

		record := sampleRecord()
		mockPool.ExpectExec("INSERT INTO notifications").
			WithArgs(
				record.ID, record.NotificationID, record.Type, record.RecipientEmail, record.RecipientName,
				record.Subject, record.HTMLContent, record.TextContent, record.Status, record.RetryCount, record.MaxRetries,
				record.ErrorMessage, record.Data, record.Metadata, pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(context.Background(), record)
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DuplicateNotificationID", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)
		defer mockPool.Close()

		record := sampleRecord()
		mockPool.ExpectExec("INSERT INTO notifications").
			WithArgs(anyArgs(16)...).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "notifications_notification_id_key"})

		err := repo.Create(context.Background(), record)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrDuplicateNotificationID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("AssignsIDAndPendingStatus", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)
		defer mockPool.Close()

		record := sampleRecord()
		record.ID = uuid.Nil
		record.Status = ""
		mockPool.ExpectExec("INSERT INTO notifications").
			WithArgs(anyArgs(16)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(context.Background(), record)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, record.ID)
		assert.Equal(t, domain.StatusPending, record.Status)
	})
}

func TestPgNotificationRepository_FindDue(t *testing.T) {
	t.Run("ReturnsDueRecordsOldestFirst", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)
		defer mockPool.Close()

		first := sampleRecord()
		second := sampleRecord()
		second.NotificationID = "notif_1717000000001_b2c3d4e5"
		second.CreatedAt = first.CreatedAt.Add(time.Second)

		rows := notificationRow(mockPool, first).AddRow(
			second.ID, second.NotificationID, second.Type, second.RecipientEmail, second.RecipientName,
			second.Subject, second.HTMLContent, second.TextContent, second.Status, second.RetryCount, second.MaxRetries,
			second.ErrorMessage, second.Data, second.Metadata, second.CreatedAt, second.UpdatedAt, second.SentAt,
		)

		mockPool.ExpectQuery("SELECT (.+) FROM notifications WHERE status = \\$1 AND retry_count < max_retries ORDER BY created_at ASC").
			WithArgs(domain.StatusPending, 50).
			WillReturnRows(rows)

		due, err := repo.FindDue(context.Background(), 50)
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, first.NotificationID, due[0].NotificationID)
		assert.Equal(t, second.NotificationID, due[1].NotificationID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Empty", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)
		defer mockPool.Close()

		mockPool.ExpectQuery("SELECT (.+) FROM notifications WHERE status = \\$1 AND retry_count < max_retries").
			WithArgs(domain.StatusPending, 10).
			WillReturnRows(mockPool.NewRows([]string{"id"}))

		due, err := repo.FindDue(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("QueryError", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)
		defer mockPool.Close()

		mockPool.ExpectQuery("SELECT (.+) FROM notifications").
			WillReturnError(errors.New("connection refused"))

		due, err := repo.FindDue(context.Background(), 10)
		require.Error(t, err)
		assert.Nil(t, due)
	})
}

func TestPgNotificationRepository_FindDueByNotificationIDs(t *testing.T) {
	repo, mockPool := setupRepoTest(t)
	defer mockPool.Close()

	record := sampleRecord()
	ids := []string{record.NotificationID, "notif_does_not_exist"}

	mockPool.ExpectQuery("SELECT (.+) FROM notifications WHERE status = \\$1 AND retry_count < max_retries AND notification_id = ANY\\(\\$2\\)").
		WithArgs(domain.StatusPending, ids).
		WillReturnRows(notificationRow(mockPool, record))

	due, err := repo.FindDueByNotificationIDs(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, record.NotificationID, due[0].NotificationID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgNotificationRepository_MarkSent(t *testing.T) {
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)
		defer mockPool.Close()

		mockPool.ExpectExec("UPDATE notifications").
			WithArgs(id, domain.StatusSent, pgxmock.AnyArg(), "prov-msg-1", domain.StatusPending).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.MarkSent(context.Background(), id, "prov-msg-1")
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("AlreadySentIsNoOp", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)
		defer mockPool.Close()

		mockPool.ExpectExec("UPDATE notifications").
			WithArgs(anyArgs(5)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectQuery("SELECT status FROM notifications WHERE id = \\$1").
			WithArgs(id).
			WillReturnRows(mockPool.NewRows([]string{"status"}).AddRow(domain.StatusSent))

		err := repo.MarkSent(context.Background(), id, "prov-msg-1")
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)
		defer mockPool.Close()

		mockPool.ExpectExec("UPDATE notifications").
			WithArgs(anyArgs(5)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectQuery("SELECT status FROM notifications WHERE id = \\$1").
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		err := repo.MarkSent(context.Background(), id, "prov-msg-1")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
	})
}

func TestPgNotificationRepository_MarkFailedAttempt(t *testing.T) {
	id := uuid.New()

	t.Run("RetryRemains", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)
		defer mockPool.Close()

		mockPool.ExpectExec("UPDATE notifications").
			WithArgs(id, 1, "provider timeout", domain.StatusFailed, domain.StatusPending, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.MarkFailedAttempt(context.Background(), id, "provider timeout", 1)
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NoPendingRecord", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)
		defer mockPool.Close()

		mockPool.ExpectExec("UPDATE notifications").
			WithArgs(anyArgs(6)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkFailedAttempt(context.Background(), id, "provider timeout", 3)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
	})
}

func TestPgNotificationRepository_GetByNotificationID(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)
		defer mockPool.Close()

		record := sampleRecord()
		mockPool.ExpectQuery("SELECT (.+) FROM notifications WHERE notification_id = \\$1").
			WithArgs(record.NotificationID).
			WillReturnRows(notificationRow(mockPool, record))

		got, err := repo.GetByNotificationID(context.Background(), record.NotificationID)
		require.NoError(t, err)
		assert.Equal(t, record.NotificationID, got.NotificationID)
		assert.Equal(t, domain.StatusPending, got.Status)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mockPool := setupRepoTest(t)
		defer mockPool.Close()

		mockPool.ExpectQuery("SELECT (.+) FROM notifications WHERE notification_id = \\$1").
			WithArgs("notif_missing").
			WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetByNotificationID(context.Background(), "notif_missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
		assert.Nil(t, got)
	})
}
