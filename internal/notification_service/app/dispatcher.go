package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/techserwis/notification_service/internal/notification_service/adapters/emailprovider"
	"github.com/techserwis/notification_service/internal/notification_service/domain"
	"github.com/techserwis/notification_service/internal/notification_service/repository"
)

// DispatcherConfig tunes one sweep.
type DispatcherConfig struct {
	// BatchLimit bounds how many due records a single sweep picks up, so
	// every invocation completes in time proportional to
	// BatchLimit × (provider latency + inter-message delay).
	BatchLimit int
	// InterMessageDelay is the pause between delivery attempts, success or
	// failure. It exists solely to respect the provider's outbound rate
	// limit; zero disables it.
	InterMessageDelay time.Duration
	// SenderAddress is the From header for every outgoing message.
	SenderAddress string
}

// SweepOutcome classifies the result of one record within a sweep.
type SweepOutcome string

const (
	OutcomeSent           SweepOutcome = "sent"
	OutcomeRetryScheduled SweepOutcome = "retry_scheduled"
	OutcomeFailed         SweepOutcome = "failed"
	OutcomeStoreError     SweepOutcome = "store_error"
)

// SweepDetail is the per-record entry of a sweep summary.
type SweepDetail struct {
	NotificationID string       `json:"notification_id"`
	Recipient      string       `json:"recipient"`
	Outcome        SweepOutcome `json:"outcome"`
	Error          string       `json:"error,omitempty"`
}

// SweepSummary reports one bounded dispatcher invocation. It is a
// convenience view for the invoker; the store remains the source of truth
// and the same information is reconstructable from record statuses.
type SweepSummary struct {
	Total   int           `json:"total"`
	Sent    int           `json:"sent"`
	Failed  int           `json:"failed"`
	Details []SweepDetail `json:"details"`
}

// Dispatcher is the pipeline's only active component. Each invocation
// performs one sweep over due records and returns; scheduling is the
// caller's concern (external cron or the optional internal ticker).
type Dispatcher struct {
	repo     repository.NotificationRepository
	provider emailprovider.EmailProvider
	limiter  *rate.Limiter
	logger   *slog.Logger
	config   DispatcherConfig
}

func NewDispatcher(
	repo repository.NotificationRepository,
	provider emailprovider.EmailProvider,
	logger *slog.Logger,
	cfg DispatcherConfig,
) *Dispatcher {
	var limiter *rate.Limiter
	if cfg.InterMessageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.InterMessageDelay), 1)
	}
	return &Dispatcher{
		repo:     repo,
		provider: provider,
		limiter:  limiter,
		logger:   logger.With("component", "dispatcher"),
		config:   cfg,
	}
}

// RunSweep pulls due work, attempts delivery sequentially and records each
// outcome. A non-nil error means the sweep could not start at all (store
// unreachable); per-record failures are folded into the summary and never
// abort the rest of the batch.
//
// When notificationIDs is non-empty the sweep is restricted to those
// records (targeted redelivery); records that are not due are skipped.
func (d *Dispatcher) RunSweep(ctx context.Context, notificationIDs []string) (*SweepSummary, error) {
	var (
		due []*domain.NotificationRecord
		err error
	)
	if len(notificationIDs) > 0 {
		due, err = d.repo.FindDueByNotificationIDs(ctx, notificationIDs)
	} else {
		due, err = d.repo.FindDue(ctx, d.config.BatchLimit)
	}
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to query due notifications", "error", err)
		return nil, fmt.Errorf("failed to query due notifications: %w", err)
	}

	sweepBatchSizeHist.Observe(float64(len(due)))
	summary := &SweepSummary{Total: len(due), Details: make([]SweepDetail, 0, len(due))}
	if len(due) == 0 {
		d.logger.InfoContext(ctx, "No due notifications in this sweep")
		return summary, nil
	}

	d.logger.InfoContext(ctx, "Sweep started", "due", len(due))

	for _, record := range due {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				// Context cancelled mid-sweep: already-processed records are
				// final, the rest stay pending for the next invocation.
				d.logger.WarnContext(ctx, "Sweep interrupted", "error", err, "processed", len(summary.Details))
				return summary, nil
			}
		}

		detail := d.processRecord(ctx, record)
		summary.Details = append(summary.Details, detail)
		switch detail.Outcome {
		case OutcomeSent:
			summary.Sent++
		case OutcomeFailed, OutcomeRetryScheduled:
			summary.Failed++
		}
	}

	d.logger.InfoContext(ctx, "Sweep finished", "total", summary.Total, "sent", summary.Sent, "failed", summary.Failed)
	return summary, nil
}

// processRecord attempts delivery of a single record and applies exactly one
// atomic status update for its outcome.
func (d *Dispatcher) processRecord(ctx context.Context, record *domain.NotificationRecord) SweepDetail {
	detail := SweepDetail{NotificationID: record.NotificationID, Recipient: record.RecipientEmail}

	timer := prometheus.NewTimer(providerRequestDurationHist.WithLabelValues(d.provider.Name()))
	resp, sendErr := d.provider.Send(ctx, emailprovider.SendRequest{
		From:    d.config.SenderAddress,
		To:      record.RecipientEmail,
		ToName:  record.RecipientName.String,
		Subject: record.Subject,
		HTML:    record.HTMLContent,
		Text:    record.TextContent,
	})
	timer.ObserveDuration()

	if sendErr != nil {
		nextRetryCount := record.RetryCount + 1
		detail.Error = sendErr.Error()
		if nextRetryCount >= record.MaxRetries {
			detail.Outcome = OutcomeFailed
		} else {
			detail.Outcome = OutcomeRetryScheduled
		}

		d.logger.WarnContext(ctx, "Delivery attempt failed",
			"notification_id", record.NotificationID, "recipient", record.RecipientEmail,
			"retry_count", nextRetryCount, "max_retries", record.MaxRetries, "error", sendErr)

		if err := d.repo.MarkFailedAttempt(ctx, record.ID, sendErr.Error(), nextRetryCount); err != nil {
			// One bad record must not block the rest of the queue; the
			// record stays pending and a later sweep retries it.
			d.logger.ErrorContext(ctx, "Failed to record delivery failure",
				"notification_id", record.NotificationID, "error", err)
			detail.Outcome = OutcomeStoreError
			detail.Error = fmt.Sprintf("send failed (%v); status update failed (%v)", sendErr, err)
		}
		notificationsProcessedCounter.WithLabelValues(string(record.Type), string(detail.Outcome)).Inc()
		return detail
	}

	if err := d.repo.MarkSent(ctx, record.ID, resp.ProviderMessageID); err != nil {
		d.logger.ErrorContext(ctx, "Delivered but failed to mark sent",
			"notification_id", record.NotificationID, "provider_message_id", resp.ProviderMessageID, "error", err)
		detail.Outcome = OutcomeStoreError
		detail.Error = fmt.Sprintf("delivered but status update failed: %v", err)
		notificationsProcessedCounter.WithLabelValues(string(record.Type), string(detail.Outcome)).Inc()
		return detail
	}

	d.logger.InfoContext(ctx, "Notification sent",
		"notification_id", record.NotificationID, "recipient", record.RecipientEmail,
		"provider_message_id", resp.ProviderMessageID)
	detail.Outcome = OutcomeSent
	notificationsProcessedCounter.WithLabelValues(string(record.Type), string(detail.Outcome)).Inc()
	return detail
}
