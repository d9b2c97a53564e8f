package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/techserwis/notification_service/internal/notification_service/app"
	"github.com/techserwis/notification_service/internal/notification_service/domain"
)

// enqueuer and sweeper narrow the app services to what the handlers need,
// so tests can substitute mocks.
type enqueuer interface {
	Enqueue(ctx context.Context, input app.EnqueueInput) (*app.EnqueueResult, error)
	GetStatus(ctx context.Context, notificationID string) (*domain.NotificationRecord, error)
}

type sweeper interface {
	RunSweep(ctx context.Context, notificationIDs []string) (*app.SweepSummary, error)
}

type NotificationHandler struct {
	enqueueService enqueuer
	dispatcher     sweeper
	logger         *slog.Logger
	validate       *validator.Validate
}

func NewNotificationHandler(enqueueService enqueuer, dispatcher sweeper, logger *slog.Logger, validate *validator.Validate) *NotificationHandler {
	return &NotificationHandler{
		enqueueService: enqueueService,
		dispatcher:     dispatcher,
		logger:         logger.With("component", "notification_handler"),
		validate:       validate,
	}
}

// RegisterRoutes mounts the notification API on the given router.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/notifications", func(r chi.Router) {
		r.Post("/", h.EnqueueNotification)
		r.Post("/dispatch", h.Dispatch)
		r.Get("/{notificationID}", h.GetNotificationStatus)
	})
}

func (h *NotificationHandler) EnqueueNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO EnqueueNotificationRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.logger.WarnContext(ctx, "Failed to decode enqueue request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		h.logger.WarnContext(ctx, "Validation failed for enqueue request", "error", err)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %s", err.Error()))
		return
	}

	result, err := h.enqueueService.Enqueue(ctx, app.EnqueueInput{
		NotificationID: reqDTO.NotificationID,
		Type:           domain.NotificationType(reqDTO.Type),
		RecipientEmail: reqDTO.RecipientEmail,
		RecipientName:  reqDTO.RecipientName,
		Data:           reqDTO.Data,
		Metadata:       reqDTO.Metadata,
		MaxRetries:     reqDTO.MaxRetries,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUnknownTemplateType) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown notification type: %s", reqDTO.Type))
			return
		}
		h.logger.ErrorContext(ctx, "Failed to enqueue notification", "error", err, "type", reqDTO.Type)
		writeError(w, http.StatusInternalServerError, "Failed to queue notification")
		return
	}

	status := http.StatusCreated
	if result.AlreadyQueued {
		status = http.StatusOK
	}
	writeJSON(w, status, EnqueueNotificationResponseDTO{
		Success:        true,
		NotificationID: result.Record.NotificationID,
		Status:         string(result.Record.Status),
		AlreadyQueued:  result.AlreadyQueued,
	})
}

func (h *NotificationHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO DispatchRequestDTO
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil && !errors.Is(err, io.EOF) {
			h.logger.WarnContext(ctx, "Failed to decode dispatch request body", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %s", err.Error()))
		return
	}

	summary, err := h.dispatcher.RunSweep(ctx, reqDTO.NotificationIDs)
	if err != nil {
		// Sweep-level failure (store unreachable): a non-2xx lets external
		// monitoring alert on it.
		h.logger.ErrorContext(ctx, "Sweep failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Sweep failed: store unavailable")
		return
	}

	respDTO := DispatchResponseDTO{
		Success: true,
		Total:   summary.Total,
		Sent:    summary.Sent,
		Failed:  summary.Failed,
		Details: make([]DispatchDetailDTO, 0, len(summary.Details)),
	}
	for _, d := range summary.Details {
		respDTO.Details = append(respDTO.Details, DispatchDetailDTO{
			NotificationID: d.NotificationID,
			Recipient:      d.Recipient,
			Outcome:        string(d.Outcome),
			Error:          d.Error,
		})
	}
	writeJSON(w, http.StatusOK, respDTO)
}

func (h *NotificationHandler) GetNotificationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notificationID := chi.URLParam(r, "notificationID")

	record, err := h.enqueueService.GetStatus(ctx, notificationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			writeError(w, http.StatusNotFound, "Notification not found")
			return
		}
		h.logger.ErrorContext(ctx, "Failed to get notification status", "error", err, "notification_id", notificationID)
		writeError(w, http.StatusInternalServerError, "Failed to get notification status")
		return
	}

	respDTO := NotificationStatusResponseDTO{
		NotificationID: record.NotificationID,
		Type:           string(record.Type),
		RecipientEmail: record.RecipientEmail,
		Subject:        record.Subject,
		Status:         string(record.Status),
		RetryCount:     record.RetryCount,
		MaxRetries:     record.MaxRetries,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
	if record.ErrorMessage.Valid {
		respDTO.ErrorMessage = record.ErrorMessage.String
	}
	if record.SentAt.Valid {
		sentAt := record.SentAt.Time
		respDTO.SentAt = &sentAt
	}
	if len(record.Metadata) > 0 {
		var metadata map[string]any
		if err := json.Unmarshal(record.Metadata, &metadata); err == nil {
			respDTO.Metadata = metadata
		}
	}
	writeJSON(w, http.StatusOK, respDTO)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponseDTO{Success: false, Error: message})
}
