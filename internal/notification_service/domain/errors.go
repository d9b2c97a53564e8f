package domain

import "errors"

var (
	// ErrNotificationNotFound indicates a lookup or update targeted a record
	// that does not exist.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrDuplicateNotificationID indicates an insert reused an existing
	// notification_id. Callers should treat it as success-equivalent: the
	// earlier write already represents the intended notification.
	ErrDuplicateNotificationID = errors.New("notification_id already exists")

	// ErrUnknownTemplateType indicates the renderer has no formatter for the
	// requested notification type.
	ErrUnknownTemplateType = errors.New("unknown template type")
)
