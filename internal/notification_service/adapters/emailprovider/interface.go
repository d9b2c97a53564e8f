// Package emailprovider wraps the transactional email provider's send API.
// The adapter is deliberately retry-free; retry bookkeeping belongs to the
// dispatcher, which keeps this unit swappable (SMTP, another vendor API or a
// queue producer would slot in without touching the dispatch control flow).
package emailprovider

import (
	"context"
	"fmt"
)

// SendRequest carries one fully rendered message to deliver.
type SendRequest struct {
	From    string
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// SendResponse is the provider's acknowledgement of an accepted message.
type SendResponse struct {
	ProviderMessageID string
}

// SendError is returned for any non-2xx response from the provider.
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("email provider returned status %d: %s", e.StatusCode, e.Body)
}

// EmailProvider sends a single email. Implementations must honor the
// context deadline; a timeout is a delivery failure like any other.
type EmailProvider interface {
	Send(ctx context.Context, req SendRequest) (*SendResponse, error)
	Name() string
}
