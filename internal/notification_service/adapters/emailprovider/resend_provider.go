package emailprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ResendProvider sends email through the Resend transactional API
// (POST /emails with a Bearer API key).
type ResendProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

func NewResendProvider(logger *slog.Logger, apiURL, apiKey string, httpClient *http.Client) *ResendProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ResendProvider{
		logger:     logger.With("provider", "resend"),
		httpClient: httpClient,
		apiURL:     apiURL,
		apiKey:     apiKey,
	}
}

type resendSendRequestBody struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type resendSendResponseBody struct {
	ID string `json:"id"`
}

func (p *ResendProvider) Name() string { return "resend" }

func (p *ResendProvider) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	to := req.To
	if req.ToName != "" {
		to = fmt.Sprintf("%s <%s>", req.ToName, req.To)
	}

	reqBody := resendSendRequestBody{
		From:    req.From,
		To:      []string{to},
		Subject: req.Subject,
		HTML:    req.HTML,
		Text:    req.Text,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to reach email provider", "error", err, "recipient", req.To)
		return nil, fmt.Errorf("failed to send request to email provider: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response (status %d): %w", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		p.logger.WarnContext(ctx, "Email provider rejected message",
			"status_code", httpResp.StatusCode, "recipient", req.To, "body", string(respBody))
		return nil, &SendError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	var parsed resendSendResponseBody
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}

	p.logger.DebugContext(ctx, "Email accepted by provider", "provider_message_id", parsed.ID, "recipient", req.To)
	return &SendResponse{ProviderMessageID: parsed.ID}, nil
}
