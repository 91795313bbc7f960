package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dispatch-service/internal/model"
)

const webhookAttempts = 3

// WebhookClient posts offers to the push gateway.
type WebhookClient struct {
	url           string
	internalToken string
	httpClient    *http.Client
	backoff       time.Duration
}

func NewWebhookClient(url, internalToken string) *WebhookClient {
	return &WebhookClient{
		url:           url,
		internalToken: internalToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		backoff: 500 * time.Millisecond,
	}
}

func (c *WebhookClient) NotifyAssignment(ctx context.Context, n model.AssignmentNotification) error {
	if c.url == "" {
		return fmt.Errorf("notification webhook URL is not configured")
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < webhookAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}

		retry, err := c.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}
	return fmt.Errorf("failed to deliver notification after %d attempts: %w", webhookAttempts, lastErr)
}

// post sends one attempt. Network errors and 5xx answers are retried.
func (c *WebhookClient) post(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.internalToken != "" {
		req.Header.Set("X-Internal-Token", c.internalToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err = fmt.Errorf("notification webhook returned status %d: %s", resp.StatusCode, string(msg))
	return resp.StatusCode >= 500, err
}
