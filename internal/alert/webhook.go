package alert

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WebhookSink posts formatted alerts as form data to an HTTP endpoint.
// The destination parameter is passed through as the "chat_id" field so a
// single sink can serve multiple chat destinations.
type WebhookSink struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewWebhookSink builds a sink for the given endpoint URL. Timeout bounds
// each delivery; exceeding it is treated as a failed (not retried) send.
func NewWebhookSink(endpoint string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		url:     endpoint,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (w *WebhookSink) Send(ctx context.Context, destination, text string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("chat_id", destination)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
