package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nordtolk/booking-be/internal/booking/notify"
)

// Sender delivers one envelope over a single channel. Implementations wrap
// transient failures in RetryableError so the consumer requeues them;
// anything else is dropped after one attempt.
type Sender interface {
	Send(ctx context.Context, env *notify.Envelope) error
}

// httpGateway is the shared HTTP plumbing of the channel senders. Gateway
// 5xx responses and transport errors are retryable, 4xx responses are not.
type httpGateway struct {
	client   *http.Client
	endpoint string
	headers  map[string]string
}

func (g *httpGateway) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range g.headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return NewRetryableError(fmt.Errorf("gateway request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return NewRetryableError(fmt.Errorf("gateway returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrGatewayRejected, resp.StatusCode, string(detail))
	}

	return nil
}
