package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Notifier fans JSON events out to the configured n8n webhook URLs.
type Notifier struct {
	httpClient *http.Client
	log        *slog.Logger
}

func NewNotifier(log *slog.Logger) *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// Send posts the payload to every URL. Partial failure is tolerated; the
// error is non-nil only when every endpoint failed, because a generation
// handed to automation must land somewhere.
func (n *Notifier) Send(ctx context.Context, urls []string, payload any) error {
	if len(urls) == 0 {
		return errors.New("no automation webhooks configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal automation payload: %w", err)
	}

	delivered := 0
	var lastErr error
	for _, url := range urls {
		if err := n.post(ctx, url, body); err != nil {
			n.log.Error("automation webhook failed", "url", url, "err", err)
			lastErr = err
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("all automation webhooks failed: %w", lastErr)
	}
	return nil
}

// SendBestEffort delivers to a single URL and only logs failures. Used for
// the referral notification: the credit already happened and must not be
// rolled back over a webhook hiccup.
func (n *Notifier) SendBestEffort(ctx context.Context, url string, payload any) {
	if url == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("marshal notification payload", "err", err)
		return
	}
	if err := n.post(ctx, url, body); err != nil {
		n.log.Error("notification webhook failed", "url", url, "err", err)
	}
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
