// Package webhook delivers signed capture events.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	EventCaptureCompleted = "capture.completed"
	EventCaptureFailed    = "capture.failed"
)

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Portalshot-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	Slug      string `json:"slug,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ, url, slug string, data any) *Event {
	return &Event{Type: typ, URL: url, Slug: slug, Timestamp: time.Now().Unix(), Data: data}
}

// Notifier posts events to one endpoint.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	delays []time.Duration
	logger *slog.Logger
	wg     sync.WaitGroup

	stop     chan struct{}
	stopOnce sync.Once
}

// NewNotifier returns a Notifier for url. A nil logger uses slog.Default.
func NewNotifier(url, secret string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Sign returns the signature header value of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends event once.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Portalshot-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends event in the background, retrying after 1s, 5s and 30s.
// The first attempt always runs; Close abandons the retries still waiting.
func (n *Notifier) DeliverAsync(event *Event) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for attempt, delay := range n.delays {
			if delay > 0 && !n.sleep(delay) {
				n.logger.Warn("webhook retries abandoned on shutdown", "url", n.url, "event", event.Type, "attempt", attempt+1)
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := n.Deliver(ctx, event)
			cancel()
			if err == nil {
				n.logger.Info("webhook delivered", "url", n.url, "event", event.Type, "attempt", attempt+1)
				return
			}
			n.logger.Warn("webhook delivery failed", "url", n.url, "event", event.Type, "attempt", attempt+1, "error", err)
		}
		n.logger.Error("webhook delivery exhausted all retries", "url", n.url, "event", event.Type)
	}()
}

// sleep waits for d and reports false if Close was called first.
func (n *Notifier) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-n.stop:
		return false
	case <-t.C:
		return true
	}
}

// Wait blocks until every pending async delivery has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Close cancels pending retry waits and blocks until attempts in flight
// have finished. It is safe to call more than once.
func (n *Notifier) Close() {
	n.stopOnce.Do(func() { close(n.stop) })
	n.wg.Wait()
}
