package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-cargo/internal/obs"
	"github.com/noah-isme/backend-cargo/internal/repo"
)

// Endpoint is one configured webhook receiver. Topics lists the event
// topics it subscribes to; an empty list means all topics.
type Endpoint struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Topics []string `json:"topics"`
}

// Subscribed reports whether the endpoint wants the topic.
func (e Endpoint) Subscribed(topic string) bool {
	if len(e.Topics) == 0 {
		return true
	}
	for _, t := range e.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// Deliverer performs one signed webhook delivery. Retries are the
// caller's concern; the worker queue re-runs failed deliveries with its
// own backoff.
type Deliverer struct {
	Client *http.Client
}

// Deliver posts the event to the endpoint and returns the response
// status. Non-2xx statuses are returned as errors so queue retries kick
// in.
func (d *Deliverer) Deliver(ctx context.Context, ep Endpoint, ev repo.DomainEvent) (int, error) {
	if d.Client == nil {
		d.Client = HTTPClient(5000)
	}
	ctx, span := otel.Tracer("notify.Deliverer").Start(ctx, "Deliverer.Deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.endpoint", ep.Name),
		attribute.String("webhook.topic", ev.Topic),
	)

	if err := validateURL(ep.URL); err != nil {
		span.RecordError(err)
		return 0, err
	}
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	payload := struct {
		EventID    string          `json:"eventId"`
		Topic      string          `json:"topic"`
		Data       json.RawMessage `json:"data"`
		OccurredAt time.Time       `json:"occurredAt"`
	}{
		EventID:    ev.ID,
		Topic:      ev.Topic,
		Data:       json.RawMessage(ev.Payload),
		OccurredAt: occurred,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	ts := time.Now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "cargo-api-webhooks/1.0")
	req.Header.Set("X-Event-ID", ev.ID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", ComputeSignature(ep.Secret, ts, ev.ID, body))

	attemptStart := time.Now()
	resp, err := d.Client.Do(req)
	if err != nil {
		span.RecordError(err)
		countDelivery("failed", attemptStart)
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		countDelivery("failed", attemptStart)
		return resp.StatusCode, fmt.Errorf("webhook endpoint %s returned status %d", ep.Name, resp.StatusCode)
	}
	countDelivery("delivered", attemptStart)
	return resp.StatusCode, nil
}

func countDelivery(result string, start time.Time) {
	if obs.WebhookDeliveriesTotal != nil {
		obs.WebhookDeliveriesTotal.WithLabelValues(result).Inc()
	}
	if obs.WebhookAttemptLatency != nil {
		obs.WebhookAttemptLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
	}
}

// ComputeSignature calculates the webhook signature for the provided
// payload. The format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using
// the endpoint secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns an HTTP client configured for webhook delivery.
func HTTPClient(timeoutMs int) *http.Client {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	return &http.Client{
		Timeout:   time.Duration(timeoutMs) * time.Millisecond,
		Transport: otelhttp.NewTransport(&http.Transport{}),
	}
}

func validateURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}
