package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-cargo/internal/grouping"
	"github.com/noah-isme/backend-cargo/internal/notify"
	"github.com/noah-isme/backend-cargo/internal/obs"
	"github.com/noah-isme/backend-cargo/internal/repo"
	"github.com/noah-isme/backend-cargo/internal/tenant"
)

type suggestionRefresher interface {
	RefreshSuggestion(ctx context.Context, quoteID string) (*grouping.Suggestion, error)
}

// Handlers processes queued background jobs.
type Handlers struct {
	Grouping  suggestionRefresher
	Webhooks  []notify.Endpoint
	Deliverer *notify.Deliverer
	Log       zerolog.Logger
}

// Register attaches all task handlers to the mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSuggestionRefresh, h.HandleSuggestionRefresh)
	mux.HandleFunc(TypeWebhookDeliver, h.HandleWebhookDeliver)
}

// HandleSuggestionRefresh recomputes the cached grouping suggestion for
// one quote. A vanished quote is not an error worth retrying.
func (h *Handlers) HandleSuggestionRefresh(ctx context.Context, t *asynq.Task) error {
	var p SuggestionRefreshPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.TenantID == "" || p.QuoteID == "" {
		return fmt.Errorf("tenant and quote ids are required: %w", asynq.SkipRetry)
	}
	ctx = tenant.With(ctx, p.TenantID)
	_, err := h.Grouping.RefreshSuggestion(ctx, p.QuoteID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		countRefresh("skipped")
		h.Log.Debug().Str("quote_id", p.QuoteID).Msg("suggestion refresh skipped, quote gone")
		return nil
	case err != nil:
		countRefresh("failed")
		return err
	}
	countRefresh("ok")
	return nil
}

func countRefresh(result string) {
	if obs.SuggestionRefreshTotal != nil {
		obs.SuggestionRefreshTotal.WithLabelValues(result).Inc()
	}
}

// HandleWebhookDeliver performs one signed webhook delivery. Unknown
// endpoints come from stale config and are dropped without retry.
func (h *Handlers) HandleWebhookDeliver(ctx context.Context, t *asynq.Task) error {
	var p WebhookDeliverPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	ep, ok := notify.EndpointByName(h.Webhooks, p.Endpoint)
	if !ok {
		h.Log.Warn().Str("endpoint", p.Endpoint).Msg("webhook endpoint no longer configured")
		return nil
	}
	if h.Deliverer == nil {
		h.Deliverer = &notify.Deliverer{}
	}
	status, err := h.Deliverer.Deliver(ctx, ep, p.Event)
	if err != nil {
		h.Log.Warn().Err(err).Int("status", status).Str("endpoint", p.Endpoint).Msg("webhook delivery failed")
	}
	return err
}
