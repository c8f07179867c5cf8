// Package tasks defines the background jobs processed by the worker.
package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-cargo/internal/repo"
)

// Task type names. The queue is shared across tenants so every payload
// carries its tenant id.
const (
	TypeSuggestionRefresh = "grouping:suggestion_refresh"
	TypeWebhookDeliver    = "notify:webhook_deliver"
)

// SuggestionRefreshPayload asks the worker to recompute and cache the
// grouping suggestion for one quote.
type SuggestionRefreshPayload struct {
	TenantID string `json:"tenantId"`
	QuoteID  string `json:"quoteId"`
}

// NewSuggestionRefreshTask builds the asynq task for a suggestion refresh.
func NewSuggestionRefreshTask(tenantID, quoteID string) (*asynq.Task, error) {
	payload, err := json.Marshal(SuggestionRefreshPayload{TenantID: tenantID, QuoteID: quoteID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSuggestionRefresh, payload, asynq.MaxRetry(3)), nil
}

// WebhookDeliverPayload asks the worker to deliver one domain event to a
// named webhook endpoint. Retries with backoff come from the queue.
type WebhookDeliverPayload struct {
	Endpoint string           `json:"endpoint"`
	Event    repo.DomainEvent `json:"event"`
}

// NewWebhookDeliverTask builds the asynq task for a webhook delivery.
func NewWebhookDeliverTask(endpointName string, event repo.DomainEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(WebhookDeliverPayload{Endpoint: endpointName, Event: event})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeWebhookDeliver, payload, asynq.MaxRetry(6)), nil
}
