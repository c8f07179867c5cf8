package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/backend-cargo/internal/repo"
)

// EnqueueFunc schedules a webhook delivery on the background queue.
type EnqueueFunc func(ctx context.Context, endpointName string, event repo.DomainEvent) error

// WebhookNotifier implements events.Notifier by queueing one delivery
// job per subscribed endpoint. Delivery itself, including retries, runs
// on the worker.
type WebhookNotifier struct {
	Endpoints []Endpoint
	Enqueue   EnqueueFunc
	Enabled   bool
}

// Notify queues a delivery for every endpoint subscribed to the topic.
func (n WebhookNotifier) Notify(ctx context.Context, event repo.DomainEvent) error {
	if !n.Enabled || n.Enqueue == nil {
		return nil
	}
	var joined error
	for _, ep := range n.Endpoints {
		if !ep.Subscribed(event.Topic) {
			continue
		}
		if err := n.Enqueue(ctx, ep.Name, event); err != nil {
			joined = errors.Join(joined, fmt.Errorf("enqueue delivery for %s: %w", ep.Name, err))
		}
	}
	return joined
}

// EndpointByName finds a configured endpoint.
func EndpointByName(endpoints []Endpoint, name string) (Endpoint, bool) {
	for _, ep := range endpoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return Endpoint{}, false
}
