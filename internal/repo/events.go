package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// DomainEvent is one persisted event on the tenant's event log.
type DomainEvent struct {
	ID          string
	Topic       string
	AggregateID string
	Payload     []byte
	OccurredAt  time.Time
}

// InsertDomainEvent appends an event to the tenant's log.
func (q *Queries) InsertDomainEvent(ctx context.Context, topic, aggregateID string, payload []byte) (DomainEvent, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return DomainEvent{}, err
	}
	aid, err := uuidValue(aggregateID)
	if err != nil {
		return DomainEvent{}, ErrNotFound
	}
	var id pgtype.UUID
	var occurredAt time.Time
	err = q.db.QueryRow(ctx, `
		INSERT INTO domain_events (tenant_id, topic, aggregate_id, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, occurred_at`,
		tid, topic, aid, payload).Scan(&id, &occurredAt)
	if err != nil {
		return DomainEvent{}, err
	}
	return DomainEvent{
		ID:          uuidString(id),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  occurredAt,
	}, nil
}
