package grouping

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-cargo/internal/cache"
	"github.com/noah-isme/backend-cargo/internal/events"
	"github.com/noah-isme/backend-cargo/internal/lock"
	"github.com/noah-isme/backend-cargo/internal/obs"
	"github.com/noah-isme/backend-cargo/internal/packing"
	"github.com/noah-isme/backend-cargo/internal/rates"
	"github.com/noah-isme/backend-cargo/internal/repo"
)

// Sentinel errors surfaced by the grouping service.
var (
	ErrGroupTooSmall       = errors.New("a shipment group needs at least two quotes")
	ErrQuoteMissing        = errors.New("one or more quotes were not found")
	ErrAlreadyGrouped      = errors.New("one or more quotes already belong to a group")
	ErrAddressMismatch     = errors.New("quotes do not share the same recipient address")
	ErrQuoteNotGroupable   = errors.New("only open or priced quotes can be grouped")
	ErrGroupNotDissolvable = errors.New("paid or shipped groups cannot be dissolved")
	ErrInvalidTransition   = errors.New("invalid shipment group status transition")
)

type store interface {
	GetQuote(ctx context.Context, id string) (repo.Quote, error)
	ListQuotesByIDs(ctx context.Context, ids []string) ([]repo.Quote, error)
	ListOpenQuotesByAddress(ctx context.Context, normalized, excludeID string) ([]repo.Quote, error)
	InsertGroup(ctx context.Context, g repo.Group) (repo.Group, error)
	GetGroup(ctx context.Context, id string) (repo.Group, error)
	UpdateGroupStatus(ctx context.Context, id, from, to string) error
	DeleteGroup(ctx context.Context, id string) error
	AssignQuotesToGroup(ctx context.Context, quoteIDs []string, groupID string) (int64, error)
	ClearGroupFromQuotes(ctx context.Context, groupID string) error
}

type rateQuoter interface {
	QuoteByCountry(ctx context.Context, country, serviceName string, billableKg float64) (rates.Quote, error)
}

// Service orchestrates grouping suggestions and the shipment group
// lifecycle.
type Service struct {
	Q        store
	Pool     *pgxpool.Pool
	Rates    rateQuoter
	Locker   *lock.Locker
	Bus      *events.Bus
	Cache    *cache.JSON
	MarginCm float64
	Divisor  float64
	LockTTL  time.Duration
}

// Suggest returns the cached or freshly computed grouping suggestion for
// a quote. A nil suggestion means no compatible quote exists.
func (s *Service) Suggest(ctx context.Context, quoteID string) (*Suggestion, error) {
	key := cache.KeySuggestion(ctx, quoteID)
	var cached Suggestion
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	}
	return s.RefreshSuggestion(ctx, quoteID)
}

// RefreshSuggestion recomputes the suggestion for a quote and caches it.
func (s *Service) RefreshSuggestion(ctx context.Context, quoteID string) (*Suggestion, error) {
	target, err := s.Q.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if target.ShipmentGroupID != "" {
		_ = s.Cache.Delete(ctx, cache.KeySuggestion(ctx, quoteID))
		return nil, nil
	}
	candidates, err := s.Q.ListOpenQuotesByAddress(ctx, target.AddressNormalized, target.ID)
	if err != nil {
		return nil, err
	}
	snapshots := make([]QuoteSnapshot, 0, len(candidates))
	for _, c := range candidates {
		snapshots = append(snapshots, snapshotOf(c))
	}
	suggestion := BuildSuggestion(snapshotOf(target), snapshots)
	if suggestion == nil {
		_ = s.Cache.Delete(ctx, cache.KeySuggestion(ctx, quoteID))
		return nil, nil
	}
	_ = s.Cache.SetJSON(ctx, cache.KeySuggestion(ctx, quoteID), suggestion)
	return suggestion, nil
}

// CreateGroup consolidates the given quotes into one shipment group. All
// quotes must be ungrouped, open or priced, and share the same normalized
// recipient address. The group's real cost comes from repacking every lot
// into the standard carton set, not from the quick suggestion heuristic.
func (s *Service) CreateGroup(ctx context.Context, quoteIDs []string) (repo.Group, error) {
	if len(quoteIDs) < 2 {
		return repo.Group{}, ErrGroupTooSmall
	}
	quotes, err := s.Q.ListQuotesByIDs(ctx, quoteIDs)
	if err != nil {
		return repo.Group{}, err
	}
	if len(quotes) != len(quoteIDs) {
		return repo.Group{}, ErrQuoteMissing
	}
	normalized := quotes[0].AddressNormalized
	for _, qt := range quotes {
		if qt.ShipmentGroupID != "" {
			return repo.Group{}, ErrAlreadyGrouped
		}
		if qt.Status != repo.QuoteStatusOpen && qt.Status != repo.QuoteStatusPriced {
			return repo.Group{}, ErrQuoteNotGroupable
		}
		if qt.AddressNormalized != normalized {
			return repo.Group{}, ErrAddressMismatch
		}
	}

	var created repo.Group
	run := func(lockCtx context.Context) error {
		group, err := s.buildGroup(lockCtx, quotes, normalized)
		if err != nil {
			return err
		}
		err = s.inTx(lockCtx, func(q store) error {
			inserted, err := q.InsertGroup(lockCtx, group)
			if err != nil {
				return err
			}
			affected, err := q.AssignQuotesToGroup(lockCtx, quoteIDs, inserted.ID)
			if err != nil {
				return err
			}
			if affected != int64(len(quoteIDs)) {
				return ErrAlreadyGrouped
			}
			inserted.QuoteIDs = quoteIDs
			created = inserted
			return nil
		})
		return err
	}
	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, "group:"+normalized, s.lockTTL(), run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return repo.Group{}, err
	}

	if obs.GroupsCreatedTotal != nil {
		obs.GroupsCreatedTotal.Inc()
	}
	if s.Bus != nil {
		_, _ = s.Bus.Emit(ctx, events.TopicGroupCreated, created.ID, map[string]any{
			"quoteIds":  quoteIDs,
			"totalCost": created.TotalCost,
		})
	}
	s.dropSuggestions(ctx, quoteIDs)
	return created, nil
}

// Get loads one shipment group with its member quote ids.
func (s *Service) Get(ctx context.Context, groupID string) (repo.Group, error) {
	return s.Q.GetGroup(ctx, groupID)
}

// DissolveGroup detaches the member quotes and deletes the group. Groups
// at or past the paid status are immutable.
func (s *Service) DissolveGroup(ctx context.Context, groupID string) error {
	group, err := s.Q.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if !Dissolvable(Status(group.Status)) {
		return ErrGroupNotDissolvable
	}
	err = s.inTx(ctx, func(q store) error {
		if err := q.ClearGroupFromQuotes(ctx, groupID); err != nil {
			return err
		}
		return q.DeleteGroup(ctx, groupID)
	})
	if err != nil {
		return err
	}
	if obs.GroupsDissolvedTotal != nil {
		obs.GroupsDissolvedTotal.Inc()
	}
	if s.Bus != nil {
		_, _ = s.Bus.Emit(ctx, events.TopicGroupDissolved, groupID, map[string]any{
			"quoteIds": group.QuoteIDs,
		})
	}
	s.dropSuggestions(ctx, group.QuoteIDs)
	return nil
}

// AdvanceStatus moves a group one step forward in its lifecycle.
func (s *Service) AdvanceStatus(ctx context.Context, groupID string, to Status) (repo.Group, error) {
	group, err := s.Q.GetGroup(ctx, groupID)
	if err != nil {
		return repo.Group{}, err
	}
	from := Status(group.Status)
	if !AllowedTransition(from, to) {
		return repo.Group{}, ErrInvalidTransition
	}
	if err := s.Q.UpdateGroupStatus(ctx, groupID, string(from), string(to)); err != nil {
		return repo.Group{}, err
	}
	group.Status = string(to)
	if s.Bus != nil {
		if topic := statusTopic(to); topic != "" {
			_, _ = s.Bus.Emit(ctx, topic, groupID, map[string]any{"from": from, "to": to})
		}
	}
	return group, nil
}

// buildGroup repacks every lot of the member quotes into the standard
// carton set and prices the consolidated shipment.
func (s *Service) buildGroup(ctx context.Context, quotes []repo.Quote, normalized string) (repo.Group, error) {
	var items []packing.Item
	for _, qt := range quotes {
		items = append(items, qt.Lots...)
	}
	result := packing.Consolidate(items, packing.StandardCartons(), s.MarginCm, s.Divisor)

	var totalReal, totalVolumetric float64
	for _, c := range result.Cartons {
		totalReal += c.RealWeight()
		totalVolumetric += c.VolumetricWeight
	}
	billable := result.BillableWeight()

	group := repo.Group{
		Status:                string(StatusDraft),
		AddressNormalized:     normalized,
		Cartons:               result.Cartons,
		Warnings:              result.Warnings,
		TotalWeight:           totalReal,
		TotalVolumetricWeight: totalVolumetric,
		FinalWeight:           billable,
		TotalPackagingCost:    result.TotalPackagingCost,
		TotalCost:             result.TotalPackagingCost,
	}

	if s.Rates != nil && billable > 0 {
		quote, err := s.Rates.QuoteByCountry(ctx, quotes[0].Country, quotes[0].ServiceName, billable)
		switch {
		case err == nil:
			cost := quote.Price
			group.ShippingCost = &cost
			group.TotalCost += cost
		case errors.Is(err, rates.ErrRateUnavailable),
			errors.Is(err, rates.ErrRateNotConfigured),
			errors.Is(err, rates.ErrOverweightUnsupported):
			// priced later once the grid is completed; cost stays null
		default:
			return repo.Group{}, err
		}
	}
	return group, nil
}

func (s *Service) inTx(ctx context.Context, fn func(store) error) error {
	if s.Pool == nil {
		return fn(s.Q)
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(repo.New(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return 5 * time.Second
}

func (s *Service) dropSuggestions(ctx context.Context, quoteIDs []string) {
	for _, id := range quoteIDs {
		_ = s.Cache.Delete(ctx, cache.KeySuggestion(ctx, id))
	}
}

func statusTopic(to Status) string {
	switch to {
	case StatusValidated:
		return events.TopicGroupValidated
	case StatusPaid:
		return events.TopicGroupPaid
	case StatusShipped:
		return events.TopicGroupShipped
	default:
		return ""
	}
}

// snapshotOf projects a persisted quote into the advisor's read model.
func snapshotOf(qt repo.Quote) QuoteSnapshot {
	var volume float64
	for _, lot := range qt.Lots {
		qty := lot.Quantity
		if qty < 1 {
			qty = 1
		}
		volume += lot.Volume() * float64(qty)
	}
	var cost float64
	if qt.ShippingCost != nil {
		cost = *qt.ShippingCost
	}
	return QuoteSnapshot{
		ID:                qt.ID,
		Reference:         qt.Reference,
		ClientName:        qt.ClientName,
		ClientEmail:       qt.ClientEmail,
		AddressNormalized: qt.AddressNormalized,
		TotalWeight:       qt.TotalWeight,
		TotalVolume:       volume,
		LotCount:          len(qt.Lots),
		ShippingCost:      cost,
		ShipmentGroupID:   qt.ShipmentGroupID,
		CreatedAt:         qt.CreatedAt,
	}
}
