package grouping

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cargo/internal/cache"
	"github.com/noah-isme/backend-cargo/internal/packing"
	"github.com/noah-isme/backend-cargo/internal/rates"
	"github.com/noah-isme/backend-cargo/internal/repo"
	"github.com/noah-isme/backend-cargo/internal/tenant"
)

type fakeGroupStore struct {
	quotes  map[string]repo.Quote
	groups  map[string]repo.Group
	nextID  string
	cleared []string
	deleted []string
}

func newFakeGroupStore() *fakeGroupStore {
	return &fakeGroupStore{
		quotes: map[string]repo.Quote{},
		groups: map[string]repo.Group{},
		nextID: "99999999-9999-9999-9999-999999999999",
	}
}

func (f *fakeGroupStore) GetQuote(_ context.Context, id string) (repo.Quote, error) {
	qt, ok := f.quotes[id]
	if !ok {
		return repo.Quote{}, repo.ErrNotFound
	}
	return qt, nil
}

func (f *fakeGroupStore) ListQuotesByIDs(_ context.Context, ids []string) ([]repo.Quote, error) {
	var out []repo.Quote
	for _, id := range ids {
		if qt, ok := f.quotes[id]; ok {
			out = append(out, qt)
		}
	}
	return out, nil
}

func (f *fakeGroupStore) ListOpenQuotesByAddress(_ context.Context, normalized, excludeID string) ([]repo.Quote, error) {
	var out []repo.Quote
	for _, qt := range f.quotes {
		if qt.ID == excludeID || qt.AddressNormalized != normalized || qt.ShipmentGroupID != "" {
			continue
		}
		if qt.Status != repo.QuoteStatusOpen && qt.Status != repo.QuoteStatusPriced {
			continue
		}
		out = append(out, qt)
	}
	return out, nil
}

func (f *fakeGroupStore) InsertGroup(_ context.Context, g repo.Group) (repo.Group, error) {
	g.ID = f.nextID
	f.groups[g.ID] = g
	return g, nil
}

func (f *fakeGroupStore) GetGroup(_ context.Context, id string) (repo.Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return repo.Group{}, repo.ErrNotFound
	}
	return g, nil
}

func (f *fakeGroupStore) UpdateGroupStatus(_ context.Context, id, from, to string) error {
	g, ok := f.groups[id]
	if !ok || g.Status != from {
		return repo.ErrNotFound
	}
	g.Status = to
	f.groups[id] = g
	return nil
}

func (f *fakeGroupStore) DeleteGroup(_ context.Context, id string) error {
	if _, ok := f.groups[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.groups, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeGroupStore) AssignQuotesToGroup(_ context.Context, quoteIDs []string, groupID string) (int64, error) {
	var affected int64
	for _, id := range quoteIDs {
		qt, ok := f.quotes[id]
		if !ok || qt.ShipmentGroupID != "" {
			continue
		}
		qt.ShipmentGroupID = groupID
		f.quotes[id] = qt
		affected++
	}
	return affected, nil
}

func (f *fakeGroupStore) ClearGroupFromQuotes(_ context.Context, groupID string) error {
	f.cleared = append(f.cleared, groupID)
	for id, qt := range f.quotes {
		if qt.ShipmentGroupID == groupID {
			qt.ShipmentGroupID = ""
			f.quotes[id] = qt
		}
	}
	return nil
}

type fixedRates struct {
	price float64
	err   error
}

func (f fixedRates) QuoteByCountry(context.Context, string, string, float64) (rates.Quote, error) {
	if f.err != nil {
		return rates.Quote{}, f.err
	}
	return rates.Quote{Price: f.price}, nil
}

func newGroupingService(t *testing.T, store *fakeGroupStore, quoter rateQuoter) *Service {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &Service{
		Q:        store,
		Rates:    quoter,
		Cache:    cache.NewJSON(client, time.Minute),
		MarginCm: 1,
		Divisor:  5000,
	}
}

func groupingCtx() context.Context {
	return tenant.With(context.Background(), "cccccccc-cccc-cccc-cccc-cccccccccccc")
}

func seedQuote(store *fakeGroupStore, id, address string, cost float64) {
	store.quotes[id] = repo.Quote{
		ID:                id,
		Reference:         "Q-" + id[:8],
		AddressNormalized: address,
		Country:           "FR",
		ServiceName:       "STANDARD",
		Status:            repo.QuoteStatusPriced,
		Lots:              []packing.Item{{Ref: "lot", Length: 28, Width: 18, Height: 18, Weight: 4}},
		TotalWeight:       4,
		ShippingCost:      &cost,
	}
}

func TestSuggestFindsSameAddressQuotes(t *testing.T) {
	store := newFakeGroupStore()
	seedQuote(store, "11111111-1111-1111-1111-111111111111", "12 r paix paris", 30)
	seedQuote(store, "22222222-2222-2222-2222-222222222222", "12 r paix paris", 30)
	seedQuote(store, "33333333-3333-3333-3333-333333333333", "9 av foch lyon", 30)
	svc := newGroupingService(t, store, fixedRates{price: 40})

	suggestion, err := svc.Suggest(groupingCtx(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	require.NotNil(t, suggestion)
	require.Len(t, suggestion.Candidates, 1)
	require.InDelta(t, 60.0, suggestion.IndividualCost, 1e-9)
	require.InDelta(t, 42.0, suggestion.EstimatedGroupedCost, 1e-9)

	again, err := svc.Suggest(groupingCtx(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	require.Equal(t, suggestion.PotentialSavings, again.PotentialSavings)
}

func TestSuggestNilWhenAlone(t *testing.T) {
	store := newFakeGroupStore()
	seedQuote(store, "11111111-1111-1111-1111-111111111111", "12 r paix paris", 30)
	svc := newGroupingService(t, store, fixedRates{price: 40})

	suggestion, err := svc.Suggest(groupingCtx(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	require.Nil(t, suggestion)
}

func TestCreateGroupConsolidatesAndPrices(t *testing.T) {
	store := newFakeGroupStore()
	seedQuote(store, "11111111-1111-1111-1111-111111111111", "12 r paix paris", 30)
	seedQuote(store, "22222222-2222-2222-2222-222222222222", "12 r paix paris", 30)
	svc := newGroupingService(t, store, fixedRates{price: 40})

	group, err := svc.CreateGroup(groupingCtx(), []string{
		"11111111-1111-1111-1111-111111111111",
		"22222222-2222-2222-2222-222222222222",
	})
	require.NoError(t, err)
	require.Equal(t, string(StatusDraft), group.Status)
	require.NotEmpty(t, group.Cartons)
	require.NotNil(t, group.ShippingCost)
	require.Equal(t, 40.0, *group.ShippingCost)
	require.InDelta(t, 8.0, group.TotalWeight, 1e-9)
	require.Equal(t, group.TotalPackagingCost+40.0, group.TotalCost)

	for _, id := range group.QuoteIDs {
		require.Equal(t, group.ID, store.quotes[id].ShipmentGroupID)
	}
}

func TestCreateGroupRejectsSingleQuote(t *testing.T) {
	svc := newGroupingService(t, newFakeGroupStore(), fixedRates{})
	_, err := svc.CreateGroup(groupingCtx(), []string{"11111111-1111-1111-1111-111111111111"})
	require.ErrorIs(t, err, ErrGroupTooSmall)
}

func TestCreateGroupRejectsMixedAddresses(t *testing.T) {
	store := newFakeGroupStore()
	seedQuote(store, "11111111-1111-1111-1111-111111111111", "12 r paix paris", 30)
	seedQuote(store, "22222222-2222-2222-2222-222222222222", "9 av foch lyon", 30)
	svc := newGroupingService(t, store, fixedRates{})

	_, err := svc.CreateGroup(groupingCtx(), []string{
		"11111111-1111-1111-1111-111111111111",
		"22222222-2222-2222-2222-222222222222",
	})
	require.ErrorIs(t, err, ErrAddressMismatch)
}

func TestCreateGroupRejectsAlreadyGrouped(t *testing.T) {
	store := newFakeGroupStore()
	seedQuote(store, "11111111-1111-1111-1111-111111111111", "12 r paix paris", 30)
	seedQuote(store, "22222222-2222-2222-2222-222222222222", "12 r paix paris", 30)
	qt := store.quotes["22222222-2222-2222-2222-222222222222"]
	qt.ShipmentGroupID = "88888888-8888-8888-8888-888888888888"
	store.quotes[qt.ID] = qt
	svc := newGroupingService(t, store, fixedRates{})

	_, err := svc.CreateGroup(groupingCtx(), []string{
		"11111111-1111-1111-1111-111111111111",
		"22222222-2222-2222-2222-222222222222",
	})
	require.ErrorIs(t, err, ErrAlreadyGrouped)
}

func TestCreateGroupKeepsNilCostWhenRateUnavailable(t *testing.T) {
	store := newFakeGroupStore()
	seedQuote(store, "11111111-1111-1111-1111-111111111111", "12 r paix paris", 30)
	seedQuote(store, "22222222-2222-2222-2222-222222222222", "12 r paix paris", 30)
	svc := newGroupingService(t, store, fixedRates{err: rates.ErrRateUnavailable})

	group, err := svc.CreateGroup(groupingCtx(), []string{
		"11111111-1111-1111-1111-111111111111",
		"22222222-2222-2222-2222-222222222222",
	})
	require.NoError(t, err)
	require.Nil(t, group.ShippingCost)
	require.Equal(t, group.TotalPackagingCost, group.TotalCost)
}

func TestDissolveGroupLifecycle(t *testing.T) {
	store := newFakeGroupStore()
	seedQuote(store, "11111111-1111-1111-1111-111111111111", "12 r paix paris", 30)
	seedQuote(store, "22222222-2222-2222-2222-222222222222", "12 r paix paris", 30)
	svc := newGroupingService(t, store, fixedRates{price: 40})

	group, err := svc.CreateGroup(groupingCtx(), []string{
		"11111111-1111-1111-1111-111111111111",
		"22222222-2222-2222-2222-222222222222",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DissolveGroup(groupingCtx(), group.ID))
	require.Empty(t, store.quotes["11111111-1111-1111-1111-111111111111"].ShipmentGroupID)
	_, err = svc.Get(groupingCtx(), group.ID)
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestDissolveRefusedOncePaid(t *testing.T) {
	store := newFakeGroupStore()
	seedQuote(store, "11111111-1111-1111-1111-111111111111", "12 r paix paris", 30)
	seedQuote(store, "22222222-2222-2222-2222-222222222222", "12 r paix paris", 30)
	svc := newGroupingService(t, store, fixedRates{price: 40})

	group, err := svc.CreateGroup(groupingCtx(), []string{
		"11111111-1111-1111-1111-111111111111",
		"22222222-2222-2222-2222-222222222222",
	})
	require.NoError(t, err)

	_, err = svc.AdvanceStatus(groupingCtx(), group.ID, StatusValidated)
	require.NoError(t, err)
	_, err = svc.AdvanceStatus(groupingCtx(), group.ID, StatusPaid)
	require.NoError(t, err)

	require.ErrorIs(t, svc.DissolveGroup(groupingCtx(), group.ID), ErrGroupNotDissolvable)
}

func TestAdvanceStatusRejectsSkips(t *testing.T) {
	store := newFakeGroupStore()
	seedQuote(store, "11111111-1111-1111-1111-111111111111", "12 r paix paris", 30)
	seedQuote(store, "22222222-2222-2222-2222-222222222222", "12 r paix paris", 30)
	svc := newGroupingService(t, store, fixedRates{price: 40})

	group, err := svc.CreateGroup(groupingCtx(), []string{
		"11111111-1111-1111-1111-111111111111",
		"22222222-2222-2222-2222-222222222222",
	})
	require.NoError(t, err)

	_, err = svc.AdvanceStatus(groupingCtx(), group.ID, StatusPaid)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.AdvanceStatus(groupingCtx(), group.ID, StatusDraft)
	require.ErrorIs(t, err, ErrInvalidTransition)
}
