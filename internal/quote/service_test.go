package quote

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cargo/internal/events"
	"github.com/noah-isme/backend-cargo/internal/packing"
	"github.com/noah-isme/backend-cargo/internal/rates"
	"github.com/noah-isme/backend-cargo/internal/repo"
	"github.com/noah-isme/backend-cargo/internal/tenant"
)

type fakeQuoteStore struct {
	quotes  map[string]repo.Quote
	updates map[string]repo.PricingUpdate
}

func newFakeQuoteStore() *fakeQuoteStore {
	return &fakeQuoteStore{quotes: map[string]repo.Quote{}, updates: map[string]repo.PricingUpdate{}}
}

func (f *fakeQuoteStore) CreateQuote(_ context.Context, in repo.Quote) (repo.Quote, error) {
	in.ID = "11111111-1111-1111-1111-111111111111"
	in.Status = repo.QuoteStatusOpen
	f.quotes[in.ID] = in
	return in, nil
}

func (f *fakeQuoteStore) GetQuote(_ context.Context, id string) (repo.Quote, error) {
	qt, ok := f.quotes[id]
	if !ok {
		return repo.Quote{}, repo.ErrNotFound
	}
	return qt, nil
}

func (f *fakeQuoteStore) ListQuotes(_ context.Context, status string, _, _ int) ([]repo.Quote, int, error) {
	var out []repo.Quote
	for _, qt := range f.quotes {
		if status == "" || qt.Status == status {
			out = append(out, qt)
		}
	}
	return out, len(out), nil
}

func (f *fakeQuoteStore) UpdateQuotePricing(_ context.Context, id string, up repo.PricingUpdate) error {
	if _, ok := f.quotes[id]; !ok {
		return repo.ErrNotFound
	}
	f.updates[id] = up
	return nil
}

type fixedCatalog struct{ cartons []packing.Carton }

func (f fixedCatalog) ActiveCartons(context.Context) ([]packing.Carton, error) {
	return f.cartons, nil
}

type fixedRates struct {
	quote rates.Quote
	err   error
}

func (f fixedRates) QuoteByCountry(context.Context, string, string, float64) (rates.Quote, error) {
	return f.quote, f.err
}

type recordingEnqueuer struct{ tasks []*asynq.Task }

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type fakeEventStore struct{ topics []string }

func (f *fakeEventStore) InsertDomainEvent(_ context.Context, topic, aggregateID string, payload []byte) (repo.DomainEvent, error) {
	f.topics = append(f.topics, topic)
	return repo.DomainEvent{ID: "ev", Topic: topic, AggregateID: aggregateID, Payload: payload}, nil
}

func quoteCtx() context.Context {
	return tenant.With(context.Background(), "dddddddd-dddd-dddd-dddd-dddddddddddd")
}

func newQuoteService(store *fakeQuoteStore, rq rateQuoter, enq *recordingEnqueuer, evs *fakeEventStore) *Service {
	svc := &Service{
		Q: store,
		Catalog: fixedCatalog{cartons: []packing.Carton{
			{ID: "c-small", Ref: "S", InnerLength: 30, InnerWidth: 20, InnerHeight: 20, Price: 1.2, MaxWeightKg: 10, IsDefault: true, IsActive: true},
		}},
		Rates:    rq,
		Tasks:    enq,
		MarginCm: 2,
		Divisor:  5000,
	}
	if evs != nil {
		svc.Bus = &events.Bus{Store: evs}
	}
	return svc
}

func TestCreateNormalizesAddress(t *testing.T) {
	store := newFakeQuoteStore()
	enq := &recordingEnqueuer{}
	svc := newQuoteService(store, fixedRates{}, enq, nil)

	created, err := svc.Create(quoteCtx(), QuoteInput{
		Reference:        "Q-1001",
		ClientName:       "Dupont",
		ClientEmail:      "dupont@example.com",
		RecipientAddress: "12, Rue de la PAIX, Paris",
		Country:          "fr",
		Service:          "STANDARD",
		Lots:             []LotInput{{Length: 25, Width: 15, Height: 15, Weight: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, "12 r de la paix paris", created.AddressNormalized)
	require.Equal(t, "FR", created.Country)
	require.Equal(t, repo.QuoteStatusOpen, created.Status)
	require.Equal(t, 1, created.Lots[0].Quantity)
	require.Len(t, enq.tasks, 1)
}

func TestPricePipeline(t *testing.T) {
	store := newFakeQuoteStore()
	enq := &recordingEnqueuer{}
	evs := &fakeEventStore{}
	svc := newQuoteService(store, fixedRates{quote: rates.Quote{Price: 14}}, enq, evs)

	created, err := svc.Create(quoteCtx(), QuoteInput{
		Reference:        "Q-1002",
		ClientName:       "Dupont",
		ClientEmail:      "dupont@example.com",
		RecipientAddress: "12 rue de la paix paris",
		Country:          "FR",
		Service:          "STANDARD",
		Lots:             []LotInput{{Length: 25, Width: 15, Height: 15, Weight: 5}},
	})
	require.NoError(t, err)

	result, err := svc.Price(quoteCtx(), created.ID)
	require.NoError(t, err)

	require.Len(t, result.Packing.Cartons, 1)
	require.Equal(t, "c-small", result.Packing.Cartons[0].Carton.ID)
	require.InDelta(t, 5.0, result.Quote.TotalWeight, 1e-9)
	require.InDelta(t, 2.4, result.Quote.VolumetricWeight, 1e-9)
	require.InDelta(t, 5.0, result.Quote.FinalWeight, 1e-9)
	require.NotNil(t, result.Quote.ShippingCost)
	require.Equal(t, 14.0, *result.Quote.ShippingCost)
	require.Equal(t, repo.QuoteStatusPriced, result.Quote.Status)

	update := store.updates[created.ID]
	require.Equal(t, []string{"c-small"}, update.CartonIDs)
	require.Contains(t, evs.topics, events.TopicQuotePriced)
	require.Len(t, enq.tasks, 2)
}

func TestPriceKeepsNilCostWhenRateUnavailable(t *testing.T) {
	store := newFakeQuoteStore()
	svc := newQuoteService(store, fixedRates{err: rates.ErrRateUnavailable}, &recordingEnqueuer{}, nil)

	created, err := svc.Create(quoteCtx(), QuoteInput{
		Reference:        "Q-1003",
		ClientName:       "Dupont",
		ClientEmail:      "dupont@example.com",
		RecipientAddress: "12 rue de la paix paris",
		Country:          "FR",
		Service:          "STANDARD",
		Lots:             []LotInput{{Length: 25, Width: 15, Height: 15, Weight: 5}},
	})
	require.NoError(t, err)

	result, err := svc.Price(quoteCtx(), created.ID)
	require.NoError(t, err)
	require.Nil(t, result.Quote.ShippingCost)
	require.NotEmpty(t, result.Warnings)
	require.Nil(t, store.updates[created.ID].ShippingCost)
}

func TestPriceUnknownQuote(t *testing.T) {
	svc := newQuoteService(newFakeQuoteStore(), fixedRates{}, &recordingEnqueuer{}, nil)
	_, err := svc.Price(quoteCtx(), "22222222-2222-2222-2222-222222222222")
	require.ErrorIs(t, err, repo.ErrNotFound)
}
