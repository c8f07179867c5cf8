// Package quote handles quote intake and the pricing pipeline: pack the
// lots, weigh the cartons, then look the shipping price up on the grid.
package quote

import (
	"context"
	"errors"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-cargo/internal/events"
	"github.com/noah-isme/backend-cargo/internal/grouping"
	"github.com/noah-isme/backend-cargo/internal/obs"
	"github.com/noah-isme/backend-cargo/internal/packing"
	"github.com/noah-isme/backend-cargo/internal/rates"
	"github.com/noah-isme/backend-cargo/internal/repo"
	"github.com/noah-isme/backend-cargo/internal/tasks"
	"github.com/noah-isme/backend-cargo/internal/tenant"
)

type store interface {
	CreateQuote(ctx context.Context, in repo.Quote) (repo.Quote, error)
	GetQuote(ctx context.Context, id string) (repo.Quote, error)
	ListQuotes(ctx context.Context, status string, page, perPage int) ([]repo.Quote, int, error)
	UpdateQuotePricing(ctx context.Context, id string, up repo.PricingUpdate) error
}

type cartonSource interface {
	ActiveCartons(ctx context.Context) ([]packing.Carton, error)
}

type rateQuoter interface {
	QuoteByCountry(ctx context.Context, country, serviceName string, billableKg float64) (rates.Quote, error)
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Service runs quote intake and pricing.
type Service struct {
	Q        store
	Catalog  cartonSource
	Rates    rateQuoter
	Bus      *events.Bus
	Tasks    enqueuer
	Log      zerolog.Logger
	MarginCm float64
	Divisor  float64
}

// LotInput is one lot line on an incoming quote.
type LotInput struct {
	Ref      string  `json:"ref"`
	Length   float64 `json:"length" validate:"gt=0"`
	Width    float64 `json:"width" validate:"gt=0"`
	Height   float64 `json:"height" validate:"gt=0"`
	Weight   float64 `json:"weight" validate:"gt=0"`
	Quantity int     `json:"quantity" validate:"omitempty,gte=1"`
}

// QuoteInput is the intake payload.
type QuoteInput struct {
	Reference        string     `json:"reference" validate:"required"`
	ClientName       string     `json:"clientName" validate:"required"`
	ClientEmail      string     `json:"clientEmail" validate:"required,email"`
	RecipientAddress string     `json:"recipientAddress" validate:"required"`
	Country          string     `json:"country" validate:"required,len=2"`
	Service          string     `json:"service" validate:"required"`
	Lots             []LotInput `json:"lots" validate:"required,min=1,dive"`
}

// PriceResult is the outcome of one pricing run.
type PriceResult struct {
	Quote    repo.Quote     `json:"quote"`
	Packing  packing.Result `json:"packing"`
	Rate     *rates.Quote   `json:"rate,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}

// Create persists a new open quote. The recipient address is normalized
// at intake so grouping candidates compare on a canonical form.
func (s *Service) Create(ctx context.Context, in QuoteInput) (repo.Quote, error) {
	qt := repo.Quote{
		Reference:         strings.TrimSpace(in.Reference),
		ClientName:        strings.TrimSpace(in.ClientName),
		ClientEmail:       strings.TrimSpace(in.ClientEmail),
		RecipientAddress:  in.RecipientAddress,
		AddressNormalized: grouping.NormalizeAddress(in.RecipientAddress),
		Country:           strings.ToUpper(strings.TrimSpace(in.Country)),
		ServiceName:       strings.TrimSpace(in.Service),
		Lots:              lotsOf(in.Lots),
	}
	created, err := s.Q.CreateQuote(ctx, qt)
	if err != nil {
		return repo.Quote{}, err
	}
	s.enqueueSuggestionRefresh(ctx, created.ID)
	return created, nil
}

// Get loads one quote.
func (s *Service) Get(ctx context.Context, id string) (repo.Quote, error) {
	return s.Q.GetQuote(ctx, id)
}

// List returns one page of quotes plus the total count.
func (s *Service) List(ctx context.Context, status string, page, perPage int) ([]repo.Quote, int, error) {
	return s.Q.ListQuotes(ctx, status, page, perPage)
}

// Price runs the pricing pipeline on a quote: pack every lot into the
// cheapest fitting carton, compute the billable weight, and resolve the
// shipping price from the grid. An unavailable or unconfigured rate is
// reported as a warning and leaves the shipping cost null.
func (s *Service) Price(ctx context.Context, id string) (PriceResult, error) {
	qt, err := s.Q.GetQuote(ctx, id)
	if err != nil {
		return PriceResult{}, err
	}
	cartons, err := s.Catalog.ActiveCartons(ctx)
	if err != nil {
		return PriceResult{}, err
	}

	packed := packing.Pack(qt.Lots, cartons, s.MarginCm, s.Divisor)
	billable := packed.BillableWeight()

	out := PriceResult{Packing: packed, Warnings: packed.Warnings}
	update := repo.PricingUpdate{
		CartonIDs:        cartonIDs(packed),
		PackagingPrice:   packed.TotalPackagingCost,
		TotalWeight:      packed.TotalRealWeight,
		VolumetricWeight: packed.TotalVolumetricWeight,
		FinalWeight:      billable,
	}

	if len(packed.Warnings) > 0 && obs.PackingWarningsTotal != nil {
		obs.PackingWarningsTotal.Inc()
	}

	priceOutcome := "no_weight"
	if billable > 0 {
		rate, err := s.Rates.QuoteByCountry(ctx, qt.Country, qt.ServiceName, billable)
		switch {
		case err == nil:
			priceOutcome = "priced"
			cost := rate.Price
			update.ShippingCost = &cost
			out.Rate = &rate
			if rate.Overweight && rate.Message != "" {
				out.Warnings = append(out.Warnings, rate.Message)
			}
		case errors.Is(err, rates.ErrRateUnavailable),
			errors.Is(err, rates.ErrRateNotConfigured),
			errors.Is(err, rates.ErrOverweightUnsupported),
			errors.Is(err, rates.ErrZoneNotFound),
			errors.Is(err, rates.ErrServiceNotFound):
			priceOutcome = "rate_unavailable"
			out.Warnings = append(out.Warnings, "shipping rate unavailable: "+err.Error())
		default:
			return PriceResult{}, err
		}
	}
	if obs.QuotesPricedTotal != nil {
		obs.QuotesPricedTotal.WithLabelValues(priceOutcome).Inc()
	}

	if err := s.Q.UpdateQuotePricing(ctx, qt.ID, update); err != nil {
		return PriceResult{}, err
	}
	qt.CartonIDs = update.CartonIDs
	qt.PackagingPrice = update.PackagingPrice
	qt.TotalWeight = update.TotalWeight
	qt.VolumetricWeight = update.VolumetricWeight
	qt.FinalWeight = update.FinalWeight
	qt.ShippingCost = update.ShippingCost
	qt.Status = repo.QuoteStatusPriced
	out.Quote = qt

	if s.Bus != nil {
		_, _ = s.Bus.Emit(ctx, events.TopicQuotePriced, qt.ID, map[string]any{
			"finalWeight":  billable,
			"shippingCost": update.ShippingCost,
		})
	}
	s.enqueueSuggestionRefresh(ctx, qt.ID)
	return out, nil
}

func (s *Service) enqueueSuggestionRefresh(ctx context.Context, quoteID string) {
	if s.Tasks == nil {
		return
	}
	tenantID, ok := tenant.From(ctx)
	if !ok {
		return
	}
	task, err := tasks.NewSuggestionRefreshTask(tenantID, quoteID)
	if err == nil {
		_, err = s.Tasks.EnqueueContext(ctx, task)
	}
	if err != nil {
		s.Log.Warn().Err(err).Str("quote_id", quoteID).Msg("enqueue suggestion refresh")
	}
}

func lotsOf(in []LotInput) []packing.Item {
	out := make([]packing.Item, 0, len(in))
	for _, lot := range in {
		qty := lot.Quantity
		if qty < 1 {
			qty = 1
		}
		out = append(out, packing.Item{
			Ref:      lot.Ref,
			Length:   lot.Length,
			Width:    lot.Width,
			Height:   lot.Height,
			Weight:   lot.Weight,
			Quantity: qty,
		})
	}
	return out
}

func cartonIDs(r packing.Result) []string {
	out := make([]string, 0, len(r.Cartons))
	for _, c := range r.Cartons {
		out = append(out, c.Carton.ID)
	}
	return out
}
