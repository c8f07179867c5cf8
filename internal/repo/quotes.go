package repo

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-cargo/internal/packing"
)

// Quote statuses. A quote is "open" (groupable) until it reaches a
// terminal status.
const (
	QuoteStatusOpen    = "open"
	QuoteStatusPriced  = "priced"
	QuoteStatusPaid    = "paid"
	QuoteStatusShipped = "shipped"
)

// Quote is the persisted quote record in its canonical shape.
type Quote struct {
	ID                string
	Reference         string
	ClientName        string
	ClientEmail       string
	RecipientAddress  string
	AddressNormalized string
	Country           string
	ServiceName       string
	Status            string
	Lots              []packing.Item
	CartonIDs         []string
	PackagingPrice    float64
	TotalWeight       float64
	VolumetricWeight  float64
	FinalWeight       float64
	ShippingCost      *float64
	ShipmentGroupID   string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PricingUpdate carries the computed pipeline outputs written back onto
// a quote after a pricing run. ShippingCost stays nil when the rate was
// unavailable; it is never coerced to zero.
type PricingUpdate struct {
	CartonIDs        []string
	PackagingPrice   float64
	TotalWeight      float64
	VolumetricWeight float64
	FinalWeight      float64
	ShippingCost     *float64
}

const quoteColumns = `id, reference, client_name, client_email, recipient_address, recipient_address_normalized,
	destination_country, service_name, status, lots, carton_ids, packaging_price,
	total_weight, volumetric_weight, final_weight, shipping_cost, shipment_group_id, created_at, updated_at`

// CreateQuote inserts a new open quote for the tenant.
func (q *Queries) CreateQuote(ctx context.Context, in Quote) (Quote, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return Quote{}, err
	}
	lots, err := json.Marshal(in.Lots)
	if err != nil {
		return Quote{}, err
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO quotes (tenant_id, reference, client_name, client_email, recipient_address,
			recipient_address_normalized, destination_country, service_name, status, lots)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+quoteColumns,
		tid, in.Reference, in.ClientName, in.ClientEmail, in.RecipientAddress,
		in.AddressNormalized, in.Country, in.ServiceName, QuoteStatusOpen, lots)
	return scanQuote(row)
}

// GetQuote loads one quote scoped to the tenant.
func (q *Queries) GetQuote(ctx context.Context, id string) (Quote, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return Quote{}, err
	}
	qid, err := uuidValue(id)
	if err != nil {
		return Quote{}, ErrNotFound
	}
	row := q.db.QueryRow(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE tenant_id = $1 AND id = $2`, tid, qid)
	out, err := scanQuote(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, ErrNotFound
	}
	return out, err
}

// ListQuotesByIDs loads the given quotes, tenant-scoped. Missing ids are
// simply absent from the result.
func (q *Queries) ListQuotesByIDs(ctx context.Context, ids []string) ([]Quote, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	uuids := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		u, err := uuidValue(id)
		if err != nil {
			return nil, ErrNotFound
		}
		uuids = append(uuids, u)
	}
	rows, err := q.db.Query(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE tenant_id = $1 AND id = ANY($2)`, tid, uuids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuotes(rows)
}

// ListQuotes returns one page of the tenant's quotes, newest first,
// optionally filtered by status, along with the total row count.
func (q *Queries) ListQuotes(ctx context.Context, status string, page, perPage int) ([]Quote, int, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	countSQL := `SELECT count(*) FROM quotes WHERE tenant_id = $1`
	listSQL := `SELECT ` + quoteColumns + ` FROM quotes WHERE tenant_id = $1`
	args := []any{tid}
	if status != "" {
		countSQL += ` AND status = $2`
		listSQL += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := q.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL += ` ORDER BY created_at DESC LIMIT ` + strconv.Itoa(perPage) +
		` OFFSET ` + strconv.Itoa((page-1)*perPage)
	rows, err := q.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := scanQuotes(rows)
	return out, total, err
}

// ListOpenQuotesByAddress returns the tenant's open, ungrouped quotes
// sharing the normalized address, excluding the target quote.
func (q *Queries) ListOpenQuotesByAddress(ctx context.Context, normalized, excludeID string) ([]Quote, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	eid, err := uuidValue(excludeID)
	if err != nil {
		return nil, ErrNotFound
	}
	rows, err := q.db.Query(ctx, `
		SELECT `+quoteColumns+` FROM quotes
		WHERE tenant_id = $1
		  AND recipient_address_normalized = $2
		  AND id <> $3
		  AND status IN ($4, $5)
		  AND shipment_group_id IS NULL
		ORDER BY created_at`,
		tid, normalized, eid, QuoteStatusOpen, QuoteStatusPriced)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuotes(rows)
}

// UpdateQuotePricing writes the computed packing and shipping figures
// back onto the quote and moves it to the priced status.
func (q *Queries) UpdateQuotePricing(ctx context.Context, id string, up PricingUpdate) error {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return err
	}
	qid, err := uuidValue(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE quotes SET carton_ids = $3, packaging_price = $4, total_weight = $5,
			volumetric_weight = $6, final_weight = $7, shipping_cost = $8,
			status = $9, updated_at = now()
		WHERE tenant_id = $1 AND id = $2`,
		tid, qid, up.CartonIDs, up.PackagingPrice, up.TotalWeight,
		up.VolumetricWeight, up.FinalWeight, up.ShippingCost, QuoteStatusPriced)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignQuotesToGroup links the member quotes to a shipment group. It
// refuses to touch quotes that already belong to a group so double
// grouping fails loudly instead of silently relinking.
func (q *Queries) AssignQuotesToGroup(ctx context.Context, quoteIDs []string, groupID string) (int64, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return 0, err
	}
	gid, err := uuidValue(groupID)
	if err != nil {
		return 0, ErrNotFound
	}
	uuids := make([]pgtype.UUID, 0, len(quoteIDs))
	for _, id := range quoteIDs {
		u, err := uuidValue(id)
		if err != nil {
			return 0, ErrNotFound
		}
		uuids = append(uuids, u)
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE quotes SET shipment_group_id = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = ANY($2) AND shipment_group_id IS NULL`,
		tid, uuids, gid)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ClearGroupFromQuotes detaches every member quote of the group.
func (q *Queries) ClearGroupFromQuotes(ctx context.Context, groupID string) error {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return err
	}
	gid, err := uuidValue(groupID)
	if err != nil {
		return ErrNotFound
	}
	_, err = q.db.Exec(ctx, `
		UPDATE quotes SET shipment_group_id = NULL, updated_at = now()
		WHERE tenant_id = $1 AND shipment_group_id = $2`, tid, gid)
	return err
}

func scanQuote(row pgx.Row) (Quote, error) {
	var out Quote
	var id, groupID pgtype.UUID
	var lots []byte
	err := row.Scan(&id, &out.Reference, &out.ClientName, &out.ClientEmail, &out.RecipientAddress,
		&out.AddressNormalized, &out.Country, &out.ServiceName, &out.Status, &lots,
		&out.CartonIDs, &out.PackagingPrice, &out.TotalWeight, &out.VolumetricWeight,
		&out.FinalWeight, &out.ShippingCost, &groupID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return Quote{}, err
	}
	out.ID = uuidString(id)
	out.ShipmentGroupID = uuidString(groupID)
	if len(lots) > 0 {
		if err := json.Unmarshal(lots, &out.Lots); err != nil {
			return Quote{}, err
		}
	}
	return out, nil
}

func scanQuotes(rows pgx.Rows) ([]Quote, error) {
	var out []Quote
	for rows.Next() {
		qt, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qt)
	}
	return out, rows.Err()
}
