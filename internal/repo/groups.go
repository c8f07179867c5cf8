package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-cargo/internal/packing"
)

// Group is the persisted shipment group aggregate.
type Group struct {
	ID                    string
	Status                string
	AddressNormalized     string
	QuoteIDs              []string
	Cartons               []packing.PackedCarton
	Warnings              []string
	TotalWeight           float64
	TotalVolumetricWeight float64
	FinalWeight           float64
	ShippingCost          *float64
	TotalPackagingCost    float64
	TotalCost             float64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

const groupColumns = `id, status, address_normalized, cartons, warnings, total_weight,
	total_volumetric_weight, final_weight, shipping_cost, total_packaging_cost, total_cost,
	created_at, updated_at`

// InsertGroup persists a new shipment group in draft status.
func (q *Queries) InsertGroup(ctx context.Context, g Group) (Group, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return Group{}, err
	}
	cartons, err := json.Marshal(g.Cartons)
	if err != nil {
		return Group{}, err
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO shipment_groups (tenant_id, status, address_normalized, cartons, warnings,
			total_weight, total_volumetric_weight, final_weight, shipping_cost,
			total_packaging_cost, total_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+groupColumns,
		tid, g.Status, g.AddressNormalized, cartons, g.Warnings,
		g.TotalWeight, g.TotalVolumetricWeight, g.FinalWeight, g.ShippingCost,
		g.TotalPackagingCost, g.TotalCost)
	out, err := scanGroup(row)
	if err != nil {
		return Group{}, err
	}
	out.QuoteIDs = g.QuoteIDs
	return out, nil
}

// GetGroup loads one shipment group with its member quote ids.
func (q *Queries) GetGroup(ctx context.Context, id string) (Group, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return Group{}, err
	}
	gid, err := uuidValue(id)
	if err != nil {
		return Group{}, ErrNotFound
	}
	row := q.db.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM shipment_groups WHERE tenant_id = $1 AND id = $2`, tid, gid)
	out, err := scanGroup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, err
	}

	rows, err := q.db.Query(ctx,
		`SELECT id FROM quotes WHERE tenant_id = $1 AND shipment_group_id = $2 ORDER BY created_at`, tid, gid)
	if err != nil {
		return Group{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var qid pgtype.UUID
		if err := rows.Scan(&qid); err != nil {
			return Group{}, err
		}
		out.QuoteIDs = append(out.QuoteIDs, uuidString(qid))
	}
	return out, rows.Err()
}

// UpdateGroupStatus moves a group to the given status only when it is
// currently in the expected previous status, enforcing the forward-only
// state machine at the storage level too.
func (q *Queries) UpdateGroupStatus(ctx context.Context, id, from, to string) error {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return err
	}
	gid, err := uuidValue(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE shipment_groups SET status = $4, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status = $3`, tid, gid, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGroup removes the group row. Member quotes must be detached
// first (same transaction).
func (q *Queries) DeleteGroup(ctx context.Context, id string) error {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return err
	}
	gid, err := uuidValue(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := q.db.Exec(ctx,
		`DELETE FROM shipment_groups WHERE tenant_id = $1 AND id = $2`, tid, gid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanGroup(row pgx.Row) (Group, error) {
	var out Group
	var id pgtype.UUID
	var cartons []byte
	err := row.Scan(&id, &out.Status, &out.AddressNormalized, &cartons, &out.Warnings,
		&out.TotalWeight, &out.TotalVolumetricWeight, &out.FinalWeight, &out.ShippingCost,
		&out.TotalPackagingCost, &out.TotalCost, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return Group{}, err
	}
	out.ID = uuidString(id)
	if len(cartons) > 0 {
		if err := json.Unmarshal(cartons, &out.Cartons); err != nil {
			return Group{}, err
		}
	}
	return out, nil
}
