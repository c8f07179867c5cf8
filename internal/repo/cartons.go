package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-cargo/internal/packing"
)

// ErrDefaultCarton is returned when an operation would leave the tenant
// without a usable default carton.
var ErrDefaultCarton = errors.New("default carton cannot be deactivated")

// ListCartons returns the tenant's carton catalog, active entries first,
// normalized into the canonical packing.Carton shape.
func (q *Queries) ListCartons(ctx context.Context, activeOnly bool) ([]packing.Carton, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	sql := `SELECT id, ref, inner_length, inner_width, inner_height, price, max_weight_kg, is_default, is_active
	        FROM cartons WHERE tenant_id = $1`
	if activeOnly {
		sql += ` AND is_active`
	}
	sql += ` ORDER BY is_active DESC, created_at`
	rows, err := q.db.Query(ctx, sql, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []packing.Carton
	for rows.Next() {
		var c packing.Carton
		var id pgtype.UUID
		if err := rows.Scan(&id, &c.Ref, &c.InnerLength, &c.InnerWidth, &c.InnerHeight,
			&c.Price, &c.MaxWeightKg, &c.IsDefault, &c.IsActive); err != nil {
			return nil, err
		}
		c.ID = uuidString(id)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCarton inserts a catalog entry for the tenant.
func (q *Queries) CreateCarton(ctx context.Context, c packing.Carton) (packing.Carton, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return packing.Carton{}, err
	}
	var id pgtype.UUID
	err = q.db.QueryRow(ctx, `
		INSERT INTO cartons (tenant_id, ref, inner_length, inner_width, inner_height, price, max_weight_kg, is_default, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING id`,
		tid, c.Ref, c.InnerLength, c.InnerWidth, c.InnerHeight, c.Price, c.MaxWeightKg, c.IsDefault,
	).Scan(&id)
	if err != nil {
		return packing.Carton{}, err
	}
	c.ID = uuidString(id)
	c.IsActive = true
	return c, nil
}

// SetDefaultCarton marks one carton as the tenant default and clears the
// flag on every other carton. Must run inside a transaction so the
// at-most-one-default invariant holds even under concurrent updates.
func (q *Queries) SetDefaultCarton(ctx context.Context, cartonID string) error {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return err
	}
	cid, err := uuidValue(cartonID)
	if err != nil {
		return ErrNotFound
	}
	if _, err := q.db.Exec(ctx,
		`UPDATE cartons SET is_default = FALSE, updated_at = now() WHERE tenant_id = $1 AND is_default`, tid); err != nil {
		return err
	}
	tag, err := q.db.Exec(ctx,
		`UPDATE cartons SET is_default = TRUE, updated_at = now() WHERE tenant_id = $1 AND id = $2 AND is_active`, tid, cid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateCarton soft-deletes a catalog entry. The default carton
// cannot be deactivated while it carries the flag.
func (q *Queries) DeactivateCarton(ctx context.Context, cartonID string) error {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return err
	}
	cid, err := uuidValue(cartonID)
	if err != nil {
		return ErrNotFound
	}
	tag, err := q.db.Exec(ctx,
		`UPDATE cartons SET is_active = FALSE, updated_at = now()
		 WHERE tenant_id = $1 AND id = $2 AND NOT is_default`, tid, cid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if scanErr := q.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM cartons WHERE tenant_id = $1 AND id = $2)`, tid, cid).Scan(&exists); scanErr == nil && exists {
			return ErrDefaultCarton
		}
		return ErrNotFound
	}
	return nil
}
