package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-cargo/internal/rates"
)

// LoadGrid assembles the tenant's full pricing grid: zones, services,
// brackets, the sparse rate matrix and the overweight settings. Legacy
// row shapes are normalized here; the rates package never sees them.
func (q *Queries) LoadGrid(ctx context.Context) (rates.Grid, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return rates.Grid{}, err
	}

	grid := rates.Grid{Cells: map[rates.CellKey]*float64{}}

	rows, err := q.db.Query(ctx,
		`SELECT id, code, name, countries, is_active FROM shipping_zones WHERE tenant_id = $1 ORDER BY code`, tid)
	if err != nil {
		return rates.Grid{}, err
	}
	for rows.Next() {
		var z rates.Zone
		var id pgtype.UUID
		if err := rows.Scan(&id, &z.Code, &z.Name, &z.Countries, &z.IsActive); err != nil {
			rows.Close()
			return rates.Grid{}, err
		}
		z.ID = uuidString(id)
		grid.Zones = append(grid.Zones, z)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rates.Grid{}, err
	}

	rows, err = q.db.Query(ctx,
		`SELECT id, name, sort_order, is_active FROM shipping_services WHERE tenant_id = $1 ORDER BY sort_order`, tid)
	if err != nil {
		return rates.Grid{}, err
	}
	for rows.Next() {
		var s rates.Service
		var id pgtype.UUID
		if err := rows.Scan(&id, &s.Name, &s.Order, &s.IsActive); err != nil {
			rows.Close()
			return rates.Grid{}, err
		}
		s.ID = uuidString(id)
		grid.Services = append(grid.Services, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rates.Grid{}, err
	}

	rows, err = q.db.Query(ctx,
		`SELECT id, min_weight_kg, sort_order FROM weight_brackets WHERE tenant_id = $1 ORDER BY min_weight_kg`, tid)
	if err != nil {
		return rates.Grid{}, err
	}
	for rows.Next() {
		var b rates.Bracket
		var id pgtype.UUID
		if err := rows.Scan(&id, &b.MinWeightKg, &b.Order); err != nil {
			rows.Close()
			return rates.Grid{}, err
		}
		b.ID = uuidString(id)
		grid.Brackets = append(grid.Brackets, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rates.Grid{}, err
	}

	rows, err = q.db.Query(ctx,
		`SELECT zone_id, service_id, bracket_id, price FROM shipping_rates WHERE tenant_id = $1`, tid)
	if err != nil {
		return rates.Grid{}, err
	}
	for rows.Next() {
		var zoneID, serviceID, bracketID pgtype.UUID
		var price *float64
		if err := rows.Scan(&zoneID, &serviceID, &bracketID, &price); err != nil {
			rows.Close()
			return rates.Grid{}, err
		}
		key := rates.CellKey{
			ZoneID:    uuidString(zoneID),
			ServiceID: uuidString(serviceID),
			BracketID: uuidString(bracketID),
		}
		grid.Cells[key] = price
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rates.Grid{}, err
	}

	err = q.db.QueryRow(ctx,
		`SELECT overweight_policy, overweight_flat_fee, overweight_message
		 FROM shipping_settings WHERE tenant_id = $1`, tid,
	).Scan(&grid.Settings.OverweightPolicy, &grid.Settings.OverweightFlatFee, &grid.Settings.OverweightMessage)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return rates.Grid{}, err
	}
	return grid, nil
}

// UpsertRate writes one cell of the sparse rate matrix. A nil price
// stores an explicit NULL, meaning the service is not available for that
// zone and bracket; deleting the row instead would read back as "not
// configured".
func (q *Queries) UpsertRate(ctx context.Context, zoneID, serviceID, bracketID string, price *float64) error {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return err
	}
	zid, err := uuidValue(zoneID)
	if err != nil {
		return ErrNotFound
	}
	sid, err := uuidValue(serviceID)
	if err != nil {
		return ErrNotFound
	}
	bid, err := uuidValue(bracketID)
	if err != nil {
		return ErrNotFound
	}
	_, err = q.db.Exec(ctx, `
		INSERT INTO shipping_rates (tenant_id, zone_id, service_id, bracket_id, price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, zone_id, service_id, bracket_id)
		DO UPDATE SET price = EXCLUDED.price, updated_at = now()`,
		tid, zid, sid, bid, price)
	return err
}
