package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"newbuild_scrooper/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS developments (
	id TEXT PRIMARY KEY,
	site_id TEXT NOT NULL,
	name TEXT NOT NULL,
	url TEXT,
	status TEXT,
	address TEXT,
	developer TEXT,
	price_min BIGINT,
	price_max BIGINT,
	price_per_m2_min BIGINT,
	price_per_m2_max BIGINT,
	building_class TEXT,
	floors TEXT,
	buildings_count INTEGER,
	building_type TEXT,
	ceiling_height DOUBLE PRECISION,
	finishing TEXT,
	parking TEXT,
	year_built INTEGER,
	last_run_id UUID,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS units (
	id TEXT PRIMARY KEY,
	development_id TEXT NOT NULL REFERENCES developments(id),
	url TEXT,
	rooms INTEGER,
	area DOUBLE PRECISION,
	floor INTEGER,
	floors_total INTEGER,
	price BIGINT,
	price_per_m2 BIGINT,
	address TEXT,
	year_built INTEGER,
	house_status TEXT,
	images TEXT[],
	active BOOLEAN NOT NULL DEFAULT TRUE,
	first_seen TIMESTAMPTZ NOT NULL,
	last_seen TIMESTAMPTZ NOT NULL,
	last_run_id UUID
);

CREATE TABLE IF NOT EXISTS unit_price_points (
	id BIGSERIAL PRIMARY KEY,
	unit_id TEXT NOT NULL REFERENCES units(id),
	price BIGINT NOT NULL,
	price_per_m2 BIGINT,
	run_id UUID,
	effective_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_units_development ON units(development_id, active);
CREATE INDEX IF NOT EXISTS idx_price_points_unit ON unit_price_points(unit_id, effective_at);
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

// =============================================================================
// Developments
// =============================================================================

func (s *PostgresStore) UpsertDevelopment(ctx context.Context, siteID string, d *models.Development, runID uuid.UUID) error {
	query := `
		INSERT INTO developments (
			id, site_id, name, url, status, address, developer, price_min, price_max,
			price_per_m2_min, price_per_m2_max, building_class, floors, buildings_count,
			building_type, ceiling_height, finishing, parking, year_built, last_run_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			status = COALESCE(EXCLUDED.status, developments.status),
			address = COALESCE(EXCLUDED.address, developments.address),
			developer = COALESCE(EXCLUDED.developer, developments.developer),
			price_min = EXCLUDED.price_min,
			price_max = EXCLUDED.price_max,
			price_per_m2_min = EXCLUDED.price_per_m2_min,
			price_per_m2_max = EXCLUDED.price_per_m2_max,
			building_class = COALESCE(EXCLUDED.building_class, developments.building_class),
			floors = COALESCE(EXCLUDED.floors, developments.floors),
			buildings_count = COALESCE(EXCLUDED.buildings_count, developments.buildings_count),
			building_type = COALESCE(EXCLUDED.building_type, developments.building_type),
			ceiling_height = COALESCE(EXCLUDED.ceiling_height, developments.ceiling_height),
			finishing = COALESCE(EXCLUDED.finishing, developments.finishing),
			parking = COALESCE(EXCLUDED.parking, developments.parking),
			year_built = COALESCE(EXCLUDED.year_built, developments.year_built),
			last_run_id = EXCLUDED.last_run_id,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		d.ID, siteID, d.Name, d.URL, d.Status, d.Address, d.Developer, d.PriceMin, d.PriceMax,
		d.PricePerM2Min, d.PricePerM2Max, d.BuildingClass, d.Floors, d.BuildingCount,
		d.BuildingType, d.CeilingHeight, d.Finishing, d.Parking, d.YearBuilt, runID,
	)
	return err
}

// =============================================================================
// Units
// =============================================================================

// SyncUnits upserts the units seen in a run and records a price point for
// every unit whose price changed. With deactivateUnseen, units of the
// development that were not seen are marked inactive. Everything happens in
// one transaction.
func (s *PostgresStore) SyncUnits(ctx context.Context, developmentID string, units []models.UnitRecord, runID uuid.UUID, seenAt time.Time, deactivateUnseen bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i := range units {
		u := &units[i]
		images := u.Images
		if images == nil {
			images = []string{}
		}
		batch.Queue(`
			INSERT INTO unit_price_points (unit_id, price, price_per_m2, run_id, effective_at)
			SELECT $1, $2, $3, $4, $5
			WHERE NOT EXISTS (SELECT 1 FROM units WHERE id = $1 AND price = $2)
				AND EXISTS (SELECT 1 FROM units WHERE id = $1)`,
			u.ID, u.Price, u.PricePerM2(), runID, seenAt)
		batch.Queue(`
			INSERT INTO units (
				id, development_id, url, rooms, area, floor, floors_total, price, price_per_m2,
				address, year_built, house_status, images, active, first_seen, last_seen, last_run_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, TRUE, $14, $14, $15)
			ON CONFLICT (id) DO UPDATE SET
				url = EXCLUDED.url,
				rooms = EXCLUDED.rooms,
				area = EXCLUDED.area,
				floor = COALESCE(NULLIF(EXCLUDED.floor, 0), units.floor),
				floors_total = COALESCE(NULLIF(EXCLUDED.floors_total, 0), units.floors_total),
				price = EXCLUDED.price,
				price_per_m2 = EXCLUDED.price_per_m2,
				address = COALESCE(EXCLUDED.address, units.address),
				year_built = COALESCE(EXCLUDED.year_built, units.year_built),
				house_status = COALESCE(EXCLUDED.house_status, units.house_status),
				images = CASE WHEN cardinality(EXCLUDED.images) > 0 THEN EXCLUDED.images ELSE units.images END,
				active = TRUE,
				last_seen = EXCLUDED.last_seen,
				last_run_id = EXCLUDED.last_run_id`,
			u.ID, developmentID, u.URL, u.Rooms, u.Area, u.Floor, u.FloorsTotal, u.Price, u.PricePerM2(),
			u.Address, u.YearBuilt, u.HouseStatus, images, seenAt, runID)
		batch.Queue(`
			INSERT INTO unit_price_points (unit_id, price, price_per_m2, run_id, effective_at)
			SELECT $1, $2, $3, $4, $5
			WHERE NOT EXISTS (SELECT 1 FROM unit_price_points WHERE unit_id = $1)`,
			u.ID, u.Price, u.PricePerM2(), runID, seenAt)
	}
	if deactivateUnseen {
		batch.Queue(`
			UPDATE units SET active = FALSE
			WHERE development_id = $1 AND active AND (last_run_id IS DISTINCT FROM $2)`,
			developmentID, runID)
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("sync units: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetPriceHistory(ctx context.Context, unitID string) ([]models.PricePoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT unit_id, price, price_per_m2, run_id, effective_at
		FROM unit_price_points WHERE unit_id = $1
		ORDER BY effective_at`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.PricePoint
	for rows.Next() {
		var pp models.PricePoint
		if err := rows.Scan(&pp.UnitID, &pp.Price, &pp.PricePerM2, &pp.RunID, &pp.EffectiveAt); err != nil {
			return nil, err
		}
		points = append(points, pp)
	}
	return points, rows.Err()
}
