package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"property-valuation/models"
	"property-valuation/utils"
)

// rawPropertyQuery assembles each property into the raw record JSON shape
// in the database, so decoding happens once in models.DecodeRawProperty.
const rawPropertyQuery = `
	SELECT p.id::text, jsonb_build_object(
		'property_id',                  p.id::text,
		'extracted_data',               COALESCE(p.extracted_data, '{}'::jsonb),
		'total_square_feet',            fpm.total_square_feet,
		'quality_score',                fpm.quality_score,
		'total_square_feet_confidence', fpm.total_square_feet_confidence,
		'rooms',                        COALESCE(fpm.rooms, '[]'::jsonb),
		'detected_features',            COALESCE(fpm.detected_features, '{}'::jsonb),
		'comparables', COALESCE((
			SELECT jsonb_agg(jsonb_build_object('price', cs.raw_price, 'address', cs.address, 'url', cs.url))
			FROM comparable_sales cs
			WHERE cs.property_id = p.id::text
		), '[]'::jsonb)
	)
	FROM properties p
	LEFT JOIN floor_plan_measurements fpm ON p.id = fpm.property_id
`

// PostgresStore reads properties and persists fit reports and comparable
// sales in PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(dsn string, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		logger.Debug("[postgres] Ping attempt %d failed: %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db, logger: logger}
	if err := ps.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

// migrate creates the tables this service owns. properties and
// floor_plan_measurements belong to the extraction pipeline.
func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS fit_reports (
			run_id      UUID PRIMARY KEY,
			model_type  VARCHAR(32)      NOT NULL,
			r2_score    DOUBLE PRECISION NOT NULL,
			mae         DOUBLE PRECISION NOT NULL,
			rmse        DOUBLE PRECISION NOT NULL,
			num_records INTEGER          NOT NULL,
			num_priced  INTEGER          NOT NULL,
			report      JSONB            NOT NULL,
			trained_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS comparable_sales (
			id          SERIAL PRIMARY KEY,
			property_id TEXT        NOT NULL,
			address     TEXT        NOT NULL DEFAULT '',
			raw_price   TEXT        NOT NULL,
			sold_date   TEXT        NOT NULL DEFAULT '',
			url         TEXT        NOT NULL,
			scraped_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (property_id, url)
		);

		CREATE TABLE IF NOT EXISTS comps_targets (
			property_id TEXT PRIMARY KEY,
			search_url  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_fit_reports_trained_at  ON fit_reports(trained_at DESC);
		CREATE INDEX IF NOT EXISTS idx_comparable_sales_property ON comparable_sales(property_id);
	`)
	return err
}

func (ps *PostgresStore) FetchRawProperties(ctx context.Context) ([]*models.RawProperty, error) {
	rows, err := ps.db.QueryContext(ctx, rawPropertyQuery+`
		WHERE p.status IN ('complete', 'enrichment_complete')
		ORDER BY p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch properties: %w", err)
	}
	defer rows.Close()

	var result []*models.RawProperty
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("postgres: scan property: %w", err)
		}

		raw, err := models.DecodeRawProperty(payload)
		if err != nil {
			ps.logger.Warn("[postgres] Skipping property %s: %v", id, err)
			continue
		}
		result = append(result, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: fetch properties: %w", err)
	}

	ps.logger.Info("[postgres] Loaded %d candidate properties", len(result))
	return result, nil
}

func (ps *PostgresStore) FetchRawProperty(ctx context.Context, id string) (*models.RawProperty, error) {
	var pid string
	var payload []byte
	err := ps.db.QueryRowContext(ctx, rawPropertyQuery+`WHERE p.id::text = $1`, id).Scan(&pid, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("postgres: %w: %s", ErrPropertyNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch property %s: %w", id, err)
	}

	raw, err := models.DecodeRawProperty(payload)
	if err != nil {
		return nil, fmt.Errorf("postgres: decode property %s: %w", id, err)
	}
	return raw, nil
}

func (ps *PostgresStore) SaveFitReport(ctx context.Context, report *models.FitReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("postgres: encode fit report: %w", err)
	}

	_, err = ps.db.ExecContext(ctx, `
		INSERT INTO fit_reports (run_id, model_type, r2_score, mae, rmse, num_records, num_priced, report, trained_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO NOTHING
	`, report.RunID, string(report.ModelType), report.R2, report.MAE, report.RMSE,
		report.NumRecords, report.NumPriced, string(payload), report.TrainedAt)
	if err != nil {
		return fmt.Errorf("postgres: save fit report: %w", err)
	}
	return nil
}

func (ps *PostgresStore) LatestFitReport(ctx context.Context) (*models.FitReport, error) {
	var payload []byte
	err := ps.db.QueryRowContext(ctx, `
		SELECT report FROM fit_reports ORDER BY trained_at DESC LIMIT 1
	`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoFitReport
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: latest fit report: %w", err)
	}

	var report models.FitReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("postgres: decode fit report: %w", err)
	}
	return &report, nil
}

// WriteComparables batch-inserts scraped comparables, ignoring ones already
// stored for the same property and URL.
func (ps *PostgresStore) WriteComparables(ctx context.Context, comps []*models.ScrapedComparable) error {
	const batchSize = 50
	for i := 0; i < len(comps); i += batchSize {
		end := min(i+batchSize, len(comps))
		if err := ps.insertBatch(ctx, comps[i:end]); err != nil {
			return fmt.Errorf("postgres: write comparables: %w", err)
		}
	}
	return nil
}

func (ps *PostgresStore) insertBatch(ctx context.Context, batch []*models.ScrapedComparable) error {
	const cols = 6
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, c := range batch {
		base := idx * cols
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6))
		valueArgs = append(valueArgs,
			c.PropertyID, c.Address, c.RawPrice, c.SoldDate, c.URL, c.ScrapedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO comparable_sales (property_id, address, raw_price, sold_date, url, scraped_at)
		VALUES %s
		ON CONFLICT (property_id, url) DO NOTHING
	`, strings.Join(valueStrings, ","))

	_, err := ps.db.ExecContext(ctx, query, valueArgs...)
	return err
}

// FetchCompsTargets returns search pages for properties with no stored
// comparable sales yet.
func (ps *PostgresStore) FetchCompsTargets(ctx context.Context) ([]models.CompsTarget, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT t.property_id, t.search_url
		FROM comps_targets t
		WHERE NOT EXISTS (
			SELECT 1 FROM comparable_sales cs WHERE cs.property_id = t.property_id
		)
		ORDER BY t.property_id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch comps targets: %w", err)
	}
	defer rows.Close()

	var targets []models.CompsTarget
	for rows.Next() {
		var t models.CompsTarget
		if err := rows.Scan(&t.PropertyID, &t.SearchURL); err != nil {
			return nil, fmt.Errorf("postgres: scan comps target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
