package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// OpenDB creates a database connection pool tuned for refresh reads.
func OpenDB(host, port, user, password, dbname, sslmode string) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// PostgresSource loads catalog generations from the demands, ssps,
// ssp_placements, and dsp_placements tables. Rows come back ordered by id so
// generation order is stable across reloads.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource creates a source over an established database handle.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Name identifies the source in logs.
func (s *PostgresSource) Name() string { return "postgres" }

// Load reads one consistent snapshot of all four tables.
func (s *PostgresSource) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var err error

	if snap.Demands, err = s.loadDemands(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.SSPs, err = s.loadSSPs(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.SSPPlacements, err = s.loadSSPPlacements(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.DSPPlacements, err = s.loadDSPPlacements(ctx); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *PostgresSource) loadDemands(ctx context.Context) ([]Demand, error) {
	query := `
		SELECT id, name, url, status, timeout_ms
		FROM demands
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query demands: %w", err)
	}
	defer rows.Close()

	var demands []Demand
	for rows.Next() {
		var d Demand
		var timeout sql.NullInt64
		if err := rows.Scan(&d.ID, &d.Name, &d.URL, &d.Status, &timeout); err != nil {
			return nil, fmt.Errorf("failed to scan demand: %w", err)
		}
		if timeout.Valid {
			d.TimeoutMs = int(timeout.Int64)
		}
		demands = append(demands, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate demands: %w", err)
	}
	return demands, nil
}

func (s *PostgresSource) loadSSPs(ctx context.Context) ([]SSP, error) {
	query := `
		SELECT id, uuid, name, qps
		FROM ssps
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ssps: %w", err)
	}
	defer rows.Close()

	var ssps []SSP
	for rows.Next() {
		var sp SSP
		if err := rows.Scan(&sp.ID, &sp.UUID, &sp.Name, &sp.QPS); err != nil {
			return nil, fmt.Errorf("failed to scan ssp: %w", err)
		}
		ssps = append(ssps, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ssps: %w", err)
	}
	return ssps, nil
}

func (s *PostgresSource) loadSSPPlacements(ctx context.Context) ([]SSPPlacement, error) {
	query := `
		SELECT ssp_id, ssp_uuid, placement_id, ad_type, update_time, status
		FROM ssp_placements
		ORDER BY ssp_id, placement_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ssp placements: %w", err)
	}
	defer rows.Close()

	var placements []SSPPlacement
	for rows.Next() {
		var p SSPPlacement
		if err := rows.Scan(&p.SSPID, &p.SSPUUID, &p.PlacementID, &p.AdType, &p.UpdateTime, &p.Status); err != nil {
			return nil, fmt.Errorf("failed to scan ssp placement: %w", err)
		}
		placements = append(placements, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ssp placements: %w", err)
	}
	return placements, nil
}

func (s *PostgresSource) loadDSPPlacements(ctx context.Context) ([]DSPPlacement, error) {
	query := `
		SELECT dsp_id, dsp_uuid, tag_id, custom_ad_type, profit_rate, auth, update_time, status
		FROM dsp_placements
		ORDER BY dsp_id, tag_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dsp placements: %w", err)
	}
	defer rows.Close()

	var placements []DSPPlacement
	for rows.Next() {
		var p DSPPlacement
		var auth sql.NullString
		if err := rows.Scan(&p.DSPID, &p.DSPUUID, &p.TagID, &p.CustomAdType, &p.ProfitRate, &auth, &p.UpdateTime, &p.Status); err != nil {
			return nil, fmt.Errorf("failed to scan dsp placement: %w", err)
		}
		p.Auth = auth.String
		placements = append(placements, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dsp placements: %w", err)
	}
	return placements, nil
}
