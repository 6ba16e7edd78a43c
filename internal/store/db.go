package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// NewDB opens a PostgreSQL connection pool and verifies connectivity
func NewDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation. The sync engine treats these as "someone else created the row
// first" and re-queries rather than failing.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// schema holds the full database schema. Tables are created idempotently at
// startup; migration tooling is deliberately out of scope.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS area_types (
		id SERIAL PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS areas (
		id SERIAL PRIMARY KEY,
		gss_code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		area_type_id INTEGER NOT NULL REFERENCES area_types(id),
		valid_from TIMESTAMPTZ,
		valid_until TIMESTAMPTZ,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS index_areas_on_active ON areas (active)`,
	`CREATE INDEX IF NOT EXISTS index_areas_on_name ON areas (name)`,
	`CREATE TABLE IF NOT EXISTS area_boundaries (
		id SERIAL PRIMARY KEY,
		area_id INTEGER NOT NULL UNIQUE REFERENCES areas(id) ON DELETE CASCADE,
		boundary geometry NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS index_area_boundaries_on_boundary ON area_boundaries USING gist (boundary)`,
	`CREATE TABLE IF NOT EXISTS election_types (
		id SERIAL PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS elections (
		id SERIAL PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		election_date DATE NOT NULL,
		election_type_id INTEGER NOT NULL REFERENCES election_types(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS index_elections_on_election_date ON elections (election_date)`,
	`CREATE TABLE IF NOT EXISTS ballots (
		id SERIAL PRIMARY KEY,
		democracy_club_id TEXT NOT NULL UNIQUE,
		election_id INTEGER NOT NULL REFERENCES elections(id),
		area_id INTEGER NOT NULL REFERENCES areas(id),
		total_electorate INTEGER,
		turnout_number INTEGER,
		turnout_percentage DOUBLE PRECISION,
		number_of_spoilt_ballots INTEGER,
		seats_contested INTEGER,
		seats_total INTEGER,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS index_ballots_on_election_id ON ballots (election_id)`,
	`CREATE INDEX IF NOT EXISTS index_ballots_on_area_id ON ballots (area_id)`,
	`CREATE TABLE IF NOT EXISTS parties (
		id SERIAL PRIMARY KEY,
		ec_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS index_parties_on_name ON parties (name)`,
	`CREATE TABLE IF NOT EXISTS people (
		id SERIAL PRIMARY KEY,
		democracy_club_id INTEGER NOT NULL UNIQUE,
		name TEXT NOT NULL,
		honorific_prefix TEXT,
		honorific_suffix TEXT,
		birth_date DATE,
		death_date DATE,
		gender TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS candidates (
		id SERIAL PRIMARY KEY,
		ballot_id INTEGER NOT NULL REFERENCES ballots(id),
		person_id INTEGER NOT NULL REFERENCES people(id),
		party_id INTEGER REFERENCES parties(id),
		elected BOOLEAN NOT NULL,
		number_of_ballots INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (ballot_id, person_id)
	)`,
	`CREATE INDEX IF NOT EXISTS index_candidates_on_elected ON candidates (elected)`,
	`CREATE INDEX IF NOT EXISTS index_candidates_on_party_id ON candidates (party_id)`,
}

// EnsureSchema creates all tables and indexes if they do not already exist
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Counts holds row counts per entity, used by the home page
type Counts struct {
	Areas      int
	Elections  int
	Ballots    int
	Candidates int
	People     int
	Parties    int
}

// EntityCounts returns the row count for each synced entity
func EntityCounts(ctx context.Context, db *sql.DB) (*Counts, error) {
	var c Counts
	counts := []struct {
		table string
		dest  *int
	}{
		{"areas", &c.Areas},
		{"elections", &c.Elections},
		{"ballots", &c.Ballots},
		{"candidates", &c.Candidates},
		{"people", &c.People},
		{"parties", &c.Parties},
	}

	for _, q := range counts {
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", q.table, err)
		}
	}

	return &c, nil
}
