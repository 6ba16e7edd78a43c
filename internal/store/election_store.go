package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rhaynes/electrack/internal/model"
)

// ElectionStore handles database operations for elections and election types
type ElectionStore struct {
	db *sql.DB
}

// NewElectionStore creates a new ElectionStore
func NewElectionStore(db *sql.DB) *ElectionStore {
	return &ElectionStore{db: db}
}

// GetTypeBySlug retrieves an election type by its slug
func (s *ElectionStore) GetTypeBySlug(ctx context.Context, slug string) (*model.ElectionType, error) {
	query := `SELECT id, slug, name, created_at, updated_at FROM election_types WHERE slug = $1`

	var et model.ElectionType
	err := s.db.QueryRowContext(ctx, query, slug).Scan(&et.ID, &et.Slug, &et.Name, &et.CreatedAt, &et.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get election type %s: %w", slug, err)
	}

	return &et, nil
}

// SeedType inserts an election type if it does not already exist. Election
// types are seed data, never sync-created.
func (s *ElectionStore) SeedType(ctx context.Context, slug, name string) error {
	query := `
		INSERT INTO election_types (slug, name, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query, slug, name, time.Now())
	if err != nil {
		return fmt.Errorf("failed to seed election type %s: %w", slug, err)
	}

	return nil
}

// GetBySlug retrieves an election by its slug
func (s *ElectionStore) GetBySlug(ctx context.Context, slug string) (*model.Election, error) {
	query := `
		SELECT id, slug, election_date, election_type_id, created_at, updated_at
		FROM elections
		WHERE slug = $1
	`

	var e model.Election
	err := s.db.QueryRowContext(ctx, query, slug).Scan(
		&e.ID,
		&e.Slug,
		&e.ElectionDate,
		&e.ElectionTypeID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get election %s: %w", slug, err)
	}

	return &e, nil
}

// Insert persists a new election and sets its ID. A unique violation means
// a concurrent run created the election first; callers re-query by slug.
func (s *ElectionStore) Insert(ctx context.Context, e *model.Election) error {
	query := `
		INSERT INTO elections (slug, election_date, election_type_id, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query, e.Slug, e.ElectionDate, e.ElectionTypeID, time.Now()).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert election %s: %w", e.Slug, err)
	}

	return nil
}

// Update refreshes the mutable fields of an existing election
func (s *ElectionStore) Update(ctx context.Context, e *model.Election) error {
	query := `
		UPDATE elections
		SET election_date = $2, election_type_id = $3, updated_at = $4
		WHERE id = $1
	`

	_, err := s.db.ExecContext(ctx, query, e.ID, e.ElectionDate, e.ElectionTypeID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update election %s: %w", e.Slug, err)
	}

	return nil
}
