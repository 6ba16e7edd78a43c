package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rhaynes/electrack/internal/model"
)

// PersonStore handles database operations for people
type PersonStore struct {
	db *sql.DB
}

// NewPersonStore creates a new PersonStore
func NewPersonStore(db *sql.DB) *PersonStore {
	return &PersonStore{db: db}
}

// GetByDemocracyClubID retrieves a person by their Democracy Club ID
func (s *PersonStore) GetByDemocracyClubID(ctx context.Context, democracyClubID int) (*model.Person, error) {
	query := `
		SELECT id, democracy_club_id, name, honorific_prefix, honorific_suffix,
		       birth_date, death_date, gender
		FROM people
		WHERE democracy_club_id = $1
	`

	var p model.Person
	err := s.db.QueryRowContext(ctx, query, democracyClubID).Scan(
		&p.ID,
		&p.DemocracyClubID,
		&p.Name,
		&p.HonorificPrefix,
		&p.HonorificSuffix,
		&p.BirthDate,
		&p.DeathDate,
		&p.Gender,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person %d: %w", democracyClubID, err)
	}

	return &p, nil
}

// Upsert inserts or refreshes a person, overwriting mutable attributes.
// People change upstream between syncs, so every encounter re-writes them.
func (s *PersonStore) Upsert(ctx context.Context, p *model.Person) error {
	query := `
		INSERT INTO people (democracy_club_id, name, honorific_prefix, honorific_suffix, gender)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (democracy_club_id) DO UPDATE SET
			name = EXCLUDED.name,
			honorific_prefix = EXCLUDED.honorific_prefix,
			honorific_suffix = EXCLUDED.honorific_suffix,
			gender = EXCLUDED.gender
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		p.DemocracyClubID,
		p.Name,
		p.HonorificPrefix,
		p.HonorificSuffix,
		p.Gender,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert person %d: %w", p.DemocracyClubID, err)
	}

	return nil
}
