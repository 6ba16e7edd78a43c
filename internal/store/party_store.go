package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rhaynes/electrack/internal/model"
)

// PartyStore handles database operations for parties
type PartyStore struct {
	db *sql.DB
}

// NewPartyStore creates a new PartyStore
func NewPartyStore(db *sql.DB) *PartyStore {
	return &PartyStore{db: db}
}

// GetByECID retrieves a party by its Electoral Commission ID
func (s *PartyStore) GetByECID(ctx context.Context, ecID string) (*model.Party, error) {
	query := `SELECT id, ec_id, name, created_at, updated_at FROM parties WHERE ec_id = $1`

	var p model.Party
	err := s.db.QueryRowContext(ctx, query, ecID).Scan(&p.ID, &p.ECID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get party %s: %w", ecID, err)
	}

	return &p, nil
}

// Insert persists a new party and sets its ID. Parties are created once and
// not updated afterwards; a unique violation means a concurrent run created
// the party first and callers re-query by EC ID.
func (s *PartyStore) Insert(ctx context.Context, p *model.Party) error {
	query := `
		INSERT INTO parties (ec_id, name, updated_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query, p.ECID, p.Name, time.Now()).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert party %s: %w", p.ECID, err)
	}

	return nil
}
