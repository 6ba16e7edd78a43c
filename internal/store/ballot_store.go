package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rhaynes/electrack/internal/model"
)

// BallotStore handles database operations for ballots and their candidates
type BallotStore struct {
	db *sql.DB
}

// NewBallotStore creates a new BallotStore
func NewBallotStore(db *sql.DB) *BallotStore {
	return &BallotStore{db: db}
}

// GetByDemocracyClubID retrieves a ballot by its ballot paper ID
func (s *BallotStore) GetByDemocracyClubID(ctx context.Context, democracyClubID string) (*model.Ballot, error) {
	query := `
		SELECT id, democracy_club_id, election_id, area_id, total_electorate,
		       turnout_number, turnout_percentage, number_of_spoilt_ballots,
		       seats_contested, seats_total, created_at, updated_at
		FROM ballots
		WHERE democracy_club_id = $1
	`

	var b model.Ballot
	err := s.db.QueryRowContext(ctx, query, democracyClubID).Scan(
		&b.ID,
		&b.DemocracyClubID,
		&b.ElectionID,
		&b.AreaID,
		&b.TotalElectorate,
		&b.TurnoutNumber,
		&b.TurnoutPercentage,
		&b.NumberOfSpoiltBallots,
		&b.SeatsContested,
		&b.SeatsTotal,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ballot %s: %w", democracyClubID, err)
	}

	return &b, nil
}

// SaveWithCandidates upserts a ballot and its candidates in one transaction,
// so a crash mid-ballot never leaves a ballot without its candidates.
// Candidates are keyed by (ballot, person); re-running refreshes their party,
// elected flag and vote count. Nothing is ever deleted.
func (s *BallotStore) SaveWithCandidates(ctx context.Context, b *model.Ballot, candidates []model.Candidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ballotQuery := `
		INSERT INTO ballots (democracy_club_id, election_id, area_id, total_electorate,
		                     turnout_number, turnout_percentage, number_of_spoilt_ballots,
		                     seats_contested, seats_total, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (democracy_club_id) DO UPDATE SET
			election_id = EXCLUDED.election_id,
			area_id = EXCLUDED.area_id,
			total_electorate = EXCLUDED.total_electorate,
			turnout_number = EXCLUDED.turnout_number,
			turnout_percentage = EXCLUDED.turnout_percentage,
			number_of_spoilt_ballots = EXCLUDED.number_of_spoilt_ballots,
			seats_contested = EXCLUDED.seats_contested,
			seats_total = EXCLUDED.seats_total,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	err = tx.QueryRowContext(ctx, ballotQuery,
		b.DemocracyClubID,
		b.ElectionID,
		b.AreaID,
		b.TotalElectorate,
		b.TurnoutNumber,
		b.TurnoutPercentage,
		b.NumberOfSpoiltBallots,
		b.SeatsContested,
		b.SeatsTotal,
		time.Now(),
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert ballot %s: %w", b.DemocracyClubID, err)
	}

	candidateQuery := `
		INSERT INTO candidates (ballot_id, person_id, party_id, elected, number_of_ballots, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ballot_id, person_id) DO UPDATE SET
			party_id = EXCLUDED.party_id,
			elected = EXCLUDED.elected,
			number_of_ballots = EXCLUDED.number_of_ballots,
			updated_at = EXCLUDED.updated_at
	`

	for _, c := range candidates {
		_, err := tx.ExecContext(ctx, candidateQuery,
			b.ID,
			c.PersonID,
			c.PartyID,
			c.Elected,
			c.NumberOfBallots,
			time.Now(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert candidate for ballot %s: %w", b.DemocracyClubID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ballot %s: %w", b.DemocracyClubID, err)
	}

	return nil
}

// ListForArea retrieves all ballots for an area, ordered by election date
func (s *BallotStore) ListForArea(ctx context.Context, areaID int) ([]model.Ballot, error) {
	query := `
		SELECT b.id, b.democracy_club_id, b.election_id, b.area_id, b.total_electorate,
		       b.turnout_number, b.turnout_percentage, b.number_of_spoilt_ballots,
		       b.seats_contested, b.seats_total, b.created_at, b.updated_at
		FROM ballots b
		LEFT JOIN elections e ON e.id = b.election_id
		WHERE b.area_id = $1
		ORDER BY e.election_date
	`

	rows, err := s.db.QueryContext(ctx, query, areaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ballots for area %d: %w", areaID, err)
	}
	defer rows.Close()

	var ballots []model.Ballot
	for rows.Next() {
		var b model.Ballot
		err := rows.Scan(
			&b.ID,
			&b.DemocracyClubID,
			&b.ElectionID,
			&b.AreaID,
			&b.TotalElectorate,
			&b.TurnoutNumber,
			&b.TurnoutPercentage,
			&b.NumberOfSpoiltBallots,
			&b.SeatsContested,
			&b.SeatsTotal,
			&b.CreatedAt,
			&b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ballot: %w", err)
		}
		ballots = append(ballots, b)
	}

	return ballots, rows.Err()
}
