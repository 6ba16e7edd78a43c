package model

import (
	"database/sql"
	"time"
)

// ElectionType represents a type of election (e.g. 'parl', 'local').
// These are seed data, not created by the sync engine.
type ElectionType struct {
	ID        int
	Slug      string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Election represents a single election, identified by its Democracy Club
// slug (e.g. 'parl.2019-12-12')
type Election struct {
	ID             int
	Slug           string
	ElectionDate   time.Time
	ElectionTypeID int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Ballot represents a single contest (one area in one election), identified
// by its Democracy Club ballot paper ID (e.g. 'parl.aldershot.2019-12-12').
// Result fields are null until results have been fetched; seat counts are
// null where the seat-count API has no data for the ballot.
type Ballot struct {
	ID                    int
	DemocracyClubID       string
	ElectionID            int
	AreaID                int
	TotalElectorate       sql.NullInt64
	TurnoutNumber         sql.NullInt64
	TurnoutPercentage     sql.NullFloat64
	NumberOfSpoiltBallots sql.NullInt64
	SeatsContested        sql.NullInt64
	SeatsTotal            sql.NullInt64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Candidate represents one person standing on one ballot. PartyID is null
// for independent candidates.
type Candidate struct {
	ID              int
	BallotID        int
	PersonID        int
	PartyID         sql.NullInt64
	Elected         bool
	NumberOfBallots int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
