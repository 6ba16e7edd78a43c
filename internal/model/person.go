package model

import (
	"database/sql"
	"time"
)

// Person represents a candidate as a person, identified by their Democracy
// Club ID. Mutable attributes are refreshed on every sync encounter.
// Birth/death dates exist in the schema but are not populated - the upstream
// API returns bare years rather than full dates.
type Person struct {
	ID              int
	DemocracyClubID int
	Name            string
	HonorificPrefix sql.NullString
	HonorificSuffix sql.NullString
	BirthDate       sql.NullTime
	DeathDate       sql.NullTime
	Gender          sql.NullString
}

// Party represents a political party, identified by its Electoral
// Commission ID. Created once on first encounter, not updated afterwards.
type Party struct {
	ID        int
	ECID      string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
