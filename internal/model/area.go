package model

import (
	"database/sql"
	"time"
)

// AreaType represents a type of geographic area (e.g. Westminster
// constituency, ward). Slugs follow the MapIt naming.
type AreaType struct {
	ID        int
	Slug      string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Area represents a geographic area identified by its GSS code
type Area struct {
	ID         int
	GSSCode    string
	Name       string
	AreaTypeID int
	ValidFrom  sql.NullTime
	ValidUntil sql.NullTime
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
