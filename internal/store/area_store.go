package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rhaynes/electrack/internal/model"
)

// AreaStore handles database operations for areas, area types and boundaries
type AreaStore struct {
	db *sql.DB
}

// NewAreaStore creates a new AreaStore
func NewAreaStore(db *sql.DB) *AreaStore {
	return &AreaStore{db: db}
}

// GetByGSSCode retrieves an area by its GSS code
func (s *AreaStore) GetByGSSCode(ctx context.Context, gssCode string) (*model.Area, error) {
	query := `
		SELECT id, gss_code, name, area_type_id, valid_from, valid_until,
		       active, created_at, updated_at
		FROM areas
		WHERE gss_code = $1
	`

	var a model.Area
	err := s.db.QueryRowContext(ctx, query, gssCode).Scan(
		&a.ID,
		&a.GSSCode,
		&a.Name,
		&a.AreaTypeID,
		&a.ValidFrom,
		&a.ValidUntil,
		&a.Active,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get area %s: %w", gssCode, err)
	}

	return &a, nil
}

// GetByID retrieves an area by its local ID
func (s *AreaStore) GetByID(ctx context.Context, id int) (*model.Area, error) {
	query := `
		SELECT id, gss_code, name, area_type_id, valid_from, valid_until,
		       active, created_at, updated_at
		FROM areas
		WHERE id = $1
	`

	var a model.Area
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID,
		&a.GSSCode,
		&a.Name,
		&a.AreaTypeID,
		&a.ValidFrom,
		&a.ValidUntil,
		&a.Active,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get area %d: %w", id, err)
	}

	return &a, nil
}

// Insert persists a new area and sets its ID. Callers must treat a unique
// violation as "another resolution won the race" and re-query by GSS code.
func (s *AreaStore) Insert(ctx context.Context, a *model.Area) error {
	query := `
		INSERT INTO areas (gss_code, name, area_type_id, valid_from, valid_until, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		a.GSSCode,
		a.Name,
		a.AreaTypeID,
		a.ValidFrom,
		a.ValidUntil,
		a.Active,
		time.Now(),
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to insert area %s: %w", a.GSSCode, err)
	}

	return nil
}

// ListActiveByType retrieves all active areas of the given area type slug,
// ordered by name
func (s *AreaStore) ListActiveByType(ctx context.Context, typeSlug string) ([]model.Area, error) {
	query := `
		SELECT a.id, a.gss_code, a.name, a.area_type_id, a.valid_from, a.valid_until,
		       a.active, a.created_at, a.updated_at
		FROM areas a
		INNER JOIN area_types at ON at.id = a.area_type_id
		WHERE at.slug = $1 AND a.active
		ORDER BY a.name
	`

	rows, err := s.db.QueryContext(ctx, query, typeSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to list areas of type %s: %w", typeSlug, err)
	}
	defer rows.Close()

	return scanAreas(rows)
}

// Subareas retrieves all active areas of the given type whose boundary
// overlaps or is covered by the boundary of the given area.
//
// Stored boundaries are not perfectly accurate, so this can include areas
// that merely touch the parent boundary. A known approximation, accepted
// until the boundary data itself improves.
func (s *AreaStore) Subareas(ctx context.Context, areaID int, typeSlug string) ([]model.Area, error) {
	query := `
		SELECT a.id, a.gss_code, a.name, a.area_type_id, a.valid_from, a.valid_until,
		       a.active, a.created_at, a.updated_at
		FROM areas a
		INNER JOIN area_types at ON at.id = a.area_type_id
		INNER JOIN area_boundaries ab ON ab.area_id = a.id
		WHERE at.slug = $1 AND a.active
		  AND (
		    ST_Overlaps(ab.boundary, (SELECT boundary FROM area_boundaries WHERE area_id = $2))
		    OR ST_Covers((SELECT boundary FROM area_boundaries WHERE area_id = $2), ab.boundary)
		  )
		ORDER BY a.name
	`

	rows, err := s.db.QueryContext(ctx, query, typeSlug, areaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subareas of area %d: %w", areaID, err)
	}
	defer rows.Close()

	return scanAreas(rows)
}

func scanAreas(rows *sql.Rows) ([]model.Area, error) {
	var areas []model.Area
	for rows.Next() {
		var a model.Area
		err := rows.Scan(
			&a.ID,
			&a.GSSCode,
			&a.Name,
			&a.AreaTypeID,
			&a.ValidFrom,
			&a.ValidUntil,
			&a.Active,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan area: %w", err)
		}
		areas = append(areas, a)
	}

	return areas, rows.Err()
}

// GetAreaType retrieves an area type by its slug
func (s *AreaStore) GetAreaType(ctx context.Context, slug string) (*model.AreaType, error) {
	query := `SELECT id, slug, name, created_at, updated_at FROM area_types WHERE slug = $1`

	var at model.AreaType
	err := s.db.QueryRowContext(ctx, query, slug).Scan(&at.ID, &at.Slug, &at.Name, &at.CreatedAt, &at.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get area type %s: %w", slug, err)
	}

	return &at, nil
}

// GetAreaTypeByID retrieves an area type by its local ID
func (s *AreaStore) GetAreaTypeByID(ctx context.Context, id int) (*model.AreaType, error) {
	query := `SELECT id, slug, name, created_at, updated_at FROM area_types WHERE id = $1`

	var at model.AreaType
	err := s.db.QueryRowContext(ctx, query, id).Scan(&at.ID, &at.Slug, &at.Name, &at.CreatedAt, &at.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get area type %d: %w", id, err)
	}

	return &at, nil
}

// InsertAreaType persists a new area type and sets its ID
func (s *AreaStore) InsertAreaType(ctx context.Context, at *model.AreaType) error {
	query := `
		INSERT INTO area_types (slug, name, updated_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query, at.Slug, at.Name, time.Now()).Scan(&at.ID)
	if err != nil {
		return fmt.Errorf("failed to insert area type %s: %w", at.Slug, err)
	}

	return nil
}

// InsertBoundary stores the boundary for an area from a GeoJSON geometry
// document. At most one boundary exists per area; re-inserting replaces it.
func (s *AreaStore) InsertBoundary(ctx context.Context, areaID int, geojson string) error {
	query := `
		INSERT INTO area_boundaries (area_id, boundary, updated_at)
		VALUES ($1, ST_GeomFromGeoJSON($2), $3)
		ON CONFLICT (area_id) DO UPDATE SET
			boundary = EXCLUDED.boundary,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, areaID, geojson, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert boundary for area %d: %w", areaID, err)
	}

	return nil
}

// BoundaryGeoJSON returns the stored boundary for an area serialized as
// GeoJSON, or "" if the area has no boundary
func (s *AreaStore) BoundaryGeoJSON(ctx context.Context, areaID int) (string, error) {
	query := `SELECT ST_AsGeoJSON(boundary) FROM area_boundaries WHERE area_id = $1`

	var geojson string
	err := s.db.QueryRowContext(ctx, query, areaID).Scan(&geojson)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get boundary for area %d: %w", areaID, err)
	}

	return geojson, nil
}

// HasBoundary reports whether a boundary row exists for the area
func (s *AreaStore) HasBoundary(ctx context.Context, areaID int) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM area_boundaries WHERE area_id = $1)", areaID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check boundary for area %d: %w", areaID, err)
	}
	return exists, nil
}
