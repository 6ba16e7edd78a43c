package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rhaynes/electrack/internal/model"
	"github.com/rhaynes/electrack/internal/store"
)

// AreaResolver resolves a GSS code to a local Area, creating the area (with
// its area type and, best-effort, its boundary) from an upstream geography
// provider if it does not exist yet. Resolution is idempotent and safe to
// call concurrently for the same code: a unique violation on insert means a
// concurrent resolution won, and the now-existing row is returned instead.
//
// Existing areas are returned unchanged - the resolver never updates them.
type AreaResolver interface {
	ResolveArea(ctx context.Context, gssCode string) (*model.Area, error)
}

// AreaWriter is the store surface the resolvers need
type AreaWriter interface {
	GetByGSSCode(ctx context.Context, gssCode string) (*model.Area, error)
	Insert(ctx context.Context, a *model.Area) error
	GetAreaType(ctx context.Context, slug string) (*model.AreaType, error)
	InsertAreaType(ctx context.Context, at *model.AreaType) error
	InsertBoundary(ctx context.Context, areaID int, geojson string) error
}

// FindThatPostcodeResolver resolves areas against the FindThatPostcode API
type FindThatPostcodeResolver struct {
	api   *FindThatPostcodeClient
	areas AreaWriter
	log   zerolog.Logger
}

// NewFindThatPostcodeResolver creates a resolver backed by the given client
// and store
func NewFindThatPostcodeResolver(api *FindThatPostcodeClient, areas AreaWriter, log zerolog.Logger) *FindThatPostcodeResolver {
	return &FindThatPostcodeResolver{api: api, areas: areas, log: log}
}

// ResolveArea implements AreaResolver
func (r *FindThatPostcodeResolver) ResolveArea(ctx context.Context, gssCode string) (*model.Area, error) {
	existing, err := r.areas.GetByGSSCode(ctx, gssCode)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	doc, err := r.api.Area(ctx, gssCode)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch area %s: %w", gssCode, err)
	}

	areaType, err := r.findOrCreateAreaType(ctx, doc.Data.Relationships.Areatype.Data.ID)
	if err != nil {
		return nil, err
	}

	validFrom, err := parseNullDate(doc.Data.Attributes.DateStart)
	if err != nil {
		return nil, fmt.Errorf("invalid date_start for area %s: %w", gssCode, err)
	}
	validUntil, err := parseNullDate(doc.Data.Attributes.DateEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid date_end for area %s: %w", gssCode, err)
	}

	area := &model.Area{
		GSSCode:    gssCode,
		Name:       doc.Data.Attributes.Name,
		AreaTypeID: areaType.ID,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		Active:     !validUntil.Valid,
	}

	if err := r.areas.Insert(ctx, area); err != nil {
		if store.IsUniqueViolation(err) {
			return r.areas.GetByGSSCode(ctx, gssCode)
		}
		return nil, err
	}

	if err := r.createBoundary(ctx, area); err != nil {
		return nil, err
	}

	return area, nil
}

func (r *FindThatPostcodeResolver) findOrCreateAreaType(ctx context.Context, slug string) (*model.AreaType, error) {
	areaType, err := r.areas.GetAreaType(ctx, slug)
	if err != nil {
		return nil, err
	}
	if areaType != nil {
		return areaType, nil
	}

	doc, err := r.api.AreaType(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch area type %s: %w", slug, err)
	}

	areaType = &model.AreaType{Slug: slug, Name: doc.Data.Attributes.FullName}
	if err := r.areas.InsertAreaType(ctx, areaType); err != nil {
		if store.IsUniqueViolation(err) {
			return requeryAreaType(ctx, r.areas, slug, err)
		}
		return nil, err
	}

	return areaType, nil
}

// createBoundary fetches and stores the area's boundary. A 404 from the
// provider means the boundary legitimately does not exist; the area is kept
// without one. Any other failure fails the whole resolution.
func (r *FindThatPostcodeResolver) createBoundary(ctx context.Context, area *model.Area) error {
	raw, err := r.api.AreaBoundary(ctx, area.GSSCode)
	if err != nil {
		if IsNotFound(err) {
			r.log.Warn().Str("gss_code", area.GSSCode).Msg("provider returned 404 for area boundary")
			return nil
		}
		return fmt.Errorf("failed to fetch boundary for area %s: %w", area.GSSCode, err)
	}

	geojson, err := geometryFromGeoJSON(raw)
	if err != nil {
		return fmt.Errorf("invalid boundary GeoJSON for area %s: %w", area.GSSCode, err)
	}

	return r.areas.InsertBoundary(ctx, area.ID, geojson)
}

// MapitResolver resolves areas against the legacy MapIt API. Validity is
// derived from boundary generations rather than explicit dates.
type MapitResolver struct {
	api   *MapitClient
	areas AreaWriter
	log   zerolog.Logger
}

// NewMapitResolver creates a resolver backed by the given client and store
func NewMapitResolver(api *MapitClient, areas AreaWriter, log zerolog.Logger) *MapitResolver {
	return &MapitResolver{api: api, areas: areas, log: log}
}

// ResolveArea implements AreaResolver
func (r *MapitResolver) ResolveArea(ctx context.Context, gssCode string) (*model.Area, error) {
	existing, err := r.areas.GetByGSSCode(ctx, gssCode)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	rec, err := r.api.Area(ctx, gssCode)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch area %s: %w", gssCode, err)
	}

	areaType, err := r.findOrCreateAreaType(ctx, rec.Type, rec.TypeName)
	if err != nil {
		return nil, err
	}

	genLow, err := r.api.Generation(ctx, rec.GenerationLow)
	if err != nil {
		return nil, err
	}
	genHigh, err := r.api.Generation(ctx, rec.GenerationHigh)
	if err != nil {
		return nil, err
	}

	validFrom, err := parseNullDate(genLow.Created)
	if err != nil {
		return nil, fmt.Errorf("invalid created date on generation %d: %w", genLow.ID, err)
	}

	// Generations have no end date, only a created date and an active flag.
	// When the high generation is inactive the best available approximation
	// for valid_until is that generation's created date.
	var validUntil sql.NullTime
	if !genHigh.Active {
		validUntil, err = parseNullDate(genHigh.Created)
		if err != nil {
			return nil, fmt.Errorf("invalid created date on generation %d: %w", genHigh.ID, err)
		}
	}

	area := &model.Area{
		GSSCode:    gssCode,
		Name:       rec.Name,
		AreaTypeID: areaType.ID,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		Active:     genHigh.Active,
	}

	if err := r.areas.Insert(ctx, area); err != nil {
		if store.IsUniqueViolation(err) {
			return r.areas.GetByGSSCode(ctx, gssCode)
		}
		return nil, err
	}

	if err := r.createBoundary(ctx, area); err != nil {
		return nil, err
	}

	return area, nil
}

func (r *MapitResolver) findOrCreateAreaType(ctx context.Context, slug, name string) (*model.AreaType, error) {
	areaType, err := r.areas.GetAreaType(ctx, slug)
	if err != nil {
		return nil, err
	}
	if areaType != nil {
		return areaType, nil
	}

	areaType = &model.AreaType{Slug: slug, Name: name}
	if err := r.areas.InsertAreaType(ctx, areaType); err != nil {
		if store.IsUniqueViolation(err) {
			return requeryAreaType(ctx, r.areas, slug, err)
		}
		return nil, err
	}

	return areaType, nil
}

func (r *MapitResolver) createBoundary(ctx context.Context, area *model.Area) error {
	raw, err := r.api.AreaGeoJSON(ctx, area.GSSCode)
	if err != nil {
		if IsNotFound(err) {
			r.log.Warn().Str("gss_code", area.GSSCode).Msg("provider returned 404 for area boundary")
			return nil
		}
		return fmt.Errorf("failed to fetch boundary for area %s: %w", area.GSSCode, err)
	}

	geojson, err := geometryFromGeoJSON(raw)
	if err != nil {
		return fmt.Errorf("invalid boundary GeoJSON for area %s: %w", area.GSSCode, err)
	}

	return r.areas.InsertBoundary(ctx, area.ID, geojson)
}

// requeryAreaType resolves an area-type insert that lost a constraint race.
// Area types are unique on both slug and name, so a violation does not
// guarantee a row exists under this slug: a name collision against a
// different slug leaves the re-query empty, and that is a data error, not a
// race to absorb.
func requeryAreaType(ctx context.Context, areas AreaWriter, slug string, insertErr error) (*model.AreaType, error) {
	areaType, err := areas.GetAreaType(ctx, slug)
	if err != nil {
		return nil, err
	}
	if areaType == nil {
		return nil, fmt.Errorf("area type %s: unique violation but no row by slug: %w", slug, insertErr)
	}
	return areaType, nil
}

// geometryFromGeoJSON reduces a GeoJSON document to a bare geometry, the
// form ST_GeomFromGeoJSON accepts. Features are unwrapped; feature
// collections become a GeometryCollection.
func geometryFromGeoJSON(raw []byte) (string, error) {
	var doc struct {
		Type     string          `json:"type"`
		Geometry json.RawMessage `json:"geometry"`
		Features []struct {
			Geometry json.RawMessage `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", err
	}

	switch doc.Type {
	case "Feature":
		if len(doc.Geometry) == 0 {
			return "", fmt.Errorf("feature has no geometry")
		}
		return string(doc.Geometry), nil
	case "FeatureCollection":
		if len(doc.Features) == 0 {
			return "", fmt.Errorf("feature collection has no features")
		}
		if len(doc.Features) == 1 {
			return string(doc.Features[0].Geometry), nil
		}
		geometries := make([]json.RawMessage, len(doc.Features))
		for i, f := range doc.Features {
			geometries[i] = f.Geometry
		}
		collection, err := json.Marshal(map[string]any{
			"type":       "GeometryCollection",
			"geometries": geometries,
		})
		if err != nil {
			return "", err
		}
		return string(collection), nil
	case "":
		return "", fmt.Errorf("document has no type")
	default:
		// Already a bare geometry
		return string(raw), nil
	}
}

// dateLayouts are the formats upstream providers use for dates
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// parseNullDate parses an upstream date string, treating "" as null
func parseNullDate(s string) (sql.NullTime, error) {
	if s == "" {
		return sql.NullTime{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return sql.NullTime{Time: t, Valid: true}, nil
		}
	}
	return sql.NullTime{}, fmt.Errorf("unrecognized date %q", s)
}
