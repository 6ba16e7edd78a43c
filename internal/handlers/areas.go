package handlers

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/rhaynes/electrack/internal/model"
)

// DefaultAreaType is the area type served when no area_type query parameter
// is given (Westminster parliamentary constituencies)
const DefaultAreaType = "pcon"

// AreaReader is the store surface the area handlers read from
type AreaReader interface {
	ListActiveByType(ctx context.Context, typeSlug string) ([]model.Area, error)
	GetByID(ctx context.Context, id int) (*model.Area, error)
	GetAreaTypeByID(ctx context.Context, id int) (*model.AreaType, error)
	BoundaryGeoJSON(ctx context.Context, areaID int) (string, error)
	Subareas(ctx context.Context, areaID int, typeSlug string) ([]model.Area, error)
}

// BallotReader is the store surface the area detail handler reads ballots
// from
type BallotReader interface {
	ListForArea(ctx context.Context, areaID int) ([]model.Ballot, error)
}

type areaResponse struct {
	ID         int     `json:"id"`
	GSSCode    string  `json:"gss_code"`
	Name       string  `json:"name"`
	AreaType   string  `json:"area_type"`
	ValidFrom  *string `json:"valid_from"`
	ValidUntil *string `json:"valid_until"`
	Active     bool    `json:"active"`
}

type ballotResponse struct {
	DemocracyClubID       string   `json:"democracy_club_id"`
	TotalElectorate       *int64   `json:"total_electorate"`
	TurnoutNumber         *int64   `json:"turnout_number"`
	TurnoutPercentage     *float64 `json:"turnout_percentage"`
	NumberOfSpoiltBallots *int64   `json:"number_of_spoilt_ballots"`
	SeatsContested        *int64   `json:"seats_contested"`
	SeatsTotal            *int64   `json:"seats_total"`
}

type areaDetailResponse struct {
	areaResponse
	Ballots []ballotResponse `json:"ballots"`
}

// AreasHandler lists active areas of one type, defaulting to parliamentary
// constituencies
func AreasHandler(areas AreaReader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		typeSlug := c.Query("area_type", DefaultAreaType)

		list, err := areas.ListActiveByType(ctx, typeSlug)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading areas")
		}

		resp := make([]areaResponse, 0, len(list))
		for _, a := range list {
			resp = append(resp, toAreaResponse(a, typeSlug))
		}

		return c.JSON(resp)
	}
}

// AreaDetailHandler returns a single area with its ballots in election date
// order
func AreaDetailHandler(areas AreaReader, ballots BallotReader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		id, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid area ID")
		}

		area, err := areas.GetByID(ctx, id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading area")
		}
		if area == nil {
			return c.Status(fiber.StatusNotFound).SendString("Area not found")
		}

		areaType, err := areas.GetAreaTypeByID(ctx, area.AreaTypeID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading area type")
		}

		typeSlug := ""
		if areaType != nil {
			typeSlug = areaType.Slug
		}

		list, err := ballots.ListForArea(ctx, area.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading ballots")
		}

		resp := areaDetailResponse{
			areaResponse: toAreaResponse(*area, typeSlug),
			Ballots:      make([]ballotResponse, 0, len(list)),
		}
		for _, b := range list {
			resp.Ballots = append(resp.Ballots, ballotResponse{
				DemocracyClubID:       b.DemocracyClubID,
				TotalElectorate:       nullInt(b.TotalElectorate),
				TurnoutNumber:         nullInt(b.TurnoutNumber),
				TurnoutPercentage:     nullFloat(b.TurnoutPercentage),
				NumberOfSpoiltBallots: nullInt(b.NumberOfSpoiltBallots),
				SeatsContested:        nullInt(b.SeatsContested),
				SeatsTotal:            nullInt(b.SeatsTotal),
			})
		}

		return c.JSON(resp)
	}
}

// AreaBoundaryHandler returns an area's boundary as GeoJSON, straight from
// the database
func AreaBoundaryHandler(areas AreaReader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		id, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid area ID")
		}

		area, err := areas.GetByID(ctx, id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading area")
		}
		if area == nil {
			return c.Status(fiber.StatusNotFound).SendString("Area not found")
		}

		geojson, err := areas.BoundaryGeoJSON(ctx, area.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading boundary")
		}
		if geojson == "" {
			return c.Status(fiber.StatusNotFound).SendString("Area has no boundary")
		}

		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.SendString(geojson)
	}
}

// SubareasHandler returns the active areas of a requested type that fall
// within an area's boundary. The spatial match can include areas that merely
// touch the parent boundary.
func SubareasHandler(areas AreaReader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		id, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid area ID")
		}

		typeSlug := c.Query("area_type")
		if typeSlug == "" {
			return c.Status(fiber.StatusBadRequest).SendString("Missing area_type parameter")
		}

		area, err := areas.GetByID(ctx, id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading area")
		}
		if area == nil {
			return c.Status(fiber.StatusNotFound).SendString("Area not found")
		}

		list, err := areas.Subareas(ctx, area.ID, typeSlug)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading subareas")
		}

		resp := make([]areaResponse, 0, len(list))
		for _, a := range list {
			resp = append(resp, toAreaResponse(a, typeSlug))
		}

		return c.JSON(resp)
	}
}

func toAreaResponse(a model.Area, typeSlug string) areaResponse {
	return areaResponse{
		ID:         a.ID,
		GSSCode:    a.GSSCode,
		Name:       a.Name,
		AreaType:   typeSlug,
		ValidFrom:  nullDate(a.ValidFrom),
		ValidUntil: nullDate(a.ValidUntil),
		Active:     a.Active,
	}
}

func nullDate(t sql.NullTime) *string {
	if !t.Valid {
		return nil
	}
	s := t.Time.Format("2006-01-02")
	return &s
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
