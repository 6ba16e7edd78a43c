package service

import (
	"context"
	"fmt"
	"net/http"
)

// DefaultFindThatPostcodeBaseURL is the FindThatPostcode API root
const DefaultFindThatPostcodeBaseURL = "https://findthatpostcode.uk"

// FTPAreaDocument is the JSON:API document for a single area
type FTPAreaDocument struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Name      string `json:"name"`
			DateStart string `json:"date_start"`
			DateEnd   string `json:"date_end"`
		} `json:"attributes"`
		Relationships struct {
			Areatype struct {
				Data struct {
					ID string `json:"id"`
				} `json:"data"`
			} `json:"areatype"`
		} `json:"relationships"`
	} `json:"data"`
}

// FTPAreaTypeDocument is the JSON:API document for a single area type
type FTPAreaTypeDocument struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			FullName string `json:"full_name"`
		} `json:"attributes"`
	} `json:"data"`
}

// FindThatPostcodeClient talks to the FindThatPostcode API, the current
// geography provider. Responses are JSON:API resource documents.
type FindThatPostcodeClient struct {
	api     *apiClient
	baseURL string
}

// NewFindThatPostcodeClient creates a client for the given API root
func NewFindThatPostcodeClient(baseURL string) *FindThatPostcodeClient {
	return &FindThatPostcodeClient{
		api:     newAPIClient(http.StatusTooManyRequests),
		baseURL: baseURL,
	}
}

// Area fetches a single area by GSS code
func (c *FindThatPostcodeClient) Area(ctx context.Context, gssCode string) (*FTPAreaDocument, error) {
	return getJSON[FTPAreaDocument](ctx, c.api, fmt.Sprintf("%s/areas/%s.json", c.baseURL, gssCode))
}

// AreaBoundary fetches the boundary for a single area as raw GeoJSON.
// Boundaries are legitimately missing for some areas, in which case the API
// responds 404.
func (c *FindThatPostcodeClient) AreaBoundary(ctx context.Context, gssCode string) ([]byte, error) {
	return c.api.get(ctx, fmt.Sprintf("%s/areas/%s.geojson", c.baseURL, gssCode))
}

// AreaType fetches a single area type by slug
func (c *FindThatPostcodeClient) AreaType(ctx context.Context, slug string) (*FTPAreaTypeDocument, error) {
	return getJSON[FTPAreaTypeDocument](ctx, c.api, fmt.Sprintf("%s/areatypes/%s.json", c.baseURL, slug))
}
