package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
)

// DefaultMapitBaseURL is the MapIt API root
const DefaultMapitBaseURL = "https://mapit.mysociety.org"

// MapitAreaRecord is an area as returned by MapIt - a flat record, unlike
// the JSON:API envelopes of the current provider
type MapitAreaRecord struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	TypeName       string `json:"type_name"`
	GenerationLow  int    `json:"generation_low"`
	GenerationHigh int    `json:"generation_high"`
}

// MapitGeneration is one boundary snapshot generation
type MapitGeneration struct {
	ID      int    `json:"id"`
	Created string `json:"created"`
	Active  bool   `json:"active"`
}

// MapitClient talks to the legacy MapIt geography API
type MapitClient struct {
	api     *apiClient
	baseURL string

	// Generations change very rarely, so they are fetched at most once per
	// process rather than per area resolution.
	genMu       sync.Mutex
	generations map[string]MapitGeneration
}

// NewMapitClient creates a client for the given API root
func NewMapitClient(baseURL string) *MapitClient {
	return &MapitClient{
		api:     newAPIClient(http.StatusTooManyRequests),
		baseURL: baseURL,
	}
}

// Area fetches a single area by GSS code
func (c *MapitClient) Area(ctx context.Context, gssCode string) (*MapitAreaRecord, error) {
	return getJSON[MapitAreaRecord](ctx, c.api, fmt.Sprintf("%s/area/%s.json", c.baseURL, gssCode))
}

// AreaGeoJSON fetches the boundary geometry for a single area as raw
// GeoJSON
func (c *MapitClient) AreaGeoJSON(ctx context.Context, gssCode string) ([]byte, error) {
	return c.api.get(ctx, fmt.Sprintf("%s/area/%s.geojson", c.baseURL, gssCode))
}

// Generations returns the full generations table, fetching it from the API
// on first use and serving the cached copy afterwards. The cache is only
// populated on success, so a failed first fetch is retried on the next call.
func (c *MapitClient) Generations(ctx context.Context) (map[string]MapitGeneration, error) {
	c.genMu.Lock()
	defer c.genMu.Unlock()

	if c.generations != nil {
		return c.generations, nil
	}

	gens, err := getJSON[map[string]MapitGeneration](ctx, c.api, fmt.Sprintf("%s/generations", c.baseURL))
	if err != nil {
		return nil, err
	}

	c.generations = *gens
	return c.generations, nil
}

// Generation returns a single generation by ID from the cached table
func (c *MapitClient) Generation(ctx context.Context, generationID int) (*MapitGeneration, error) {
	gens, err := c.Generations(ctx)
	if err != nil {
		return nil, err
	}

	gen, ok := gens[strconv.Itoa(generationID)]
	if !ok {
		return nil, fmt.Errorf("unknown MapIt generation %d", generationID)
	}

	return &gen, nil
}
