package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultElectionsBaseURL is the Democracy Club elections API root.
//
// The candidates API is the primary source, but some election data is only
// available here - notably, for council elections, the total number of seats
// in a ward as well as the number up for election. The candidates API only
// exposes a winner count.
const DefaultElectionsBaseURL = "https://elections.democracyclub.org.uk/api"

// SeatElectionRecord is an election as returned by the elections API,
// carrying the seat totals the candidates API lacks
type SeatElectionRecord struct {
	ElectionID     string `json:"election_id"`
	Name           string `json:"name"`
	PollOpenDate   string `json:"poll_open_date"`
	SeatsContested *int   `json:"seats_contested"`
	SeatsTotal     *int   `json:"seats_total"`
}

// SeatElectionFilters are the supported query filters on the elections
// listing
type SeatElectionFilters struct {
	PollOpenDate    *time.Time
	ElectionIDRegex string
}

func (f SeatElectionFilters) values() url.Values {
	v := url.Values{}
	if f.PollOpenDate != nil {
		v.Set("poll_open_date", f.PollOpenDate.Format("2006-01-02"))
	}
	if f.ElectionIDRegex != "" {
		v.Set("election_id_regex", f.ElectionIDRegex)
	}
	return v
}

// DCElectionsClient talks to the Democracy Club elections API. Unlike the
// candidates API this one also returns intermittent bad gateways, so 502 is
// retried alongside rate limits.
type DCElectionsClient struct {
	api     *apiClient
	baseURL string
}

// NewDCElectionsClient creates a client for the given API root
func NewDCElectionsClient(baseURL string) *DCElectionsClient {
	return &DCElectionsClient{
		api:     newAPIClient(http.StatusTooManyRequests, http.StatusBadGateway),
		baseURL: baseURL,
	}
}

// Elections returns a pager over all elections matching the given filters
func (c *DCElectionsClient) Elections(filters SeatElectionFilters) *Pager[SeatElectionRecord] {
	u := fmt.Sprintf("%s/elections/", c.baseURL)
	if params := filters.values(); len(params) > 0 {
		u += "?" + params.Encode()
	}
	return newClientPager[SeatElectionRecord](c.api, u)
}

// Election fetches a single election by ID. Ballot paper IDs are valid
// election IDs here, so seat counts can be looked up per ballot.
func (c *DCElectionsClient) Election(ctx context.Context, electionID string) (*SeatElectionRecord, error) {
	u := fmt.Sprintf("%s/elections/%s/", c.baseURL, url.PathEscape(electionID))
	return getJSON[SeatElectionRecord](ctx, c.api, u)
}
