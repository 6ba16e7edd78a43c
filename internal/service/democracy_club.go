package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultCandidatesBaseURL is the Democracy Club candidates API root
const DefaultCandidatesBaseURL = "https://candidates.democracyclub.org.uk/api/next"

// BallotRecord is a ballot as returned by the candidates API
type BallotRecord struct {
	BallotPaperID string         `json:"ballot_paper_id"`
	Election      ElectionRecord `json:"election"`
	Post          PostRecord     `json:"post"`
}

// ElectionRecord is the election metadata embedded in a ballot
type ElectionRecord struct {
	ElectionID   string `json:"election_id"`
	Name         string `json:"name"`
	ElectionDate string `json:"election_date"`
}

// PostRecord is the post (the electoral area being contested) reference on a
// ballot. ID is expected to be a gss-prefixed identifier; anything else is a
// data error.
type PostRecord struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ElectionDetailRecord is an election as returned by the elections listing,
// including its ballot references
type ElectionDetailRecord struct {
	Slug         string      `json:"slug"`
	Name         string      `json:"name"`
	ElectionDate string      `json:"election_date"`
	Ballots      []BallotRef `json:"ballots"`
}

// BallotRef is a bare ballot paper ID reference inside an election
type BallotRef struct {
	BallotPaperID string `json:"ballot_paper_id"`
}

// ResultRecord is the result set for a single ballot
type ResultRecord struct {
	TotalElectorate       *int              `json:"total_electorate"`
	TurnoutReported       *int              `json:"num_turnout_reported"`
	TurnoutPercentage     *float64          `json:"turnout_percentage"`
	NumberOfSpoiltBallots *int              `json:"num_spoilt_ballots"`
	CandidateResults      []CandidateResult `json:"candidate_results"`
}

// CandidateResult is one candidate's result on a ballot. Elected is a
// pointer because the API returns null for some candidates; only a literal
// true counts as elected. Party is nil for independent candidates.
type CandidateResult struct {
	Elected         *bool     `json:"elected"`
	NumberOfBallots int       `json:"num_ballots"`
	Person          PersonRef `json:"person"`
	Party           *PartyRef `json:"party"`
}

// PersonRef is the person reference inside a candidate result
type PersonRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PartyRef is the party reference inside a candidate result
type PartyRef struct {
	ECID string `json:"ec_id"`
	Name string `json:"name"`
}

// PersonRecord is a person as returned by the people API
type PersonRecord struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	HonorificPrefix string `json:"honorific_prefix"`
	HonorificSuffix string `json:"honorific_suffix"`
	Gender          string `json:"gender"`
}

// PartyRecord is a party as returned by the parties API
type PartyRecord struct {
	ECID string `json:"ec_id"`
	Name string `json:"name"`
}

// BallotFilters are the supported query filters on the ballots listing
type BallotFilters struct {
	ElectionType       string
	ElectionDateAfter  *time.Time
	ElectionDateBefore *time.Time
	HasResults         bool
}

func (f BallotFilters) values() url.Values {
	v := url.Values{}
	if f.ElectionType != "" {
		v.Set("election_type", f.ElectionType)
	}
	if f.ElectionDateAfter != nil {
		v.Set("election_date_range_after", f.ElectionDateAfter.Format("2006-01-02"))
	}
	if f.ElectionDateBefore != nil {
		v.Set("election_date_range_before", f.ElectionDateBefore.Format("2006-01-02"))
	}
	if f.HasResults {
		v.Set("has_results", "true")
	}
	return v
}

// ElectionFilters are the supported query filters on the elections listing
type ElectionFilters struct {
	ElectionType       string
	ElectionDateAfter  *time.Time
	ElectionDateBefore *time.Time
}

func (f ElectionFilters) values() url.Values {
	v := url.Values{}
	if f.ElectionType != "" {
		v.Set("election_type", f.ElectionType)
	}
	if f.ElectionDateAfter != nil {
		v.Set("election_date_range_after", f.ElectionDateAfter.Format("2006-01-02"))
	}
	if f.ElectionDateBefore != nil {
		v.Set("election_date_range_before", f.ElectionDateBefore.Format("2006-01-02"))
	}
	return v
}

// DemocracyClubClient talks to the Democracy Club candidates API. Listings
// are cursor-paginated; single resources are fetched by ID. Rate limits
// (HTTP 429) are retried with exponential backoff.
type DemocracyClubClient struct {
	api     *apiClient
	baseURL string
}

// NewDemocracyClubClient creates a client for the given API root
func NewDemocracyClubClient(baseURL string) *DemocracyClubClient {
	return &DemocracyClubClient{
		api:     newAPIClient(http.StatusTooManyRequests),
		baseURL: baseURL,
	}
}

// Ballots returns a pager over all ballots matching the given filters
func (c *DemocracyClubClient) Ballots(filters BallotFilters) *Pager[BallotRecord] {
	return newClientPager[BallotRecord](c.api, c.listURL("ballots", filters.values()))
}

// Ballot fetches a single ballot by ballot paper ID
func (c *DemocracyClubClient) Ballot(ctx context.Context, ballotPaperID string) (*BallotRecord, error) {
	return getJSON[BallotRecord](ctx, c.api, c.itemURL("ballots", ballotPaperID))
}

// Elections returns a pager over all elections matching the given filters
func (c *DemocracyClubClient) Elections(filters ElectionFilters) *Pager[ElectionDetailRecord] {
	return newClientPager[ElectionDetailRecord](c.api, c.listURL("elections", filters.values()))
}

// Election fetches a single election by slug
func (c *DemocracyClubClient) Election(ctx context.Context, slug string) (*ElectionDetailRecord, error) {
	return getJSON[ElectionDetailRecord](ctx, c.api, c.itemURL("elections", slug))
}

// Parties returns a pager over all parties
func (c *DemocracyClubClient) Parties() *Pager[PartyRecord] {
	return newClientPager[PartyRecord](c.api, c.listURL("parties", nil))
}

// Party fetches a single party by Electoral Commission ID
func (c *DemocracyClubClient) Party(ctx context.Context, ecID string) (*PartyRecord, error) {
	return getJSON[PartyRecord](ctx, c.api, c.itemURL("parties", ecID))
}

// People returns a pager over all people
func (c *DemocracyClubClient) People() *Pager[PersonRecord] {
	return newClientPager[PersonRecord](c.api, c.listURL("people", nil))
}

// Person fetches a single person by Democracy Club ID
func (c *DemocracyClubClient) Person(ctx context.Context, id int) (*PersonRecord, error) {
	return getJSON[PersonRecord](ctx, c.api, c.itemURL("people", strconv.Itoa(id)))
}

// Results returns a pager over all ballot results
func (c *DemocracyClubClient) Results() *Pager[ResultRecord] {
	return newClientPager[ResultRecord](c.api, c.listURL("results", nil))
}

// Result fetches the result set for a single ballot
func (c *DemocracyClubClient) Result(ctx context.Context, ballotPaperID string) (*ResultRecord, error) {
	return getJSON[ResultRecord](ctx, c.api, c.itemURL("results", ballotPaperID))
}

func (c *DemocracyClubClient) listURL(resource string, params url.Values) string {
	u := fmt.Sprintf("%s/%s/", c.baseURL, resource)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *DemocracyClubClient) itemURL(resource, id string) string {
	return fmt.Sprintf("%s/%s/%s/", c.baseURL, resource, url.PathEscape(id))
}

// newClientPager builds a pager whose pages are fetched through the given
// API client
func newClientPager[T any](api *apiClient, startURL string) *Pager[T] {
	return NewPager(startURL, func(ctx context.Context, u string) (*Page[T], error) {
		return getJSON[Page[T]](ctx, api, u)
	})
}
