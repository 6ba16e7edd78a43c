package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/rhaynes/electrack/internal/model"
)

type fakeCandidatesAPI struct {
	ballots     []BallotRecord
	elections   []ElectionDetailRecord
	results     map[string]*ResultRecord
	people      map[int]*PersonRecord
	parties     map[string]*PartyRecord
	resultCalls int
	partyCalls  int
}

func (f *fakeCandidatesAPI) Ballots(filters BallotFilters) *Pager[BallotRecord] {
	return singlePagePager(f.ballots)
}

func (f *fakeCandidatesAPI) Ballot(ctx context.Context, ballotPaperID string) (*BallotRecord, error) {
	for i := range f.ballots {
		if f.ballots[i].BallotPaperID == ballotPaperID {
			return &f.ballots[i], nil
		}
	}
	return nil, &APIError{StatusCode: http.StatusNotFound, URL: ballotPaperID}
}

func (f *fakeCandidatesAPI) Elections(filters ElectionFilters) *Pager[ElectionDetailRecord] {
	return singlePagePager(f.elections)
}

func (f *fakeCandidatesAPI) Result(ctx context.Context, ballotPaperID string) (*ResultRecord, error) {
	f.resultCalls++
	result, ok := f.results[ballotPaperID]
	if !ok {
		return nil, &APIError{StatusCode: http.StatusNotFound, URL: ballotPaperID}
	}
	return result, nil
}

func (f *fakeCandidatesAPI) Person(ctx context.Context, id int) (*PersonRecord, error) {
	person, ok := f.people[id]
	if !ok {
		return nil, &APIError{StatusCode: http.StatusNotFound, URL: fmt.Sprintf("people/%d", id)}
	}
	return person, nil
}

func (f *fakeCandidatesAPI) Party(ctx context.Context, ecID string) (*PartyRecord, error) {
	f.partyCalls++
	party, ok := f.parties[ecID]
	if !ok {
		return nil, &APIError{StatusCode: http.StatusNotFound, URL: ecID}
	}
	return party, nil
}

func singlePagePager[T any](results []T) *Pager[T] {
	return NewPager("", func(ctx context.Context, url string) (*Page[T], error) {
		return &Page[T]{Count: len(results), Results: results}, nil
	})
}

type fakeSeatsAPI struct {
	records map[string]*SeatElectionRecord
}

func (f *fakeSeatsAPI) Election(ctx context.Context, electionID string) (*SeatElectionRecord, error) {
	rec, ok := f.records[electionID]
	if !ok {
		return nil, &APIError{StatusCode: http.StatusNotFound, URL: electionID}
	}
	return rec, nil
}

type fakeAreaResolver struct {
	areas map[string]*model.Area
	calls int
}

func (f *fakeAreaResolver) ResolveArea(ctx context.Context, gssCode string) (*model.Area, error) {
	f.calls++
	area, ok := f.areas[gssCode]
	if !ok {
		return nil, fmt.Errorf("unknown area %s", gssCode)
	}
	return area, nil
}

type fakeElectionStore struct {
	types     map[string]*model.ElectionType
	elections map[string]*model.Election
	nextID    int
}

func newFakeElectionStore(typeSlugs ...string) *fakeElectionStore {
	s := &fakeElectionStore{
		types:     make(map[string]*model.ElectionType),
		elections: make(map[string]*model.Election),
	}
	for i, slug := range typeSlugs {
		s.types[slug] = &model.ElectionType{ID: i + 1, Slug: slug}
	}
	return s
}

func (s *fakeElectionStore) GetTypeBySlug(ctx context.Context, slug string) (*model.ElectionType, error) {
	return s.types[slug], nil
}

func (s *fakeElectionStore) GetBySlug(ctx context.Context, slug string) (*model.Election, error) {
	return s.elections[slug], nil
}

func (s *fakeElectionStore) Insert(ctx context.Context, e *model.Election) error {
	s.nextID++
	e.ID = s.nextID
	s.elections[e.Slug] = e
	return nil
}

func (s *fakeElectionStore) Update(ctx context.Context, e *model.Election) error {
	s.elections[e.Slug] = e
	return nil
}

type fakeBallotStore struct {
	ballots    map[string]*model.Ballot
	candidates map[string][]model.Candidate
	nextID     int
}

func newFakeBallotStore() *fakeBallotStore {
	return &fakeBallotStore{
		ballots:    make(map[string]*model.Ballot),
		candidates: make(map[string][]model.Candidate),
	}
}

func (s *fakeBallotStore) GetByDemocracyClubID(ctx context.Context, democracyClubID string) (*model.Ballot, error) {
	return s.ballots[democracyClubID], nil
}

func (s *fakeBallotStore) SaveWithCandidates(ctx context.Context, b *model.Ballot, candidates []model.Candidate) error {
	if existing := s.ballots[b.DemocracyClubID]; existing != nil {
		b.ID = existing.ID
	} else {
		s.nextID++
		b.ID = s.nextID
	}
	s.ballots[b.DemocracyClubID] = b
	s.candidates[b.DemocracyClubID] = candidates
	return nil
}

type fakePersonStore struct {
	people map[int]*model.Person
	nextID int
}

func (s *fakePersonStore) Upsert(ctx context.Context, p *model.Person) error {
	if existing := s.people[p.DemocracyClubID]; existing != nil {
		p.ID = existing.ID
	} else {
		s.nextID++
		p.ID = s.nextID
	}
	s.people[p.DemocracyClubID] = p
	return nil
}

type fakePartyStore struct {
	parties map[string]*model.Party
	nextID  int
}

func (s *fakePartyStore) GetByECID(ctx context.Context, ecID string) (*model.Party, error) {
	return s.parties[ecID], nil
}

func (s *fakePartyStore) Insert(ctx context.Context, p *model.Party) error {
	s.nextID++
	p.ID = s.nextID
	s.parties[p.ECID] = p
	return nil
}

type syncFixture struct {
	api      *fakeCandidatesAPI
	seats    *fakeSeatsAPI
	resolver *fakeAreaResolver
	election *fakeElectionStore
	ballot   *fakeBallotStore
	person   *fakePersonStore
	party    *fakePartyStore
	syncer   *Syncer
}

func newSyncFixture() *syncFixture {
	electedTrue := true

	f := &syncFixture{
		api: &fakeCandidatesAPI{
			ballots: []BallotRecord{
				{
					BallotPaperID: "parl.aldershot.2019-12-12",
					Election: ElectionRecord{
						ElectionID:   "parl.2019-12-12",
						Name:         "UK general election 2019",
						ElectionDate: "2019-12-12",
					},
					Post: PostRecord{ID: "gss:E14000530", Label: "Aldershot"},
				},
			},
			results: map[string]*ResultRecord{
				"parl.aldershot.2019-12-12": {
					TotalElectorate: intPtr(76205),
					TurnoutReported: intPtr(47638),
					CandidateResults: []CandidateResult{
						{
							Elected:         &electedTrue,
							NumberOfBallots: 27980,
							Person:          PersonRef{ID: 101, Name: "Leo Docherty"},
							Party:           &PartyRef{ECID: "PP52", Name: "Conservative Party"},
						},
						{
							NumberOfBallots: 11282,
							Person:          PersonRef{ID: 102, Name: "Alasdair Pinkerton"},
						},
					},
				},
			},
			people: map[int]*PersonRecord{
				101: {ID: 101, Name: "Leo Docherty", Gender: "male"},
				102: {ID: 102, Name: "Alasdair Pinkerton"},
			},
			parties: map[string]*PartyRecord{
				"PP52": {ECID: "PP52", Name: "Conservative Party"},
			},
		},
		seats: &fakeSeatsAPI{
			records: map[string]*SeatElectionRecord{
				"parl.aldershot.2019-12-12": {
					ElectionID:     "parl.aldershot.2019-12-12",
					SeatsContested: intPtr(1),
					SeatsTotal:     intPtr(1),
				},
			},
		},
		resolver: &fakeAreaResolver{
			areas: map[string]*model.Area{
				"E14000530": {ID: 7, GSSCode: "E14000530", Name: "Aldershot"},
			},
		},
		election: newFakeElectionStore("parl", "local"),
		ballot:   newFakeBallotStore(),
		person:   &fakePersonStore{people: make(map[int]*model.Person)},
		party:    &fakePartyStore{parties: make(map[string]*model.Party)},
	}

	f.syncer = NewSyncer(
		f.api, f.seats, f.resolver,
		f.election, f.ballot, f.person, f.party,
		zerolog.Nop(),
	)
	return f
}

func intPtr(v int) *int { return &v }

func TestSyncBallots(t *testing.T) {
	t.Run("creates ballot with candidates", func(t *testing.T) {
		f := newSyncFixture()

		stats, err := f.syncer.SyncBallots(context.Background(), SyncOptions{})
		if err != nil {
			t.Fatalf("SyncBallots() error = %v", err)
		}
		if stats.Created != 1 || stats.Failed != 0 || stats.Skipped != 0 {
			t.Errorf("stats = %+v, want 1 created", stats)
		}

		ballot := f.ballot.ballots["parl.aldershot.2019-12-12"]
		if ballot == nil {
			t.Fatal("ballot was not persisted")
		}
		if ballot.AreaID != 7 {
			t.Errorf("AreaID = %d, want 7", ballot.AreaID)
		}
		if !ballot.TotalElectorate.Valid || ballot.TotalElectorate.Int64 != 76205 {
			t.Errorf("TotalElectorate = %+v, want 76205", ballot.TotalElectorate)
		}
		if !ballot.SeatsContested.Valid || ballot.SeatsContested.Int64 != 1 {
			t.Errorf("SeatsContested = %+v, want 1", ballot.SeatsContested)
		}

		if f.election.elections["parl.2019-12-12"] == nil {
			t.Error("election was not created")
		}

		candidates := f.ballot.candidates["parl.aldershot.2019-12-12"]
		if len(candidates) != 2 {
			t.Fatalf("persisted %d candidates, want 2", len(candidates))
		}
		if !candidates[0].Elected {
			t.Error("first candidate should be elected")
		}
		if !candidates[0].PartyID.Valid {
			t.Error("first candidate should have a party")
		}
		if candidates[1].Elected {
			t.Error("null elected should persist as false")
		}
		if candidates[1].PartyID.Valid {
			t.Error("independent candidate should have no party")
		}

		if f.person.people[101] == nil || f.person.people[102] == nil {
			t.Error("candidate people were not persisted")
		}
	})

	t.Run("existing ballot is skipped without fetching results", func(t *testing.T) {
		f := newSyncFixture()
		f.ballot.ballots["parl.aldershot.2019-12-12"] = &model.Ballot{
			ID: 1, DemocracyClubID: "parl.aldershot.2019-12-12",
		}

		stats, err := f.syncer.SyncBallots(context.Background(), SyncOptions{})
		if err != nil {
			t.Fatalf("SyncBallots() error = %v", err)
		}
		if stats.Skipped != 1 || stats.Created != 0 {
			t.Errorf("stats = %+v, want 1 skipped", stats)
		}
		if f.api.resultCalls != 0 {
			t.Errorf("fetched %d results for a skipped ballot, want 0", f.api.resultCalls)
		}
		if f.resolver.calls != 0 {
			t.Errorf("resolved %d areas for a skipped ballot, want 0", f.resolver.calls)
		}
	})

	t.Run("update mode reprocesses existing ballots", func(t *testing.T) {
		f := newSyncFixture()
		f.ballot.ballots["parl.aldershot.2019-12-12"] = &model.Ballot{
			ID: 1, DemocracyClubID: "parl.aldershot.2019-12-12",
		}

		stats, err := f.syncer.SyncBallots(context.Background(), SyncOptions{UpdateMode: true})
		if err != nil {
			t.Fatalf("SyncBallots() error = %v", err)
		}
		if stats.Updated != 1 || stats.Skipped != 0 {
			t.Errorf("stats = %+v, want 1 updated", stats)
		}
		if f.api.resultCalls != 1 {
			t.Errorf("fetched %d results, want 1", f.api.resultCalls)
		}
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		f := newSyncFixture()

		if _, err := f.syncer.SyncBallots(context.Background(), SyncOptions{}); err != nil {
			t.Fatalf("first SyncBallots() error = %v", err)
		}
		stats, err := f.syncer.SyncBallots(context.Background(), SyncOptions{})
		if err != nil {
			t.Fatalf("second SyncBallots() error = %v", err)
		}
		if stats.Skipped != 1 || stats.Created != 0 {
			t.Errorf("second run stats = %+v, want 1 skipped", stats)
		}
	})

	t.Run("bad post reference fails the ballot but not the run", func(t *testing.T) {
		f := newSyncFixture()
		f.api.ballots = append([]BallotRecord{
			{
				BallotPaperID: "parl.bad-post.2019-12-12",
				Election:      f.api.ballots[0].Election,
				Post:          PostRecord{ID: "WMC:E14000530"},
			},
		}, f.api.ballots...)

		stats, err := f.syncer.SyncBallots(context.Background(), SyncOptions{})
		if err != nil {
			t.Fatalf("SyncBallots() error = %v", err)
		}
		if stats.Failed != 1 {
			t.Errorf("Failed = %d, want 1", stats.Failed)
		}
		if stats.Created != 1 {
			t.Errorf("Created = %d, want 1 (the good ballot should still sync)", stats.Created)
		}
	})

	t.Run("unknown election type aborts the run", func(t *testing.T) {
		f := newSyncFixture()
		f.api.ballots[0].Election.ElectionID = "mayor.2019-12-12"

		_, err := f.syncer.SyncBallots(context.Background(), SyncOptions{})
		if err == nil {
			t.Fatal("SyncBallots() should fail for an unseeded election type")
		}
	})

	t.Run("missing seat data leaves counts null", func(t *testing.T) {
		f := newSyncFixture()
		f.seats.records = map[string]*SeatElectionRecord{}

		if _, err := f.syncer.SyncBallots(context.Background(), SyncOptions{}); err != nil {
			t.Fatalf("SyncBallots() error = %v", err)
		}
		ballot := f.ballot.ballots["parl.aldershot.2019-12-12"]
		if ballot.SeatsContested.Valid || ballot.SeatsTotal.Valid {
			t.Errorf("seat counts = %+v/%+v, want null", ballot.SeatsContested, ballot.SeatsTotal)
		}
	})

	t.Run("party is fetched once and reused", func(t *testing.T) {
		f := newSyncFixture()
		electedTrue := true
		f.api.ballots = append(f.api.ballots, BallotRecord{
			BallotPaperID: "parl.farnborough.2019-12-12",
			Election:      f.api.ballots[0].Election,
			Post:          PostRecord{ID: "gss:E14000999"},
		})
		f.resolver.areas["E14000999"] = &model.Area{ID: 8, GSSCode: "E14000999"}
		f.api.results["parl.farnborough.2019-12-12"] = &ResultRecord{
			CandidateResults: []CandidateResult{
				{
					Elected:         &electedTrue,
					NumberOfBallots: 100,
					Person:          PersonRef{ID: 101, Name: "Leo Docherty"},
					Party:           &PartyRef{ECID: "PP52", Name: "Conservative Party"},
				},
			},
		}

		if _, err := f.syncer.SyncBallots(context.Background(), SyncOptions{}); err != nil {
			t.Fatalf("SyncBallots() error = %v", err)
		}
		if f.api.partyCalls != 1 {
			t.Errorf("fetched the same party %d times, want 1", f.api.partyCalls)
		}
	})
}

// racingElectionStore fails every election insert with a unique violation
// while making the winning row visible, as if a concurrent run committed it
// between the miss and the insert
type racingElectionStore struct {
	*fakeElectionStore
	winner *model.Election
}

func (s *racingElectionStore) Insert(ctx context.Context, e *model.Election) error {
	s.elections[s.winner.Slug] = s.winner
	return &pq.Error{Code: "23505"}
}

type racingPartyStore struct {
	*fakePartyStore
	winner *model.Party
}

func (s *racingPartyStore) Insert(ctx context.Context, p *model.Party) error {
	s.parties[s.winner.ECID] = s.winner
	return &pq.Error{Code: "23505"}
}

func TestSyncBallotsInsertRaces(t *testing.T) {
	t.Run("lost election insert uses the winning row", func(t *testing.T) {
		f := newSyncFixture()
		elections := &racingElectionStore{
			fakeElectionStore: f.election,
			winner: &model.Election{
				ID:             55,
				Slug:           "parl.2019-12-12",
				ElectionTypeID: 1,
			},
		}
		f.syncer = NewSyncer(
			f.api, f.seats, f.resolver,
			elections, f.ballot, f.person, f.party,
			zerolog.Nop(),
		)

		stats, err := f.syncer.SyncBallots(context.Background(), SyncOptions{})
		if err != nil {
			t.Fatalf("SyncBallots() error = %v", err)
		}
		if stats.Created != 1 {
			t.Errorf("Created = %d, want 1", stats.Created)
		}

		ballot := f.ballot.ballots["parl.aldershot.2019-12-12"]
		if ballot.ElectionID != 55 {
			t.Errorf("ElectionID = %d, want the concurrently created election 55", ballot.ElectionID)
		}
	})

	t.Run("lost party insert uses the winning row", func(t *testing.T) {
		f := newSyncFixture()
		parties := &racingPartyStore{
			fakePartyStore: f.party,
			winner:         &model.Party{ID: 77, ECID: "PP52", Name: "Conservative Party"},
		}
		f.syncer = NewSyncer(
			f.api, f.seats, f.resolver,
			f.election, f.ballot, f.person, parties,
			zerolog.Nop(),
		)

		if _, err := f.syncer.SyncBallots(context.Background(), SyncOptions{}); err != nil {
			t.Fatalf("SyncBallots() error = %v", err)
		}

		candidates := f.ballot.candidates["parl.aldershot.2019-12-12"]
		if len(candidates) != 2 {
			t.Fatalf("persisted %d candidates, want 2", len(candidates))
		}
		if !candidates[0].PartyID.Valid || candidates[0].PartyID.Int64 != 77 {
			t.Errorf("PartyID = %+v, want the concurrently created party 77", candidates[0].PartyID)
		}
	})
}

func TestSyncElections(t *testing.T) {
	f := newSyncFixture()
	f.api.elections = []ElectionDetailRecord{
		{
			Slug:         "parl.2019-12-12",
			Name:         "UK general election 2019",
			ElectionDate: "2019-12-12",
			Ballots:      []BallotRef{{BallotPaperID: "parl.aldershot.2019-12-12"}},
		},
	}

	stats, err := f.syncer.SyncElections(context.Background(), SyncOptions{})
	if err != nil {
		t.Fatalf("SyncElections() error = %v", err)
	}
	if stats.Created != 1 {
		t.Errorf("Created = %d, want 1", stats.Created)
	}
	if f.ballot.ballots["parl.aldershot.2019-12-12"] == nil {
		t.Error("ballot was not persisted")
	}
}

func TestGSSCodeFromPost(t *testing.T) {
	tests := []struct {
		name    string
		postID  string
		want    string
		wantErr bool
	}{
		{"gss prefixed", "gss:E14000530", "E14000530", false},
		{"missing", "", "", true},
		{"unprefixed", "E14000530", "", true},
		{"wrong scheme", "WMC:E14000530", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &BallotRecord{
				BallotPaperID: "parl.aldershot.2019-12-12",
				Post:          PostRecord{ID: tt.postID},
			}
			got, err := gssCodeFromPost(rec)
			if tt.wantErr {
				var postErr *PostIDError
				if !errors.As(err, &postErr) {
					t.Fatalf("gssCodeFromPost() error = %v, want *PostIDError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("gssCodeFromPost() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("gssCodeFromPost() = %q, want %q", got, tt.want)
			}
		})
	}
}
