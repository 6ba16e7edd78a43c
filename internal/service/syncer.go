package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rhaynes/electrack/internal/model"
	"github.com/rhaynes/electrack/internal/store"
)

// CandidatesAPI is the surface of the Democracy Club candidates API the
// syncer consumes
type CandidatesAPI interface {
	Ballots(filters BallotFilters) *Pager[BallotRecord]
	Ballot(ctx context.Context, ballotPaperID string) (*BallotRecord, error)
	Elections(filters ElectionFilters) *Pager[ElectionDetailRecord]
	Result(ctx context.Context, ballotPaperID string) (*ResultRecord, error)
	Person(ctx context.Context, id int) (*PersonRecord, error)
	Party(ctx context.Context, ecID string) (*PartyRecord, error)
}

// SeatsAPI is the surface of the elections API the syncer consumes for seat
// totals
type SeatsAPI interface {
	Election(ctx context.Context, electionID string) (*SeatElectionRecord, error)
}

// ElectionWriter is the store surface for elections and election types
type ElectionWriter interface {
	GetTypeBySlug(ctx context.Context, slug string) (*model.ElectionType, error)
	GetBySlug(ctx context.Context, slug string) (*model.Election, error)
	Insert(ctx context.Context, e *model.Election) error
	Update(ctx context.Context, e *model.Election) error
}

// BallotWriter is the store surface for ballots and their candidates
type BallotWriter interface {
	GetByDemocracyClubID(ctx context.Context, democracyClubID string) (*model.Ballot, error)
	SaveWithCandidates(ctx context.Context, b *model.Ballot, candidates []model.Candidate) error
}

// PersonWriter is the store surface for people
type PersonWriter interface {
	Upsert(ctx context.Context, p *model.Person) error
}

// PartyWriter is the store surface for parties
type PartyWriter interface {
	GetByECID(ctx context.Context, ecID string) (*model.Party, error)
	Insert(ctx context.Context, p *model.Party) error
}

// SyncOptions control a sync run
type SyncOptions struct {
	// ElectionType filters the run to one election type slug (e.g. 'parl').
	ElectionType string
	// DateAfter / DateBefore bound the election date range.
	DateAfter  *time.Time
	DateBefore *time.Time
	// UpdateMode reprocesses ballots that already exist locally. When false,
	// already-seen ballots are skipped without fetching their results - the
	// guard that keeps re-runs cheap.
	UpdateMode bool
}

// SyncStats tracks what a sync run did
type SyncStats struct {
	Total   int
	Created int
	Updated int
	Skipped int
	Failed  int
}

// Syncer reconciles Democracy Club election data into the local store. A
// run is a single sequential walk of a paginated listing; re-running the
// same walk is safe because every write is an idempotent upsert keyed by an
// external identifier.
type Syncer struct {
	api       CandidatesAPI
	seats     SeatsAPI
	areas     AreaResolver
	elections ElectionWriter
	ballots   BallotWriter
	people    PersonWriter
	parties   PartyWriter
	log       zerolog.Logger
}

// NewSyncer creates a Syncer. seats may be nil, in which case seat totals
// are not fetched.
func NewSyncer(
	api CandidatesAPI,
	seats SeatsAPI,
	areas AreaResolver,
	elections ElectionWriter,
	ballots BallotWriter,
	people PersonWriter,
	parties PartyWriter,
	log zerolog.Logger,
) *Syncer {
	return &Syncer{
		api:       api,
		seats:     seats,
		areas:     areas,
		elections: elections,
		ballots:   ballots,
		people:    people,
		parties:   parties,
		log:       log,
	}
}

// SyncBallots walks the paginated ballots listing (restricted to ballots
// with results) and upserts each ballot with its election, area, results and
// candidates. A malformed post reference skips that ballot and the run
// continues; any other error aborts the run. Aborted runs are safe to
// re-invoke.
func (s *Syncer) SyncBallots(ctx context.Context, opts SyncOptions) (*SyncStats, error) {
	stats := &SyncStats{}

	pager := s.api.Ballots(BallotFilters{
		ElectionType:       opts.ElectionType,
		ElectionDateAfter:  opts.DateAfter,
		ElectionDateBefore: opts.DateBefore,
		HasResults:         true,
	})

	for {
		page, err := pager.Next(ctx)
		if err != nil {
			return stats, fmt.Errorf("failed to fetch ballots page: %w", err)
		}
		if page == nil {
			break
		}

		for i := range page.Results {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			default:
			}

			if err := s.syncBallot(ctx, &page.Results[i], opts.UpdateMode, stats); err != nil {
				if !s.recoverable(err, stats) {
					return stats, err
				}
			}
		}
	}

	return stats, nil
}

// SyncElections walks the paginated elections listing and, for each
// election, fetches and upserts every ballot it references individually.
// Converges on the same per-ballot cascade as SyncBallots.
func (s *Syncer) SyncElections(ctx context.Context, opts SyncOptions) (*SyncStats, error) {
	stats := &SyncStats{}

	pager := s.api.Elections(ElectionFilters{
		ElectionType:       opts.ElectionType,
		ElectionDateAfter:  opts.DateAfter,
		ElectionDateBefore: opts.DateBefore,
	})

	for {
		page, err := pager.Next(ctx)
		if err != nil {
			return stats, fmt.Errorf("failed to fetch elections page: %w", err)
		}
		if page == nil {
			break
		}

		for _, election := range page.Results {
			for _, ref := range election.Ballots {
				select {
				case <-ctx.Done():
					return stats, ctx.Err()
				default:
				}

				ballot, err := s.api.Ballot(ctx, ref.BallotPaperID)
				if err != nil {
					return stats, fmt.Errorf("failed to fetch ballot %s: %w", ref.BallotPaperID, err)
				}

				if err := s.syncBallot(ctx, ballot, opts.UpdateMode, stats); err != nil {
					if !s.recoverable(err, stats) {
						return stats, err
					}
				}
			}
		}
	}

	return stats, nil
}

// recoverable logs and absorbs per-ballot data errors; anything else is
// fatal to the run
func (s *Syncer) recoverable(err error, stats *SyncStats) bool {
	var postErr *PostIDError
	if errors.As(err, &postErr) {
		s.log.Error().Err(err).Str("ballot", postErr.BallotPaperID).Msg("skipping ballot with bad post reference")
		stats.Failed++
		return true
	}
	return false
}

// syncBallot performs the full upsert cascade for one ballot
func (s *Syncer) syncBallot(ctx context.Context, rec *BallotRecord, updateMode bool, stats *SyncStats) error {
	stats.Total++

	existing, err := s.ballots.GetByDemocracyClubID(ctx, rec.BallotPaperID)
	if err != nil {
		return err
	}
	if existing != nil && !updateMode {
		s.log.Debug().Str("ballot", rec.BallotPaperID).Msg("ballot already synced, skipping")
		stats.Skipped++
		return nil
	}

	election, err := s.findOrCreateElection(ctx, rec.Election, updateMode)
	if err != nil {
		return err
	}

	gssCode, err := gssCodeFromPost(rec)
	if err != nil {
		return err
	}
	area, err := s.areas.ResolveArea(ctx, gssCode)
	if err != nil {
		return fmt.Errorf("failed to resolve area %s: %w", gssCode, err)
	}

	result, err := s.api.Result(ctx, rec.BallotPaperID)
	if err != nil {
		return fmt.Errorf("failed to fetch result for ballot %s: %w", rec.BallotPaperID, err)
	}

	ballot := &model.Ballot{
		DemocracyClubID:       rec.BallotPaperID,
		ElectionID:            election.ID,
		AreaID:                area.ID,
		TotalElectorate:       nullIntPtr(result.TotalElectorate),
		TurnoutNumber:         nullIntPtr(result.TurnoutReported),
		TurnoutPercentage:     nullFloatPtr(result.TurnoutPercentage),
		NumberOfSpoiltBallots: nullIntPtr(result.NumberOfSpoiltBallots),
	}

	if err := s.fetchSeats(ctx, ballot); err != nil {
		return err
	}

	candidates := make([]model.Candidate, 0, len(result.CandidateResults))
	for _, cr := range result.CandidateResults {
		person, err := s.resolvePerson(ctx, cr.Person.ID)
		if err != nil {
			return err
		}

		party, err := s.resolveParty(ctx, cr.Party)
		if err != nil {
			return err
		}

		var partyID sql.NullInt64
		if party != nil {
			partyID = sql.NullInt64{Int64: int64(party.ID), Valid: true}
		}

		candidates = append(candidates, model.Candidate{
			PersonID: person.ID,
			PartyID:  partyID,
			// The API reports null elected for some candidates; only a
			// literal true counts.
			Elected:         cr.Elected != nil && *cr.Elected,
			NumberOfBallots: cr.NumberOfBallots,
		})
	}

	if err := s.ballots.SaveWithCandidates(ctx, ballot, candidates); err != nil {
		return err
	}

	if existing != nil {
		stats.Updated++
		s.log.Info().Str("ballot", rec.BallotPaperID).Int("candidates", len(candidates)).Msg("ballot updated")
	} else {
		stats.Created++
		s.log.Info().Str("ballot", rec.BallotPaperID).Int("candidates", len(candidates)).Msg("ballot created")
	}

	return nil
}

// findOrCreateElection resolves the election for a ballot. The election
// type comes from the first dot-delimited segment of the slug and must be
// pre-seeded; a missing type is a hard failure.
func (s *Syncer) findOrCreateElection(ctx context.Context, rec ElectionRecord, updateMode bool) (*model.Election, error) {
	typeSlug := strings.SplitN(rec.ElectionID, ".", 2)[0]

	electionType, err := s.elections.GetTypeBySlug(ctx, typeSlug)
	if err != nil {
		return nil, err
	}
	if electionType == nil {
		return nil, fmt.Errorf("no election type with slug %s (for election %s) - seed election types first", typeSlug, rec.ElectionID)
	}

	date, err := time.Parse("2006-01-02", rec.ElectionDate)
	if err != nil {
		return nil, fmt.Errorf("invalid election date %q for election %s: %w", rec.ElectionDate, rec.ElectionID, err)
	}

	existing, err := s.elections.GetBySlug(ctx, rec.ElectionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if updateMode {
			existing.ElectionDate = date
			existing.ElectionTypeID = electionType.ID
			if err := s.elections.Update(ctx, existing); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	election := &model.Election{
		Slug:           rec.ElectionID,
		ElectionDate:   date,
		ElectionTypeID: electionType.ID,
	}
	if err := s.elections.Insert(ctx, election); err != nil {
		if store.IsUniqueViolation(err) {
			return s.elections.GetBySlug(ctx, rec.ElectionID)
		}
		return nil, err
	}

	return election, nil
}

// resolvePerson always re-fetches the person and overwrites their mutable
// attributes - the upstream profile can change between syncs
func (s *Syncer) resolvePerson(ctx context.Context, personID int) (*model.Person, error) {
	rec, err := s.api.Person(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch person %d: %w", personID, err)
	}

	person := &model.Person{
		DemocracyClubID: personID,
		Name:            rec.Name,
		HonorificPrefix: nullString(rec.HonorificPrefix),
		HonorificSuffix: nullString(rec.HonorificSuffix),
		Gender:          nullString(rec.Gender),
	}
	if err := s.people.Upsert(ctx, person); err != nil {
		return nil, err
	}

	return person, nil
}

// resolveParty fetches a party only on first encounter; subsequent calls
// return the persisted row without a network call. A nil or empty party
// reference means an independent candidate and resolves to no party.
func (s *Syncer) resolveParty(ctx context.Context, ref *PartyRef) (*model.Party, error) {
	if ref == nil || ref.ECID == "" {
		return nil, nil
	}

	existing, err := s.parties.GetByECID(ctx, ref.ECID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	rec, err := s.api.Party(ctx, ref.ECID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch party %s: %w", ref.ECID, err)
	}

	party := &model.Party{ECID: ref.ECID, Name: rec.Name}
	if err := s.parties.Insert(ctx, party); err != nil {
		if store.IsUniqueViolation(err) {
			return s.parties.GetByECID(ctx, ref.ECID)
		}
		return nil, err
	}

	return party, nil
}

// fetchSeats enriches a ballot with seat totals from the elections API.
// Not every ballot is known there, so a 404 just leaves the counts null.
func (s *Syncer) fetchSeats(ctx context.Context, ballot *model.Ballot) error {
	if s.seats == nil {
		return nil
	}

	rec, err := s.seats.Election(ctx, ballot.DemocracyClubID)
	if err != nil {
		if IsNotFound(err) {
			s.log.Debug().Str("ballot", ballot.DemocracyClubID).Msg("no seat data for ballot")
			return nil
		}
		return fmt.Errorf("failed to fetch seat data for ballot %s: %w", ballot.DemocracyClubID, err)
	}

	ballot.SeatsContested = nullIntPtr(rec.SeatsContested)
	ballot.SeatsTotal = nullIntPtr(rec.SeatsTotal)
	return nil
}

// gssCodeFromPost extracts the GSS code from a ballot's post reference.
// Post IDs must be in the prefixed form 'gss:E14000530'.
func gssCodeFromPost(rec *BallotRecord) (string, error) {
	postID := rec.Post.ID
	if postID == "" {
		return "", &PostIDError{BallotPaperID: rec.BallotPaperID}
	}
	if !strings.HasPrefix(postID, "gss:") {
		return "", &PostIDError{BallotPaperID: rec.BallotPaperID, PostID: postID}
	}
	return strings.TrimPrefix(postID, "gss:"), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullIntPtr(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloatPtr(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
