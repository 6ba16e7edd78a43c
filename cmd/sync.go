package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rhaynes/electrack/internal/config"
	"github.com/rhaynes/electrack/internal/service"
	"github.com/rhaynes/electrack/internal/store"
)

var syncMode string
var syncElectionType string
var syncAfter string
var syncBefore string
var syncUpdate bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync election data from the Democracy Club APIs",
	Long: `Sync fetches elections, ballots, results, candidates, people and
parties from the Democracy Club APIs, resolves the geographic area for each
ballot, and reconciles everything into PostgreSQL.

Re-running a sync is always safe: ballots already present are skipped unless
--update is given, and every write is an idempotent upsert.

Examples:
  # Sync all ballots with results
  ./electrack sync

  # Sync the 2019 general election
  ./electrack sync --election-type parl --after 2019-12-12 --before 2019-12-12

  # Walk the elections listing instead of the ballots listing
  ./electrack sync --mode elections

  # Reprocess ballots that were already synced
  ./electrack sync --update`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncMode, "mode", "ballots", "Listing to walk: 'ballots' or 'elections'")
	syncCmd.Flags().StringVar(&syncElectionType, "election-type", "", "Restrict to one election type slug (e.g. 'parl')")
	syncCmd.Flags().StringVar(&syncAfter, "after", "", "Only elections on or after this date (YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&syncBefore, "before", "", "Only elections on or before this date (YYYY-MM-DD)")
	syncCmd.Flags().BoolVar(&syncUpdate, "update", false, "Reprocess ballots that already exist locally")
}

func runSync(cmd *cobra.Command, args []string) error {
	opts := service.SyncOptions{
		ElectionType: syncElectionType,
		UpdateMode:   syncUpdate,
	}

	var err error
	if opts.DateAfter, err = parseDateFlag(syncAfter); err != nil {
		return err
	}
	if opts.DateBefore, err = parseDateFlag(syncBefore); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("received interrupt signal, shutting down")
		cancel()
	}()

	db, err := store.NewDB(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.EnsureSchema(ctx, db); err != nil {
		return err
	}

	syncer := newSyncer(db)

	var stats *service.SyncStats
	switch syncMode {
	case "elections":
		stats, err = syncer.SyncElections(ctx, opts)
	default:
		stats, err = syncer.SyncBallots(ctx, opts)
	}

	if stats != nil {
		log.Info().
			Int("total", stats.Total).
			Int("created", stats.Created).
			Int("updated", stats.Updated).
			Int("skipped", stats.Skipped).
			Int("failed", stats.Failed).
			Msg("sync finished")
	}
	if err != nil {
		if ctx.Err() != nil {
			log.Warn().Msg("sync cancelled")
			os.Exit(1)
		}
		return err
	}

	if stats != nil && stats.Failed > 0 {
		os.Exit(1)
	}
	return nil
}

func newSyncer(db *sql.DB) *service.Syncer {
	areaStore := store.NewAreaStore(db)

	var resolver service.AreaResolver
	switch cfg.Sync.GeographyProvider {
	case config.GeographyProviderMapit:
		resolver = service.NewMapitResolver(
			service.NewMapitClient(cfg.Sync.MapitBaseURL), areaStore, log.Logger)
	default:
		resolver = service.NewFindThatPostcodeResolver(
			service.NewFindThatPostcodeClient(cfg.Sync.FindThatPostcodeBaseURL), areaStore, log.Logger)
	}

	return service.NewSyncer(
		service.NewDemocracyClubClient(cfg.Sync.CandidatesBaseURL),
		service.NewDCElectionsClient(cfg.Sync.ElectionsBaseURL),
		resolver,
		store.NewElectionStore(db),
		store.NewBallotStore(db),
		store.NewPersonStore(db),
		store.NewPartyStore(db),
		log.Logger,
	)
}

func parseDateFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return &t, nil
}
