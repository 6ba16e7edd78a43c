package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rhaynes/electrack/internal/store"
)

// electionTypes are the election types the sync engine recognises. Types
// are reference data: the sync refuses ballots whose type has not been
// seeded.
var electionTypes = []struct {
	Slug string
	Name string
}{
	{"parl", "UK Parliament election"},
	{"local", "Local election"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the database schema and seed election types",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		db, err := store.NewDB(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := store.EnsureSchema(ctx, db); err != nil {
			return err
		}

		electionStore := store.NewElectionStore(db)
		for _, et := range electionTypes {
			if err := electionStore.SeedType(ctx, et.Slug, et.Name); err != nil {
				return err
			}
			log.Info().Str("slug", et.Slug).Msg("election type seeded")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
