package cmd

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rhaynes/electrack/internal/handlers"
	"github.com/rhaynes/electrack/internal/store"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Electrack web server",
	Long:  `Start the web server that serves synced areas, boundaries and ballots.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port := cfg.Server.Port
		if servePort != "" {
			port = servePort
		}

		db, err := store.NewDB(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		areaStore := store.NewAreaStore(db)
		ballotStore := store.NewBallotStore(db)
		counts := func(ctx context.Context) (*store.Counts, error) {
			return store.EntityCounts(ctx, db)
		}

		app := fiber.New(fiber.Config{
			AppName: "Electrack",
		})

		app.Use(logger.New())

		app.Get("/", handlers.HomeHandler(counts))

		app.Get("/areas", handlers.AreasHandler(areaStore))
		app.Get("/areas/:id", handlers.AreaDetailHandler(areaStore, ballotStore))
		app.Get("/areas/:id/boundary", handlers.AreaBoundaryHandler(areaStore))
		app.Get("/areas/:id/subareas", handlers.SubareasHandler(areaStore))

		log.Info().Str("port", port).Msg("starting server")
		return app.Listen(":" + port)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Port to run the server on (overrides config)")
}
