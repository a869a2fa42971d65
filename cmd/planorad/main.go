package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/planora-ai/planora/config"
	srv "github.com/planora-ai/planora/internal/server"
)

func main() {
	root := &cobra.Command{Use: "planorad"}

	var cfgPath string
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the planning API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if serveAddr == "" {
				serveAddr = os.Getenv("PLANORA_HTTP_ADDR")
			}
			return srv.Run(serveAddr, cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides general.listen)")

	var migDir, direction string
	var steps int
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			dsn, err := cfg.Databases.Postgres.DSN()
			if err != nil {
				return err
			}
			return srv.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	root.AddCommand(serve, migrate)
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}
