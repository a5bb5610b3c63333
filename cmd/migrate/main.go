// migrate applies the embedded SQL migrations to DATABASE_URL and exits.
//
// Usage: go run ./cmd/migrate
package main

import (
	"context"
	"fmt"
	"os"

	"procurement/internal/config"
	"procurement/internal/db"
	"procurement/migrations"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	config.SetupLogger(cfg)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool, migrations.FS)
	if err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}
	log.Info().Strs("applied", applied).Msg("all migrations processed")
}
