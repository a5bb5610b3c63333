package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"procurement/internal/adapters/cli"
	"procurement/internal/ai"
	"procurement/internal/app"
	"procurement/internal/audit"
	"procurement/internal/config"
	"procurement/internal/core"
	"procurement/internal/db"

	"github.com/rs/zerolog/log"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, cli.Usage)
		os.Exit(2)
	}

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

	sink, closeSink, err := audit.Open(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer closeSink()

	svc := app.NewPostgresService(pool, cfg.SequenceResetSecretHash, ai.NewAgent(cfg.OpenAIAPIKey), sink)

	if err := cli.Run(ctx, svc, operator(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			fmt.Fprintf(os.Stderr, "%v\n\n%s\n", err, cli.Usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// operator identifies the person running the CLI for audit purposes.
func operator() core.Actor {
	id, _ := strconv.Atoi(os.Getenv("PROCUREMENT_USER_ID"))
	email := os.Getenv("PROCUREMENT_USER_EMAIL")
	if email == "" {
		email = os.Getenv("USER")
	}
	return core.Actor{UserID: id, Email: email}
}
