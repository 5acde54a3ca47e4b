package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"seatview/internal/adapters/observability"
	"seatview/internal/adapters/viewapi"
	"seatview/internal/app"
	"seatview/internal/shared"
	mysqlrepo "seatview/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("api", cfg.APIBaseURL).
		Int("workers", cfg.WarmWorkers).
		Int("limit", cfg.WarmLimit).
		Msg("warmer starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	client, err := viewapi.New(cfg.APIBaseURL, viewapi.Options{RPS: cfg.WarmRPS, Timeout: cfg.APITimeout})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize API client")
	}

	w := app.NewWarmService(mysqlrepo.New(db), client, cfg.WarmWorkers)
	rep, err := w.Warm(ctx, cfg.WarmLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("warm aborted")
	}
	log.Info().
		Int("total", rep.Total).
		Int("warmed", rep.Warmed).
		Int("failed", rep.Failed).
		Msg("warm completed")
}
