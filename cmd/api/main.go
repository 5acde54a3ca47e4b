package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	server "seatview/internal/adapters/http_server"
	"seatview/internal/adapters/observability"
	"seatview/internal/adapters/photos"
	redisad "seatview/internal/adapters/redis"
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

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		// reads fall through to MySQL on cache errors
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed")
	}

	// photos
	var gcsOpts []option.ClientOption
	if cfg.StorageEmulatorHost != "" {
		// the storage client reads the emulator address from the environment
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.StorageEmulatorHost)
		gcsOpts = append(gcsOpts, option.WithoutAuthentication())
	}
	gcs, err := storage.NewClient(ctx, gcsOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("storage.NewClient failed")
	}
	defer gcs.Close()
	store, err := photos.NewGCSStore(gcs, cfg.PhotoBucket, cfg.PhotoPublicBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("photo store")
	}

	q := app.NewQueryService(repo, cache, cfg.CacheTTL, cfg.ListCacheTTL)
	c := app.NewCommandService(repo, cache, store)

	// http
	srv := server.New(cfg.RateLimitRPS, cfg.RateLimitBurst)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, C: c, MaxPhotoBytes: cfg.PhotoMaxBytes})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
