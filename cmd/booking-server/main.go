package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/careslot/booking-engine/internal/api"
	"github.com/careslot/booking-engine/internal/blockeddate"
	"github.com/careslot/booking-engine/internal/booking"
	"github.com/careslot/booking-engine/internal/config"
	"github.com/careslot/booking-engine/internal/db"
	"github.com/careslot/booking-engine/internal/ledger"
	"github.com/careslot/booking-engine/internal/notify"
	redisclient "github.com/careslot/booking-engine/internal/redis"
	"github.com/careslot/booking-engine/internal/schedule"
)

const version = "0.3.0"

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "booking-server").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).
		Str("store_backend", cfg.StoreBackend).Msg("starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		pgPool *pgxpool.Pool
		rdb    *redis.Client
		store  booking.Store
	)

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		store = booking.NewPgStore(pgPool)
		log.Info().Msg("connected to postgres")

	case config.BackendRedis:
		rdb, err = redisclient.New(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection error")
		}
		defer rdb.Close()
		store = booking.NewLedgerStore(ledger.NewRedis(rdb), booking.NewMemoryRepository())
		log.Info().Msg("connected to redis")

	case config.BackendMemory:
		store = booking.NewLedgerStore(ledger.NewMemory(), booking.NewMemoryRepository())
	}

	// Schedule and blocked-date lookups belong to the hospital directory
	// service; the in-memory collaborators here serve deployments that
	// run the engine standalone.
	resolver := schedule.NewStaticResolver(schedule.DefaultTemplate())
	blockedSource := blockeddate.NewStaticSource()
	notifier := notify.LogNotifier{Log: log}

	svc := booking.NewService(store, resolver, blockedSource, notifier, log)

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Log:     log,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("booking-server stopped")
}
