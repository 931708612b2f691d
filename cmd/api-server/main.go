package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/api"
	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/availability"
	"github.com/hackgods/clinic-appointment-scheduling/internal/broker"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/internal/logging"
	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
	"github.com/hackgods/clinic-appointment-scheduling/internal/workshift"
	"github.com/hackgods/clinic-appointment-scheduling/internal/workshiftsync"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalLog := zerolog.New(os.Stderr)
		fatalLog.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "api-server")
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		v, err := db.Migrate(cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("migration error")
		}
		log.Info().Uint("version", v).Msg("schema up to date")
	}

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns))
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.Connect(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	// The broker may come up later; readiness reports it until then.
	mq := broker.NewManager(cfg.RabbitURL, cfg.ReconnectMaxBackoff, log)
	defer func() {
		if err := mq.Close(); err != nil {
			log.Error().Err(err).Msg("error closing broker")
		}
	}()

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL, log)
	validator := appointment.NewConflictValidator(repo, cfg.BookingWindow, time.Now)
	svc := appointment.NewService(repo, locker, validator, log)

	shifts := workshift.NewPgRepository(pgPool)
	calc := availability.NewCalculator(repo, shifts, cfg.Location, cfg.DefaultSlotDuration, availability.TrailingPolicy(cfg.SlotTrailingPolicy))

	syncDone := make(chan struct{})
	if cfg.SyncInProcess {
		consumer := workshiftsync.NewConsumer(mq, workshiftsync.NewApplier(shifts, log), workshiftsync.ConsumerConfig{
			Exchange:   cfg.WorkshiftExchange,
			Queue:      cfg.WorkshiftQueue,
			MaxBackoff: cfg.ReconnectMaxBackoff,
		}, log)
		go func() {
			defer close(syncDone)
			if err := consumer.Run(rootCtx); err != nil {
				log.Error().Err(err).Msg("workshift consumer stopped")
			}
		}()
	} else {
		close(syncDone)
	}

	router := api.NewRouter(api.RouterConfig{
		Appointments: svc,
		Availability: calc,
		Checks: []api.Check{
			{Name: "postgres", Critical: true, Ping: pgPool.Ping},
			{Name: "redis", Ping: redisclient.Ping(rdb)},
			{Name: "broker", Ping: mq.Ping},
		},
		Location: cfg.Location,
		Logger:   log,
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}

	select {
	case <-syncDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("workshift consumer did not stop in time")
	}
}
