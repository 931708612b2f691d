package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/broker"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/internal/logging"
	"github.com/hackgods/clinic-appointment-scheduling/internal/workshift"
	"github.com/hackgods/clinic-appointment-scheduling/internal/workshiftsync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalLog := zerolog.New(os.Stderr)
		fatalLog.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "workshift-sync")
	log.Info().
		Str("exchange", cfg.WorkshiftExchange).
		Str("queue", cfg.WorkshiftQueue).
		Msg("workshift-sync starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if _, err := db.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatal().Err(err).Msg("migration error")
		}
	}

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, 2)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	mq := broker.NewManager(cfg.RabbitURL, cfg.ReconnectMaxBackoff, log)
	defer func() {
		if err := mq.Close(); err != nil {
			log.Error().Err(err).Msg("error closing broker")
		}
	}()
	if err := mq.Connect(rootCtx); err != nil {
		log.Fatal().Err(err).Msg("broker connection error")
	}

	store := workshift.NewPgRepository(pgPool)
	if n, err := store.Count(rootCtx); err == nil {
		log.Info().Int("workshifts", n).Msg("replica loaded")
	}

	consumer := workshiftsync.NewConsumer(mq, workshiftsync.NewApplier(store, log), workshiftsync.ConsumerConfig{
		Exchange:   cfg.WorkshiftExchange,
		Queue:      cfg.WorkshiftQueue,
		MaxBackoff: cfg.ReconnectMaxBackoff,
	}, log)

	if err := consumer.Run(rootCtx); err != nil {
		log.Error().Err(err).Msg("consumer stopped")
		return
	}
	log.Info().Msg("shutdown signal received, stopping workshift-sync")
}
