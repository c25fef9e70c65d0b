package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jatango/cart-engine/internal/cart"
	"github.com/jatango/cart-engine/internal/clock"
	"github.com/jatango/cart-engine/internal/config"
	"github.com/jatango/cart-engine/internal/events"
	kafkax "github.com/jatango/cart-engine/internal/kafka"
	"github.com/jatango/cart-engine/internal/notify"
	"github.com/jatango/cart-engine/internal/postgres"
	"github.com/jatango/cart-engine/internal/redisx"
	"github.com/jatango/cart-engine/internal/syncx"
)

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pExpired := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicReservationExpired, 1024)
	pExpired.Start(ctx)

	sweeper := &cart.Sweeper{
		Repo: &cart.PgRepo{DB: db},
		Notifier: &notify.Notifier{
			Channel:         &syncx.Redis{Client: rdb},
			ProducerExpired: pExpired,
			ServiceName:     cfg.ServiceName + "-sweeper",
		},
		Clock:    clock.NewSystem(),
		Interval: cfg.SweepInterval,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info().Dur("interval", cfg.SweepInterval).Msg("sweeper started")
		sweeper.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down sweeper...")
	cancel()
	// an in-flight sweep may still publish; close the producer only after
	// the loop has exited
	<-done
	pExpired.Close()
	pExpired.WaitClosed()
}
