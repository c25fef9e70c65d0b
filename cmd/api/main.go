package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jatango/cart-engine/internal/cart"
	"github.com/jatango/cart-engine/internal/catalog"
	"github.com/jatango/cart-engine/internal/checkout"
	"github.com/jatango/cart-engine/internal/clock"
	"github.com/jatango/cart-engine/internal/config"
	"github.com/jatango/cart-engine/internal/events"
	"github.com/jatango/cart-engine/internal/httpx"
	kafkax "github.com/jatango/cart-engine/internal/kafka"
	"github.com/jatango/cart-engine/internal/notify"
	"github.com/jatango/cart-engine/internal/postgres"
	"github.com/jatango/cart-engine/internal/redisx"
	"github.com/jatango/cart-engine/internal/stock"
	"github.com/jatango/cart-engine/internal/syncx"
)

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	pUpdated := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicCartUpdated, 1024)
	pUpdated.Start(ctx)
	pExpired := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicReservationExpired, 1024)
	pExpired.Start(ctx)
	pOrders := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderCreated, 1024)
	pOrders.Start(ctx)

	// Wiring
	clk := clock.NewSystem()
	channel := &syncx.Redis{Client: rdb}
	notifier := &notify.Notifier{
		Channel:         channel,
		ProducerUpdated: pUpdated,
		ProducerExpired: pExpired,
		ServiceName:     cfg.ServiceName,
	}
	products := &catalog.Repo{DB: db}
	oracle := &stock.Oracle{DB: db, Products: products, Clock: clk}
	store := cart.NewStore(&cart.PgRepo{DB: db}, products, oracle, notifier, clk,
		cart.WithHoldWindow(cfg.HoldWindow))
	orch := &checkout.Orchestrator{
		Repo:        &checkout.PgRepo{DB: db},
		Processor:   checkout.NewAuthorizerClient(cfg.AuthorizerURL),
		Notifier:    notifier,
		Clock:       clk,
		Producer:    pOrders,
		ServiceName: cfg.ServiceName,
	}

	// The sweeper expires holds from its own process; its events clear our
	// cached snapshots here.
	invalidator := &notify.CacheInvalidator{RDB: rdb, ServiceName: cfg.ServiceName}
	consumer := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ServiceName+"-cache", events.TopicReservationExpired, 2)
	go func() {
		if err := consumer.Start(ctx, invalidator.Handle); err != nil {
			log.Error().Err(err).Msg("expiry consumer stopped")
		}
	}()

	router := httpx.NewRouter()
	(&httpx.CartHandler{Store: store, Products: products, Redis: rdb}).Register(router)
	(&httpx.CheckoutHandler{Store: store, Orchestrator: orch, Redis: rdb}).Register(router)
	(&httpx.WSHandler{Channel: channel}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	pUpdated.Close()
	pExpired.Close()
	pOrders.Close()
	cancel()
	pUpdated.WaitClosed()
	pExpired.WaitClosed()
	pOrders.WaitClosed()
}
