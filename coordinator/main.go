package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bashar404/poet/coordinator/history"
	"github.com/bashar404/poet/coordinator/registry"
	"github.com/bashar404/poet/coordinator/streaming"
)

func main() {
	cfg := LoadConfig()

	table, err := registry.NewTable(cfg.MaxNodes, cfg.SGXTLowerBound, cfg.SGXTUpperBound, cfg.TotalTiers)
	if err != nil {
		log.Fatalf("[INIT] building SGX table: %v", err)
	}

	// Event streaming: Redis pub/sub when configured, the process log
	// otherwise.
	var publisher streaming.Publisher
	if cfg.RedisAddr != "" {
		redisPub, err := streaming.NewRedisPublisher(cfg.RedisAddr, "", 0)
		if err != nil {
			log.Fatalf("[INIT] connecting event publisher: %v", err)
		}
		publisher = redisPub
		log.Printf("[INIT] publishing events to redis at %s", cfg.RedisAddr)
	} else {
		publisher = streaming.NewLogPublisher()
	}
	defer publisher.Close()

	// Leadership history: in-memory ring, plus the Postgres audit sink
	// when a DSN is configured.
	memHistory := history.NewMemoryStore(0)
	var recorder history.Recorder = memHistory
	if cfg.PostgresDSN != "" {
		pg, err := history.NewPostgresStore(context.Background(), cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("[INIT] connecting history sink: %v", err)
		}
		recorder = history.Tee{memHistory, pg}
		log.Printf("[INIT] recording leadership history to postgres")
	}
	defer recorder.Close()

	hub := NewEventHub()
	co := NewCoordinator(cfg, table, publisher, recorder, hub)
	dispatcher := NewDispatcher(cfg, co)

	if err := dispatcher.Listen(); err != nil {
		log.Fatalf("[INIT] binding %s: %v", cfg.ListenAddr, err)
	}

	// Termination is cooperative: the signal handler cancels the
	// context, closing the listener unblocks the accept loop, and
	// workers notice at their next suspension point.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("[SHUTDOWN] caught signal %v", sig)
		cancel()
	}()

	go hub.Run(ctx)

	if cfg.AdminAddr != "" {
		go runAdminServer(ctx, newAdminServer(cfg, co, hub, memHistory))
	}

	log.Printf("[INIT] sgxt bounds [%d, %d], %d tier divisor, table capacity %d, backlog %d",
		cfg.SGXTLowerBound, cfg.SGXTUpperBound, cfg.TotalTiers, cfg.MaxNodes, cfg.ListenBacklog)

	if err := dispatcher.Serve(ctx); err != nil {
		log.Fatalf("[SERVE] %v", err)
	}

	log.Printf("[SHUTDOWN] draining in-flight workers")
	dispatcher.Drain()
	log.Printf("[SHUTDOWN] done")
}
