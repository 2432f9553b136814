package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/graphkeep/graphkeep/internal/api"
	"github.com/graphkeep/graphkeep/internal/broker"
	"github.com/graphkeep/graphkeep/internal/eventbus"
	"github.com/graphkeep/graphkeep/internal/graphbackend"
	"github.com/graphkeep/graphkeep/internal/graphstore"
	"github.com/graphkeep/graphkeep/internal/ids"
	"github.com/graphkeep/graphkeep/internal/journal"
	"github.com/graphkeep/graphkeep/internal/snapshot"
	"github.com/graphkeep/graphkeep/internal/telemetry"
)

// shutdownGrace bounds how long serve waits for in-flight broker waits to
// drain before closing the Graph Backend out from under them.
const shutdownGrace = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordination service, serving the Public API Facade in-process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// runServe wires every collaborator named in spec §4 and blocks until a
// termination signal arrives, then drains in-flight broker waits before
// closing the Graph Backend Adapter. External transports (MCP shell,
// HTTP/SSE, CLI waiter) are out of scope (spec §1) and have nothing to
// start here — this command exists so the Facade in C9 has a process for a
// transport to eventually call in-process.
func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := cfgLoader.Current()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.ConfigFromEnv("graphkeepd"))
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	backend, err := graphbackend.Open(ctx, cfg.Backend.AsGraphBackendConfig())
	if err != nil {
		return fmt.Errorf("opening graph backend: %w", err)
	}
	defer backend.Close()

	bus := eventbus.New(cfg.EventBusMailboxBound)
	if cfg.NatsURL != "" {
		closeNats, err := connectJetStream(bus, cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("connecting to NATS JetStream: %w", err)
		}
		defer closeNats()
	}
	clock := ids.NewClock()
	j := journal.New(backend, clock)
	store := graphstore.New(backend, j, bus, clock)
	snap := snapshot.New(backend, store, j, clock)
	brk := broker.New(
		broker.WithEventSink(eventbus.BrokerSink{Bus: bus}),
		broker.WithHistoryCapacity(cfg.BrokerHistoryCapacity),
	)
	facade := api.New(store, j, snap, brk, bus)

	stopWatch, err := cfgLoader.Watch()
	if err != nil {
		return fmt.Errorf("watching config: %w", err)
	}
	defer stopWatch()

	if stats, err := facade.GetHistoryStats(ctx); err != nil {
		logger.Warn("startup journal stats unavailable", "error", err)
	} else {
		logger.Info("graphkeepd ready", "backend_host", cfg.Backend.Host, "backend_port", cfg.Backend.Port, "journal_entries", stats.Total)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received, draining in-flight broker waits")
	drainBroker(brk, shutdownGrace)
	logger.Info("graphkeepd stopped")
	return nil
}

// connectJetStream dials NATS, ensures the Event Bus's streams exist, and
// attaches the JetStream context to bus so every Publish also mirrors to
// JetStream. The returned func closes the NATS connection.
func connectJetStream(bus *eventbus.Bus, url string) (func(), error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("acquiring JetStream context: %w", err)
	}
	if err := eventbus.EnsureStreams(js); err != nil {
		nc.Close()
		return nil, err
	}
	bus.SetJetStream(js)
	logger.Info("eventbus: JetStream fan-out enabled", "url", url)
	return nc.Close, nil
}

// drainBroker polls GetWaitingAgents until no agent is still waiting on a
// command or the grace period elapses, whichever comes first.
func drainBroker(b *broker.Broker, grace time.Duration) {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if len(b.GetWaitingAgents()) == 0 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	logger.Warn("shutdown grace period elapsed with agents still waiting")
}
