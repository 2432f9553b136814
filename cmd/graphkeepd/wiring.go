package main

import (
	"context"

	"github.com/graphkeep/graphkeep/internal/eventbus"
	"github.com/graphkeep/graphkeep/internal/graphbackend"
	"github.com/graphkeep/graphkeep/internal/graphstore"
	"github.com/graphkeep/graphkeep/internal/ids"
	"github.com/graphkeep/graphkeep/internal/journal"
	"github.com/graphkeep/graphkeep/internal/snapshot"
)

// shortLivedEngine opens a Graph Backend connection and builds a Snapshot
// Engine for one-shot subcommands (snapshot, replay) that don't need the
// Command Broker or a long-lived Event Bus subscriber.
func shortLivedEngine(ctx context.Context) (*graphbackend.Backend, *snapshot.Engine, error) {
	cfg := cfgLoader.Current()

	backend, err := graphbackend.Open(ctx, cfg.Backend.AsGraphBackendConfig())
	if err != nil {
		return nil, nil, err
	}

	bus := eventbus.New(cfg.EventBusMailboxBound)
	clock := ids.NewClock()
	j := journal.New(backend, clock)
	store := graphstore.New(backend, j, bus, clock)
	snap := snapshot.New(backend, store, j, clock)
	return backend, snap, nil
}
