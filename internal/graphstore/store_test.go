package graphstore

import (
	"context"
	"testing"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/eventbus"
	"github.com/graphkeep/graphkeep/internal/graphbackendfake"
	"github.com/graphkeep/graphkeep/internal/ids"
	"github.com/graphkeep/graphkeep/internal/journal"
)

// newTestStore wires a Store over the in-memory graphbackendfake, a real
// Journal over the same fake, and a real Bus — the same collaborator shapes
// production wiring uses (cmd/graphkeepd/wiring.go), just swapping the
// backend for the fake (SPEC_FULL §8).
func newTestStore(t *testing.T) (*Store, *graphbackendfake.Backend, *journal.Journal) {
	t.Helper()
	backend := graphbackendfake.New()
	clock := ids.NewClock()
	j := journal.New(backend, clock)
	bus := eventbus.New(0)
	store := New(backend, j, bus, clock)
	return store, backend, j
}

func mustComponent(t *testing.T, s *Store, kind entity.ComponentKind, name string) *entity.Component {
	t.Helper()
	c, err := s.CreateComponent(context.Background(), &entity.Component{Kind: kind, Name: name})
	if err != nil {
		t.Fatalf("create component %s: %v", name, err)
	}
	return c
}
