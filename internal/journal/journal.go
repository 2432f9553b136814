// Package journal implements the Change Journal (spec §4.2): an append-only
// log of every graph mutation, backed by the graphbackend's change_events
// table. It never updates or deletes a row it has written; restores and
// replays read it but do not prune it (spec §4.3's "snapshots and journal
// entries themselves are NEVER deleted").
package journal

import (
	"context"
	"encoding/json"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphbackend"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
	"github.com/graphkeep/graphkeep/internal/ids"
)

// RecentChangesFilter is an alias for the backend's filter shape.
type RecentChangesFilter = graphbackend.RecentChangesFilter

// Stats is an alias for the backend's aggregate stats shape.
type Stats = graphbackend.ChangeStats

// backend is the subset of *graphbackend.Backend the journal needs. Kept as
// an interface so graphstore/journal tests can substitute an in-memory
// fake, per SPEC_FULL §8's "in-memory Graph Backend fake for unit tests."
type backend interface {
	AppendChangeEvent(ctx context.Context, e *entity.ChangeEvent) error
	GetEntityHistory(ctx context.Context, entityID string) ([]*entity.ChangeEvent, error)
	GetRecentChanges(ctx context.Context, f RecentChangesFilter) ([]*entity.ChangeEvent, error)
	GetChangesByTimeRange(ctx context.Context, from, to string) ([]*entity.ChangeEvent, error)
	GetSessionChanges(ctx context.Context, sessionID string) ([]*entity.ChangeEvent, error)
	GetStats(ctx context.Context) (*Stats, error)
}

// Journal is the Change Journal service.
type Journal struct {
	backend backend
	clock   *ids.Clock
}

// New constructs a Journal over the given backend.
func New(b backend, clock *ids.Clock) *Journal {
	return &Journal{backend: b, clock: clock}
}

// AppendInput carries everything Append needs to mint and persist one entry.
type AppendInput struct {
	Operation  entity.Operation
	EntityKind entity.EntityKind
	EntityID   string
	Before     any // marshaled to JSON if non-nil
	After      any // marshaled to JSON if non-nil
	SessionID  string
	UserID     string
	Source     entity.ChangeSource
	Metadata   entity.Metadata
}

// Append persists one Change Journal entry. Idempotent on event.id is
// satisfied trivially here since this package always mints a fresh id;
// callers never supply their own.
func (j *Journal) Append(ctx context.Context, in AppendInput) (*entity.ChangeEvent, error) {
	before, err := marshalState(in.Before)
	if err != nil {
		return nil, graphkeeperr.Wrap(graphkeeperr.Validation, err, "marshal before-state")
	}
	after, err := marshalState(in.After)
	if err != nil {
		return nil, graphkeeperr.Wrap(graphkeeperr.Validation, err, "marshal after-state")
	}

	now := j.clock.Now()
	event := &entity.ChangeEvent{
		ID:          ids.NewRandom(ids.PrefixChange),
		Operation:   in.Operation,
		EntityKind:  in.EntityKind,
		EntityID:    in.EntityID,
		BeforeState: before,
		AfterState:  after,
		Timestamp:   ids.FormatTimestamp(now),
		SessionID:   in.SessionID,
		UserID:      in.UserID,
		Source:      in.Source,
		Metadata:    in.Metadata,
	}
	if event.Source == "" {
		event.Source = entity.SourceAPI
	}
	if err := j.backend.AppendChangeEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func marshalState(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetEntityHistory returns entityID's ChangeEvents, newest first (spec §4.2).
func (j *Journal) GetEntityHistory(ctx context.Context, entityID string, limit int) ([]*entity.ChangeEvent, error) {
	events, err := j.backend.GetEntityHistory(ctx, entityID)
	if err != nil {
		return nil, err
	}
	reverse(events)
	return capEvents(events, limit), nil
}

// GetRecentChanges returns the most recent ChangeEvents, newest first,
// optionally filtered by operation.
func (j *Journal) GetRecentChanges(ctx context.Context, limit int, operations []entity.Operation) ([]*entity.ChangeEvent, error) {
	return j.backend.GetRecentChanges(ctx, RecentChangesFilter{Limit: limit, Operations: operations})
}

// GetChangesByTimeRange returns ChangeEvents in [from, to], ascending,
// inclusive bounds.
func (j *Journal) GetChangesByTimeRange(ctx context.Context, from, to string, limit int) ([]*entity.ChangeEvent, error) {
	events, err := j.backend.GetChangesByTimeRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return capEvents(events, limit), nil
}

// GetSessionChanges returns every ChangeEvent tagged with sessionID,
// ascending.
func (j *Journal) GetSessionChanges(ctx context.Context, sessionID string) ([]*entity.ChangeEvent, error) {
	return j.backend.GetSessionChanges(ctx, sessionID)
}

// GetStats aggregates totals for the Public API Facade's getStats operation.
func (j *Journal) GetStats(ctx context.Context) (*Stats, error) {
	return j.backend.GetStats(ctx)
}

func reverse(events []*entity.ChangeEvent) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}

func capEvents(events []*entity.ChangeEvent, limit int) []*entity.ChangeEvent {
	if limit > 0 && len(events) > limit {
		return events[:limit]
	}
	return events
}
