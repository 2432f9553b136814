// Package snapshot implements the Snapshot Engine (spec §4.3):
// createSnapshot/listSnapshots/restoreFromSnapshot/replayToTimestamp. It
// operates on the Graph Backend directly for capture/restore (so a restore
// never re-journals entries that already happened), and through
// internal/graphstore for replay (so replayed mutations go through the same
// validation and journaling path as a live write, tagged
// entity.SourceReplay).
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphbackend"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
	"github.com/graphkeep/graphkeep/internal/ids"
)

// backend is the subset of *graphbackend.Backend the Snapshot Engine needs
// for capture/restore. Kept as an interface for the in-memory test fake.
type backend interface {
	ListComponents(ctx context.Context, kind, nameSubstr, codebase string) ([]*entity.Component, error)
	ListComponentRelationships(ctx context.Context, componentID string) ([]*entity.Relationship, error)
	InsertComponent(ctx context.Context, c *entity.Component, now string) error
	InsertRelationship(ctx context.Context, r *entity.Relationship, now string) error
	InsertTask(ctx context.Context, t *entity.Task, now string, idFor func() string) error
	InsertComment(ctx context.Context, c *entity.Comment, now string, relID string) error

	SearchTasks(ctx context.Context, f graphbackend.TaskFilter) ([]*entity.Task, error)
	ListAllComments(ctx context.Context) ([]*entity.Comment, error)

	InsertSnapshot(ctx context.Context, s *entity.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*entity.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]*entity.Snapshot, error)
	TruncateGraph(ctx context.Context, tx *sql.Tx) error

	WithTx(ctx context.Context, fn func(*sql.Tx) error) error
}

// replayStore is the subset of *graphstore.Store that replayToTimestamp
// drives, per the operation-to-store-call mapping table (spec §4.3).
type replayStore interface {
	CreateComponent(ctx context.Context, c *entity.Component) (*entity.Component, error)
	UpdateComponent(ctx context.Context, id string, patch *entity.Component) (*entity.Component, error)
	DeleteComponent(ctx context.Context, id string) error
	CreateRelationship(ctx context.Context, r *entity.Relationship) (*entity.Relationship, error)
	DeleteRelationship(ctx context.Context, id string) error
	CreateTask(ctx context.Context, t *entity.Task) (*entity.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status entity.TaskStatus, progress *float64) (*entity.Task, error)
	CreateComment(ctx context.Context, c *entity.Comment) (*entity.Comment, error)
	UpdateComment(ctx context.Context, id string, content string, metadata entity.Metadata) (*entity.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

// journalReader is the subset of *journal.Journal replayToTimestamp reads
// from to find the entries to apply.
type journalReader interface {
	GetChangesByTimeRange(ctx context.Context, from, to string, limit int) ([]*entity.ChangeEvent, error)
}

// Engine is the Snapshot Engine service.
type Engine struct {
	backend backend
	store   replayStore
	journal journalReader
	clock   *ids.Clock
}

// New constructs an Engine.
func New(b backend, store replayStore, j journalReader, clock *ids.Clock) *Engine {
	return &Engine{backend: b, store: store, journal: j, clock: clock}
}

// CreateSnapshot captures every Component, Task, Comment, and user-visible
// Relationship into a GraphPayload and persists it.
func (e *Engine) CreateSnapshot(ctx context.Context, name, description string) (*entity.Snapshot, error) {
	payload, err := e.captureGraph(ctx)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, graphkeeperr.Wrap(graphkeeperr.Internal, err, "encode snapshot payload")
	}

	s := &entity.Snapshot{
		ID:          ids.NewRandom(ids.PrefixSnapshot),
		Name:        name,
		Description: description,
		Timestamp:   ids.FormatTimestamp(e.clock.Now()),
		Payload:     string(encoded),
	}
	if err := e.backend.InsertSnapshot(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (e *Engine) captureGraph(ctx context.Context) (*entity.GraphPayload, error) {
	components, err := e.backend.ListComponents(ctx, "", "", "")
	if err != nil {
		return nil, err
	}
	tasks, err := e.backend.SearchTasks(ctx, graphbackend.TaskFilter{})
	if err != nil {
		return nil, err
	}
	comments, err := e.backend.ListAllComments(ctx)
	if err != nil {
		return nil, err
	}

	var relationships []*entity.Relationship
	seen := make(map[string]bool)
	for _, c := range components {
		edges, err := e.backend.ListComponentRelationships(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range edges {
			if !seen[r.ID] {
				seen[r.ID] = true
				relationships = append(relationships, r)
			}
		}
	}

	return &entity.GraphPayload{
		Components:    components,
		Tasks:         tasks,
		Comments:      comments,
		Relationships: relationships,
	}, nil
}

// ListSnapshots returns every Snapshot's metadata, payload omitted.
func (e *Engine) ListSnapshots(ctx context.Context) ([]*entity.Snapshot, error) {
	return e.backend.ListSnapshots(ctx)
}

// GetSnapshot fetches one Snapshot, payload included — used by callers (the
// `snapshot export` subcommand) that need the captured graph itself rather
// than just its metadata.
func (e *Engine) GetSnapshot(ctx context.Context, id string) (*entity.Snapshot, error) {
	return e.backend.GetSnapshot(ctx, id)
}

// DecodePayload unmarshals a Snapshot's stored JSON payload into a
// GraphPayload.
func DecodePayload(s *entity.Snapshot) (*entity.GraphPayload, error) {
	var payload entity.GraphPayload
	if err := json.Unmarshal([]byte(s.Payload), &payload); err != nil {
		return nil, graphkeeperr.Wrap(graphkeeperr.Internal, err, "decode snapshot payload")
	}
	return &payload, nil
}

// RestoreResult reports the counts restoreFromSnapshot applied (or would
// apply, for a dry run).
type RestoreResult struct {
	Components    int
	Tasks         int
	Comments      int
	Relationships int
	DryRun        bool
}

// RestoreFromSnapshot atomically deletes all non-journal, non-snapshot
// entities, then re-creates Components, Tasks, Comments, then Relationships — in that
// order, so every edge's endpoints already exist by the time it is
// inserted. A dry run only counts what would be restored.
func (e *Engine) RestoreFromSnapshot(ctx context.Context, snapshotID string, dryRun bool) (*RestoreResult, error) {
	s, err := e.backend.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	var payload entity.GraphPayload
	if err := json.Unmarshal([]byte(s.Payload), &payload); err != nil {
		return nil, graphkeeperr.Wrap(graphkeeperr.Internal, err, "decode snapshot payload")
	}

	result := &RestoreResult{
		Components:    len(payload.Components),
		Tasks:         len(payload.Tasks),
		Comments:      len(payload.Comments),
		Relationships: len(payload.Relationships),
		DryRun:        dryRun,
	}
	if dryRun {
		return result, nil
	}

	if err := e.backend.WithTx(ctx, func(tx *sql.Tx) error {
		return e.backend.TruncateGraph(ctx, tx)
	}); err != nil {
		return nil, err
	}

	now := ids.FormatTimestamp(e.clock.Now())
	for _, c := range payload.Components {
		if err := e.backend.InsertComponent(ctx, c, now); err != nil {
			return nil, err
		}
	}
	for _, t := range payload.Tasks {
		if err := e.backend.InsertTask(ctx, t, now, func() string { return ids.NewRandom(ids.PrefixRel) }); err != nil {
			return nil, err
		}
	}
	for _, c := range payload.Comments {
		if err := e.backend.InsertComment(ctx, c, now, ids.NewRandom(ids.PrefixRel)); err != nil {
			return nil, err
		}
	}
	for _, r := range payload.Relationships {
		if err := e.backend.InsertRelationship(ctx, r, now); err != nil {
			return nil, err
		}
	}
	return result, nil
}
