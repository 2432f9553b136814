// Package graphbackendfake provides an in-memory stand-in for
// *graphbackend.Backend, used by internal/graphstore, internal/journal, and
// internal/snapshot's unit tests in place of a live Dolt connection, per
// SPEC_FULL §8's "in-memory Graph Backend fake for unit tests." It
// reproduces the real backend's observable contract (NotFound/Conflict
// error kinds, internal-edge filtering, RELATES_TO/HAS_COMMENT edge
// materialization) closely enough that tests written against it exercise
// the same call shapes graphstore/journal/snapshot use against the real
// thing.
package graphbackendfake

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphbackend"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
)

// Backend is the in-memory fake. The zero value is ready to use via New.
type Backend struct {
	mu sync.Mutex

	components    map[string]*entity.Component
	relationships map[string]*entity.Relationship
	relOrder      []string // insertion order, for deterministic listing
	tasks         map[string]*entity.Task
	comments      map[string]*entity.Comment
	snapshots     map[string]*entity.Snapshot
	events        []*entity.ChangeEvent
	seq           int
}

// New constructs an empty in-memory Backend.
func New() *Backend {
	return &Backend{
		components:    make(map[string]*entity.Component),
		relationships: make(map[string]*entity.Relationship),
		tasks:         make(map[string]*entity.Task),
		comments:      make(map[string]*entity.Comment),
		snapshots:     make(map[string]*entity.Snapshot),
	}
}

func clone[T any](v T) *T { c := v; return &c }

// --- Components ---

func (b *Backend) InsertComponent(ctx context.Context, c *entity.Component, now string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.components[c.ID]; ok {
		return graphkeeperr.New(graphkeeperr.Conflict, "component %s already exists", c.ID)
	}
	b.components[c.ID] = clone(*c)
	return nil
}

func (b *Backend) GetComponent(ctx context.Context, id string) (*entity.Component, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.components[id]
	if !ok {
		return nil, graphkeeperr.New(graphkeeperr.NotFound, "component %s not found", id)
	}
	return clone(*c), nil
}

func (b *Backend) UpdateComponent(ctx context.Context, c *entity.Component, now string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.components[c.ID]; !ok {
		return graphkeeperr.New(graphkeeperr.NotFound, "component %s not found", c.ID)
	}
	b.components[c.ID] = clone(*c)
	return nil
}

func (b *Backend) DeleteComponent(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.components[id]; !ok {
		return graphkeeperr.New(graphkeeperr.NotFound, "component %s not found", id)
	}
	delete(b.components, id)
	return nil
}

// InsertComponentTx ignores tx: WithTx below snapshots/restores the whole
// graph around fn's execution, so individual mutations need no transaction
// handle of their own.
func (b *Backend) InsertComponentTx(ctx context.Context, tx *sql.Tx, c *entity.Component, now string) error {
	return b.InsertComponent(ctx, c, now)
}

func (b *Backend) DeleteComponentTx(ctx context.Context, tx *sql.Tx, id string) error {
	return b.DeleteComponent(ctx, id)
}

func (b *Backend) ListComponents(ctx context.Context, kind, nameSubstr, codebase string) ([]*entity.Component, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*entity.Component
	for _, c := range b.components {
		if kind != "" && string(c.Kind) != kind {
			continue
		}
		if nameSubstr != "" && !strings.Contains(c.Name, nameSubstr) {
			continue
		}
		if codebase != "" && c.Codebase != codebase {
			continue
		}
		out = append(out, clone(*c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *Backend) CountComponents(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.components), nil
}

// --- Relationships ---

func (b *Backend) InsertRelationship(ctx context.Context, r *entity.Relationship, now string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relationships[r.ID] = clone(*r)
	b.relOrder = append(b.relOrder, r.ID)
	return nil
}

func (b *Backend) GetRelationship(ctx context.Context, id string) (*entity.Relationship, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.relationships[id]
	if !ok {
		return nil, graphkeeperr.New(graphkeeperr.NotFound, "relationship %s not found", id)
	}
	return clone(*r), nil
}

func (b *Backend) DeleteRelationship(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.relationships[id]; !ok {
		return graphkeeperr.New(graphkeeperr.NotFound, "relationship %s not found", id)
	}
	delete(b.relationships, id)
	return nil
}

func (b *Backend) DeleteRelationshipsByEndpoint(ctx context.Context, nodeID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, r := range b.relationships {
		if r.SourceID == nodeID || r.TargetID == nodeID {
			delete(b.relationships, id)
		}
	}
	return nil
}

func (b *Backend) InsertRelationshipTx(ctx context.Context, tx *sql.Tx, r *entity.Relationship, now string) error {
	return b.InsertRelationship(ctx, r, now)
}

func (b *Backend) DeleteRelationshipsByEndpointTx(ctx context.Context, tx *sql.Tx, nodeID string) error {
	return b.DeleteRelationshipsByEndpoint(ctx, nodeID)
}

func (b *Backend) ListComponentRelationships(ctx context.Context, componentID string) ([]*entity.Relationship, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*entity.Relationship
	for _, id := range b.relOrder {
		r, ok := b.relationships[id]
		if !ok {
			continue // deleted
		}
		if r.Type.Internal() {
			continue
		}
		if r.SourceID == componentID || r.TargetID == componentID {
			out = append(out, clone(*r))
		}
	}
	return out, nil
}

func (b *Backend) ListRelatedComponentIDs(ctx context.Context, taskID string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, id := range b.relOrder {
		r, ok := b.relationships[id]
		if !ok {
			continue
		}
		if r.Type == entity.RelRelatesTo && r.SourceID == taskID {
			out = append(out, r.TargetID)
		}
	}
	return out, nil
}

func (b *Backend) CountRelationships(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.relationships {
		if !r.Type.Internal() {
			n++
		}
	}
	return n, nil
}

// --- Tasks ---

func (b *Backend) InsertTask(ctx context.Context, t *entity.Task, now string, idFor func() string) error {
	b.mu.Lock()
	if _, ok := b.tasks[t.ID]; ok {
		b.mu.Unlock()
		return graphkeeperr.New(graphkeeperr.Conflict, "task %s already exists", t.ID)
	}
	stored := clone(*t)
	stored.RelatedComponentIDs = nil
	b.tasks[t.ID] = stored
	b.mu.Unlock()

	for _, componentID := range t.RelatedComponentIDs {
		rel := &entity.Relationship{ID: idFor(), Type: entity.RelRelatesTo, SourceID: t.ID, TargetID: componentID}
		if err := b.InsertRelationship(ctx, rel, now); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) InsertTaskTx(ctx context.Context, tx *sql.Tx, t *entity.Task, now string, idFor func() string) error {
	return b.InsertTask(ctx, t, now, idFor)
}

func (b *Backend) GetTask(ctx context.Context, id string) (*entity.Task, error) {
	b.mu.Lock()
	t, ok := b.tasks[id]
	if !ok {
		b.mu.Unlock()
		return nil, graphkeeperr.New(graphkeeperr.NotFound, "task %s not found", id)
	}
	out := clone(*t)
	b.mu.Unlock()

	related, err := b.ListRelatedComponentIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	out.RelatedComponentIDs = related
	return out, nil
}

func (b *Backend) UpdateTask(ctx context.Context, t *entity.Task, now string, idFor func() string) error {
	b.mu.Lock()
	if _, ok := b.tasks[t.ID]; !ok {
		b.mu.Unlock()
		return graphkeeperr.New(graphkeeperr.NotFound, "task %s not found", t.ID)
	}
	stored := clone(*t)
	stored.RelatedComponentIDs = nil
	b.tasks[t.ID] = stored
	for id, r := range b.relationships {
		if r.Type == entity.RelRelatesTo && r.SourceID == t.ID {
			delete(b.relationships, id)
		}
	}
	b.mu.Unlock()

	for _, componentID := range t.RelatedComponentIDs {
		rel := &entity.Relationship{ID: idFor(), Type: entity.RelRelatesTo, SourceID: t.ID, TargetID: componentID}
		if err := b.InsertRelationship(ctx, rel, now); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) DeleteTask(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tasks[id]; !ok {
		return graphkeeperr.New(graphkeeperr.NotFound, "task %s not found", id)
	}
	delete(b.tasks, id)
	return nil
}

func (b *Backend) SearchTasks(ctx context.Context, f graphbackend.TaskFilter) ([]*entity.Task, error) {
	b.mu.Lock()
	var matched []*entity.Task
	statusOK := func(s entity.TaskStatus) bool {
		if len(f.StatusList) == 0 {
			return true
		}
		for _, want := range f.StatusList {
			if want == s {
				return true
			}
		}
		return false
	}
	for _, t := range b.tasks {
		if !statusOK(t.Status) {
			continue
		}
		if f.ProgressMin != nil && t.Progress < *f.ProgressMin {
			continue
		}
		if f.ProgressMax != nil && t.Progress > *f.ProgressMax {
			continue
		}
		if f.RelatedComponentID != "" {
			found := false
			for id, r := range b.relationships {
				_ = id
				if r.Type == entity.RelRelatesTo && r.SourceID == t.ID && r.TargetID == f.RelatedComponentID {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		matched = append(matched, clone(*t))
	}
	b.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch f.OrderBy {
		case "name":
			less = matched[i].Name < matched[j].Name
		case "progress":
			less = matched[i].Progress < matched[j].Progress
		case "status":
			less = matched[i].Status < matched[j].Status
		default:
			less = matched[i].ID < matched[j].ID
		}
		if f.OrderDescending {
			return !less
		}
		return less
	})

	for _, t := range matched {
		related, err := b.ListRelatedComponentIDs(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		t.RelatedComponentIDs = related
	}

	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (b *Backend) CountTasksByStatus(ctx context.Context) (map[entity.TaskStatus]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[entity.TaskStatus]int)
	for _, t := range b.tasks {
		out[t.Status]++
	}
	return out, nil
}

// --- Comments ---

func (b *Backend) InsertComment(ctx context.Context, c *entity.Comment, now string, relID string) error {
	b.mu.Lock()
	if _, ok := b.comments[c.ID]; ok {
		b.mu.Unlock()
		return graphkeeperr.New(graphkeeperr.Conflict, "comment %s already exists", c.ID)
	}
	b.comments[c.ID] = clone(*c)
	b.mu.Unlock()

	rel := &entity.Relationship{ID: relID, Type: entity.RelHasComment, SourceID: c.ParentID, TargetID: c.ID}
	return b.InsertRelationship(ctx, rel, now)
}

func (b *Backend) GetComment(ctx context.Context, id string) (*entity.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.comments[id]
	if !ok {
		return nil, graphkeeperr.New(graphkeeperr.NotFound, "comment %s not found", id)
	}
	return clone(*c), nil
}

func (b *Backend) UpdateComment(ctx context.Context, c *entity.Comment, now string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.comments[c.ID]; !ok {
		return graphkeeperr.New(graphkeeperr.NotFound, "comment %s not found", c.ID)
	}
	b.comments[c.ID] = clone(*c)
	return nil
}

func (b *Backend) DeleteComment(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.comments[id]; !ok {
		return graphkeeperr.New(graphkeeperr.NotFound, "comment %s not found", id)
	}
	delete(b.comments, id)
	return nil
}

func (b *Backend) DeleteCommentTx(ctx context.Context, tx *sql.Tx, id string) error {
	return b.DeleteComment(ctx, id)
}

func (b *Backend) ListComments(ctx context.Context, parentID string) ([]*entity.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*entity.Comment
	for _, c := range b.comments {
		if c.ParentID == parentID {
			out = append(out, clone(*c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created < out[j].Created })
	return out, nil
}

func (b *Backend) ListAllComments(ctx context.Context) ([]*entity.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*entity.Comment
	for _, c := range b.comments {
		out = append(out, clone(*c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Change journal ---

func (b *Backend) AppendChangeEvent(ctx context.Context, e *entity.ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.events = append(b.events, clone(*e))
	return nil
}

func (b *Backend) GetEntityHistory(ctx context.Context, entityID string) ([]*entity.ChangeEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*entity.ChangeEvent
	for _, e := range b.events {
		if e.EntityID == entityID {
			out = append(out, clone(*e))
		}
	}
	return out, nil
}

func (b *Backend) GetRecentChanges(ctx context.Context, f graphbackend.RecentChangesFilter) ([]*entity.ChangeEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*entity.ChangeEvent
	for i := len(b.events) - 1; i >= 0; i-- {
		e := b.events[i]
		if len(f.Operations) > 0 && !containsOp(f.Operations, e.Operation) {
			continue
		}
		out = append(out, clone(*e))
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func containsOp(ops []entity.Operation, op entity.Operation) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

func (b *Backend) GetChangesByTimeRange(ctx context.Context, from, to string) ([]*entity.ChangeEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*entity.ChangeEvent
	for _, e := range b.events {
		if from != "" && e.Timestamp < from {
			continue
		}
		if to != "" && e.Timestamp > to {
			continue
		}
		out = append(out, clone(*e))
	}
	return out, nil
}

func (b *Backend) GetSessionChanges(ctx context.Context, sessionID string) ([]*entity.ChangeEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*entity.ChangeEvent
	for _, e := range b.events {
		if e.SessionID == sessionID {
			out = append(out, clone(*e))
		}
	}
	return out, nil
}

func (b *Backend) GetStats(ctx context.Context) (*graphbackend.ChangeStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	stats := &graphbackend.ChangeStats{ByOperation: map[entity.Operation]int{}, ByEntityKind: map[entity.EntityKind]int{}}
	for _, e := range b.events {
		stats.Total++
		stats.ByOperation[e.Operation]++
		stats.ByEntityKind[e.EntityKind]++
		if stats.OldestEventAt == "" || e.Timestamp < stats.OldestEventAt {
			stats.OldestEventAt = e.Timestamp
		}
		if e.Timestamp > stats.NewestEventAt {
			stats.NewestEventAt = e.Timestamp
		}
	}
	return stats, nil
}

// --- Snapshots ---

func (b *Backend) InsertSnapshot(ctx context.Context, s *entity.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots[s.ID] = clone(*s)
	return nil
}

func (b *Backend) GetSnapshot(ctx context.Context, id string) (*entity.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.snapshots[id]
	if !ok {
		return nil, graphkeeperr.New(graphkeeperr.NotFound, "snapshot %s not found", id)
	}
	return clone(*s), nil
}

func (b *Backend) ListSnapshots(ctx context.Context) ([]*entity.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*entity.Snapshot
	for _, s := range b.snapshots {
		meta := clone(*s)
		meta.Payload = ""
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

// TruncateGraph deletes every Component, Relationship, Task, and Comment,
// mirroring the real backend's scope (never touches change_events or
// snapshots).
func (b *Backend) TruncateGraph(ctx context.Context, tx *sql.Tx) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.components = make(map[string]*entity.Component)
	b.relationships = make(map[string]*entity.Relationship)
	b.relOrder = nil
	b.tasks = make(map[string]*entity.Task)
	b.comments = make(map[string]*entity.Comment)
	return nil
}

// graphSnapshot is a shallow copy of the mutable graph maps, sufficient for
// rollback because every mutation replaces a map entry's pointer rather than
// writing through it.
type graphSnapshot struct {
	components    map[string]*entity.Component
	relationships map[string]*entity.Relationship
	relOrder      []string
	tasks         map[string]*entity.Task
	comments      map[string]*entity.Comment
}

func (b *Backend) snapshotGraph() graphSnapshot {
	s := graphSnapshot{
		components:    make(map[string]*entity.Component, len(b.components)),
		relationships: make(map[string]*entity.Relationship, len(b.relationships)),
		relOrder:      append([]string(nil), b.relOrder...),
		tasks:         make(map[string]*entity.Task, len(b.tasks)),
		comments:      make(map[string]*entity.Comment, len(b.comments)),
	}
	for k, v := range b.components {
		s.components[k] = v
	}
	for k, v := range b.relationships {
		s.relationships[k] = v
	}
	for k, v := range b.tasks {
		s.tasks[k] = v
	}
	for k, v := range b.comments {
		s.comments[k] = v
	}
	return s
}

func (b *Backend) restoreGraph(s graphSnapshot) {
	b.components = s.components
	b.relationships = s.relationships
	b.relOrder = s.relOrder
	b.tasks = s.tasks
	b.comments = s.comments
}

// WithTx hands fn a nil *sql.Tx (no method on Backend dereferences it) and
// snapshots the graph maps first, restoring them if fn returns an error —
// enough to reproduce the real backend's all-or-nothing semantics for tests
// exercising bulk/cascade operations without a live transaction.
func (b *Backend) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	b.mu.Lock()
	snap := b.snapshotGraph()
	b.mu.Unlock()

	if err := fn(nil); err != nil {
		b.mu.Lock()
		b.restoreGraph(snap)
		b.mu.Unlock()
		return err
	}
	return nil
}
