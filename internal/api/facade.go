// Package api implements the Public API Facade (spec §4.6/§6): the single
// in-process entry point every external transport (out of scope here per
// spec §1 — MCP tool shell, HTTP/SSE, CLI waiter) calls against the core.
// It does no work of its own beyond dispatch, input-shape translation, and
// error-kind normalization — every operation forwards straight to
// internal/graphstore, internal/journal, internal/snapshot, or
// internal/broker.
package api

import (
	"context"

	"github.com/graphkeep/graphkeep/internal/broker"
	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/eventbus"
	"github.com/graphkeep/graphkeep/internal/graphstore"
	"github.com/graphkeep/graphkeep/internal/journal"
	"github.com/graphkeep/graphkeep/internal/snapshot"
)

// Facade is the Public API Facade. It holds no state of its own; every
// field is a fully constructed collaborator.
type Facade struct {
	Store    *graphstore.Store
	Journal  *journal.Journal
	Snapshot *snapshot.Engine
	Broker   *broker.Broker
	Bus      *eventbus.Bus
}

// New wires a Facade over already-constructed collaborators. Callers (the
// daemon entry point) are responsible for opening the Graph Backend Adapter
// and constructing store/journal/snapshot/broker/bus before calling this.
func New(store *graphstore.Store, j *journal.Journal, snap *snapshot.Engine, b *broker.Broker, bus *eventbus.Bus) *Facade {
	return &Facade{Store: store, Journal: j, Snapshot: snap, Broker: b, Bus: bus}
}

// --- Component ---

func (f *Facade) CreateComponent(ctx context.Context, c *entity.Component) (*entity.Component, error) {
	return f.Store.CreateComponent(ctx, c)
}

func (f *Facade) GetComponent(ctx context.Context, id string) (*entity.Component, error) {
	return f.Store.GetComponent(ctx, id)
}

func (f *Facade) SearchComponents(ctx context.Context, filter graphstore.ComponentFilter) ([]*entity.Component, error) {
	return f.Store.SearchComponents(ctx, filter)
}

func (f *Facade) UpdateComponent(ctx context.Context, id string, patch *entity.Component) (*entity.Component, error) {
	return f.Store.UpdateComponent(ctx, id, patch)
}

func (f *Facade) DeleteComponent(ctx context.Context, id string) error {
	return f.Store.DeleteComponent(ctx, id)
}

func (f *Facade) CreateComponentsBulk(ctx context.Context, items []*entity.Component) ([]*entity.Component, error) {
	return f.Store.CreateComponentsBulk(ctx, items)
}

// --- Relationship ---

func (f *Facade) CreateRelationship(ctx context.Context, r *entity.Relationship) (*entity.Relationship, error) {
	return f.Store.CreateRelationship(ctx, r)
}

func (f *Facade) CreateRelationshipsBulk(ctx context.Context, items []*entity.Relationship) ([]*entity.Relationship, error) {
	return f.Store.CreateRelationshipsBulk(ctx, items)
}

func (f *Facade) GetComponentRelationships(ctx context.Context, componentID string, direction graphstore.RelationshipDirection) ([]graphstore.RelationshipEdge, error) {
	return f.Store.GetComponentRelationships(ctx, componentID, direction)
}

func (f *Facade) GetDependencyTree(ctx context.Context, rootID string, maxDepth int) ([]graphstore.DependencyPath, error) {
	return f.Store.GetDependencyTree(ctx, rootID, maxDepth)
}

func (f *Facade) DeleteRelationship(ctx context.Context, id string) error {
	return f.Store.DeleteRelationship(ctx, id)
}

// --- Task ---

func (f *Facade) CreateTask(ctx context.Context, t *entity.Task) (*entity.Task, error) {
	return f.Store.CreateTask(ctx, t)
}

func (f *Facade) GetTask(ctx context.Context, id string) (*entity.Task, error) {
	return f.Store.GetTask(ctx, id)
}

func (f *Facade) GetTasks(ctx context.Context, status entity.TaskStatus) ([]*entity.Task, error) {
	return f.Store.GetTasks(ctx, status)
}

func (f *Facade) SearchTasks(ctx context.Context, criteria graphstore.TaskSearchCriteria) ([]*entity.Task, error) {
	return f.Store.SearchTasks(ctx, criteria)
}

func (f *Facade) UpdateTaskStatus(ctx context.Context, id string, status entity.TaskStatus, progress *float64) (*entity.Task, error) {
	return f.Store.UpdateTaskStatus(ctx, id, status, progress)
}

func (f *Facade) CreateTasksBulk(ctx context.Context, items []*entity.Task) ([]*entity.Task, error) {
	return f.Store.CreateTasksBulk(ctx, items)
}

// --- Comment ---

func (f *Facade) CreateComment(ctx context.Context, c *entity.Comment) (*entity.Comment, error) {
	return f.Store.CreateComment(ctx, c)
}

func (f *Facade) GetNodeComments(ctx context.Context, nodeID string, limit int) ([]*entity.Comment, error) {
	return f.Store.GetNodeComments(ctx, nodeID, limit)
}

func (f *Facade) UpdateComment(ctx context.Context, id, content string, metadata entity.Metadata) (*entity.Comment, error) {
	return f.Store.UpdateComment(ctx, id, content, metadata)
}

func (f *Facade) DeleteComment(ctx context.Context, id string) error {
	return f.Store.DeleteComment(ctx, id)
}

func (f *Facade) GetComment(ctx context.Context, id string) (*entity.Comment, error) {
	return f.Store.GetComment(ctx, id)
}

// --- Analysis ---

func (f *Facade) GetCodebaseOverview(ctx context.Context, codebase string) ([]graphstore.CodebaseOverviewRow, error) {
	return f.Store.GetCodebaseOverview(ctx, codebase)
}
