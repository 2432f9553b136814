// Package graphstore implements the Graph Store (spec §4.1): the core
// CRUD/search/traversal operations over Components, Relationships, Tasks,
// and Comments. Every mutation journals its effect through internal/journal
// and publishes a notification through internal/eventbus, split into the
// three dedicated packages SPEC_FULL's component design names (C4/C5/C8).
package graphstore

import (
	"context"
	"database/sql"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/eventbus"
	"github.com/graphkeep/graphkeep/internal/graphbackend"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
	"github.com/graphkeep/graphkeep/internal/ids"
	"github.com/graphkeep/graphkeep/internal/journal"
)

// backend is the subset of *graphbackend.Backend the Graph Store needs.
// Declared as an interface so unit tests can substitute an in-memory fake
// (SPEC_FULL §8) instead of a real Dolt connection.
type backend interface {
	InsertComponent(ctx context.Context, c *entity.Component, now string) error
	InsertComponentTx(ctx context.Context, tx *sql.Tx, c *entity.Component, now string) error
	GetComponent(ctx context.Context, id string) (*entity.Component, error)
	UpdateComponent(ctx context.Context, c *entity.Component, now string) error
	DeleteComponent(ctx context.Context, id string) error
	DeleteComponentTx(ctx context.Context, tx *sql.Tx, id string) error
	ListComponents(ctx context.Context, kind, nameSubstr, codebase string) ([]*entity.Component, error)
	CountComponents(ctx context.Context) (int, error)

	InsertRelationship(ctx context.Context, r *entity.Relationship, now string) error
	InsertRelationshipTx(ctx context.Context, tx *sql.Tx, r *entity.Relationship, now string) error
	GetRelationship(ctx context.Context, id string) (*entity.Relationship, error)
	DeleteRelationship(ctx context.Context, id string) error
	DeleteRelationshipsByEndpoint(ctx context.Context, nodeID string) error
	DeleteRelationshipsByEndpointTx(ctx context.Context, tx *sql.Tx, nodeID string) error
	ListComponentRelationships(ctx context.Context, componentID string) ([]*entity.Relationship, error)
	ListRelatedComponentIDs(ctx context.Context, taskID string) ([]string, error)
	CountRelationships(ctx context.Context) (int, error)

	InsertTask(ctx context.Context, t *entity.Task, now string, idFor func() string) error
	InsertTaskTx(ctx context.Context, tx *sql.Tx, t *entity.Task, now string, idFor func() string) error
	GetTask(ctx context.Context, id string) (*entity.Task, error)
	UpdateTask(ctx context.Context, t *entity.Task, now string, idFor func() string) error
	DeleteTask(ctx context.Context, id string) error
	SearchTasks(ctx context.Context, f graphbackend.TaskFilter) ([]*entity.Task, error)
	CountTasksByStatus(ctx context.Context) (map[entity.TaskStatus]int, error)

	InsertComment(ctx context.Context, c *entity.Comment, now string, relID string) error
	GetComment(ctx context.Context, id string) (*entity.Comment, error)
	UpdateComment(ctx context.Context, c *entity.Comment, now string) error
	DeleteComment(ctx context.Context, id string) error
	DeleteCommentTx(ctx context.Context, tx *sql.Tx, id string) error
	ListComments(ctx context.Context, parentID string) ([]*entity.Comment, error)

	WithTx(ctx context.Context, fn func(*sql.Tx) error) error
}

// Store is the Graph Store service.
type Store struct {
	backend backend
	journal *journal.Journal
	bus     *eventbus.Bus
	clock   *ids.Clock
}

// New constructs a Store over the given backend, journal, and event bus.
func New(b backend, j *journal.Journal, bus *eventbus.Bus, clock *ids.Clock) *Store {
	return &Store{backend: b, journal: j, bus: bus, clock: clock}
}

func (s *Store) now() string { return ids.FormatTimestamp(s.clock.Now()) }

func (s *Store) publish(name eventbus.Name, payload any) {
	if s.bus != nil {
		s.bus.Publish(name, payload)
	}
}

// existsNode reports whether id resolves to a Component or Task, used to
// validate Comment/Relationship endpoints without assuming a single node
// table.
func (s *Store) existsNode(ctx context.Context, id string) bool {
	if _, err := s.backend.GetComponent(ctx, id); err == nil {
		return true
	}
	if _, err := s.backend.GetTask(ctx, id); err == nil {
		return true
	}
	return false
}
