package graphstore

import (
	"context"
	"database/sql"

	"golang.org/x/sync/errgroup"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/eventbus"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
	"github.com/graphkeep/graphkeep/internal/ids"
)

// validateConcurrently runs validate over every item using a bounded
// errgroup fan-out (SPEC_FULL §5), before any item is persisted — bulk
// validation errors never leave a partial mutation behind.
func validateConcurrently[T any](items []T, validate func(T) error) error {
	g := new(errgroup.Group)
	g.SetLimit(8)
	for _, item := range items {
		item := item
		g.Go(func() error { return validate(item) })
	}
	return g.Wait()
}

// CreateComponentsBulk persists every Component in one transaction:
// all-or-nothing. A conflicting id or a mid-batch insert failure rolls back
// every prior insert in the batch, so no partial batch is ever left
// persisted. On success each item is journaled under
// CREATE_COMPONENTS_BULK with {bulkOperation:true, totalCount:N}.
func (s *Store) CreateComponentsBulk(ctx context.Context, items []*entity.Component) ([]*entity.Component, error) {
	for _, c := range items {
		if c.ID == "" {
			c.ID = ids.New(ids.PrefixComponent, c.Name, c.Description, "api", s.clock.Now(), 0)
		}
	}
	if err := validateConcurrently(items, func(c *entity.Component) error { return c.Validate() }); err != nil {
		return nil, err
	}

	now := s.now()
	for _, c := range items {
		if _, err := s.backend.GetComponent(ctx, c.ID); err == nil {
			return nil, graphkeeperr.New(graphkeeperr.Conflict, "component %s already exists", c.ID)
		}
	}
	if err := s.backend.WithTx(ctx, func(tx *sql.Tx) error {
		for _, c := range items {
			if err := s.backend.InsertComponentTx(ctx, tx, c, now); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	for _, c := range items {
		if _, err := s.journal.Append(ctx, journalBulkInput(ctx, entity.OpCreateComponentsBulk, entity.EntityComponent, c.ID, c, len(items))); err != nil {
			return nil, err
		}
	}
	s.publish(eventbus.ComponentsBulkCreated, eventbus.BulkPayload{Items: items, Count: len(items)})
	return items, nil
}

// CreateRelationshipsBulk persists every Relationship in one transaction:
// all-or-nothing. Both endpoints of each edge must already exist.
func (s *Store) CreateRelationshipsBulk(ctx context.Context, items []*entity.Relationship) ([]*entity.Relationship, error) {
	if err := validateConcurrently(items, func(r *entity.Relationship) error { return r.Validate() }); err != nil {
		return nil, err
	}
	for _, r := range items {
		if !s.existsNode(ctx, r.SourceID) {
			return nil, graphkeeperr.New(graphkeeperr.NotFound, "relationship source %s not found", r.SourceID)
		}
		if !s.existsNode(ctx, r.TargetID) {
			return nil, graphkeeperr.New(graphkeeperr.NotFound, "relationship target %s not found", r.TargetID)
		}
		if r.ID == "" {
			r.ID = ids.NewRandom(ids.PrefixRel)
		}
	}

	now := s.now()
	if err := s.backend.WithTx(ctx, func(tx *sql.Tx) error {
		for _, r := range items {
			if err := s.backend.InsertRelationshipTx(ctx, tx, r, now); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	for _, r := range items {
		if _, err := s.journal.Append(ctx, journalBulkInput(ctx, entity.OpCreateRelationshipsBulk, entity.EntityRelationship, r.ID, r, len(items))); err != nil {
			return nil, err
		}
	}
	s.publish(eventbus.RelationshipsBulkCreated, eventbus.BulkPayload{Items: items, Count: len(items)})
	return items, nil
}

// CreateTasksBulk persists every Task (plus RELATES_TO edges) in one
// transaction: all-or-nothing. Every id in RelatedComponentIDs must already
// resolve to a Component or Task, the same existence check CreateTask
// applies to a single Task.
func (s *Store) CreateTasksBulk(ctx context.Context, items []*entity.Task) ([]*entity.Task, error) {
	for _, t := range items {
		if t.ID == "" {
			t.ID = ids.New(ids.PrefixTask, t.Name, t.Description, "api", s.clock.Now(), 0)
		}
		if t.Status == "" {
			t.Status = entity.StatusTODO
		}
	}
	if err := validateConcurrently(items, func(t *entity.Task) error { return t.Validate() }); err != nil {
		return nil, err
	}
	for _, t := range items {
		for _, componentID := range t.RelatedComponentIDs {
			if !s.existsNode(ctx, componentID) {
				return nil, graphkeeperr.New(graphkeeperr.NotFound, "related component %s not found", componentID)
			}
		}
	}

	now := s.now()
	if err := s.backend.WithTx(ctx, func(tx *sql.Tx) error {
		for _, t := range items {
			if err := s.backend.InsertTaskTx(ctx, tx, t, now, func() string { return ids.NewRandom(ids.PrefixRel) }); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	for _, t := range items {
		if _, err := s.journal.Append(ctx, journalBulkInput(ctx, entity.OpCreateTasksBulk, entity.EntityTask, t.ID, t, len(items))); err != nil {
			return nil, err
		}
	}
	s.publish(eventbus.TasksBulkCreated, eventbus.BulkPayload{Items: items, Count: len(items)})
	return items, nil
}
