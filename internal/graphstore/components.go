package graphstore

import (
	"context"
	"database/sql"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/eventbus"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
	"github.com/graphkeep/graphkeep/internal/ids"
)

const maxSearchResults = 100

// CreateComponent assigns a fresh id if absent, persists the Component, and
// journals CREATE_COMPONENT with the resulting afterState.
func (s *Store) CreateComponent(ctx context.Context, c *entity.Component) (*entity.Component, error) {
	if c.ID == "" {
		c.ID = ids.New(ids.PrefixComponent, c.Name, c.Description, "api", s.clock.Now(), 0)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.backend.GetComponent(ctx, c.ID); err == nil {
		return nil, graphkeeperr.New(graphkeeperr.Conflict, "component %s already exists", c.ID)
	}

	now := s.now()
	if err := s.backend.InsertComponent(ctx, c, now); err != nil {
		return nil, err
	}
	if _, err := s.journal.Append(ctx, journalCreateInput(ctx, entity.OpCreateComponent, entity.EntityComponent, c.ID, c)); err != nil {
		return nil, err
	}
	s.publish(eventbus.ComponentCreated, c)
	return c, nil
}

// GetComponent fetches a Component by id.
func (s *Store) GetComponent(ctx context.Context, id string) (*entity.Component, error) {
	return s.backend.GetComponent(ctx, id)
}

// ComponentFilter is searchComponents' recognized filter shape (spec §4.1).
type ComponentFilter struct {
	Kind           entity.ComponentKind
	NameSubstring  string
	Codebase       string
}

// SearchComponents returns up to 100 Components matching filter.
func (s *Store) SearchComponents(ctx context.Context, filter ComponentFilter) ([]*entity.Component, error) {
	results, err := s.backend.ListComponents(ctx, string(filter.Kind), filter.NameSubstring, filter.Codebase)
	if err != nil {
		return nil, err
	}
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}
	return results, nil
}

// UpdateComponent merges patch into the existing Component (id is immutable)
// and journals UPDATE_COMPONENT with before/after.
func (s *Store) UpdateComponent(ctx context.Context, id string, patch *entity.Component) (*entity.Component, error) {
	before, err := s.backend.GetComponent(ctx, id)
	if err != nil {
		return nil, err
	}
	after := *before
	applyComponentPatch(&after, patch)
	if err := after.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.backend.UpdateComponent(ctx, &after, now); err != nil {
		return nil, err
	}
	if _, err := s.journal.Append(ctx, journalUpdateInput(ctx, entity.OpUpdateComponent, entity.EntityComponent, id, before, &after)); err != nil {
		return nil, err
	}
	s.publish(eventbus.ComponentUpdated, &after)
	return &after, nil
}

// applyComponentPatch overlays patch's non-zero fields onto dst. A patch
// field is considered "set" when non-zero; callers that need to explicitly
// clear a field should pass it through updateComponent's caller layer
// (the Public API Facade) as an empty-string sentinel already resolved.
func applyComponentPatch(dst, patch *entity.Component) {
	if patch.Kind != "" {
		dst.Kind = patch.Kind
	}
	if patch.Name != "" {
		dst.Name = patch.Name
	}
	if patch.Description != "" {
		dst.Description = patch.Description
	}
	if patch.Path != "" {
		dst.Path = patch.Path
	}
	if patch.Codebase != "" {
		dst.Codebase = patch.Codebase
	}
	if patch.Metadata != nil {
		if dst.Metadata == nil {
			dst.Metadata = entity.Metadata{}
		}
		for k, v := range patch.Metadata {
			dst.Metadata[k] = v
		}
	}
}

// DeleteComponent removes a Component, cascading incident Relationships and
// Comments in the same transaction. Per spec §4.1, cascaded edges/comments
// are not journaled individually — only DELETE_COMPONENT is.
func (s *Store) DeleteComponent(ctx context.Context, id string) error {
	before, err := s.backend.GetComponent(ctx, id)
	if err != nil {
		return err
	}

	comments, err := s.backend.ListComments(ctx, id)
	if err != nil {
		return err
	}

	if err := s.backend.WithTx(ctx, func(tx *sql.Tx) error {
		for _, comment := range comments {
			if err := s.backend.DeleteCommentTx(ctx, tx, comment.ID); err != nil {
				return err
			}
		}
		if err := s.backend.DeleteRelationshipsByEndpointTx(ctx, tx, id); err != nil {
			return err
		}
		return s.backend.DeleteComponentTx(ctx, tx, id)
	}); err != nil {
		return err
	}

	if _, err := s.journal.Append(ctx, journalDeleteInput(ctx, entity.OpDeleteComponent, entity.EntityComponent, id, before)); err != nil {
		return err
	}
	s.publish(eventbus.ComponentDeleted, before)
	return nil
}

// CodebaseOverviewRow is one {kind, count} row from getCodebaseOverview.
type CodebaseOverviewRow struct {
	Kind  entity.ComponentKind `json:"kind"`
	Count int                  `json:"count"`
}

// GetCodebaseOverview returns {kind, count} rows sorted by count descending.
func (s *Store) GetCodebaseOverview(ctx context.Context, codebase string) ([]CodebaseOverviewRow, error) {
	components, err := s.backend.ListComponents(ctx, "", "", codebase)
	if err != nil {
		return nil, err
	}
	counts := make(map[entity.ComponentKind]int)
	for _, c := range components {
		counts[c.Kind]++
	}
	rows := make([]CodebaseOverviewRow, 0, len(counts))
	for kind, count := range counts {
		rows = append(rows, CodebaseOverviewRow{Kind: kind, Count: count})
	}
	sortOverviewRows(rows)
	return rows, nil
}

func sortOverviewRows(rows []CodebaseOverviewRow) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].Count > rows[j-1].Count; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}
