package graphstore

import (
	"context"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/eventbus"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
	"github.com/graphkeep/graphkeep/internal/ids"
)

// CreateRelationship validates that both endpoints exist, persists the
// edge, and journals CREATE_RELATIONSHIP. Temporal fields pass through
// verbatim.
func (s *Store) CreateRelationship(ctx context.Context, r *entity.Relationship) (*entity.Relationship, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if !s.existsNode(ctx, r.SourceID) {
		return nil, graphkeeperr.New(graphkeeperr.NotFound, "relationship source %s not found", r.SourceID)
	}
	if !s.existsNode(ctx, r.TargetID) {
		return nil, graphkeeperr.New(graphkeeperr.NotFound, "relationship target %s not found", r.TargetID)
	}
	if r.ID == "" {
		r.ID = ids.NewRandom(ids.PrefixRel)
	}

	now := s.now()
	if err := s.backend.InsertRelationship(ctx, r, now); err != nil {
		return nil, err
	}
	if _, err := s.journal.Append(ctx, journalCreateInput(ctx, entity.OpCreateRelationship, entity.EntityRelationship, r.ID, r)); err != nil {
		return nil, err
	}
	s.publish(eventbus.RelationshipCreated, r)
	return r, nil
}

// RelationshipDirection is getComponentRelationships' direction selector.
type RelationshipDirection string

const (
	DirectionIncoming RelationshipDirection = "incoming"
	DirectionOutgoing RelationshipDirection = "outgoing"
	DirectionBoth     RelationshipDirection = "both"
)

// RelationshipEdge is one getComponentRelationships result row.
type RelationshipEdge struct {
	Relationship *entity.Relationship  `json:"relationship"`
	NeighborID   string                `json:"neighbor"`
	Direction    RelationshipDirection `json:"direction"`
}

// GetComponentRelationships returns every user-visible edge touching
// componentID in the requested direction(s). Internal HAS_COMMENT/
// RELATES_TO edges are always excluded (invariant 9).
func (s *Store) GetComponentRelationships(ctx context.Context, componentID string, direction RelationshipDirection) ([]RelationshipEdge, error) {
	edges, err := s.backend.ListComponentRelationships(ctx, componentID)
	if err != nil {
		return nil, err
	}

	var out []RelationshipEdge
	for _, r := range edges {
		outgoing := r.SourceID == componentID
		incoming := r.TargetID == componentID
		switch direction {
		case DirectionOutgoing:
			if outgoing {
				out = append(out, RelationshipEdge{Relationship: r, NeighborID: r.TargetID, Direction: DirectionOutgoing})
			}
		case DirectionIncoming:
			if incoming {
				out = append(out, RelationshipEdge{Relationship: r, NeighborID: r.SourceID, Direction: DirectionIncoming})
			}
		default: // both
			if outgoing {
				out = append(out, RelationshipEdge{Relationship: r, NeighborID: r.TargetID, Direction: DirectionOutgoing})
			}
			if incoming && r.SourceID != r.TargetID {
				out = append(out, RelationshipEdge{Relationship: r, NeighborID: r.SourceID, Direction: DirectionIncoming})
			}
		}
	}
	return out, nil
}

// DependencyPath is one path of DEPENDS_ON edges from getDependencyTree.
type DependencyPath struct {
	ComponentIDs []string `json:"componentIds"`
}

// GetDependencyTree returns every DEPENDS_ON path from rootID up to
// maxDepth edges deep (default 3). No cycle suppression; the depth bound
// alone prevents infinite expansion.
func (s *Store) GetDependencyTree(ctx context.Context, rootID string, maxDepth int) ([]DependencyPath, error) {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	var paths []DependencyPath
	s.walkDependencies(ctx, rootID, []string{rootID}, maxDepth, &paths)
	return paths, nil
}

func (s *Store) walkDependencies(ctx context.Context, nodeID string, path []string, remainingDepth int, out *[]DependencyPath) {
	edges, err := s.backend.ListComponentRelationships(ctx, nodeID)
	if err != nil {
		return
	}
	extended := false
	if remainingDepth > 0 {
		for _, e := range edges {
			if e.Type != entity.RelDependsOn || e.SourceID != nodeID {
				continue
			}
			extended = true
			nextPath := append(append([]string{}, path...), e.TargetID)
			s.walkDependencies(ctx, e.TargetID, nextPath, remainingDepth-1, out)
		}
	}
	if !extended {
		*out = append(*out, DependencyPath{ComponentIDs: path})
	}
}

// DeleteRelationship removes an edge. Used directly by the Public API
// Facade; replay's DELETE_RELATIONSHIP handling treats a NotFound result as
// a soft failure and continues (spec §4.3).
func (s *Store) DeleteRelationship(ctx context.Context, id string) error {
	r, err := s.backend.GetRelationship(ctx, id)
	if err != nil {
		return err
	}
	if err := s.backend.DeleteRelationship(ctx, id); err != nil {
		return err
	}
	_, err = s.journal.Append(ctx, journalDeleteInput(ctx, entity.OpDeleteRelationship, entity.EntityRelationship, id, r))
	return err
}
