package graphstore

import (
	"context"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
	"github.com/graphkeep/graphkeep/internal/ids"
)

// CreateComment attaches a Comment to nodeID, which must resolve to an
// existing Component or Task.
func (s *Store) CreateComment(ctx context.Context, c *entity.Comment) (*entity.Comment, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if !s.existsNode(ctx, c.ParentID) {
		return nil, graphkeeperr.New(graphkeeperr.NotFound, "comment parent %s not found", c.ParentID)
	}
	if c.ID == "" {
		c.ID = ids.NewRandom(ids.PrefixComment)
	}

	now := s.now()
	c.Created = now
	if err := s.backend.InsertComment(ctx, c, now, ids.NewRandom(ids.PrefixRel)); err != nil {
		return nil, err
	}
	if _, err := s.journal.Append(ctx, journalCreateInput(ctx, entity.OpCreateComment, entity.EntityComment, c.ID, c)); err != nil {
		return nil, err
	}
	return c, nil
}

// GetComment fetches one Comment by id.
func (s *Store) GetComment(ctx context.Context, id string) (*entity.Comment, error) {
	return s.backend.GetComment(ctx, id)
}

// GetNodeComments returns up to limit Comments attached to nodeID, newest
// first.
func (s *Store) GetNodeComments(ctx context.Context, nodeID string, limit int) ([]*entity.Comment, error) {
	comments, err := s.backend.ListComments(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	reverseComments(comments)
	if limit > 0 && len(comments) > limit {
		comments = comments[:limit]
	}
	return comments, nil
}

func reverseComments(comments []*entity.Comment) {
	for i, j := 0, len(comments)-1; i < j; i, j = i+1, j-1 {
		comments[i], comments[j] = comments[j], comments[i]
	}
}

// UpdateComment overwrites a Comment's content/metadata and journals
// UPDATE_COMMENT with before/after.
func (s *Store) UpdateComment(ctx context.Context, id string, content string, metadata entity.Metadata) (*entity.Comment, error) {
	before, err := s.backend.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	after := *before
	if content != "" {
		after.Content = content
	}
	if metadata != nil {
		after.Metadata = metadata
	}
	if err := after.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	after.Updated = now
	if err := s.backend.UpdateComment(ctx, &after, now); err != nil {
		return nil, err
	}
	_, err = s.journal.Append(ctx, journalUpdateInput(ctx, entity.OpUpdateComment, entity.EntityComment, id, before, &after))
	return &after, err
}

// DeleteComment removes a Comment and journals DELETE_COMMENT.
func (s *Store) DeleteComment(ctx context.Context, id string) error {
	before, err := s.backend.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.backend.DeleteComment(ctx, id); err != nil {
		return err
	}
	_, err = s.journal.Append(ctx, journalDeleteInput(ctx, entity.OpDeleteComment, entity.EntityComment, id, before))
	return err
}
