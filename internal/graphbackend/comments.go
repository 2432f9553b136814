package graphbackend

import (
	"context"
	"database/sql"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
)

// InsertComment persists a Comment row and its HAS_COMMENT edge from the
// parent node.
func (b *Backend) InsertComment(ctx context.Context, c *entity.Comment, now string, relID string) error {
	meta, err := encodeMetadata(c.Metadata)
	if err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Validation, err, "encode comment metadata")
	}
	_, err = b.execContext(ctx, `
		INSERT INTO comments (id, parent_id, content, author, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ParentID, c.Content, c.Author, meta, now,
	)
	if err != nil {
		return err
	}
	rel := &entity.Relationship{ID: relID, Type: entity.RelHasComment, SourceID: c.ParentID, TargetID: c.ID}
	return b.InsertRelationship(ctx, rel, now)
}

// GetComment fetches one Comment by id.
func (b *Backend) GetComment(ctx context.Context, id string) (*entity.Comment, error) {
	var c entity.Comment
	var author, meta sql.NullString
	var updated sql.NullString
	err := b.queryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&c.ID, &c.ParentID, &c.Content, &author, &meta, &c.Created, &updated)
	}, `SELECT id, parent_id, content, author, metadata, created_at, updated_at FROM comments WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, graphkeeperr.New(graphkeeperr.NotFound, "comment %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	c.Author, c.Updated = author.String, updated.String
	if c.Metadata, err = decodeMetadata(meta); err != nil {
		return nil, graphkeeperr.Wrap(graphkeeperr.Internal, err, "decode comment metadata")
	}
	return &c, nil
}

// UpdateComment overwrites a Comment's content/metadata.
func (b *Backend) UpdateComment(ctx context.Context, c *entity.Comment, now string) error {
	meta, err := encodeMetadata(c.Metadata)
	if err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Validation, err, "encode comment metadata")
	}
	res, err := b.execContext(ctx, `UPDATE comments SET content=?, metadata=?, updated_at=? WHERE id=?`,
		c.Content, meta, now, c.ID,
	)
	if err != nil {
		return err
	}
	return requireRowsAffected(res, "comment", c.ID)
}

// DeleteComment removes a Comment row and its HAS_COMMENT edge.
func (b *Backend) DeleteComment(ctx context.Context, id string) error {
	res, err := b.execContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRowsAffected(res, "comment", id); err != nil {
		return err
	}
	_, err = b.execContext(ctx, `DELETE FROM relationships WHERE target_id = ? AND type = ?`, id, string(entity.RelHasComment))
	return err
}

// DeleteCommentTx is DeleteComment scoped to an already-open transaction,
// used when cascading a Component delete.
func (b *Backend) DeleteCommentTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := execTx(ctx, tx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRowsAffected(res, "comment", id); err != nil {
		return err
	}
	_, err = execTx(ctx, tx, `DELETE FROM relationships WHERE target_id = ? AND type = ?`, id, string(entity.RelHasComment))
	return err
}

// ListComments returns every Comment attached to parentID, oldest first.
func (b *Backend) ListComments(ctx context.Context, parentID string) ([]*entity.Comment, error) {
	rows, err := b.queryContext(ctx, `
		SELECT id, parent_id, content, author, metadata, created_at, updated_at
		FROM comments WHERE parent_id = ? ORDER BY created_at ASC`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComments(rows)
}

// ListAllComments returns every Comment in the graph, oldest first. Used by
// the Snapshot Engine to capture the full graph.
func (b *Backend) ListAllComments(ctx context.Context) ([]*entity.Comment, error) {
	rows, err := b.queryContext(ctx, `
		SELECT id, parent_id, content, author, metadata, created_at, updated_at
		FROM comments ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComments(rows)
}

func scanComments(rows *sql.Rows) ([]*entity.Comment, error) {
	var out []*entity.Comment
	for rows.Next() {
		var c entity.Comment
		var author, meta, updated sql.NullString
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Content, &author, &meta, &c.Created, &updated); err != nil {
			return nil, graphkeeperr.Wrap(graphkeeperr.Backend, err, "scan comment row")
		}
		c.Author, c.Updated = author.String, updated.String
		var err error
		if c.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, graphkeeperr.Wrap(graphkeeperr.Internal, err, "decode comment metadata")
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
