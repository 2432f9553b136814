package graphbackend

import (
	"context"
	"database/sql"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
)

// InsertTask persists a new Task row plus its RELATES_TO edges to the
// related components. idFor mints ids for the edges (the Graph Store owns
// id minting; this adapter never invents one itself).
func (b *Backend) InsertTask(ctx context.Context, t *entity.Task, now string, idFor func() string) error {
	meta, err := encodeMetadata(t.Metadata)
	if err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Validation, err, "encode task metadata")
	}
	_, err = b.execContext(ctx, `
		INSERT INTO tasks (id, name, description, status, progress, codebase, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, string(t.Status), t.Progress, t.Codebase, meta, now, now,
	)
	if err != nil {
		return err
	}
	for _, componentID := range t.RelatedComponentIDs {
		rel := &entity.Relationship{ID: idFor(), Type: entity.RelRelatesTo, SourceID: t.ID, TargetID: componentID}
		if err := b.InsertRelationship(ctx, rel, now); err != nil {
			return err
		}
	}
	return nil
}

// InsertTaskTx is InsertTask scoped to an already-open transaction.
func (b *Backend) InsertTaskTx(ctx context.Context, tx *sql.Tx, t *entity.Task, now string, idFor func() string) error {
	meta, err := encodeMetadata(t.Metadata)
	if err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Validation, err, "encode task metadata")
	}
	_, err = execTx(ctx, tx, `
		INSERT INTO tasks (id, name, description, status, progress, codebase, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, string(t.Status), t.Progress, t.Codebase, meta, now, now,
	)
	if err != nil {
		return err
	}
	for _, componentID := range t.RelatedComponentIDs {
		rel := &entity.Relationship{ID: idFor(), Type: entity.RelRelatesTo, SourceID: t.ID, TargetID: componentID}
		if err := b.InsertRelationshipTx(ctx, tx, rel, now); err != nil {
			return err
		}
	}
	return nil
}

// GetTask fetches one Task by id, hydrating RelatedComponentIDs from the
// RELATES_TO edges.
func (b *Backend) GetTask(ctx context.Context, id string) (*entity.Task, error) {
	t, err := b.scanTask(ctx, id)
	if err == sql.ErrNoRows {
		return nil, graphkeeperr.New(graphkeeperr.NotFound, "task %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	related, err := b.ListRelatedComponentIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	t.RelatedComponentIDs = related
	return t, nil
}

func (b *Backend) scanTask(ctx context.Context, id string) (*entity.Task, error) {
	var t entity.Task
	var desc, codebase, meta sql.NullString
	err := b.queryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&t.ID, &t.Name, &desc, &t.Status, &t.Progress, &codebase, &meta)
	}, `SELECT id, name, description, status, progress, codebase, metadata FROM tasks WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	t.Description, t.Codebase = desc.String, codebase.String
	decoded, err := decodeMetadata(meta)
	if err != nil {
		return nil, graphkeeperr.Wrap(graphkeeperr.Internal, err, "decode task metadata")
	}
	t.Metadata = decoded
	return &t, nil
}

// UpdateTask overwrites a Task's mutable fields and replaces its RELATES_TO
// edge set wholesale.
func (b *Backend) UpdateTask(ctx context.Context, t *entity.Task, now string, idFor func() string) error {
	meta, err := encodeMetadata(t.Metadata)
	if err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Validation, err, "encode task metadata")
	}
	res, err := b.execContext(ctx, `
		UPDATE tasks SET name=?, description=?, status=?, progress=?, codebase=?, metadata=?, updated_at=?
		WHERE id=?`,
		t.Name, t.Description, string(t.Status), t.Progress, t.Codebase, meta, now, t.ID,
	)
	if err != nil {
		return err
	}
	if err := requireRowsAffected(res, "task", t.ID); err != nil {
		return err
	}
	if _, err := b.execContext(ctx, `DELETE FROM relationships WHERE source_id = ? AND type = ?`, t.ID, string(entity.RelRelatesTo)); err != nil {
		return err
	}
	for _, componentID := range t.RelatedComponentIDs {
		rel := &entity.Relationship{ID: idFor(), Type: entity.RelRelatesTo, SourceID: t.ID, TargetID: componentID}
		if err := b.InsertRelationship(ctx, rel, now); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTask removes a Task row. The caller is responsible for cascading
// relationship/comment cleanup through the Graph Store.
func (b *Backend) DeleteTask(ctx context.Context, id string) error {
	res, err := b.execContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowsAffected(res, "task", id)
}

// TaskFilter captures searchTasks' structured filter fields (spec §4.1);
// the zero value of each matches everything.
type TaskFilter struct {
	StatusList         []entity.TaskStatus
	ProgressMin        *float64
	ProgressMax        *float64
	CreatedAfter       *string
	CreatedBefore      *string
	RelatedComponentID string
	OrderBy            string // "created_at" | "updated_at" | "progress" | "name" | "status"
	OrderDescending    bool
	Limit              int
}

// SearchTasks returns Tasks matching the structured filter, without
// evaluating any free-text query predicate (the Graph Store applies that in
// memory after fetching this superset).
func (b *Backend) SearchTasks(ctx context.Context, f TaskFilter) ([]*entity.Task, error) {
	query := `SELECT DISTINCT t.id, t.name, t.description, t.status, t.progress, t.codebase, t.metadata
		FROM tasks t`
	var args []any
	var where []string

	if f.RelatedComponentID != "" {
		query += ` JOIN relationships r ON r.source_id = t.id AND r.type = ? AND r.target_id = ?`
		args = append(args, string(entity.RelRelatesTo), f.RelatedComponentID)
	}
	if len(f.StatusList) > 0 {
		placeholders := ""
		for i, s := range f.StatusList {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, string(s))
		}
		where = append(where, "t.status IN ("+placeholders+")")
	}
	if f.ProgressMin != nil {
		where = append(where, "t.progress >= ?")
		args = append(args, *f.ProgressMin)
	}
	if f.ProgressMax != nil {
		where = append(where, "t.progress <= ?")
		args = append(args, *f.ProgressMax)
	}
	if f.CreatedAfter != nil {
		where = append(where, "t.created_at >= ?")
		args = append(args, *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		where = append(where, "t.created_at <= ?")
		args = append(args, *f.CreatedBefore)
	}
	query += " WHERE 1=1"
	for _, w := range where {
		query += " AND " + w
	}

	orderCol := map[string]string{
		"created_at": "t.created_at", "updated_at": "t.updated_at",
		"progress": "t.progress", "name": "t.name", "status": "t.status",
	}[f.OrderBy]
	if orderCol == "" {
		orderCol = "t.created_at"
	}
	query += " ORDER BY " + orderCol
	if f.OrderDescending {
		query += " DESC"
	} else {
		query += " ASC"
	}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := b.queryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Task
	for rows.Next() {
		var t entity.Task
		var desc, codebase, meta sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &desc, &t.Status, &t.Progress, &codebase, &meta); err != nil {
			return nil, graphkeeperr.Wrap(graphkeeperr.Backend, err, "scan task row")
		}
		t.Description, t.Codebase = desc.String, codebase.String
		if t.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, graphkeeperr.Wrap(graphkeeperr.Internal, err, "decode task metadata")
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, t := range out {
		related, err := b.ListRelatedComponentIDs(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		t.RelatedComponentIDs = related
	}
	return out, nil
}

// CountTasksByStatus returns the number of tasks in each status, for overview.
func (b *Backend) CountTasksByStatus(ctx context.Context) (map[entity.TaskStatus]int, error) {
	rows, err := b.queryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[entity.TaskStatus]int)
	for rows.Next() {
		var status entity.TaskStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, graphkeeperr.Wrap(graphkeeperr.Backend, err, "scan task status count")
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
