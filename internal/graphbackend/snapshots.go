package graphbackend

import (
	"context"
	"database/sql"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
)

// InsertSnapshot persists a Snapshot's metadata and its serialized
// GraphPayload.
func (b *Backend) InsertSnapshot(ctx context.Context, s *entity.Snapshot) error {
	_, err := b.execContext(ctx, `
		INSERT INTO snapshots (id, name, description, snapshot_timestamp, payload)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Description, s.Timestamp, s.Payload,
	)
	return err
}

// GetSnapshot fetches one Snapshot by id, payload included.
func (b *Backend) GetSnapshot(ctx context.Context, id string) (*entity.Snapshot, error) {
	var s entity.Snapshot
	var desc sql.NullString
	err := b.queryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&s.ID, &s.Name, &desc, &s.Timestamp, &s.Payload)
	}, `SELECT id, name, description, snapshot_timestamp, payload FROM snapshots WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, graphkeeperr.New(graphkeeperr.NotFound, "snapshot %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	s.Description = desc.String
	return &s, nil
}

// ListSnapshots returns every Snapshot's metadata, newest first, with the
// payload omitted (listSnapshots never echoes it per spec §4.3).
func (b *Backend) ListSnapshots(ctx context.Context) ([]*entity.Snapshot, error) {
	rows, err := b.queryContext(ctx, `
		SELECT id, name, description, snapshot_timestamp FROM snapshots ORDER BY snapshot_timestamp DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Snapshot
	for rows.Next() {
		var s entity.Snapshot
		var desc sql.NullString
		if err := rows.Scan(&s.ID, &s.Name, &desc, &s.Timestamp); err != nil {
			return nil, graphkeeperr.Wrap(graphkeeperr.Backend, err, "scan snapshot row")
		}
		s.Description = desc.String
		out = append(out, &s)
	}
	return out, rows.Err()
}

// TruncateGraph deletes every Component, Relationship, Task, and Comment
// row. Used by restoreFromSnapshot before re-inserting the snapshot's
// GraphPayload; never touches change_events or snapshots.
func (b *Backend) TruncateGraph(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"relationships", "comments", "tasks", "components"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return graphkeeperr.Wrap(graphkeeperr.Backend, err, "truncate %s", table)
		}
	}
	return nil
}
