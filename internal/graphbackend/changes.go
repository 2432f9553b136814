package graphbackend

import (
	"context"
	"database/sql"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
)

// AppendChangeEvent writes one append-only Change Journal entry. The
// journal never updates or deletes a row it has written.
func (b *Backend) AppendChangeEvent(ctx context.Context, e *entity.ChangeEvent) error {
	meta, err := encodeMetadata(e.Metadata)
	if err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Validation, err, "encode change event metadata")
	}
	_, err = b.execContext(ctx, `
		INSERT INTO change_events
			(id, operation, entity_kind, entity_id, before_state, after_state, event_timestamp, session_id, user_id, source, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Operation), string(e.EntityKind), e.EntityID,
		nullIfEmpty(e.BeforeState), nullIfEmpty(e.AfterState), e.Timestamp,
		nullIfEmpty(e.SessionID), nullIfEmpty(e.UserID), nullIfEmpty(string(e.Source)), meta,
	)
	return err
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// GetEntityHistory returns every ChangeEvent for entityID, oldest first.
func (b *Backend) GetEntityHistory(ctx context.Context, entityID string) ([]*entity.ChangeEvent, error) {
	rows, err := b.queryContext(ctx, `
		SELECT id, operation, entity_kind, entity_id, before_state, after_state, event_timestamp, session_id, user_id, source, metadata
		FROM change_events WHERE entity_id = ? ORDER BY seq ASC`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChangeEvents(rows)
}

// RecentChangesFilter mirrors getRecentChanges' optional parameters.
type RecentChangesFilter struct {
	Limit      int
	Operations []entity.Operation
	EntityKind entity.EntityKind
}

// GetRecentChanges returns the most recent ChangeEvents, newest first,
// optionally filtered by operation and/or entity kind.
func (b *Backend) GetRecentChanges(ctx context.Context, f RecentChangesFilter) ([]*entity.ChangeEvent, error) {
	query := `SELECT id, operation, entity_kind, entity_id, before_state, after_state, event_timestamp, session_id, user_id, source, metadata
		FROM change_events WHERE 1=1`
	var args []any
	if len(f.Operations) > 0 {
		placeholders := ""
		for i, op := range f.Operations {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, string(op))
		}
		query += " AND operation IN (" + placeholders + ")"
	}
	if f.EntityKind != "" {
		query += " AND entity_kind = ?"
		args = append(args, string(f.EntityKind))
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := b.queryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChangeEvents(rows)
}

// GetChangesByTimeRange returns every ChangeEvent with event_timestamp in
// [from, to], oldest first — the backbone of replayToTimestamp.
func (b *Backend) GetChangesByTimeRange(ctx context.Context, from, to string) ([]*entity.ChangeEvent, error) {
	rows, err := b.queryContext(ctx, `
		SELECT id, operation, entity_kind, entity_id, before_state, after_state, event_timestamp, session_id, user_id, source, metadata
		FROM change_events WHERE event_timestamp >= ? AND event_timestamp <= ? ORDER BY seq ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChangeEvents(rows)
}

// GetSessionChanges returns every ChangeEvent tagged with sessionID, oldest first.
func (b *Backend) GetSessionChanges(ctx context.Context, sessionID string) ([]*entity.ChangeEvent, error) {
	rows, err := b.queryContext(ctx, `
		SELECT id, operation, entity_kind, entity_id, before_state, after_state, event_timestamp, session_id, user_id, source, metadata
		FROM change_events WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChangeEvents(rows)
}

// ChangeStats is getStats' return shape: per-operation and per-entity-kind
// counts plus the total row count.
type ChangeStats struct {
	Total          int
	ByOperation    map[entity.Operation]int
	ByEntityKind   map[entity.EntityKind]int
	OldestEventAt  string
	NewestEventAt  string
}

// GetStats aggregates the Change Journal for the Public API Facade's
// getStats operation.
func (b *Backend) GetStats(ctx context.Context) (*ChangeStats, error) {
	stats := &ChangeStats{ByOperation: map[entity.Operation]int{}, ByEntityKind: map[entity.EntityKind]int{}}

	if err := b.queryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&stats.Total)
	}, `SELECT COUNT(*) FROM change_events`); err != nil {
		return nil, err
	}
	if stats.Total == 0 {
		return stats, nil
	}

	opRows, err := b.queryContext(ctx, `SELECT operation, COUNT(*) FROM change_events GROUP BY operation`)
	if err != nil {
		return nil, err
	}
	defer opRows.Close()
	for opRows.Next() {
		var op entity.Operation
		var n int
		if err := opRows.Scan(&op, &n); err != nil {
			return nil, graphkeeperr.Wrap(graphkeeperr.Backend, err, "scan operation count")
		}
		stats.ByOperation[op] = n
	}
	if err := opRows.Err(); err != nil {
		return nil, err
	}

	kindRows, err := b.queryContext(ctx, `SELECT entity_kind, COUNT(*) FROM change_events GROUP BY entity_kind`)
	if err != nil {
		return nil, err
	}
	defer kindRows.Close()
	for kindRows.Next() {
		var k entity.EntityKind
		var n int
		if err := kindRows.Scan(&k, &n); err != nil {
			return nil, graphkeeperr.Wrap(graphkeeperr.Backend, err, "scan entity kind count")
		}
		stats.ByEntityKind[k] = n
	}
	if err := kindRows.Err(); err != nil {
		return nil, err
	}

	if err := b.queryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&stats.OldestEventAt, &stats.NewestEventAt)
	}, `SELECT MIN(event_timestamp), MAX(event_timestamp) FROM change_events`); err != nil {
		return nil, err
	}
	return stats, nil
}

func scanChangeEvents(rows *sql.Rows) ([]*entity.ChangeEvent, error) {
	var out []*entity.ChangeEvent
	for rows.Next() {
		var e entity.ChangeEvent
		var before, after, sessionID, userID, source, meta sql.NullString
		if err := rows.Scan(&e.ID, &e.Operation, &e.EntityKind, &e.EntityID, &before, &after, &e.Timestamp, &sessionID, &userID, &source, &meta); err != nil {
			return nil, graphkeeperr.Wrap(graphkeeperr.Backend, err, "scan change event row")
		}
		e.BeforeState, e.AfterState = before.String, after.String
		e.SessionID, e.UserID, e.Source = sessionID.String, userID.String, entity.ChangeSource(source.String)
		decoded, err := decodeMetadata(meta)
		if err != nil {
			return nil, graphkeeperr.Wrap(graphkeeperr.Internal, err, "decode change event metadata")
		}
		e.Metadata = decoded
		out = append(out, &e)
	}
	return out, rows.Err()
}
