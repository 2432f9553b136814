package graphbackend

import (
	"context"
	"database/sql"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
)

// InsertRelationship persists a Relationship edge, user-visible or internal
// (HAS_COMMENT/RELATES_TO — the Graph Store mints those directly, bypassing
// createRelationship's Valid() check).
func (b *Backend) InsertRelationship(ctx context.Context, r *entity.Relationship, now string) error {
	details, err := encodeMetadata(r.Details)
	if err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Validation, err, "encode relationship details")
	}
	var timeOrder sql.NullInt64
	var probability sql.NullFloat64
	var reasoning sql.NullString
	if r.Temporal != nil {
		if r.Temporal.HasOrder {
			timeOrder = sql.NullInt64{Int64: int64(r.Temporal.TimeOrder), Valid: true}
		}
		if r.Temporal.HasProb {
			probability = sql.NullFloat64{Float64: r.Temporal.Probability, Valid: true}
		}
		if r.Temporal.Reasoning != "" {
			reasoning = sql.NullString{String: r.Temporal.Reasoning, Valid: true}
		}
	}
	_, err = b.execContext(ctx, `
		INSERT INTO relationships (id, type, source_id, target_id, details, time_order, probability, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Type), r.SourceID, r.TargetID, details, timeOrder, probability, reasoning, now,
	)
	return err
}

// InsertRelationshipTx is InsertRelationship scoped to an already-open
// transaction.
func (b *Backend) InsertRelationshipTx(ctx context.Context, tx *sql.Tx, r *entity.Relationship, now string) error {
	details, err := encodeMetadata(r.Details)
	if err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Validation, err, "encode relationship details")
	}
	var timeOrder sql.NullInt64
	var probability sql.NullFloat64
	var reasoning sql.NullString
	if r.Temporal != nil {
		if r.Temporal.HasOrder {
			timeOrder = sql.NullInt64{Int64: int64(r.Temporal.TimeOrder), Valid: true}
		}
		if r.Temporal.HasProb {
			probability = sql.NullFloat64{Float64: r.Temporal.Probability, Valid: true}
		}
		if r.Temporal.Reasoning != "" {
			reasoning = sql.NullString{String: r.Temporal.Reasoning, Valid: true}
		}
	}
	_, err = execTx(ctx, tx, `
		INSERT INTO relationships (id, type, source_id, target_id, details, time_order, probability, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Type), r.SourceID, r.TargetID, details, timeOrder, probability, reasoning, now,
	)
	return err
}

// GetRelationship fetches one Relationship edge by id.
func (b *Backend) GetRelationship(ctx context.Context, id string) (*entity.Relationship, error) {
	r, err := scanRelationshipRow(b.queryRowContext, ctx, id)
	if err == sql.ErrNoRows {
		return nil, graphkeeperr.New(graphkeeperr.NotFound, "relationship %s not found", id)
	}
	return r, err
}

func scanRelationshipRow(
	queryRow func(context.Context, func(*sql.Row) error, string, ...any) error,
	ctx context.Context,
	id string,
) (*entity.Relationship, error) {
	var r entity.Relationship
	var details sql.NullString
	var timeOrder sql.NullInt64
	var probability sql.NullFloat64
	var reasoning sql.NullString
	err := queryRow(ctx, func(row *sql.Row) error {
		return row.Scan(&r.ID, &r.Type, &r.SourceID, &r.TargetID, &details, &timeOrder, &probability, &reasoning)
	}, `SELECT id, type, source_id, target_id, details, time_order, probability, reasoning
		FROM relationships WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	return hydrateRelationship(&r, details, timeOrder, probability, reasoning)
}

func hydrateRelationship(r *entity.Relationship, details sql.NullString, timeOrder sql.NullInt64, probability sql.NullFloat64, reasoning sql.NullString) (*entity.Relationship, error) {
	meta, err := decodeMetadata(details)
	if err != nil {
		return nil, graphkeeperr.Wrap(graphkeeperr.Internal, err, "decode relationship details")
	}
	r.Details = meta
	if timeOrder.Valid || probability.Valid || reasoning.Valid {
		r.Temporal = &entity.TemporalInfo{
			TimeOrder:   int(timeOrder.Int64),
			HasOrder:    timeOrder.Valid,
			Probability: probability.Float64,
			HasProb:     probability.Valid,
			Reasoning:   reasoning.String,
		}
	}
	return r, nil
}

// DeleteRelationship removes an edge by id. Fail-soft callers (replay) treat
// graphkeeperr.NotFound from this as a no-op, per spec's DELETE_RELATIONSHIP
// replay semantics.
func (b *Backend) DeleteRelationship(ctx context.Context, id string) error {
	res, err := b.execContext(ctx, `DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowsAffected(res, "relationship", id)
}

// DeleteRelationshipsByEndpoint removes every edge with the given node as
// source or target, used when cascading a Component/Task delete.
func (b *Backend) DeleteRelationshipsByEndpoint(ctx context.Context, nodeID string) error {
	_, err := b.execContext(ctx, `DELETE FROM relationships WHERE source_id = ? OR target_id = ?`, nodeID, nodeID)
	return err
}

// DeleteRelationshipsByEndpointTx is DeleteRelationshipsByEndpoint scoped to
// an already-open transaction.
func (b *Backend) DeleteRelationshipsByEndpointTx(ctx context.Context, tx *sql.Tx, nodeID string) error {
	_, err := execTx(ctx, tx, `DELETE FROM relationships WHERE source_id = ? OR target_id = ?`, nodeID, nodeID)
	return err
}

// ListComponentRelationships returns every user-visible edge touching
// componentID as source or target (internal HAS_COMMENT/RELATES_TO edges are
// excluded per invariant 9).
func (b *Backend) ListComponentRelationships(ctx context.Context, componentID string) ([]*entity.Relationship, error) {
	rows, err := b.queryContext(ctx, `
		SELECT id, type, source_id, target_id, details, time_order, probability, reasoning
		FROM relationships
		WHERE (source_id = ? OR target_id = ?) AND type NOT IN (?, ?)
		ORDER BY created_at ASC`,
		componentID, componentID, string(entity.RelHasComment), string(entity.RelRelatesTo),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationshipRows(rows)
}

// ListRelatedComponentIDs returns the component ids linked to taskID via
// internal RELATES_TO edges, in insertion order.
func (b *Backend) ListRelatedComponentIDs(ctx context.Context, taskID string) ([]string, error) {
	rows, err := b.queryContext(ctx, `
		SELECT target_id FROM relationships WHERE source_id = ? AND type = ? ORDER BY created_at ASC`,
		taskID, string(entity.RelRelatesTo),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, graphkeeperr.Wrap(graphkeeperr.Backend, err, "scan related component id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanRelationshipRows(rows *sql.Rows) ([]*entity.Relationship, error) {
	var out []*entity.Relationship
	for rows.Next() {
		var r entity.Relationship
		var details sql.NullString
		var timeOrder sql.NullInt64
		var probability sql.NullFloat64
		var reasoning sql.NullString
		if err := rows.Scan(&r.ID, &r.Type, &r.SourceID, &r.TargetID, &details, &timeOrder, &probability, &reasoning); err != nil {
			return nil, graphkeeperr.Wrap(graphkeeperr.Backend, err, "scan relationship row")
		}
		hydrated, err := hydrateRelationship(&r, details, timeOrder, probability, reasoning)
		if err != nil {
			return nil, err
		}
		out = append(out, hydrated)
	}
	return out, rows.Err()
}

// CountRelationships returns the total user-visible edge count for overview.
func (b *Backend) CountRelationships(ctx context.Context) (int, error) {
	var n int
	err := b.queryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&n)
	}, `SELECT COUNT(*) FROM relationships WHERE type NOT IN (?, ?)`, string(entity.RelHasComment), string(entity.RelRelatesTo))
	return n, err
}
