package graphbackend

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
	"github.com/graphkeep/graphkeep/internal/storage"
)

// InsertComponent persists a new Component row. Callers run this inside
// WithTx when part of a bulk operation.
func (b *Backend) InsertComponent(ctx context.Context, c *entity.Component, now string) error {
	meta, err := encodeMetadata(c.Metadata)
	if err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Validation, err, "encode component metadata")
	}
	_, err = b.execContext(ctx, `
		INSERT INTO components (id, kind, name, description, path, codebase, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Kind), c.Name, c.Description, c.Path, c.Codebase, meta, now, now,
	)
	return err
}

// InsertComponentTx is InsertComponent scoped to an already-open
// transaction, for bulk creates that must commit or roll back as one unit.
func (b *Backend) InsertComponentTx(ctx context.Context, tx *sql.Tx, c *entity.Component, now string) error {
	meta, err := encodeMetadata(c.Metadata)
	if err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Validation, err, "encode component metadata")
	}
	_, err = execTx(ctx, tx, `
		INSERT INTO components (id, kind, name, description, path, codebase, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Kind), c.Name, c.Description, c.Path, c.Codebase, meta, now, now,
	)
	return err
}

// GetComponent fetches one Component by id, returning graphkeeperr.NotFound
// when absent.
func (b *Backend) GetComponent(ctx context.Context, id string) (*entity.Component, error) {
	var c entity.Component
	var desc, path, codebase, meta sql.NullString
	err := b.queryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&c.ID, &c.Kind, &c.Name, &desc, &path, &codebase, &meta)
	}, `SELECT id, kind, name, description, path, codebase, metadata FROM components WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, graphkeeperr.New(graphkeeperr.NotFound, "component %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	c.Description, c.Path, c.Codebase = desc.String, path.String, codebase.String
	if c.Metadata, err = decodeMetadata(meta); err != nil {
		return nil, graphkeeperr.Wrap(graphkeeperr.Internal, err, "decode component metadata")
	}
	return &c, nil
}

// UpdateComponent overwrites the mutable fields of an existing Component.
func (b *Backend) UpdateComponent(ctx context.Context, c *entity.Component, now string) error {
	meta, err := encodeMetadata(c.Metadata)
	if err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Validation, err, "encode component metadata")
	}
	res, err := b.execContext(ctx, `
		UPDATE components SET kind=?, name=?, description=?, path=?, codebase=?, metadata=?, updated_at=?
		WHERE id=?`,
		string(c.Kind), c.Name, c.Description, c.Path, c.Codebase, meta, now, c.ID,
	)
	if err != nil {
		return err
	}
	return requireRowsAffected(res, "component", c.ID)
}

// DeleteComponent removes a Component row. Cascading relationship/comment
// cleanup is the Graph Store's responsibility, not this adapter's.
func (b *Backend) DeleteComponent(ctx context.Context, id string) error {
	res, err := b.execContext(ctx, `DELETE FROM components WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowsAffected(res, "component", id)
}

// DeleteComponentTx is DeleteComponent scoped to an already-open
// transaction, used by the cascading delete that also removes the
// component's relationships and comments in the same transaction.
func (b *Backend) DeleteComponentTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := execTx(ctx, tx, `DELETE FROM components WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRowsAffected(res, "component", id)
}

// ListComponents returns every Component whose codebase/kind/name-substring
// match the given filters; empty strings mean "no filter" on that field.
func (b *Backend) ListComponents(ctx context.Context, kind, nameSubstr, codebase string) ([]*entity.Component, error) {
	query := `SELECT id, kind, name, description, path, codebase, metadata FROM components WHERE 1=1`
	var args []any
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	if nameSubstr != "" {
		query += " AND name LIKE ?"
		args = append(args, "%"+nameSubstr+"%")
	}
	if codebase != "" {
		query += " AND codebase = ?"
		args = append(args, codebase)
	}
	query += " ORDER BY created_at ASC"

	rows, err := b.queryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Component
	for rows.Next() {
		var c entity.Component
		var desc, path, cb, meta sql.NullString
		if err := rows.Scan(&c.ID, &c.Kind, &c.Name, &desc, &path, &cb, &meta); err != nil {
			return nil, graphkeeperr.Wrap(graphkeeperr.Backend, err, "scan component row")
		}
		c.Description, c.Path, c.Codebase = desc.String, path.String, cb.String
		if c.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, graphkeeperr.Wrap(graphkeeperr.Internal, err, "decode component metadata")
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// CountComponents returns the total Component row count, used for overview.
func (b *Backend) CountComponents(ctx context.Context) (int, error) {
	var n int
	err := b.queryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&n)
	}, `SELECT COUNT(*) FROM components`)
	return n, err
}

func requireRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Backend, err, "read rows affected")
	}
	if n == 0 {
		return graphkeeperr.New(graphkeeperr.NotFound, "%s %s not found", kind, id)
	}
	return nil
}

func encodeMetadata(m entity.Metadata) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	js, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	normalized, err := storage.NormalizeMetadataValue(js)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: normalized, Valid: true}, nil
}

func decodeMetadata(v sql.NullString) (entity.Metadata, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var m entity.Metadata
	if err := json.Unmarshal([]byte(v.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}
