package graphbackend

import "context"

// schemaStatements defines the persisted-state layout from spec §6: a
// Component table, a generic Relationship edge table (carrying both
// user-visible and internal RELATES_TO/HAS_COMMENT edges), a Task table, a
// Comment table, the append-only ChangeEvent journal, and the Snapshot
// table. Metadata/details columns are JSON text; Dolt (MySQL-compatible)
// enforces the same unique/index constraints spec §6 names.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS components (
		id VARCHAR(128) PRIMARY KEY,
		kind VARCHAR(32) NOT NULL,
		name VARCHAR(512) NOT NULL,
		description TEXT,
		path VARCHAR(1024),
		codebase VARCHAR(256),
		metadata JSON,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_components_codebase (codebase),
		INDEX idx_components_kind (kind)
	)`,
	`CREATE TABLE IF NOT EXISTS relationships (
		id VARCHAR(128) PRIMARY KEY,
		type VARCHAR(32) NOT NULL,
		source_id VARCHAR(128) NOT NULL,
		target_id VARCHAR(128) NOT NULL,
		details JSON,
		time_order INT NULL,
		probability DOUBLE NULL,
		reasoning TEXT,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_rel_source (source_id),
		INDEX idx_rel_target (target_id),
		INDEX idx_rel_type (type)
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id VARCHAR(128) PRIMARY KEY,
		name VARCHAR(512) NOT NULL,
		description TEXT,
		status VARCHAR(32) NOT NULL,
		progress DOUBLE NOT NULL DEFAULT 0,
		codebase VARCHAR(256),
		metadata JSON,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_tasks_status (status),
		INDEX idx_tasks_codebase (codebase)
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id VARCHAR(128) PRIMARY KEY,
		parent_id VARCHAR(128) NOT NULL,
		content TEXT NOT NULL,
		author VARCHAR(256),
		metadata JSON,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NULL,
		INDEX idx_comments_parent (parent_id)
	)`,
	`CREATE TABLE IF NOT EXISTS change_events (
		id VARCHAR(128) PRIMARY KEY,
		operation VARCHAR(32) NOT NULL,
		entity_kind VARCHAR(32) NOT NULL,
		entity_id VARCHAR(128) NOT NULL,
		before_state LONGTEXT,
		after_state LONGTEXT,
		event_timestamp DATETIME(6) NOT NULL,
		session_id VARCHAR(128),
		user_id VARCHAR(128),
		source VARCHAR(32),
		metadata JSON,
		seq BIGINT AUTO_INCREMENT,
		KEY idx_seq (seq),
		INDEX idx_changes_timestamp (event_timestamp),
		INDEX idx_changes_operation (operation),
		INDEX idx_changes_session (session_id),
		INDEX idx_changes_entity (entity_id)
	)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		id VARCHAR(128) PRIMARY KEY,
		name VARCHAR(512) NOT NULL,
		description TEXT,
		snapshot_timestamp DATETIME(6) NOT NULL,
		payload LONGTEXT NOT NULL
	)`,
}

// initSchema creates every table the core depends on, idempotently.
func (b *Backend) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := b.execContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
