// Package graphbackend implements the Graph Backend Adapter (spec §4's C3):
// a thin transactional wrapper around Dolt, the versioned MySQL-compatible
// database, reached over go-sql-driver/mysql in server mode. It owns
// connection setup, retry of transient server-mode errors, and OpenTelemetry
// instrumentation of every statement.
//
// Only Dolt's server mode (pure Go, MySQL wire protocol) is wired here.
// Embedded mode (github.com/dolthub/driver) requires CGO and a full noms
// storage bootstrap; SPEC_FULL's Graph Backend Adapter only needs
// transactional SQL access, so this package targets the server-mode path
// and leaves the embedded connector unbuilt (see DESIGN.md).
package graphbackend

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
	"github.com/graphkeep/graphkeep/internal/storage"
)

// Config holds the Dolt server-mode connection parameters.
type Config struct {
	Host     string // default 127.0.0.1
	Port     int    // default 3307 (Dolt's default sql-server port)
	User     string // default root
	Password string // may also come from GRAPHKEEP_DOLT_PASSWORD
	Database string // default graphkeep
	ReadOnly bool
}

func applyConfigDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 3307
	}
	if cfg.User == "" {
		cfg.User = "root"
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv("GRAPHKEEP_DOLT_PASSWORD")
	}
	if cfg.Database == "" {
		cfg.Database = "graphkeep"
	}
}

// Backend is the Graph Backend Adapter: a *sql.DB plus the retry and
// tracing wrappers every query goes through.
type Backend struct {
	db       *sql.DB
	database string
	readOnly bool
	closed   atomic.Bool
}

const dialTimeout = 500 * time.Millisecond

// Open connects to a running Dolt sql-server and ensures the schema exists.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	applyConfigDefaults(&cfg)

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	conn, dialErr := net.DialTimeout("tcp", addr, dialTimeout)
	if dialErr != nil {
		return nil, graphkeeperr.Wrap(graphkeeperr.Backend, dialErr, "dolt server unreachable at %s", addr)
	}
	_ = conn.Close()

	if err := ensureDatabase(ctx, cfg); err != nil {
		return nil, err
	}

	dsn := storage.DoltDSN(credentials(cfg), cfg.Password, addr, cfg.Database)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, graphkeeperr.Wrap(graphkeeperr.Backend, err, "open dolt connection")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, graphkeeperr.Wrap(graphkeeperr.Backend, err, "ping dolt server")
	}

	b := &Backend{db: db, database: cfg.Database, readOnly: cfg.ReadOnly}
	if !cfg.ReadOnly {
		if err := b.initSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return b, nil
}

func credentials(cfg Config) string { return cfg.User }

// ensureDatabase creates the target database if it doesn't already exist,
// connecting without selecting a database first.
func ensureDatabase(ctx context.Context, cfg Config) error {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	initDSN := storage.DoltDSN(cfg.User, cfg.Password, addr, "")
	initDB, err := sql.Open("mysql", initDSN)
	if err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Backend, err, "open dolt init connection")
	}
	defer func() { _ = initDB.Close() }()

	if err := validateDatabaseName(cfg.Database); err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Validation, err, "invalid database name %q", cfg.Database)
	}
	_, err = initDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", cfg.Database))
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "database exists") {
		return graphkeeperr.Wrap(graphkeeperr.Backend, err, "create database %s", cfg.Database)
	}
	return nil
}

func validateDatabaseName(name string) error {
	for _, r := range name {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return fmt.Errorf("database name must be alphanumeric/underscore, got %q", name)
		}
	}
	if name == "" {
		return fmt.Errorf("database name must not be empty")
	}
	return nil
}

// Close releases the underlying connection pool. Idempotent.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}

// DB exposes the raw *sql.DB for packages (graphstore, journal, snapshot)
// that need to run multi-statement transactions directly.
func (b *Backend) DB() *sql.DB { return b.db }

const serverRetryMaxElapsed = 30 * time.Second

func newRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = serverRetryMaxElapsed
	return bo
}

// isRetryableError reports whether err is a transient Dolt/MySQL connection
// error worth retrying.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, substr := range []string{
		"driver: bad connection",
		"invalid connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"database is read only",
		"lost connection",
		"gone away",
		"i/o timeout",
		"unknown database",
	} {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

var backendTracer = otel.Tracer("github.com/graphkeep/graphkeep/graphbackend")

var backendMetrics struct {
	retryCount metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/graphkeep/graphkeep/graphbackend")
	backendMetrics.retryCount, _ = m.Int64Counter("graphkeep.backend.retry_count",
		metric.WithDescription("SQL operations retried due to transient backend errors"),
		metric.WithUnit("{retry}"),
	)
}

func (b *Backend) spanAttrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", "dolt"),
		attribute.String("db.name", b.database),
		attribute.Bool("db.readonly", b.readOnly),
	}
}

func spanSQL(q string) string {
	if len(q) > 300 {
		return q[:300] + "…"
	}
	return q
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// withRetry retries op against the bounded-elapsed-time backoff policy for
// transient errors only; any other error stops the retry immediately.
func (b *Backend) withRetry(ctx context.Context, op func() error) error {
	attempts := 0
	bo := newRetryBackoff()
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err != nil && isRetryableError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if attempts > 1 {
		backendMetrics.retryCount.Add(ctx, int64(attempts-1))
	}
	return err
}

// execContext wraps sql.DB.ExecContext with retry and a tracing span.
func (b *Backend) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := backendTracer.Start(ctx, "graphbackend.exec",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(b.spanAttrs(),
			attribute.String("db.operation", "exec"),
			attribute.String("db.statement", spanSQL(query)),
		)...),
	)
	var result sql.Result
	err := b.withRetry(ctx, func() error {
		var execErr error
		result, execErr = b.db.ExecContext(ctx, query, args...)
		return execErr
	})
	finalErr := wrapBackendError(err)
	endSpan(span, finalErr)
	return result, finalErr
}

// queryContext wraps sql.DB.QueryContext with retry and a tracing span.
func (b *Backend) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := backendTracer.Start(ctx, "graphbackend.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(b.spanAttrs(),
			attribute.String("db.operation", "query"),
			attribute.String("db.statement", spanSQL(query)),
		)...),
	)
	var rows *sql.Rows
	err := b.withRetry(ctx, func() error {
		var queryErr error
		rows, queryErr = b.db.QueryContext(ctx, query, args...)
		return queryErr
	})
	finalErr := wrapBackendError(err)
	endSpan(span, finalErr)
	return rows, finalErr
}

// queryRowContext wraps sql.DB.QueryRowContext with retry and a tracing span.
// scan receives the *sql.Row and must call Scan on it.
func (b *Backend) queryRowContext(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error {
	ctx, span := backendTracer.Start(ctx, "graphbackend.query_row",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(b.spanAttrs(),
			attribute.String("db.operation", "query_row"),
			attribute.String("db.statement", spanSQL(query)),
		)...),
	)
	finalErr := wrapBackendError(b.withRetry(ctx, func() error {
		row := b.db.QueryRowContext(ctx, query, args...)
		return scan(row)
	}))
	endSpan(span, finalErr)
	return finalErr
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error returned by fn or by Commit. Used by bulk operations
// (spec §4.1: "all-or-nothing in a single transaction").
func (b *Backend) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Backend, err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return graphkeeperr.Wrap(graphkeeperr.Backend, err, "commit transaction")
	}
	return nil
}

// execTx runs query against an already-open transaction, for the Tx-suffixed
// CRUD variants bulk/cascade operations call inside WithTx. Unlike
// execContext, it has no retry wrapper: a transient error mid-transaction
// must abort and roll back rather than retry while the transaction's other
// statements sit uncommitted.
func execTx(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapBackendError(err)
	}
	return res, nil
}

// wrapBackendError classifies a raw *sql.DB error: a duplicate-key error
// (MySQL/Dolt error 1062) becomes graphkeeperr.Conflict, anything else
// graphkeeperr.Backend, except sql.ErrNoRows which callers check for explicitly.
func wrapBackendError(err error) error {
	if err == nil || err == sql.ErrNoRows {
		return err
	}
	if strings.Contains(strings.ToLower(err.Error()), "error 1062") {
		return graphkeeperr.Wrap(graphkeeperr.Conflict, err, "already exists")
	}
	return graphkeeperr.Wrap(graphkeeperr.Backend, err, "graph backend operation failed")
}
