// Package storage holds small backend-agnostic helpers shared by the Graph
// Backend Adapter: DSN construction and the JSON metadata encoding used at
// the SQL column boundary.
package storage

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// DoltDSN builds a go-sql-driver/mysql DSN for a Dolt server-mode
// connection, honoring GRAPHKEEP_LOCK_TIMEOUT for the read/write timeout
// (default 30s). addr is host:port, database is the Dolt database name.
func DoltDSN(user, password, addr, database string) string {
	timeout := 30 * time.Second
	if v := strings.TrimSpace(os.Getenv("GRAPHKEEP_LOCK_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			timeout = d
		}
	}
	cred := user
	if password != "" {
		cred = fmt.Sprintf("%s:%s", user, password)
	}
	return fmt.Sprintf(
		"%s@tcp(%s)/%s?parseTime=true&multiStatements=true&timeout=%s&readTimeout=%s&writeTimeout=%s",
		cred, addr, database, timeout, timeout, timeout,
	)
}

// EmbeddedDoltDSN builds a dolthub/driver DSN for an embedded (in-process,
// no server) Dolt database rooted at dir.
func EmbeddedDoltDSN(dir, database string) string {
	return fmt.Sprintf("file://%s?commitname=graphkeepd&commitemail=graphkeepd@local&database=%s", dir, database)
}
