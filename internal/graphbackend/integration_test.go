//go:build integration

package graphbackend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/dolt"

	"github.com/graphkeep/graphkeep/internal/entity"
)

// newContainerBackend starts a real Dolt sql-server in a container and opens
// a Backend against it, failing if the container cannot be started. Run with
// `go test -tags integration ./internal/graphbackend/...`.
func newContainerBackend(t *testing.T) *Backend {
	t.Helper()
	ctx := context.Background()

	container, err := dolt.Run(ctx, "dolthub/dolt-sql-server:latest",
		dolt.WithDatabase("graphkeep"),
		dolt.WithUsername("root"),
		dolt.WithPassword(""),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	backend, err := Open(ctx, Config{
		Host:     host,
		Port:     port.Int(),
		User:     "root",
		Database: "graphkeep",
	})
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

// TestBackend_ComponentCRUDAgainstRealDolt exercises the adapter against an
// actual Dolt server rather than the in-memory fake, to catch SQL/schema
// mistakes the fake can't: column types, constraint enforcement, and the
// driver's own error shapes.
func TestBackend_ComponentCRUDAgainstRealDolt(t *testing.T) {
	backend := newContainerBackend(t)
	ctx := context.Background()

	c := &entity.Component{ID: "cmp-it-1", Kind: entity.KindFile, Name: "main.go"}
	require.NoError(t, backend.InsertComponent(ctx, c, "2026-01-01T00:00:00Z"))

	fetched, err := backend.GetComponent(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.Name, fetched.Name)

	require.NoError(t, backend.DeleteComponent(ctx, c.ID))
	_, err = backend.GetComponent(ctx, c.ID)
	require.Error(t, err)
}
