//go:build cgo

// doctor.go builds a diagnostic subcommand against Dolt's embedded (in-process,
// CGO) driver, for checking a local graph store without a running Dolt
// sql-server. It is compiled only when CGO is available, mirroring how
// server mode (internal/graphbackend) stays pure Go and CGO-free.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	embedded "github.com/dolthub/driver"
	"github.com/spf13/cobra"

	"github.com/graphkeep/graphkeep/internal/storage"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor <dolt-dir>",
	Short: "check that an embedded Dolt directory opens and responds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor(cmd.Context(), args[0])
	},
}

func runDoctor(ctx context.Context, dir string) error {
	dsn := storage.EmbeddedDoltDSN(dir, "graphkeep")
	cfg, err := embedded.ParseDSN(dsn)
	if err != nil {
		return fmt.Errorf("parse embedded dsn: %w", err)
	}

	connector, err := embedded.NewConnector(cfg)
	if err != nil {
		return fmt.Errorf("open embedded dolt at %s: %w", dir, err)
	}
	db := sql.OpenDB(connector)
	defer func() {
		_ = db.Close()
		_ = connector.Close()
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping embedded dolt: %w", err)
	}

	fmt.Printf("embedded dolt at %s: ok\n", dir)
	return nil
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
