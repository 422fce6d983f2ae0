// Package storage owns the relational schema. Statements are idempotent so
// Apply can run at every boot and in every integration test setup.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schema string

// Apply creates the tables and indexes if they do not exist.
func Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
