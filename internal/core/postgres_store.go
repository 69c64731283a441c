package core

import (
	"context"

	"curvegraph/internal/infra/persistence/postgres"
)

// NewPostgresArchive opens a Postgres-backed snapshot archive from dsn.
func NewPostgresArchive(ctx context.Context, dsn string) (*postgres.Store, error) {
	return postgres.NewStore(ctx, dsn)
}
