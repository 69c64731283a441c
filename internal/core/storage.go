package core

import (
	"context"
	"fmt"

	"curvegraph/internal/config"
	"curvegraph/internal/infra/persistence/memory"
	"curvegraph/pkg/domain"
)

// ArchiveDriver identifies a snapshot archive implementation.
type ArchiveDriver string

const (
	ArchiveNone     ArchiveDriver = "none"     // history disabled
	ArchiveMemory   ArchiveDriver = "memory"   // in-memory only (tests / ephemeral)
	ArchiveSQLite   ArchiveDriver = "sqlite"   // embedded sqlite file
	ArchivePostgres ArchiveDriver = "postgres" // PostgreSQL server
)

// Archive is the snapshot history contract.
type Archive = domain.Archive

// OpenArchive selects an archive backend from configuration. It returns a nil
// Archive for the none driver.
func OpenArchive(ctx context.Context, cfg config.Archive) (Archive, error) {
	switch ArchiveDriver(cfg.Driver) {
	case ArchiveNone, "":
		return nil, nil
	case ArchiveMemory:
		return memory.NewStore(), nil
	case ArchiveSQLite:
		store, err := NewSQLiteArchive(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case ArchivePostgres:
		store, err := NewPostgresArchive(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", cfg.Driver)
	}
}
