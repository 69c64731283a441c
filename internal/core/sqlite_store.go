package core

import "curvegraph/internal/infra/persistence/sqlite"

// NewSQLiteArchive opens a SQLite-backed snapshot archive at path (empty for
// the default file).
func NewSQLiteArchive(path string) (*sqlite.Store, error) {
	return sqlite.NewStore(path)
}
