package sheets

import (
	"context"
	"fmt"
	"net/http"

	"curvegraph/pkg/domain"
)

// Loader reads whole tables from the remote store.
type Loader struct {
	transport domain.Transport
}

// NewLoader constructs a loader over the supplied transport.
func NewLoader(transport domain.Transport) *Loader {
	return &Loader{transport: transport}
}

// Grid fetches the full unformatted value range of table, row-major.
func (l *Loader) Grid(ctx context.Context, table domain.Table) ([][]any, error) {
	if !table.Valid() {
		return nil, fmt.Errorf("load: unknown table %q", table)
	}
	var vr ValueRange
	if err := l.transport.Do(ctx, http.MethodGet, readPath(string(table)), nil, &vr); err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return vr.Values, nil
}

// Load fetches table and decodes it into an identity-keyed record map.
func (l *Loader) Load(ctx context.Context, table domain.Table) (map[domain.Identity]domain.Record, error) {
	grid, err := l.Grid(ctx, table)
	if err != nil {
		return nil, err
	}
	return RecordsByID(DecodeGrid(grid)), nil
}
