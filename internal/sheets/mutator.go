package sheets

import (
	"context"
	"fmt"
	"net/http"

	"curvegraph/pkg/domain"
)

// Mutator appends or removes single cell values within one table row. Each
// operation is a read followed by a write with no concurrency token; two
// mutations racing on the same row resolve last-write-wins.
type Mutator struct {
	transport domain.Transport
}

// NewMutator constructs a mutator over the supplied transport.
func NewMutator(transport domain.Transport) *Mutator {
	return &Mutator{transport: transport}
}

// sheetRow converts a 0-based grid row (the header is row 0, so a data row's
// identity is its grid row) into the store's 1-based row address.
func sheetRow(row int) (int, error) {
	if row < 0 {
		return 0, fmt.Errorf("row %d must not be negative", row)
	}
	return row + 1, nil
}

// Append writes value into the first empty column after the end of row and
// returns the A1 address written. It never checks for duplicates.
func (m *Mutator) Append(ctx context.Context, table domain.Table, row int, value any) (string, error) {
	r, err := sheetRow(row)
	if err != nil {
		return "", fmt.Errorf("append %s: %w", table, err)
	}
	current, err := m.read(ctx, rowRange(table, r))
	if err != nil {
		return "", fmt.Errorf("append %s row %d: %w", table, r, err)
	}
	col, err := ColumnLetter(len(current))
	if err != nil {
		return "", fmt.Errorf("append %s row %d: %w", table, r, err)
	}
	target := cellRange(table, col, r)
	if err := m.write(ctx, target, []any{value}); err != nil {
		return "", fmt.Errorf("append %s: %w", target, err)
	}
	return target, nil
}

// Remove deletes the first cell equal to value from the list segment of row,
// the run of cells starting at the table's last header column. The shortened
// segment is written back padded with one blank cell so the previous
// right-most cell is cleared rather than left duplicated.
func (m *Mutator) Remove(ctx context.Context, table domain.Table, row int, value any) error {
	r, err := sheetRow(row)
	if err != nil {
		return fmt.Errorf("remove %s: %w", table, err)
	}
	header, err := m.read(ctx, rowRange(table, 1))
	if err != nil {
		return fmt.Errorf("remove %s header: %w", table, err)
	}
	// The list field's first value sits under its own header cell, one column
	// before the header length, so the segment starts there.
	col, err := ColumnLetter(len(header) - 1)
	if err != nil {
		return fmt.Errorf("remove %s row %d: %w", table, r, err)
	}
	target := segmentRange(table, col, r)
	segment, err := m.read(ctx, target)
	if err != nil {
		return fmt.Errorf("remove %s: %w", target, err)
	}
	next, ok := removeFirst(segment, value)
	if !ok {
		return fmt.Errorf("remove %s: %w", target, domain.ValueNotFoundError{Value: value, Row: segment})
	}
	if err := m.write(ctx, target, append(next, "")); err != nil {
		return fmt.Errorf("remove %s: %w", target, err)
	}
	return nil
}

func removeFirst(cells []any, value any) ([]any, bool) {
	for i, c := range cells {
		if domain.CellEqual(c, value) {
			out := make([]any, 0, len(cells))
			out = append(out, cells[:i]...)
			return append(out, cells[i+1:]...), true
		}
	}
	return append([]any(nil), cells...), false
}

func (m *Mutator) read(ctx context.Context, rng string) ([]any, error) {
	var vr ValueRange
	if err := m.transport.Do(ctx, http.MethodGet, readPath(rng), nil, &vr); err != nil {
		return nil, err
	}
	return vr.FirstRow(), nil
}

func (m *Mutator) write(ctx context.Context, rng string, row []any) error {
	body := ValueRange{Range: rng, MajorDimension: majorDimensionRows, Values: [][]any{row}}
	return m.transport.Do(ctx, http.MethodPut, writePath(rng), body, nil)
}
