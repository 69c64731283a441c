package sheets

import (
	"fmt"

	"curvegraph/pkg/domain"
)

// DecodeGrid decodes a header row followed by data rows into records. The data
// row at grid index p is assigned identity p. A row holding more cells than
// there are header names folds the last header cell and every surplus cell
// into a list on the last header field.
func DecodeGrid(grid [][]any) []domain.Record {
	if len(grid) == 0 {
		return nil
	}
	header := make([]string, len(grid[0]))
	for i, cell := range grid[0] {
		header[i] = headerName(cell)
	}
	out := make([]domain.Record, 0, len(grid)-1)
	for p := 1; p < len(grid); p++ {
		out = append(out, decodeRow(domain.Identity(p), header, grid[p]))
	}
	return out
}

func decodeRow(id domain.Identity, header []string, row []any) domain.Record {
	rec := domain.Record{
		ID:     id,
		Fields: make(map[string]domain.Field, len(header)),
		Order:  append([]string(nil), header...),
	}
	for i, name := range header {
		if i >= len(row) {
			// short rows leave the remaining fields absent
			break
		}
		if i == len(header)-1 && len(row) > len(header) {
			rec.Fields[name] = domain.List(row[i:]...)
			break
		}
		rec.Fields[name] = domain.Scalar(row[i])
	}
	return rec
}

func headerName(cell any) string {
	switch v := cell.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// RecordsByID indexes records by identity.
func RecordsByID(records []domain.Record) map[domain.Identity]domain.Record {
	out := make(map[domain.Identity]domain.Record, len(records))
	for _, r := range records {
		out[r.ID] = r
	}
	return out
}
