package sheets

import (
	"fmt"
	"net/url"

	"curvegraph/pkg/domain"
)

// Query parameters understood by the remote values endpoint.
const (
	majorDimensionRows = "ROWS"
	renderUnformatted  = "UNFORMATTED_VALUE"
	inputOptionRaw     = "RAW"
)

// ValueRange is the body shape of the values endpoint for reads and writes.
type ValueRange struct {
	Range          string  `json:"range,omitempty"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values,omitempty"`
}

// FirstRow returns the first row of the range, or nil when the range is empty.
func (v ValueRange) FirstRow() []any {
	if len(v.Values) == 0 {
		return nil
	}
	return v.Values[0]
}

func readQuery() string {
	q := url.Values{}
	q.Set("majorDimension", majorDimensionRows)
	q.Set("valueRenderOption", renderUnformatted)
	return q.Encode()
}

func writeQuery() string {
	q := url.Values{}
	q.Set("valueInputOption", inputOptionRaw)
	return q.Encode()
}

// readPath addresses a read of rng, which is either a bare table name or an A1 range.
func readPath(rng string) string {
	return "values/" + rng + "?" + readQuery()
}

func writePath(rng string) string {
	return "values/" + rng + "?" + writeQuery()
}

// rowRange addresses one full sheet row (1-based).
func rowRange(table domain.Table, sheetRow int) string {
	return fmt.Sprintf("%s!%d:%d", table, sheetRow, sheetRow)
}

// cellRange addresses a single cell.
func cellRange(table domain.Table, col string, sheetRow int) string {
	return fmt.Sprintf("%s!%s%d", table, col, sheetRow)
}

// segmentRange addresses a row from col to its last column.
func segmentRange(table domain.Table, col string, sheetRow int) string {
	return fmt.Sprintf("%s!%s%d:%d", table, col, sheetRow, sheetRow)
}
