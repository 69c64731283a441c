package sheets

import "curvegraph/pkg/domain"

// maxColumns is the number of single-letter columns (A..Z).
const maxColumns = 26

// ColumnLetter maps a 0-based column index to its single-letter column name.
// Multi-letter columns (AA and beyond) are not supported.
func ColumnLetter(index int) (string, error) {
	if index < 0 || index >= maxColumns {
		return "", domain.IndexOutOfRangeError{Index: index}
	}
	return string(rune('A' + index)), nil
}
