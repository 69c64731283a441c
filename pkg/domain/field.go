package domain

import (
	"math"
	"strconv"
)

// Field is the decoded value of one header column. The remote store encodes a
// repeatable field as extra cells past the header, so a column is either a
// single cell (Scalar) or an ordered run of cells (List).
type Field struct {
	cells  []any
	isList bool
}

// Scalar wraps a single cell.
func Scalar(cell any) Field {
	return Field{cells: []any{cell}}
}

// List wraps an ordered run of cells.
func List(cells ...any) Field {
	return Field{cells: append([]any(nil), cells...), isList: true}
}

// IsList reports whether the field decoded as a run of cells.
func (f Field) IsList() bool { return f.isList }

// Value returns the scalar cell. For a list it returns the first cell.
func (f Field) Value() any {
	if len(f.cells) == 0 {
		return nil
	}
	return f.cells[0]
}

// Items returns the cells as a list. A nil scalar (absent cell) yields an empty list.
func (f Field) Items() []any {
	if !f.isList && (len(f.cells) == 0 || f.cells[0] == nil) {
		return nil
	}
	return append([]any(nil), f.cells...)
}

// Promote returns the list form of f.
func (f Field) Promote() Field {
	if f.isList {
		return f
	}
	return List(f.Items()...)
}

// Len returns the number of cells in the field.
func (f Field) Len() int { return len(f.Items()) }

// IsBlank reports whether a cell carries no value.
func IsBlank(cell any) bool {
	if cell == nil {
		return true
	}
	s, ok := cell.(string)
	return ok && s == ""
}

// CellEqual compares two cells the way the remote store renders them:
// numbers compare by value regardless of Go numeric type, and a numeric string
// equals the number it spells.
func CellEqual(a, b any) bool {
	af, aNum := CellNumber(a)
	bf, bNum := CellNumber(b)
	if aNum && bNum {
		return af == bf
	}
	if aNum != bNum {
		return false
	}
	return a == b
}

// CellNumber converts a numeric cell into a float64.
func CellNumber(cell any) (float64, bool) {
	switch v := cell.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case Identity:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
