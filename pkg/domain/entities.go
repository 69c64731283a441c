// Package domain defines the records, denormalized values, and error kinds
// shared by the curvegraph reconciliation layer.
package domain

import "fmt"

// Identity is the 1-based position of a record's row within its table at load time.
type Identity int

// Table identifies one of the remote collections backing the graph.
type Table string

// Recognised remote tables.
const (
	// TableModels holds Model rows.
	TableModels Table = "Models"
	// TableInputs holds Input rows.
	TableInputs Table = "Inputs"
	// TableCurves holds Curve rows.
	TableCurves Table = "Curves"
)

// Tables lists every recognised table in reload order.
var Tables = []Table{TableModels, TableInputs, TableCurves}

// Valid reports whether t names a recognised table.
func (t Table) Valid() bool {
	switch t {
	case TableModels, TableInputs, TableCurves:
		return true
	}
	return false
}

// ParseTable converts a table name into a Table.
func ParseTable(name string) (Table, error) {
	t := Table(name)
	if !t.Valid() {
		return "", fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

// Header field names agreed with the remote store. The list-valued field of
// every table is its last header column.
const (
	FieldName            = "name"
	FieldNotes           = "notes"
	FieldInputs          = "inputs"
	FieldCurves          = "curves"
	FieldCurve           = "curve"
	FieldPeriod          = "period"
	FieldFrequency       = "frequency"
	FieldSize            = "size"
	FieldGrowthPercent   = "growthPercent"
	FieldGrowthFrequency = "growthFrequency"
	FieldSeed            = "seed"
	FieldSaturation      = "saturation"
	FieldVariability     = "variability"
)

// Record is one decoded data row: header names mapped to cell values.
type Record struct {
	ID     Identity
	Fields map[string]Field
	// Order preserves the header order of Fields.
	Order []string
}

// Field returns the named field, or a nil scalar when the row had no cell for it.
func (r Record) Field(name string) Field {
	if f, ok := r.Fields[name]; ok {
		return f
	}
	return Scalar(nil)
}

// CurveRecord is a stored curve. After normalization len(Curve) == Period.
type CurveRecord struct {
	ID     Identity  `json:"number"`
	Name   string    `json:"name"`
	Curve  []float64 `json:"curve"`
	Period int       `json:"period"`
	Notes  string    `json:"notes,omitempty"`
}

// Curve is the embedded form of a curve inside an Input.
type Curve = CurveRecord

// InputAttributes carries the numeric parameters of an input.
type InputAttributes struct {
	Frequency       float64 `json:"frequency"`
	Size            float64 `json:"size"`
	GrowthPercent   float64 `json:"growthPercent"`
	GrowthFrequency float64 `json:"growthFrequency"`
	Seed            float64 `json:"seed"`
	Saturation      float64 `json:"saturation"`
	Variability     float64 `json:"variability"`
}

// InputRecord is a stored input; Curves holds curve references.
type InputRecord struct {
	ID   Identity `json:"number"`
	Name string   `json:"name"`
	InputAttributes
	Notes  string     `json:"notes,omitempty"`
	Curves []Identity `json:"curves"`
}

// Input is an input with its curve references resolved into values.
type Input struct {
	ID   Identity `json:"number"`
	Name string   `json:"name"`
	InputAttributes
	Notes  string  `json:"notes,omitempty"`
	Curves []Curve `json:"curves"`
}

// ModelRecord is a stored model; Inputs holds input references.
type ModelRecord struct {
	ID     Identity   `json:"number"`
	Name   string     `json:"name"`
	Notes  string     `json:"notes,omitempty"`
	Inputs []Identity `json:"inputs"`
}

// Model is a model with every input, and each input's curves, embedded.
type Model struct {
	ID     Identity `json:"number"`
	Name   string   `json:"name"`
	Notes  string   `json:"notes,omitempty"`
	Inputs []Input  `json:"inputs"`
}

// CloneCurve returns a deep copy of c.
func CloneCurve(c CurveRecord) CurveRecord {
	c.Curve = append([]float64(nil), c.Curve...)
	return c
}

// CloneInput returns a deep copy of in.
func CloneInput(in InputRecord) InputRecord {
	in.Curves = append([]Identity(nil), in.Curves...)
	return in
}

// CloneModel returns a deep copy of m.
func CloneModel(m ModelRecord) ModelRecord {
	m.Inputs = append([]Identity(nil), m.Inputs...)
	return m
}
