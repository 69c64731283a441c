package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"curvegraph/pkg/domain"
)

// listField names the list-valued column of each table.
var listField = map[Table]string{
	TableModels: domain.FieldInputs,
	TableInputs: domain.FieldCurves,
	TableCurves: domain.FieldCurve,
}

// Normalize promotes the list column of every record in a freshly loaded
// table to its list form. A row with exactly one value in that column decodes
// as a scalar because only surplus cells produce a list.
func Normalize(table Table, records map[Identity]Record) {
	name, ok := listField[table]
	if !ok {
		return
	}
	for id, rec := range records {
		f, present := rec.Fields[name]
		if !present || f.IsList() {
			continue
		}
		rec.Fields[name] = f.Promote()
		records[id] = rec
	}
}

func normalizeModels(records map[Identity]Record) (map[Identity]ModelRecord, error) {
	Normalize(TableModels, records)
	out := make(map[Identity]ModelRecord, len(records))
	for _, rec := range sortedRecords(records) {
		if isBlankRecord(rec) {
			continue
		}
		d := recordDecoder{table: TableModels, rec: rec}
		m := ModelRecord{
			ID:     rec.ID,
			Name:   d.text(domain.FieldName, true),
			Notes:  d.text(domain.FieldNotes, false),
			Inputs: d.identities(domain.FieldInputs),
		}
		if d.err != nil {
			return nil, d.err
		}
		out[m.ID] = m
	}
	return out, nil
}

func normalizeInputs(records map[Identity]Record) (map[Identity]InputRecord, error) {
	Normalize(TableInputs, records)
	out := make(map[Identity]InputRecord, len(records))
	for _, rec := range sortedRecords(records) {
		if isBlankRecord(rec) {
			continue
		}
		d := recordDecoder{table: TableInputs, rec: rec}
		in := InputRecord{
			ID:   rec.ID,
			Name: d.text(domain.FieldName, true),
			InputAttributes: domain.InputAttributes{
				Frequency:       d.number(domain.FieldFrequency),
				Size:            d.number(domain.FieldSize),
				GrowthPercent:   d.number(domain.FieldGrowthPercent),
				GrowthFrequency: d.number(domain.FieldGrowthFrequency),
				Seed:            d.number(domain.FieldSeed),
				Saturation:      d.number(domain.FieldSaturation),
				Variability:     d.number(domain.FieldVariability),
			},
			Notes:  d.text(domain.FieldNotes, false),
			Curves: d.identities(domain.FieldCurves),
		}
		if d.err != nil {
			return nil, d.err
		}
		out[in.ID] = in
	}
	return out, nil
}

// normalizeCurves decodes curves and resamples each to its period.
func normalizeCurves(records map[Identity]Record) (map[Identity]CurveRecord, error) {
	Normalize(TableCurves, records)
	out := make(map[Identity]CurveRecord, len(records))
	for _, rec := range sortedRecords(records) {
		if isBlankRecord(rec) {
			continue
		}
		d := recordDecoder{table: TableCurves, rec: rec}
		c := CurveRecord{
			ID:     rec.ID,
			Name:   d.text(domain.FieldName, true),
			Period: d.integer(domain.FieldPeriod),
			Notes:  d.text(domain.FieldNotes, false),
			Curve:  d.numbers(domain.FieldCurve),
		}
		if d.err != nil {
			return nil, d.err
		}
		samples, err := Resample(c.Curve, c.Period)
		if err != nil {
			return nil, domain.MalformedRecordError{Table: TableCurves, ID: c.ID, Field: domain.FieldCurve, Reason: "cannot resample", Err: err}
		}
		c.Curve = samples
		out[c.ID] = c
	}
	return out, nil
}

// recordDecoder reads typed fields from one record, keeping the first error.
type recordDecoder struct {
	table Table
	rec   Record
	err   error
}

func (d *recordDecoder) fail(field, reason string) {
	if d.err == nil {
		d.err = domain.MalformedRecordError{Table: d.table, ID: d.rec.ID, Field: field, Reason: reason}
	}
}

func (d *recordDecoder) text(field string, required bool) string {
	cell := d.rec.Field(field).Value()
	if domain.IsBlank(cell) {
		if required {
			d.fail(field, "required")
		}
		return ""
	}
	switch v := cell.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func (d *recordDecoder) number(field string) float64 {
	cell := d.rec.Field(field).Value()
	if domain.IsBlank(cell) {
		return 0
	}
	f, ok := domain.CellNumber(cell)
	if !ok {
		d.fail(field, fmt.Sprintf("not a number: %v", cell))
	}
	return f
}

func (d *recordDecoder) integer(field string) int {
	cell := d.rec.Field(field).Value()
	if domain.IsBlank(cell) {
		d.fail(field, "required")
		return 0
	}
	f, ok := domain.CellNumber(cell)
	if !ok || f != math.Trunc(f) {
		d.fail(field, fmt.Sprintf("not an integer: %v", cell))
		return 0
	}
	return int(f)
}

// identities reads a list of references, skipping blank placeholder cells.
func (d *recordDecoder) identities(field string) []Identity {
	items := d.rec.Field(field).Items()
	out := make([]Identity, 0, len(items))
	for _, cell := range items {
		if domain.IsBlank(cell) {
			continue
		}
		f, ok := domain.CellNumber(cell)
		if !ok || f != math.Trunc(f) || f < 1 {
			d.fail(field, fmt.Sprintf("invalid reference: %v", cell))
			return nil
		}
		out = append(out, Identity(f))
	}
	return out
}

func (d *recordDecoder) numbers(field string) []float64 {
	items := d.rec.Field(field).Items()
	out := make([]float64, 0, len(items))
	for _, cell := range items {
		if domain.IsBlank(cell) {
			continue
		}
		f, ok := domain.CellNumber(cell)
		if !ok {
			d.fail(field, fmt.Sprintf("not a number: %v", cell))
			return nil
		}
		out = append(out, f)
	}
	return out
}

// isBlankRecord reports whether a row carried no values at all.
func isBlankRecord(rec Record) bool {
	for _, f := range rec.Fields {
		for _, cell := range f.Items() {
			if !domain.IsBlank(cell) {
				return false
			}
		}
	}
	return true
}

func sortedRecords(records map[Identity]Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
