// Package sheetstest provides an in-memory remote spreadsheet that speaks the
// values endpoint protocol, for tests of the loader, mutator and core store.
package sheetstest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"curvegraph/pkg/domain"
)

// Request records one call received by the Remote.
type Request struct {
	Method string
	Path   string
	Range  string
	// Values holds the body of a write.
	Values [][]any
}

// Remote is an in-memory stand-in for the remote tabular store. Reads trim
// trailing blank cells and rows the way the real store does.
type Remote struct {
	mu       sync.Mutex
	tables   map[domain.Table][][]any
	failures map[string]error
	requests []Request
	onDo     func(Request)
}

var _ domain.Transport = (*Remote)(nil)

// NewRemote returns an empty Remote.
func NewRemote() *Remote {
	return &Remote{
		tables:   make(map[domain.Table][][]any),
		failures: make(map[string]error),
	}
}

// SetTable replaces the content of table.
func (r *Remote) SetTable(table domain.Table, grid [][]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[table] = cloneGrid(grid)
}

// Table returns a copy of the content of table as a reader would see it.
func (r *Remote) Table(table domain.Table) [][]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return trimGrid(r.tables[table])
}

// Row returns the trimmed 1-based sheet row of table.
func (r *Remote) Row(table domain.Table, sheetRow int) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	grid := r.tables[table]
	if sheetRow < 1 || sheetRow > len(grid) {
		return nil
	}
	return trimRow(grid[sheetRow-1])
}

// RawRow returns the 1-based sheet row of table exactly as last written,
// including trailing blank cells.
func (r *Remote) RawRow(table domain.Table, sheetRow int) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	grid := r.tables[table]
	if sheetRow < 1 || sheetRow > len(grid) {
		return nil
	}
	return append([]any(nil), grid[sheetRow-1]...)
}

// FailOn makes every request with method against table fail with err.
// An empty method matches all methods.
func (r *Remote) FailOn(method string, table domain.Table, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[failureKey(method, table)] = err
}

// ClearFailures removes all injected failures.
func (r *Remote) ClearFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = make(map[string]error)
}

// OnDo registers a hook invoked, outside the lock, before each request is served.
func (r *Remote) OnDo(fn func(Request)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDo = fn
}

// Requests returns the requests received so far.
func (r *Remote) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}

// Writes returns the PUT requests received so far.
func (r *Remote) Writes() []Request {
	var out []Request
	for _, req := range r.Requests() {
		if req.Method == http.MethodPut {
			out = append(out, req)
		}
	}
	return out
}

type valueRange struct {
	Range          string  `json:"range,omitempty"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values,omitempty"`
}

// Do implements domain.Transport.
func (r *Remote) Do(ctx context.Context, method, path string, body, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rng, _, _ := strings.Cut(strings.TrimPrefix(path, "values/"), "?")
	req := Request{Method: method, Path: path, Range: rng}
	r.mu.Lock()
	hook := r.onDo
	r.mu.Unlock()
	if hook != nil {
		hook(req)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	a1, err := parseRange(rng)
	if err != nil {
		return &domain.RemoteAPIError{Method: method, Path: path, Status: http.StatusBadRequest, Body: err.Error()}
	}
	if err := r.failure(method, a1.table); err != nil {
		return err
	}
	if _, ok := r.tables[a1.table]; !ok {
		return &domain.RemoteAPIError{Method: method, Path: path, Status: http.StatusBadRequest, Body: fmt.Sprintf("Unable to parse range: %s", rng)}
	}
	switch method {
	case http.MethodGet:
		return encodeInto(valueRange{Range: rng, MajorDimension: "ROWS", Values: r.read(a1)}, out)
	case http.MethodPut:
		var in valueRange
		if err := encodeInto(body, &in); err != nil {
			return &domain.RemoteAPIError{Method: method, Path: path, Status: http.StatusBadRequest, Body: err.Error()}
		}
		r.requests[len(r.requests)-1].Values = cloneGrid(in.Values)
		if in.Range != rng {
			return &domain.RemoteAPIError{Method: method, Path: path, Status: http.StatusBadRequest, Body: "range in body does not match path"}
		}
		r.write(a1, in.Values)
		return encodeInto(map[string]any{"updatedRange": rng}, out)
	default:
		return &domain.RemoteAPIError{Method: method, Path: path, Status: http.StatusMethodNotAllowed, Body: "method not allowed"}
	}
}

func (r *Remote) failure(method string, table domain.Table) error {
	if err, ok := r.failures[failureKey(method, table)]; ok {
		return err
	}
	if err, ok := r.failures[failureKey("", table)]; ok {
		return err
	}
	return nil
}

func (r *Remote) read(a a1Range) [][]any {
	grid := trimGrid(r.tables[a.table])
	if a.row == 0 {
		return grid
	}
	if a.row > len(grid) {
		return nil
	}
	row := grid[a.row-1]
	if a.col >= len(row) {
		return nil
	}
	return [][]any{append([]any(nil), row[a.col:]...)}
}

func (r *Remote) write(a a1Range, values [][]any) {
	grid := r.tables[a.table]
	for i, vals := range values {
		idx := a.row - 1 + i
		for len(grid) <= idx {
			grid = append(grid, nil)
		}
		row := grid[idx]
		for len(row) < a.col+len(vals) {
			row = append(row, "")
		}
		copy(row[a.col:], vals)
		grid[idx] = row
	}
	r.tables[a.table] = grid
}

type a1Range struct {
	table domain.Table
	col   int
	row   int // 1-based; 0 addresses the whole table
}

// parseRange understands "Table", "Table!3:3", "Table!C3" and "Table!C3:3".
func parseRange(rng string) (a1Range, error) {
	name, ref, hasRef := strings.Cut(rng, "!")
	table, err := domain.ParseTable(name)
	if err != nil {
		return a1Range{}, err
	}
	out := a1Range{table: table}
	if !hasRef {
		return out, nil
	}
	start, _, _ := strings.Cut(ref, ":")
	letters := strings.TrimRight(start, "0123456789")
	digits := start[len(letters):]
	if len(letters) > 1 {
		return a1Range{}, fmt.Errorf("unsupported column %q", letters)
	}
	if letters != "" {
		out.col = int(letters[0] - 'A')
	}
	out.row, err = strconv.Atoi(digits)
	if err != nil || out.row < 1 {
		return a1Range{}, fmt.Errorf("invalid range %q", rng)
	}
	return out, nil
}

func failureKey(method string, table domain.Table) string {
	return method + " " + string(table)
}

func encodeInto(in, out any) error {
	if out == nil {
		return nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func trimGrid(grid [][]any) [][]any {
	out := make([][]any, 0, len(grid))
	for _, row := range grid {
		out = append(out, trimRow(row))
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out
}

func trimRow(row []any) []any {
	end := len(row)
	for end > 0 && domain.IsBlank(row[end-1]) {
		end--
	}
	return append([]any(nil), row[:end]...)
}

func cloneGrid(grid [][]any) [][]any {
	out := make([][]any, len(grid))
	for i, row := range grid {
		out[i] = append([]any(nil), row...)
	}
	return out
}
