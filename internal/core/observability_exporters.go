package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// OperationStats aggregates the outcomes of one operation name.
type OperationStats struct {
	Calls   int64   `json:"calls"`
	Errors  int64   `json:"errors"`
	TotalMS float64 `json:"total_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// ExpvarMetricsRecorder publishes per-operation call counts and latencies
// under a single expvar name.
type ExpvarMetricsRecorder struct {
	name string
	mu   sync.Mutex
	ops  map[string]*OperationStats
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated unique name when name is empty. expvar names are process global,
// so publishing the same name twice panics.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("curvegraph_ops_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{name: name, ops: make(map[string]*OperationStats)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Stats() }))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Stats returns a copy of the aggregated counters keyed by operation.
func (r *ExpvarMetricsRecorder) Stats() map[string]OperationStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]OperationStats, len(r.ops))
	for op, st := range r.ops {
		out[op] = *st
	}
	return out
}

// Observe implements MetricsRecorder. Unnamed operations are ignored.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.ops[operation]
	if !ok {
		st = &OperationStats{}
		r.ops[operation] = st
	}
	st.Calls++
	if !success {
		st.Errors++
	}
	st.TotalMS += ms
	if ms > st.MaxMS {
		st.MaxMS = ms
	}
}

// SpanRecord is one finished span as written by SpanLog.
type SpanRecord struct {
	Seq        uint64    `json:"seq"`
	Operation  string    `json:"operation"`
	Failed     bool      `json:"failed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS float64   `json:"duration_ms"`
}

// SpanLog is a Tracer that writes each finished span as a JSON line to w
// (when non-nil) and keeps the most recent spans in memory.
type SpanLog struct {
	mu    sync.Mutex
	seq   uint64
	keep  int
	spans []SpanRecord
	enc   *json.Encoder
	now   func() time.Time
}

// NewSpanLog returns a SpanLog retaining up to keep spans (all when keep <= 0).
func NewSpanLog(w io.Writer, keep int) *SpanLog {
	l := &SpanLog{keep: keep, now: func() time.Time { return time.Now().UTC() }}
	if w != nil {
		l.enc = json.NewEncoder(w)
	}
	return l
}

// Spans returns the retained spans, oldest first.
func (l *SpanLog) Spans() []SpanRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]SpanRecord(nil), l.spans...)
}

// Start implements Tracer.
func (l *SpanLog) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &logSpan{log: l, operation: operation, started: l.now()}
}

type logSpan struct {
	log       *SpanLog
	operation string
	started   time.Time
	ended     atomic.Bool
}

func (s *logSpan) End(err error) {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	l := s.log
	rec := SpanRecord{
		Operation:  s.operation,
		StartedAt:  s.started,
		DurationMS: float64(l.now().Sub(s.started)) / float64(time.Millisecond),
	}
	if err != nil {
		rec.Failed = true
		rec.Error = err.Error()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	rec.Seq = l.seq
	l.spans = append(l.spans, rec)
	if l.keep > 0 && len(l.spans) > l.keep {
		l.spans = l.spans[len(l.spans)-l.keep:]
	}
	if l.enc != nil {
		_ = l.enc.Encode(rec)
	}
}

// AuditLog is an AuditRecorder that keeps entries in memory.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record implements AuditRecorder.
func (a *AuditLog) Record(_ context.Context, entry AuditEntry) {
	a.mu.Lock()
	a.entries = append(a.entries, entry)
	a.mu.Unlock()
}

// Entries returns recorded entries, optionally filtered to one operation.
func (a *AuditLog) Entries(operation string) []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AuditEntry, 0, len(a.entries))
	for _, e := range a.entries {
		if operation == "" || e.Operation == operation {
			out = append(out, e)
		}
	}
	return out
}

// Failures counts error entries per operation.
func (a *AuditLog) Failures() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int)
	for _, e := range a.entries {
		if e.Status == AuditStatusError {
			out[e.Operation]++
		}
	}
	return out
}

// Operations lists the distinct audited operation names in sorted order.
func (a *AuditLog) Operations() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	seen := make(map[string]struct{})
	for _, e := range a.entries {
		seen[e.Operation] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for op := range seen {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}
