package core

import (
	"context"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Logger is the structured logging surface used by the service. Key/value
// pairs follow the message.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus is the outcome recorded for an audited operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one service operation against the remote store or the local graph.
type AuditEntry struct {
	Operation string
	Status    AuditStatus
	Table     Table
	EntityID  Identity
	Revision  string
	Error     string
	Duration  time.Duration
	At        time.Time
}

// AuditRecorder receives audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder observes operation outcomes and latencies.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's error.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// opScope carries the audit fields an operation fills in as it runs.
type opScope struct {
	table    Table
	entityID Identity
	revision string
}

// observe wraps fn with tracing, metrics, audit and logging.
func (s *Service) observe(ctx context.Context, operation string, scope *opScope, fn func(context.Context) error) error {
	start := s.opts.clock.Now()
	ctx, span := s.opts.tracer.Start(ctx, operation)
	err := fn(ctx)
	span.End(err)
	elapsed := s.opts.clock.Now().Sub(start)
	s.opts.metrics.Observe(ctx, operation, err == nil, elapsed)

	entry := AuditEntry{
		Operation: operation,
		Status:    AuditStatusSuccess,
		Table:     scope.table,
		EntityID:  scope.entityID,
		Revision:  scope.revision,
		Duration:  elapsed,
		At:        start,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.opts.logger.Error("operation failed", "op", operation, "table", scope.table, "id", scope.entityID, "error", err)
	} else {
		s.opts.logger.Debug("operation completed", "op", operation, "table", scope.table, "id", scope.entityID, "duration", elapsed)
	}
	s.opts.audit.Record(ctx, entry)
	return err
}
