// Package logging adapts glog to the service logger interface.
package logging

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// GlogLogger writes service log lines through glog. Debug lines are emitted
// only at verbosity 1 and above.
type GlogLogger struct {
	prefix string
}

// NewGlogLogger returns a logger that tags every line with prefix.
func NewGlogLogger(prefix string) GlogLogger {
	return GlogLogger{prefix: prefix}
}

// Debug logs at glog verbosity 1.
func (l GlogLogger) Debug(msg string, kv ...any) {
	if glog.V(1) {
		glog.InfoDepth(1, l.line(msg, kv))
	}
}

// Info logs at INFO severity.
func (l GlogLogger) Info(msg string, kv ...any) { glog.InfoDepth(1, l.line(msg, kv)) }

// Warn logs at WARNING severity.
func (l GlogLogger) Warn(msg string, kv ...any) { glog.WarningDepth(1, l.line(msg, kv)) }

// Error logs at ERROR severity.
func (l GlogLogger) Error(msg string, kv ...any) { glog.ErrorDepth(1, l.line(msg, kv)) }

func (l GlogLogger) line(msg string, kv []any) string {
	return Format(l.prefix, msg, kv...)
}

// Format renders msg followed by key=value pairs. A trailing key without a
// value is rendered as key=(missing).
func Format(prefix, msg string, kv ...any) string {
	var b strings.Builder
	if prefix != "" {
		b.WriteString("[")
		b.WriteString(prefix)
		b.WriteString("] ")
	}
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		b.WriteString(" ")
		if i+1 >= len(kv) {
			fmt.Fprintf(&b, "%v=(missing)", kv[i])
			break
		}
		val := fmt.Sprint(kv[i+1])
		if strings.ContainsAny(val, " \t\"") {
			val = fmt.Sprintf("%q", val)
		}
		fmt.Fprintf(&b, "%v=%s", kv[i], val)
	}
	return b.String()
}
