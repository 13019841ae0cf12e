package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Fields are extra key/values attached to a log line.
type Fields map[string]any

// Logger writes one JSON object per line. Every line carries ts, level,
// component and event. It is safe for concurrent use.
type Logger struct {
	mu        *sync.Mutex
	w         io.Writer
	loc       *time.Location
	component string
}

// New creates a logger for component writing to w in location loc.
func New(w io.Writer, loc *time.Location, component string) *Logger {
	if w == nil {
		w = os.Stdout
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Logger{mu: &sync.Mutex{}, w: w, loc: loc, component: component}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, time.UTC, "")
}

// With returns a logger sharing the writer but tagged with another component.
func (l *Logger) With(component string) *Logger {
	return &Logger{mu: l.mu, w: l.w, loc: l.loc, component: component}
}

func (l *Logger) Info(event string, f Fields)  { l.write("info", event, f) }
func (l *Logger) Warn(event string, f Fields)  { l.write("warn", event, f) }
func (l *Logger) Error(event string, f Fields) { l.write("error", event, f) }

func (l *Logger) write(level, event string, f Fields) {
	data := make(map[string]any, len(f)+4)
	for k, v := range f {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}
	data["ts"] = time.Now().In(l.loc).Format(time.RFC3339Nano)
	data["level"] = level
	data["event"] = event
	if l.component != "" {
		data["component"] = l.component
	}

	b, err := json.Marshal(data)
	if err != nil {
		b = []byte(fmt.Sprintf(`{"level":"error","event":"log_marshal_failed","error":%q}`, err.Error()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(append(b, '\n'))
}
