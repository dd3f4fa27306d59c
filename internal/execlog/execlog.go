// Package execlog is the request-scoped execution log returned to callers
// alongside extraction results.
package execlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug   Level = "DEBUG"
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// TimeLayout is the timestamp format used in rendered records.
const TimeLayout = "2006-01-02 15:04:05.000"

type Entry struct {
	Time    time.Time
	Level   Level
	Message string
}

// Record is the caller-facing rendering of one entry.
type Record struct {
	Time string `json:"time"`
	Type string `json:"type"`
	Log  string `json:"log"`
}

// Log is append-only and safe for concurrent use by the workers of a single
// request. It must not be shared between requests.
type Log struct {
	mu      sync.Mutex
	entries []Entry

	ctx    context.Context
	mirror *slog.Logger
	now    func() time.Time
}

// New returns an empty log. When mirror is non-nil every entry is also
// written to it, carrying ctx so request ids reach the process log.
func New(ctx context.Context, mirror *slog.Logger) *Log {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Log{ctx: ctx, mirror: mirror, now: time.Now}
}

func (l *Log) Log(level Level, msg string) {
	e := Entry{Time: l.now(), Level: level, Message: msg}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	if l.mirror != nil {
		l.mirror.Log(l.ctx, level.slog(), msg, "source", "execlog")
	}
}

func (l *Log) Debugf(format string, args ...any) { l.Log(LevelDebug, fmt.Sprintf(format, args...)) }
func (l *Log) Infof(format string, args ...any)  { l.Log(LevelInfo, fmt.Sprintf(format, args...)) }
func (l *Log) Warnf(format string, args ...any)  { l.Log(LevelWarning, fmt.Sprintf(format, args...)) }
func (l *Log) Errorf(format string, args ...any) { l.Log(LevelError, fmt.Sprintf(format, args...)) }

// Drain returns a copy of all entries in append order. It does not clear the log.
func (l *Log) Drain() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Records renders the entries as {time, type, log} objects.
func (l *Log) Records() []Record {
	entries := l.Drain()
	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		out = append(out, Record{
			Time: e.Time.Format(TimeLayout),
			Type: string(e.Level),
			Log:  e.Message,
		})
	}
	return out
}

// Count returns the number of entries at the given level.
func (l *Log) Count(level Level) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

func (lv Level) slog() slog.Level {
	switch lv {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
