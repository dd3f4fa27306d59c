package execlog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLog_OrderAndNonDestructiveDrain(t *testing.T) {
	l := New(context.Background(), nil)
	l.Infof("one %d", 1)
	l.Warnf("two")
	l.Errorf("three")

	first := l.Drain()
	second := l.Drain()
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("drain lengths %d,%d want 3,3", len(first), len(second))
	}
	want := []Level{LevelInfo, LevelWarning, LevelError}
	for i, e := range first {
		if e.Level != want[i] {
			t.Fatalf("entry %d level=%s want %s", i, e.Level, want[i])
		}
	}
	if first[0].Message != "one 1" {
		t.Fatalf("message=%q", first[0].Message)
	}

	// mutating the drained copy must not affect the log
	first[0].Message = "changed"
	if l.Drain()[0].Message != "one 1" {
		t.Fatal("drain returned shared backing array")
	}
}

func TestLog_Records(t *testing.T) {
	l := New(context.Background(), nil)
	l.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 5e6, time.UTC) }
	l.Infof("catalog fetched")

	recs := l.Records()
	if len(recs) != 1 {
		t.Fatalf("records=%d", len(recs))
	}
	if recs[0].Time != "2024-03-01 12:30:00.005" || recs[0].Type != "INFO" || recs[0].Log != "catalog fetched" {
		t.Fatalf("record=%+v", recs[0])
	}
}

func TestLog_ConcurrentAppends(t *testing.T) {
	l := New(context.Background(), nil)
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				l.Debugf("worker %d", i)
			}
		}()
	}
	wg.Wait()
	if l.Len() != 800 {
		t.Fatalf("len=%d want 800", l.Len())
	}
	if l.Count(LevelDebug) != 800 {
		t.Fatalf("debug count=%d", l.Count(LevelDebug))
	}
}

func TestLog_MirrorsToSlog(t *testing.T) {
	var buf bytes.Buffer
	mirror := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := New(context.Background(), mirror)
	l.Warnf("layer %s failed", "temp")

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "layer temp failed") {
		t.Fatalf("mirror output=%q", out)
	}
}
