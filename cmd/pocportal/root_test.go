package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperengineering/pocportal/internal/config"
)

// logCapture captures slog output for testing
type logCapture struct {
	mu      sync.Mutex
	entries []map[string]any
}

func (c *logCapture) handler() slog.Handler {
	return slog.NewJSONHandler(c, &slog.HandlerOptions{Level: slog.LevelDebug})
}

func (c *logCapture) Write(p []byte) (n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err == nil {
		c.entries = append(c.entries, entry)
	}
	return len(p), nil
}

func (c *logCapture) hasMessage(msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e["msg"] == msg {
			return true
		}
	}
	return false
}

func captureDefault(t *testing.T) *logCapture {
	t.Helper()
	capture := &logCapture{}
	old := slog.Default()
	slog.SetDefault(slog.New(capture.handler()))
	t.Cleanup(func() { slog.SetDefault(old) })
	return capture
}

func TestStartWorker_LaunchesGoroutineAndTracksCompletion(t *testing.T) {
	capture := captureDefault(t)

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	ran := atomic.Bool{}
	startWorker(ctx, &wg, "test-worker", func(ctx context.Context) {
		ran.Store(true)
		<-ctx.Done()
	})

	time.Sleep(10 * time.Millisecond)
	if !ran.Load() {
		t.Error("worker function was not called")
	}

	cancel()
	wg.Wait()

	for _, msg := range []string{"worker launched", "worker exited"} {
		if !capture.hasMessage(msg) {
			t.Errorf("expected %q log message", msg)
		}
	}
}

func TestStartWorker_WaitGroupCoversCleanup(t *testing.T) {
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	completed := atomic.Bool{}
	startWorker(ctx, &wg, "slow-worker", func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		completed.Store(true)
	})

	cancel()
	wg.Wait()

	if !completed.Load() {
		t.Error("wg.Wait() returned before worker completed")
	}
}

func TestStartWorker_LogsWorkerName(t *testing.T) {
	capture := captureDefault(t)

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	startWorker(ctx, &wg, "risk-snapshot", func(ctx context.Context) { <-ctx.Done() })
	cancel()
	wg.Wait()

	capture.mu.Lock()
	defer capture.mu.Unlock()
	for _, e := range capture.entries {
		if e["worker"] == "risk-snapshot" {
			return
		}
	}
	t.Error("expected log entry with worker='risk-snapshot' attribute")
}

func TestShutdownTimeoutRespected(t *testing.T) {
	srv := &http.Server{
		Addr: ":0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {}
		}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	srv.Shutdown(ctx)
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("shutdown took %v, expected <= 50ms", elapsed)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogHandler(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newLogHandler(&buf, config.LogConfig{Level: "info", Format: "json"})).Info("store initialized", "path", "x.db")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json format produced %q: %v", buf.String(), err)
	}
	if entry["msg"] != "store initialized" || entry["path"] != "x.db" {
		t.Errorf("entry = %v", entry)
	}

	buf.Reset()
	slog.New(newLogHandler(&buf, config.LogConfig{Level: "warn", Format: "text"})).Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
	slog.New(newLogHandler(&buf, config.LogConfig{Level: "warn", Format: "text"})).Warn("kept")
	if !bytes.Contains(buf.Bytes(), []byte("msg=kept")) {
		t.Errorf("text format output = %q", buf.String())
	}
}
