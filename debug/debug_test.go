package debug

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestGoroutineLogger_StopsWithContext(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx, cancel := context.WithCancel(context.Background())
	StartGoroutineLogger(ctx, 5*time.Millisecond, logger)

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(buf.String(), `"goroutine-stacks"`) {
		if time.Now().After(deadline) {
			t.Fatalf("no goroutine stats logged")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
}
