package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippetbot/internal/gateway"
)

type fakeSource struct {
	ch      chan gateway.Message
	stopped atomic.Bool
	timeout int
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan gateway.Message)}
}

func (s *fakeSource) Updates(_ context.Context, timeoutSeconds int) <-chan gateway.Message {
	s.timeout = timeoutSeconds
	return s.ch
}

func (s *fakeSource) StopUpdates() { s.stopped.Store(true) }

type recordingHandler struct {
	mu    sync.Mutex
	seen  []int64
	delay time.Duration
	err   error
}

func (h *recordingHandler) Handle(ctx context.Context, msg gateway.Message) error {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.ChatID)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRun_HandlesUntilSourceCloses(t *testing.T) {
	src := newFakeSource()
	h := &recordingHandler{err: errors.New("handler failed")}
	p := New(src, h, Config{TimeoutSeconds: 30, Workers: 4}, discard())

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	for i := int64(1); i <= 10; i++ {
		src.ch <- gateway.Message{ChatID: i}
	}
	close(src.ch)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the source closed")
	}

	assert.Equal(t, 10, h.count(), "handler errors must not stop the loop")
	assert.Equal(t, 30, src.timeout)
	assert.True(t, src.stopped.Load())
}

func TestRun_ShutdownWaitsForInFlight(t *testing.T) {
	src := newFakeSource()
	h := &recordingHandler{delay: 100 * time.Millisecond}
	p := New(src, h, Config{Workers: 2}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	src.ch <- gateway.Message{ChatID: 1}
	src.ch <- gateway.Message{ChatID: 2}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, 2, h.count(), "in-flight handlers should finish before Run returns")
	assert.True(t, src.stopped.Load())
}
