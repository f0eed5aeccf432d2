package vds

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// countingBus is safe for the poller goroutine and the test to share.
type countingBus struct {
	mu    sync.Mutex
	reads int
}

func (b *countingBus) ReadA16D32(_ context.Context, _, _ uint32) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	return 0, nil
}

func (b *countingBus) WriteA16D32(_ context.Context, _, _ uint32, _ uint32) error {
	return nil
}

func (b *countingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

func waitForReads(t *testing.T, bus *countingBus, min int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if bus.count() >= min {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("bus reads = %d, want at least %d", bus.count(), min)
}

func TestPollerRestart(t *testing.T) {
	bus := &countingBus{}
	m, err := NewModule("hv0", 0x9000, bus, zap.NewNop())
	if err != nil {
		t.Fatalf("NewModule err=%v", err)
	}

	p := NewPoller(m, 2*time.Millisecond, zap.NewNop())

	if err := p.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	if !p.IsRunning() {
		t.Error("poller should report running after Start")
	}
	waitForReads(t, bus, 1)

	p.Stop()
	if p.IsRunning() {
		t.Error("poller should report stopped after Stop")
	}
	afterStop := bus.count()

	// second cycle must poll again
	if err := p.Start(); err != nil {
		t.Fatalf("restart err=%v", err)
	}
	if !p.IsRunning() {
		t.Error("poller should report running after restart")
	}
	waitForReads(t, bus, afterStop+1)

	p.Stop()
}

func TestPollerConcurrentStop(t *testing.T) {
	bus := &countingBus{}
	m, err := NewModule("hv0", 0x9000, bus, zap.NewNop())
	if err != nil {
		t.Fatalf("NewModule err=%v", err)
	}

	p := NewPoller(m, 2*time.Millisecond, zap.NewNop())
	if err := p.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Stop()
		}()
	}
	wg.Wait()

	if p.IsRunning() {
		t.Error("poller should report stopped")
	}

	// Stop on an already-stopped poller stays a no-op
	p.Stop()
}

func TestPollerDoubleStartIsNoOp(t *testing.T) {
	bus := &countingBus{}
	m, err := NewModule("hv0", 0x9000, bus, zap.NewNop())
	if err != nil {
		t.Fatalf("NewModule err=%v", err)
	}

	p := NewPoller(m, time.Hour, zap.NewNop())
	if err := p.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("second Start err=%v", err)
	}

	p.Stop()
	if p.IsRunning() {
		t.Error("poller should report stopped")
	}
}
