// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/vigil/internal/event"
)

// captureConsumer records every batch it receives.
type captureConsumer struct {
	mu      sync.Mutex
	batches [][]*event.SecurityEvent
}

func (c *captureConsumer) Name() string { return "capture" }

func (c *captureConsumer) OnBatch(_ context.Context, batch []*event.SecurityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make([]*event.SecurityEvent, len(batch))
	copy(copied, batch)
	c.batches = append(c.batches, copied)
	return nil
}

func (c *captureConsumer) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *captureConsumer) batch(i int) []*event.SecurityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches[i]
}

// failingConsumer always returns an error.
type failingConsumer struct{}

func (failingConsumer) Name() string { return "failing" }

func (failingConsumer) OnBatch(context.Context, []*event.SecurityEvent) error {
	return errors.New("storage unavailable")
}

// panickyConsumer always panics.
type panickyConsumer struct{}

func (panickyConsumer) Name() string { return "panicky" }

func (panickyConsumer) OnBatch(context.Context, []*event.SecurityEvent) error {
	panic("unexpected state")
}

// blockingConsumer signals when it starts and waits for release.
type blockingConsumer struct {
	started chan struct{}
	release chan struct{}
}

func (blockingConsumer) Name() string { return "blocking" }

func (c blockingConsumer) OnBatch(context.Context, []*event.SecurityEvent) error {
	close(c.started)
	<-c.release
	return nil
}

func testEvent(i int) *event.SecurityEvent {
	return event.NewSecurityEvent(fmt.Sprintf("actor-%d", i), "TEST_EVENT", event.SeverityLow, nil)
}

func TestBus_PublishAndFlush(t *testing.T) {
	b := New(Config{Capacity: 10, BatchSize: 10, DrainInterval: time.Hour})
	consumer := &captureConsumer{}
	b.RegisterConsumer(consumer.Name(), consumer)

	events := []*event.SecurityEvent{testEvent(0), testEvent(1), testEvent(2)}
	for _, ev := range events {
		b.Publish(ev)
	}
	if got := b.Depth(); got != 3 {
		t.Fatalf("got depth %d, want 3", got)
	}

	if got := b.Flush(context.Background()); got != 3 {
		t.Fatalf("got %d dispatched, want 3", got)
	}
	if got := b.Depth(); got != 0 {
		t.Errorf("got depth %d after flush, want 0", got)
	}

	if got := consumer.batchCount(); got != 1 {
		t.Fatalf("got %d batches, want 1", got)
	}
	batch := consumer.batch(0)
	for i, ev := range batch {
		if ev.ID != events[i].ID {
			t.Errorf("batch[%d]: got event %s, want %s (FIFO order)", i, ev.ID, events[i].ID)
		}
	}
}

func TestBus_BackpressureExactDropCount(t *testing.T) {
	b := New(Config{Capacity: 10, BatchSize: 50, DrainInterval: time.Hour})

	for i := 0; i < 15; i++ {
		b.Publish(testEvent(i))
	}

	if got := b.Depth(); got != 10 {
		t.Errorf("got depth %d, want 10 (capacity)", got)
	}
	if got := b.Dropped(); got != 5 {
		t.Errorf("got %d dropped, want exactly 5", got)
	}

	// Draining frees capacity; publishing resumes without further drops.
	b.Flush(context.Background())
	b.Publish(testEvent(99))
	if got := b.Dropped(); got != 5 {
		t.Errorf("got %d dropped after drain, want 5", got)
	}
}

func TestBus_BatchSizeCap(t *testing.T) {
	b := New(Config{Capacity: 100, BatchSize: 5, DrainInterval: time.Hour})
	consumer := &captureConsumer{}
	b.RegisterConsumer(consumer.Name(), consumer)

	for i := 0; i < 12; i++ {
		b.Publish(testEvent(i))
	}

	ctx := context.Background()
	if got := b.Flush(ctx); got != 5 {
		t.Errorf("first flush: got %d, want 5", got)
	}
	if got := b.Depth(); got != 7 {
		t.Errorf("got depth %d after first flush, want 7", got)
	}
	if got := b.Flush(ctx); got != 5 {
		t.Errorf("second flush: got %d, want 5", got)
	}
	if got := b.Flush(ctx); got != 2 {
		t.Errorf("third flush: got %d, want 2", got)
	}
	if got := b.Flush(ctx); got != 0 {
		t.Errorf("flush of empty queue: got %d, want 0", got)
	}
}

func TestBus_ConsumerFailuresIsolated(t *testing.T) {
	b := New(Config{Capacity: 10, BatchSize: 10, DrainInterval: time.Hour})
	good := &captureConsumer{}
	b.RegisterConsumer("failing", failingConsumer{})
	b.RegisterConsumer("panicky", panickyConsumer{})
	b.RegisterConsumer(good.Name(), good)

	b.Publish(testEvent(0))
	b.Flush(context.Background())

	if got := good.batchCount(); got != 1 {
		t.Errorf("got %d batches on healthy consumer, want 1", got)
	}

	// The bus keeps working after failures.
	b.Publish(testEvent(1))
	b.Flush(context.Background())
	if got := good.batchCount(); got != 2 {
		t.Errorf("got %d batches after second flush, want 2", got)
	}
}

func TestBus_SingleFlightDrain(t *testing.T) {
	b := New(Config{Capacity: 10, BatchSize: 10, DrainInterval: time.Hour})
	blocking := blockingConsumer{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	b.RegisterConsumer(blocking.Name(), blocking)

	b.Publish(testEvent(0))
	b.Publish(testEvent(1))

	done := make(chan int)
	go func() {
		done <- b.Flush(context.Background())
	}()

	<-blocking.started

	// The first drain took both events and is still running. Publish a
	// third so the overlapping flush is blocked by the in-flight guard,
	// not by an empty queue.
	b.Publish(testEvent(2))
	if got := b.Flush(context.Background()); got != 0 {
		t.Errorf("got %d from overlapping flush, want 0 (single-flight)", got)
	}

	close(blocking.release)
	if got := <-done; got != 2 {
		t.Errorf("got %d from first flush, want 2", got)
	}

	// With the flag released the queued event drains normally.
	blocking2 := blockingConsumer{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	close(blocking2.release)
	b.RegisterConsumer("blocking", blocking2)
	if got := b.Flush(context.Background()); got != 1 {
		t.Errorf("got %d after release, want 1", got)
	}
}

func TestBus_RegisterConsumerReplaces(t *testing.T) {
	b := New(Config{Capacity: 10, BatchSize: 10, DrainInterval: time.Hour})
	old := &captureConsumer{}
	replacement := &captureConsumer{}
	b.RegisterConsumer("detector", old)
	b.RegisterConsumer("detector", replacement)

	b.Publish(testEvent(0))
	b.Flush(context.Background())

	if got := old.batchCount(); got != 0 {
		t.Errorf("replaced consumer got %d batches, want 0", got)
	}
	if got := replacement.batchCount(); got != 1 {
		t.Errorf("replacement got %d batches, want 1", got)
	}
}

func TestBus_PublishNilIsNoop(t *testing.T) {
	b := New(DefaultConfig())
	b.Publish(nil)
	if got := b.Depth(); got != 0 {
		t.Errorf("got depth %d, want 0", got)
	}
	if got := b.Dropped(); got != 0 {
		t.Errorf("got dropped %d, want 0", got)
	}
}

func TestBus_RunStopsWithoutFlushing(t *testing.T) {
	// Interval long enough that no tick fires before cancellation.
	b := New(Config{Capacity: 10, BatchSize: 10, DrainInterval: time.Hour})
	consumer := &captureConsumer{}
	b.RegisterConsumer(consumer.Name(), consumer)

	b.Publish(testEvent(0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- b.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	// Shutdown leaves queued events in place.
	if got := b.Depth(); got != 1 {
		t.Errorf("got depth %d after stop, want 1", got)
	}
	if got := consumer.batchCount(); got != 0 {
		t.Errorf("got %d batches after stop, want 0", got)
	}
}

func TestBus_DefaultsApplied(t *testing.T) {
	b := New(Config{})
	def := DefaultConfig()
	if b.capacity != def.Capacity {
		t.Errorf("got capacity %d, want %d", b.capacity, def.Capacity)
	}
	if b.batchSize != def.BatchSize {
		t.Errorf("got batch size %d, want %d", b.batchSize, def.BatchSize)
	}
	if b.drainInterval != def.DrainInterval {
		t.Errorf("got interval %v, want %v", b.drainInterval, def.DrainInterval)
	}
}
