// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package bus implements the bounded ingestion queue at the center of the
// pipeline. Publishing is non-blocking: when the queue is full the event is
// dropped and counted, never delaying the caller. A periodic drain pops a
// bounded batch and fans it out to all registered consumers concurrently,
// with a single-flight guard so overlapping timer fires never run two
// drains at once.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/event"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// Consumer receives drained batches. Implementations own their internal
// state; the batch itself is shared across consumers and must be treated
// as read-only.
type Consumer interface {
	// Name identifies the consumer in logs and metrics.
	Name() string

	// OnBatch processes one ordered batch of events. Errors are logged and
	// isolated; they never affect sibling consumers or the next batch.
	OnBatch(ctx context.Context, batch []*event.SecurityEvent) error
}

// Config holds bus tuning parameters.
type Config struct {
	// Capacity is the maximum number of queued events. Publishing beyond
	// capacity drops the event.
	Capacity int

	// BatchSize is the maximum number of events popped per drain.
	BatchSize int

	// DrainInterval is how often the drain timer fires.
	DrainInterval time.Duration
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:      1000,
		BatchSize:     50,
		DrainInterval: 500 * time.Millisecond,
	}
}

// Bus is the bounded event queue. All methods are safe for concurrent use.
type Bus struct {
	mu        sync.Mutex
	queue     []*event.SecurityEvent
	dropped   uint64
	inFlight  bool
	consumers []registeredConsumer

	capacity      int
	batchSize     int
	drainInterval time.Duration
}

type registeredConsumer struct {
	name     string
	consumer Consumer
}

// New creates a bus with the given configuration. Zero or negative values
// fall back to defaults.
func New(cfg Config) *Bus {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = def.DrainInterval
	}

	return &Bus{
		queue:         make([]*event.SecurityEvent, 0, cfg.Capacity),
		capacity:      cfg.Capacity,
		batchSize:     cfg.BatchSize,
		drainInterval: cfg.DrainInterval,
	}
}

// RegisterConsumer adds a consumer under the given name. Registering the
// same name twice replaces the previous consumer.
func (b *Bus) RegisterConsumer(name string, c Consumer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.consumers {
		if b.consumers[i].name == name {
			b.consumers[i].consumer = c
			return
		}
	}
	b.consumers = append(b.consumers, registeredConsumer{name: name, consumer: c})
}

// Publish appends the event to the queue. It never blocks: when the queue
// is at capacity the event is dropped and the dropped counter increments.
func (b *Bus) Publish(ev *event.SecurityEvent) {
	if ev == nil {
		return
	}

	b.mu.Lock()
	if len(b.queue) >= b.capacity {
		b.dropped++
		b.mu.Unlock()
		metrics.BusEventsDropped.Inc()
		return
	}
	b.queue = append(b.queue, ev)
	depth := len(b.queue)
	b.mu.Unlock()

	metrics.BusEventsEmitted.WithLabelValues(string(ev.Severity)).Inc()
	metrics.BusQueueDepth.Set(float64(depth))
}

// Depth returns the current number of queued events.
func (b *Bus) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Dropped returns the cumulative number of dropped events.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Flush drains one batch immediately, subject to the same single-flight
// guard as the timer. It returns the number of events dispatched; zero
// means the queue was empty or a drain was already in flight.
func (b *Bus) Flush(ctx context.Context) int {
	return b.drainOnce(ctx)
}

// Run drives the periodic drain until ctx is cancelled. It satisfies the
// suture service contract. Queued events are intentionally not flushed on
// shutdown.
func (b *Bus) Run(ctx context.Context) error {
	logging.Info().
		Int("capacity", b.capacity).
		Int("batch_size", b.batchSize).
		Dur("interval", b.drainInterval).
		Msg("Event bus drain loop started")

	ticker := time.NewTicker(b.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().
				Int("depth", b.Depth()).
				Uint64("dropped", b.Dropped()).
				Msg("Event bus drain loop stopped")
			return nil
		case <-ticker.C:
			b.drainOnce(ctx)
		}
	}
}

// drainOnce pops up to one batch and fans it out to every consumer
// concurrently, waiting for all of them before releasing the in-flight
// flag. A second drain cannot start while one is running.
func (b *Bus) drainOnce(ctx context.Context) int {
	b.mu.Lock()
	if b.inFlight || len(b.queue) == 0 {
		b.mu.Unlock()
		return 0
	}
	b.inFlight = true

	n := len(b.queue)
	if n > b.batchSize {
		n = b.batchSize
	}
	batch := make([]*event.SecurityEvent, n)
	copy(batch, b.queue[:n])
	remaining := copy(b.queue, b.queue[n:])
	for i := remaining; i < len(b.queue); i++ {
		b.queue[i] = nil
	}
	b.queue = b.queue[:remaining]

	consumers := make([]registeredConsumer, len(b.consumers))
	copy(consumers, b.consumers)
	b.mu.Unlock()

	metrics.BusQueueDepth.Set(float64(remaining))
	metrics.RecordBatchDispatch(n)

	var wg sync.WaitGroup
	for _, rc := range consumers {
		wg.Add(1)
		go func(rc registeredConsumer) {
			defer wg.Done()
			b.runConsumer(ctx, rc, batch)
		}(rc)
	}
	wg.Wait()

	b.mu.Lock()
	b.inFlight = false
	b.mu.Unlock()

	return n
}

// runConsumer invokes one consumer on the batch, converting panics into
// logged errors so a misbehaving consumer never takes down the bus or its
// siblings.
func (b *Bus) runConsumer(ctx context.Context, rc registeredConsumer, batch []*event.SecurityEvent) {
	start := time.Now()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("consumer panic: %v", r)
			}
		}()
		err = rc.consumer.OnBatch(ctx, batch)
	}()

	metrics.RecordConsumerBatch(rc.name, time.Since(start), err)
	if err != nil {
		logging.Error().
			Err(err).
			Str("consumer", rc.name).
			Int("batch_size", len(batch)).
			Msg("Consumer batch failed")
	}
}
