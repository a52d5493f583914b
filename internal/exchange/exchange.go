package exchange

import (
	"context"
	"sync"
	"sync/atomic"
)

// MaxCapacity bounds the slot storage an exchange will allocate.
// Startup refuses larger capacities with a ResourceError rather than
// letting the allocation take down the process.
const MaxCapacity = 1 << 24

// token is one unit of a counting signal.
type token = struct{}

// Exchange is a bounded, blocking, multi-producer/multi-consumer handoff.
//
// Items enter through Produce and leave through Consume, exactly once
// each, in some total order that preserves each single producer's call
// order. At most Capacity items are in flight at any instant. Producers
// block while the buffer is full, consumers block while it is empty, and
// Close unblocks every remaining consumer with an end-of-stream result
// once the buffer drains.
//
// The two counting signals are token channels: capTokens holds one token
// per free slot (starts full), availTokens one token per delivered-but-
// unconsumed item (starts empty). Receiving a token is the blocking wait,
// sending it back is the signal. The mutex guards only the ring and the
// lifecycle flags; no goroutine ever blocks on a token while holding it,
// which is what rules out the producer/consumer deadlock cycle.
type Exchange[T any] struct {
	mu   sync.Mutex
	ring *ring[T]

	capTokens   chan token // capacity signal: one token per free slot
	availTokens chan token // availability signal: one token per buffered item

	// closed is closed by Close; a closed channel is the broadcast that
	// wakes every waiter at once.
	closed    chan struct{}
	isClosed  bool         // guarded by mu
	isShut    bool         // guarded by mu
	producers atomic.Int64 // calls currently inside Produce
	consumers atomic.Int64 // calls currently inside Consume
}

// New allocates an exchange with a fixed capacity.
//
// Returns a UsageError for capacity < 1 and a ResourceError when the
// slot storage or counting signals cannot be allocated (capacity beyond
// MaxCapacity). On error no partial state exists.
func New[T any](capacity int) (*Exchange[T], error) {
	if capacity < 1 {
		return nil, newUsageError(ErrCodeInvalidCapacity, "capacity must be at least 1, got %d", capacity)
	}
	if capacity > MaxCapacity {
		return nil, &ResourceError{
			Capacity: capacity,
			Message:  "cannot allocate slot storage and counting signals",
		}
	}

	e := &Exchange[T]{
		ring:        newRing[T](capacity),
		capTokens:   make(chan token, capacity),
		availTokens: make(chan token, capacity),
		closed:      make(chan struct{}),
	}
	for i := 0; i < capacity; i++ {
		e.capTokens <- token{}
	}
	return e, nil
}

// Capacity returns the fixed number of slots.
func (e *Exchange[T]) Capacity() int {
	return e.ring.cap()
}

// Len returns the number of items currently buffered.
// The value may be stale by the time the caller observes it.
func (e *Exchange[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ring.len()
}

// Produce stores item and makes it visible to exactly one future Consume.
//
// Blocks until a slot is free. Never returns before the item is durably
// placed in the buffer: a nil error means the item will be delivered.
// Safe for any number of concurrent producers; items from one producer's
// sequential calls are delivered in call order.
//
// Fails with a UsageError (PRODUCE_AFTER_CLOSE) if the exchange is
// closed, including while the caller is blocked waiting for capacity.
// Returns ctx.Err() if ctx is cancelled first; a cancelled wait reserves
// nothing, so there is nothing to roll back.
func (e *Exchange[T]) Produce(ctx context.Context, item T) error {
	if err := e.produceState(); err != nil {
		return err
	}

	e.producers.Add(1)
	defer e.producers.Add(-1)

	select {
	case <-e.capTokens:
	case <-e.closed:
		return newUsageError(ErrCodeProduceAfterClose, "exchange closed while producing")
	case <-ctx.Done():
		return ctx.Err()
	}

	e.mu.Lock()
	if e.isClosed {
		// Close raced with the capacity wait; return the token so the
		// free-slot count stays exact.
		e.mu.Unlock()
		e.capTokens <- token{}
		return newUsageError(ErrCodeProduceAfterClose, "exchange closed while producing")
	}
	h, ok := e.ring.reserveEmpty()
	if !ok {
		e.mu.Unlock()
		panic("exchange: capacity token held but no empty slot")
	}
	e.ring.commit(h, item)
	e.mu.Unlock()

	// Buffered to capacity and tokens are conserved, so this never blocks.
	e.availTokens <- token{}
	return nil
}

// Consume removes and returns one item.
//
// Blocks until an item is available. The second return is false only for
// the end-of-stream result: the exchange is closed and fully drained, and
// no item will ever arrive. End-of-stream is reported to every consumer
// that asks, so any number of blocked or late consumers are released.
//
// Returns ctx.Err() if ctx is cancelled while waiting; a cancelled wait
// consumes nothing.
func (e *Exchange[T]) Consume(ctx context.Context) (T, bool, error) {
	var zero T
	if err := e.consumeState(); err != nil {
		return zero, false, err
	}

	e.consumers.Add(1)
	defer e.consumers.Add(-1)

	select {
	case <-e.availTokens:
		return e.takeOne(), true, nil
	case <-e.closed:
		// Closed, but items produced before the close may remain. Drain
		// without blocking; only a closed AND empty exchange ends the
		// stream.
		select {
		case <-e.availTokens:
			return e.takeOne(), true, nil
		default:
			return zero, false, nil
		}
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// takeOne redeems one availability token for the oldest buffered item and
// frees its slot.
func (e *Exchange[T]) takeOne() T {
	e.mu.Lock()
	h, ok := e.ring.reserveFull()
	if !ok {
		e.mu.Unlock()
		panic("exchange: availability token held but no occupied slot")
	}
	item := e.ring.take(h)
	e.mu.Unlock()

	e.capTokens <- token{}
	return item
}

// Close transitions the exchange from Open to Closed: no further items
// will ever be accepted. Wakes every blocked consumer (they drain the
// buffer and then observe end-of-stream) and every blocked producer
// (they fail with PRODUCE_AFTER_CLOSE).
//
// The caller must know all producers have finished before closing;
// a second Close is a UsageError (ALREADY_CLOSED).
func (e *Exchange[T]) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isShut {
		return newUsageError(ErrCodeShutDown, "close on a shut-down exchange")
	}
	if e.isClosed {
		return newUsageError(ErrCodeAlreadyClosed, "exchange already closed")
	}
	e.isClosed = true
	close(e.closed)
	return nil
}

// Shutdown releases the exchange. Only legal after the full
// produce → close → drain sequence:
//
//   - SHUTDOWN_BUSY: a producer or consumer is still inside the exchange
//     (for example a producer blocked on a full buffer that will never
//     drain — that item must not be silently discarded).
//   - SHUTDOWN_OPEN: Close has not been called.
//   - SHUTDOWN_UNDRAINED: undelivered items remain in the buffer.
//
// After a successful Shutdown every operation fails with
// EXCHANGE_SHUT_DOWN.
func (e *Exchange[T]) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isShut {
		return newUsageError(ErrCodeShutDown, "exchange already shut down")
	}
	if e.producers.Load() > 0 {
		return newUsageError(ErrCodeShutdownBusy, "%d producer(s) still inside Produce", e.producers.Load())
	}
	if e.consumers.Load() > 0 {
		return newUsageError(ErrCodeShutdownBusy, "%d consumer(s) still inside Consume", e.consumers.Load())
	}
	if !e.isClosed {
		return newUsageError(ErrCodeShutdownOpen, "shutdown before close")
	}
	if n := e.ring.len(); n > 0 {
		return newUsageError(ErrCodeShutdownUndrained, "%d undelivered item(s) remain", n)
	}
	e.isShut = true
	return nil
}

func (e *Exchange[T]) produceState() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isShut {
		return newUsageError(ErrCodeShutDown, "produce on a shut-down exchange")
	}
	if e.isClosed {
		return newUsageError(ErrCodeProduceAfterClose, "produce on a closed exchange")
	}
	return nil
}

func (e *Exchange[T]) consumeState() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isShut {
		return newUsageError(ErrCodeShutDown, "consume on a shut-down exchange")
	}
	return nil
}
