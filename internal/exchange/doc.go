// Package exchange implements the bounded producer/consumer handoff at
// the heart of conduit.
//
// An Exchange carries opaque items from any number of producer
// goroutines to any number of consumer goroutines through a fixed ring
// of slots, with three guarantees that hold under arbitrary
// interleavings:
//
//   - Exactly-once delivery: every item accepted by Produce is returned
//     by exactly one Consume. No loss, no duplication.
//   - Capacity bound: at most C items are buffered at any instant.
//     Producers block on a full buffer, consumers on an empty one.
//   - Termination: after Close, consumers drain the remaining items and
//     then receive a tagged end-of-stream result instead of blocking
//     forever. End-of-stream is a distinct result, never a reserved
//     payload value, so any payload — including all zeroes — is legal.
//
// ARCHITECTURE:
//
// Classic bounded-buffer shape, split in two:
//
// Counting signals (exchange.go): two token channels. One token in
// capTokens per free slot, one in availTokens per buffered item.
// Produce waits on capacity and signals availability; Consume is the
// mirror image. A select over {token, closed, ctx} makes every wait
// close-aware and cancellable. Waits never happen while holding the
// mutex, so a producer blocked on capacity can never prevent the
// consumer that would free it from making progress.
//
// Slot store (ring.go): a pure data structure — reserve/commit for the
// producer path, reserve/take for the consumer path — touched only
// inside the mutex. It does no blocking and no synchronization of its
// own.
//
// Lifecycle is New → Produce/Consume → Close → drain → Shutdown.
// Sequencing the lifecycle is the caller's job; the exchange detects and
// reports misuse (produce after close, shutdown while busy or undrained)
// deterministically instead of dropping items or hanging. See errors.go.
//
// Fairness among multiple blocked producers or consumers follows the Go
// runtime's channel wait queues: best-effort FIFO, not strict, but no
// waiter starves while the complementary operation keeps occurring.
package exchange
