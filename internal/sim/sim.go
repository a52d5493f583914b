// Package sim drives a conduit exchange with a configurable fleet of
// producer and consumer goroutines and reports what happened.
//
// Each producer pushes a fixed number of integer pairs whose second
// number is the first plus one; consumers verify the relation and tally
// deliveries. The payload relation belongs to the simulation — the
// exchange never inspects it. A run executes the full lifecycle the
// exchange contract requires: produce, join producers, close, drain,
// join consumers, shutdown.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fastrand"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/conduit/internal/exchange"
)

// Pair is the simulated payload: two related integers. Consumers expect
// Second == First+1 and report anything else as a mismatch.
type Pair struct {
	First  uint64 `json:"first"`
	Second uint64 `json:"second"`
}

// Config describes one simulation run.
type Config struct {
	// Name labels the run in logs, reports and the run log.
	// Normalized to Unicode NFC so the same scenario name compares equal
	// regardless of how the source file encoded it.
	Name string

	Producers        int
	Consumers        int
	ItemsPerProducer int
	Capacity         int

	// Jitter adds random scheduling yields inside producers and
	// consumers to shake out more interleavings.
	Jitter bool

	// Logger receives run progress. Defaults to slog.Default().
	Logger *slog.Logger
}

// normalized validates the config and fills defaults.
func (c Config) normalized() (Config, error) {
	if c.Name == "" {
		c.Name = "adhoc"
	}
	c.Name = norm.NFC.String(c.Name)
	if c.Producers < 1 {
		return c, fmt.Errorf("invalid config: producers must be at least 1, got %d", c.Producers)
	}
	if c.Consumers < 1 {
		return c, fmt.Errorf("invalid config: consumers must be at least 1, got %d", c.Consumers)
	}
	if c.ItemsPerProducer < 0 {
		return c, fmt.Errorf("invalid config: items per producer must not be negative, got %d", c.ItemsPerProducer)
	}
	if c.Capacity < 1 {
		return c, fmt.Errorf("invalid config: capacity must be at least 1, got %d", c.Capacity)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c, nil
}

// pairFor builds producer p's k-th payload. The producer index lives in
// the high bits so items are globally unique across producers.
func pairFor(p, k int) Pair {
	first := uint64(p)<<32 | uint64(k)
	return Pair{First: first, Second: first + 1}
}

// Run executes one simulation and returns its report.
//
// Returns an error if the config is invalid, the exchange cannot be
// allocated, or ctx is cancelled mid-run. Payload mismatches do not fail
// the run — they are counted in the report so the caller can decide.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger

	ex, err := exchange.New[Pair](cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("startup: %w", err)
	}

	runID := uuid.Must(uuid.NewV7()).String()
	startedAt := time.Now()
	logger.Info("simulation starting",
		"run", runID,
		"name", cfg.Name,
		"producers", cfg.Producers,
		"consumers", cfg.Consumers,
		"items_per_producer", cfg.ItemsPerProducer,
		"capacity", cfg.Capacity,
	)

	var (
		produced   atomic.Uint64
		consumed   atomic.Uint64
		eos        atomic.Uint64
		mismatches atomic.Uint64

		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	// Each consumer owns one tally slot; the consumer WaitGroup publishes
	// the writes before the report reads them.
	perConsumer := make([]uint64, cfg.Consumers)

	var producerWG sync.WaitGroup
	for p := 0; p < cfg.Producers; p++ {
		producerWG.Add(1)
		go func(p int) {
			defer producerWG.Done()
			logger.Debug("producer started", "producer", p)
			for k := 0; k < cfg.ItemsPerProducer; k++ {
				if cfg.Jitter && fastrand.Uint32n(4) == 0 {
					runtime.Gosched()
				}
				if err := ex.Produce(ctx, pairFor(p, k)); err != nil {
					fail(fmt.Errorf("producer %d: %w", p, err))
					return
				}
				produced.Add(1)
			}
			logger.Debug("producer finished", "producer", p)
		}(p)
	}

	var consumerWG sync.WaitGroup
	for c := 0; c < cfg.Consumers; c++ {
		consumerWG.Add(1)
		go func(c int) {
			defer consumerWG.Done()
			logger.Debug("consumer started", "consumer", c)
			for {
				item, ok, err := ex.Consume(ctx)
				if err != nil {
					fail(fmt.Errorf("consumer %d: %w", c, err))
					return
				}
				if !ok {
					eos.Add(1)
					logger.Debug("consumer finished", "consumer", c, "items", perConsumer[c])
					return
				}
				if item.Second != item.First+1 {
					mismatches.Add(1)
					logger.Warn("unexpected item data", "consumer", c, "first", item.First, "second", item.Second)
				}
				perConsumer[c]++
				consumed.Add(1)
				if cfg.Jitter && fastrand.Uint32n(4) == 0 {
					runtime.Gosched()
				}
			}
		}(c)
	}

	producerWG.Wait()
	logger.Info("all producers finished", "produced", produced.Load())

	if err := ex.Close(); err != nil {
		fail(fmt.Errorf("close: %w", err))
	}

	consumerWG.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	if err := ex.Shutdown(); err != nil {
		return nil, fmt.Errorf("shutdown: %w", err)
	}

	report := &Report{
		RunID:            runID,
		Name:             cfg.Name,
		StartedAt:        startedAt,
		Duration:         time.Since(startedAt),
		Producers:        cfg.Producers,
		Consumers:        cfg.Consumers,
		ItemsPerProducer: cfg.ItemsPerProducer,
		Capacity:         cfg.Capacity,
		Produced:         produced.Load(),
		Consumed:         consumed.Load(),
		EndOfStream:      eos.Load(),
		Mismatches:       mismatches.Load(),
		PerConsumer:      perConsumer,
	}
	logger.Info("simulation finished",
		"run", runID,
		"consumed", report.Consumed,
		"end_of_stream", report.EndOfStream,
		"mismatches", report.Mismatches,
		"duration", report.Duration,
	)
	return report, nil
}
