package sim

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietConfig(cfg Config) Config {
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // suppress logs in tests
	return cfg
}

func TestRun_DeliversEverything(t *testing.T) {
	report, err := Run(context.Background(), quietConfig(Config{
		Name:             "smoke",
		Producers:        2,
		Consumers:        3,
		ItemsPerProducer: 25,
		Capacity:         4,
	}))
	require.NoError(t, err)
	require.NoError(t, report.Check())

	assert.Equal(t, "smoke", report.Name)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, uint64(50), report.Produced)
	assert.Equal(t, uint64(50), report.Consumed)
	assert.Equal(t, uint64(3), report.EndOfStream)
	assert.Zero(t, report.Mismatches)
	assert.Len(t, report.PerConsumer, 3)
}

// The original driver shape: more consumers than producers, capacity 1,
// with scheduling jitter. Every item still arrives exactly once.
func TestRun_TightCapacityWithJitter(t *testing.T) {
	report, err := Run(context.Background(), quietConfig(Config{
		Producers:        2,
		Consumers:        5,
		ItemsPerProducer: 50,
		Capacity:         1,
		Jitter:           true,
	}))
	require.NoError(t, err)
	require.NoError(t, report.Check())
	assert.Equal(t, uint64(100), report.Consumed)
	assert.Equal(t, uint64(5), report.EndOfStream)
}

func TestRun_ZeroItems(t *testing.T) {
	// Producers that produce nothing still require the close handshake to
	// release the consumers.
	report, err := Run(context.Background(), quietConfig(Config{
		Producers:        1,
		Consumers:        4,
		ItemsPerProducer: 0,
		Capacity:         2,
	}))
	require.NoError(t, err)
	require.NoError(t, report.Check())
	assert.Zero(t, report.Consumed)
	assert.Equal(t, uint64(4), report.EndOfStream)
}

func TestRun_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no producers", Config{Consumers: 1, ItemsPerProducer: 1, Capacity: 1}},
		{"no consumers", Config{Producers: 1, ItemsPerProducer: 1, Capacity: 1}},
		{"negative items", Config{Producers: 1, Consumers: 1, ItemsPerProducer: -1, Capacity: 1}},
		{"zero capacity", Config{Producers: 1, Consumers: 1, ItemsPerProducer: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), quietConfig(tt.cfg))
			assert.Error(t, err)
		})
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, quietConfig(Config{
		Producers:        1,
		Consumers:        1,
		ItemsPerProducer: 1000,
		Capacity:         1,
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_NameNormalization(t *testing.T) {
	// "é" as combining sequence (NFD) must normalize to the precomposed
	// form so run names compare equal across platforms.
	cfg, err := Config{
		Name:             "café",
		Producers:        1,
		Consumers:        1,
		ItemsPerProducer: 1,
		Capacity:         1,
	}.normalized()
	require.NoError(t, err)
	assert.Equal(t, "café", cfg.Name)
}

func TestConfig_DefaultName(t *testing.T) {
	cfg, err := Config{Producers: 1, Consumers: 1, ItemsPerProducer: 1, Capacity: 1}.normalized()
	require.NoError(t, err)
	assert.Equal(t, "adhoc", cfg.Name)
}

func TestPairFor_UniqueAcrossProducers(t *testing.T) {
	seen := map[uint64]bool{}
	for p := 0; p < 4; p++ {
		for k := 0; k < 100; k++ {
			pair := pairFor(p, k)
			assert.Equal(t, pair.First+1, pair.Second)
			assert.False(t, seen[pair.First], "duplicate payload %d", pair.First)
			seen[pair.First] = true
		}
	}
}

func TestReport_Check(t *testing.T) {
	good := Report{
		RunID:            "run-1",
		Producers:        2,
		Consumers:        2,
		ItemsPerProducer: 5,
		Produced:         10,
		Consumed:         10,
		EndOfStream:      2,
		PerConsumer:      []uint64{4, 6},
		StartedAt:        time.Now(),
	}
	require.NoError(t, good.Check())

	lost := good
	lost.Consumed = 9
	lost.PerConsumer = []uint64{4, 5}
	assert.ErrorContains(t, lost.Check(), "consumed 9")

	starved := good
	starved.EndOfStream = 1
	assert.ErrorContains(t, starved.Check(), "end-of-stream")

	corrupt := good
	corrupt.Mismatches = 2
	assert.ErrorContains(t, corrupt.Check(), "mismatches")
}
