package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/conduit/internal/sim"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func testReport(id string, startedAt time.Time) *sim.Report {
	return &sim.Report{
		RunID:            id,
		Name:             "smoke",
		StartedAt:        startedAt,
		Duration:         125 * time.Millisecond,
		Producers:        2,
		Consumers:        5,
		ItemsPerProducer: 30,
		Capacity:         8,
		Produced:         60,
		Consumed:         60,
		EndOfStream:      5,
		Mismatches:       0,
		PerConsumer:      []uint64{12, 12, 12, 12, 12},
	}
}

func TestStore_RecordAndList(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	startedAt := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(ctx, testReport("run-1", startedAt)))

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, "smoke", run.Name)
	assert.True(t, run.StartedAt.Equal(startedAt))
	assert.Equal(t, int64(125), run.DurationMS)
	assert.Equal(t, 2, run.Producers)
	assert.Equal(t, 5, run.Consumers)
	assert.Equal(t, uint64(60), run.Consumed)
	assert.Equal(t, uint64(5), run.EndOfStream)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, store.Record(ctx, testReport(id, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-c", runs[0].RunID)
	assert.Equal(t, "run-a", runs[2].RunID)

	limited, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-c", limited[0].RunID)
}

func TestStore_DuplicateRunID(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	startedAt := time.Now().UTC()
	require.NoError(t, store.Record(ctx, testReport("run-dup", startedAt)))
	err := store.Record(ctx, testReport("run-dup", startedAt))
	assert.Error(t, err, "run IDs are primary keys")
}

func TestStore_ListEmpty(t *testing.T) {
	store := testStore(t)

	runs, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Record(context.Background(), testReport("run-1", time.Now().UTC())))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	runs, err := second.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
