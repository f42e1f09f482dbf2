package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/taskgraph/pkg/api"
)

func sampleRecord(entity api.EntityID, node int) RunnerRecord {
	return RunnerRecord{
		Entity: entity,
		Graph:  "graphs/patrol.json",
		State: api.RunnerState{
			TemplateID: api.AssetID(0xfeedface_deadbeef),
			NodeIndex:  node,
			StateTimer: 0.25,
			LastStatus: api.StatusSuccess,
			Blackboard: []byte{1, 2, 3, 4},
		},
	}
}

// testRunnerStore exercises the RunnerStore contract against store, which
// must start empty.
func testRunnerStore(t *testing.T, store RunnerStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.LoadRunner(ctx, 1)
	require.ErrorIs(t, err, ErrRunnerNotFound)

	recs, err := store.ListRunners(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	rec := sampleRecord(^api.EntityID(0), 2)
	require.NoError(t, store.SaveRunner(ctx, rec))
	got, err := store.LoadRunner(ctx, rec.Entity)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	// Saving again replaces the record.
	rec.State.NodeIndex = -1
	rec.State.LastStatus = api.StatusFailure
	rec.State.Blackboard = []byte{9}
	require.NoError(t, store.SaveRunner(ctx, rec))
	got, err = store.LoadRunner(ctx, rec.Entity)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	require.NoError(t, store.SaveRunner(ctx, sampleRecord(7, 0)))
	require.NoError(t, store.SaveRunner(ctx, sampleRecord(3, 1)))
	recs, err = store.ListRunners(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, api.EntityID(3), recs[0].Entity)
	assert.Equal(t, api.EntityID(7), recs[1].Entity)
	assert.Equal(t, rec.Entity, recs[2].Entity)

	require.NoError(t, store.DeleteRunner(ctx, 7))
	require.NoError(t, store.DeleteRunner(ctx, 7))
	_, err = store.LoadRunner(ctx, 7)
	assert.ErrorIs(t, err, ErrRunnerNotFound)
	recs, err = store.ListRunners(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestInMemoryStore_Contract(t *testing.T) {
	testRunnerStore(t, NewInMemoryStore())
}

func TestInMemoryStore_CopiesBlackboard(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	rec := sampleRecord(1, 0)
	require.NoError(t, store.SaveRunner(ctx, rec))

	rec.State.Blackboard[0] = 99
	got, err := store.LoadRunner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(1), got.State.Blackboard[0])

	got.State.Blackboard[1] = 99
	again, err := store.LoadRunner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(2), again.State.Blackboard[1])
}

func TestRecordCodec(t *testing.T) {
	rec := sampleRecord(42, 5)
	data, err := EncodeRecord(rec)
	require.NoError(t, err)

	got, err := DecodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = DecodeRecord(nil)
	assert.ErrorIs(t, err, ErrRunnerNotFound)
	_, err = DecodeRecord([]byte("not gob"))
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryStore{}, store)
	assert.NoError(t, closeFn())

	store, closeFn, err = Open(ctx, Options{Backend: "SQLite"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteRunnerStore{}, store)
	testRunnerStore(t, store)
	assert.NoError(t, closeFn())

	_, closeFn, err = Open(ctx, Options{Backend: "etcd"})
	assert.Error(t, err)
	assert.NotNil(t, closeFn)
}
