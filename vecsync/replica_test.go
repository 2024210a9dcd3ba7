package vecsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/sparsevec/vec"
	"github.com/viant/sparsevec/vector"
)

func TestNewSyncer_Validation(t *testing.T) {
	db := openMemory(t)
	_, err := NewSyncer(nil, db, Config{DatasetID: "a", ShadowTable: shadow})
	assert.Error(t, err)
	_, err = NewSyncer(db, db, Config{ShadowTable: shadow})
	assert.Error(t, err)
	_, err = NewSyncer(db, db, Config{DatasetID: "a"})
	assert.Error(t, err)
}

func TestSyncer_Sync(t *testing.T) {
	ctx := context.Background()
	upstream := openMemory(t)
	replica := openMemory(t)
	require.NoError(t, EnableChangeLog(ctx, upstream, shadow))

	put(t, upstream, "a", "d1", "one", vector.FromMap(map[vector.Dimension]float64{1: 1}))
	put(t, upstream, "a", "d2", "two", vector.FromMap(map[vector.Dimension]float64{2: 1}))
	put(t, upstream, "b", "x1", "ex", vector.FromMap(map[vector.Dimension]float64{3: 1}))
	put(t, upstream, "a", "d1", "uno", vector.FromMap(map[vector.Dimension]float64{1: 2}))
	_, err := upstream.Exec(`DELETE FROM ` + shadow + ` WHERE dataset_id = 'a' AND id = 'd2'`)
	require.NoError(t, err)

	s, err := NewSyncer(upstream, replica, Config{DatasetID: "a", ShadowTable: shadow, BatchSize: 3})
	require.NoError(t, err)

	st, err := s.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.LastSCN)

	n, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, map[string]string{"d1": "uno"}, replicaDocs(t, s))

	st, err = s.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.LastSCN)
	assert.False(t, st.UpdatedAt.IsZero())

	// key change replays as delete + insert
	_, err = upstream.Exec(`UPDATE ` + shadow + ` SET id = 'd9' WHERE dataset_id = 'a' AND id = 'd1'`)
	require.NoError(t, err)
	n, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[string]string{"d9": "uno"}, replicaDocs(t, s))

	n, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	idx, err := vec.BuildIndex(ctx, replica, shadow, "a", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}

func TestSyncer_ApplyRejects(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	require.NoError(t, vec.EnsureShadow(ctx, db, shadow))
	s, err := NewSyncer(db, db, Config{DatasetID: "a", ShadowTable: shadow})
	require.NoError(t, err)

	_, err = s.Apply(ctx, nil)
	assert.Error(t, err)
	_, err = s.Apply(ctx, []LogEntry{{DatasetID: "b", SCN: 1, Op: OpDelete, DocumentID: "x"}})
	assert.Error(t, err)
	_, err = s.Apply(ctx, []LogEntry{{DatasetID: "a", SCN: 1, Op: "merge", DocumentID: "x"}})
	assert.Error(t, err)

	st, err := s.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.LastSCN, "failed batches do not advance state")
}

func replicaDocs(t *testing.T, s *Syncer) map[string]string {
	t.Helper()
	rows, err := s.replica.Query(`SELECT id, content FROM ` + s.cfg.replicaTable() + ` WHERE dataset_id = ? ORDER BY id`, s.cfg.DatasetID)
	require.NoError(t, err)
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var id, content string
		require.NoError(t, rows.Scan(&id, &content))
		out[id] = content
	}
	require.NoError(t, rows.Err())
	return out
}
