package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelDBStore_ChainSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit")

	store, err := OpenLevelDBStore(path)
	require.NoError(t, err)
	l, err := NewLog(ctx, store)
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		_, err := l.Append(ctx, "d1", "doctor", "RECORD_SESSION", "t1",
			map[string]any{"progress": i * 9, "vitals": map[string]any{"pulse": 72, "bp": "120/80"}, "note": "<ok> & fine"})
		require.NoError(t, err)
	}
	require.NoError(t, store.Close())

	store, err = OpenLevelDBStore(path)
	require.NoError(t, err)
	defer store.Close()

	l, err = NewLog(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, int64(12), l.Len())

	_, err = l.Append(ctx, SystemUserID, SystemRole, "AUTO_REASSIGN_PATIENT", "p1", nil)
	require.NoError(t, err)

	report, err := l.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid, report.Message)
	assert.Equal(t, 13, report.EntriesChecked)
}

func TestLevelDBStore_KeyOrderIsSeqOrder(t *testing.T) {
	ctx := context.Background()
	store, err := OpenLevelDBStore(filepath.Join(t.TempDir(), "audit"))
	require.NoError(t, err)
	defer store.Close()

	// Seq 10 sorts after seq 9 only because keys are zero padded.
	for _, seq := range []int64{9, 10, 2} {
		require.NoError(t, store.Append(ctx, &Entry{Seq: seq, ID: "e", Details: map[string]any{}}))
	}

	last, err := store.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), last.Seq)

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{2, 9, 10}, []int64{all[0].Seq, all[1].Seq, all[2].Seq})
}

func TestLevelDBStore_Truncate(t *testing.T) {
	ctx := context.Background()
	store, err := OpenLevelDBStore(filepath.Join(t.TempDir(), "audit"))
	require.NoError(t, err)
	defer store.Close()

	l, err := NewLog(ctx, store)
	require.NoError(t, err)
	appendN(t, l, 4)

	require.NoError(t, l.Reset(ctx))

	last, err := store.Last(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)
}
