package findings

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestWALStoreRoundTrip(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	start := store.LastIndex()
	runID := uuid.New()

	require.NoError(t, store.Save(Finding{
		RunID:  runID,
		Suite:  "limit-entry",
		Status: StatusFail,
		Detail: "order not inserted into book",
	}))
	require.NoError(t, store.Save(Finding{
		RunID:  runID,
		Suite:  "limit-exec",
		Status: StatusPass,
	}))

	records, err := store.FindingsAfter(start)
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, "limit-entry", records[0].Finding.Suite)
	require.Equal(t, StatusFail, records[0].Finding.Status)
	require.Equal(t, "order not inserted into book", records[0].Finding.Detail)
	require.Equal(t, runID, records[0].Finding.RunID)
	require.False(t, records[0].Finding.Recorded.IsZero(), "save stamps the record")

	require.Equal(t, "limit-exec", records[1].Finding.Suite)
	require.Equal(t, StatusPass, records[1].Finding.Status)

	require.Equal(t, start+2, store.LastIndex())

	later, err := store.FindingsAfter(store.LastIndex())
	require.NoError(t, err)
	require.Empty(t, later, "nothing written after the cursor")
}

func TestWALStoreRequiresSuite(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	before := store.LastIndex()
	require.Error(t, store.Save(Finding{Status: StatusFail}))
	require.Equal(t, before, store.LastIndex(), "rejected findings leave the log untouched")
}
