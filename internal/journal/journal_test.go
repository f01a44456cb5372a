package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"

	"github.com/Liam-Dow/vanity-txhash-deployer/internal/present"
	"github.com/Liam-Dow/vanity-txhash-deployer/internal/unittest"
)

func openTemp(t *testing.T) *Journal {
	j, err := Open(unittest.Logger(t), filepath.Join(t.TempDir(), "searches.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, j.Close()) })
	return j
}

func matchedReport() present.Report {
	return present.Report{
		Status:          "matched",
		ChainID:         8453,
		Sender:          "0x6ac7ea33f8831ea9dcc53393aaa88b25a785dbf0",
		Nonce:           3,
		Prefix:          "0x00",
		Hash:            "0x00ab",
		HashMode:        "signed",
		ContractAddress: "0x343c43a37d37dff08ae8c4a11544c718abb4fcf8",
		BaseFee:         18_000_000,
		PriorityFee:     1_250_000,
		MaxFeePerGas:    19_250_000,
		GasLimit:        1_500_000,
		MaxCostWei:      "28875000000000",
		Attempts:        4000,
		DurationSeconds: 2,
		Rate:            2000,
	}
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	j := openTemp(t)
	j.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	want := matchedReport()
	id, err := j.Record(ctx, want)
	require.NoError(t, err)
	require.Positive(t, id)

	entries, err := j.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, id, entries[0].ID)
	require.Equal(t, want, entries[0].Report)
	require.Equal(t, int64(1_700_000_000_000), entries[0].CreatedAt.UnixMilli())
	require.Empty(t, entries[0].BroadcastHash)
}

func TestListNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	j := openTemp(t)

	interrupted := present.Report{
		Status:         "interrupted",
		ChainID:        1,
		Sender:         "0x01",
		Prefix:         "0xdead",
		GasLimit:       21000,
		Attempts:       10,
		ClosestHash:    "0xde00",
		ClosestNibbles: 2,
	}
	first, err := j.Record(ctx, matchedReport())
	require.NoError(t, err)
	second, err := j.Record(ctx, interrupted)
	require.NoError(t, err)

	entries, err := j.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, second, entries[0].ID)
	require.Equal(t, interrupted, entries[0].Report)

	entries, err = j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, first, entries[1].ID)
}

func TestMarkBroadcast(t *testing.T) {
	ctx := context.Background()
	j := openTemp(t)

	id, err := j.Record(ctx, matchedReport())
	require.NoError(t, err)
	require.NoError(t, j.MarkBroadcast(ctx, id, "0x00ab"))

	entries, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, "0x00ab", entries[0].BroadcastHash)

	require.ErrorIs(t, j.MarkBroadcast(ctx, id+100, "0x00"), ErrNotFound)
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searches.db")
	j, err := Open(unittest.Logger(t), path)
	require.NoError(t, err)
	_, err = j.Record(context.Background(), matchedReport())
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(unittest.Logger(t), path)
	require.NoError(t, err)
	defer j.Close()
	entries, err := j.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestEntryJSON(t *testing.T) {
	e := Entry{ID: 7, CreatedAt: time.UnixMilli(0).UTC(), Report: matchedReport(), BroadcastHash: "0x00ab"}
	data, err := sonnet.Marshal(e)
	require.NoError(t, err)
	require.Contains(t, string(data), `"broadcastHash":"0x00ab"`)
	require.Contains(t, string(data), `"contractAddress":"0x343c43a37d37dff08ae8c4a11544c718abb4fcf8"`)
}
