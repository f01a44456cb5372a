package search

import (
	"context"
	"sync"
	"testing"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/Liam-Dow/vanity-txhash-deployer/internal/crypto"
	"github.com/Liam-Dow/vanity-txhash-deployer/internal/unittest"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/partition"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/txcodec"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/types"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/worker"
)

const unreachable = "0x0000000000000000000000000000000000000000000000000000000000000000"

func defaultLanes(t *testing.T, spaceSize uint64) []types.WorkerPartition {
	t.Helper()
	parts, err := partition.Partition(4,
		types.FeePair{BaseFeeOffer: 1_000_000_000, PriorityFeeOffer: 1_000_000},
		100_000_000, spaceSize)
	require.NoError(t, err)
	return parts
}

func mustPrefix(t *testing.T, s string) crypto.Prefix {
	t.Helper()
	p, err := crypto.ParsePrefix(s)
	require.NoError(t, err)
	return p
}

// TestSearchFindsZeroByteAcrossDefaultLanes searches for a single zero byte over four 0.1 gwei lanes.
func TestSearchFindsZeroByteAcrossDefaultLanes(t *testing.T) {
	tmpl := unittest.TemplateFixture(t, 128)
	engine := NewEngine(unittest.Logger(t), Options{})

	parts, prefix := defaultLanes(t, 100_000_000), mustPrefix(t, "0x00")

	var out *types.Outcome
	var err error
	unittest.RequireCallMustReturnWithinTimeout(t, func() {
		out, err = engine.Search(context.Background(), tmpl, parts, prefix)
	}, unittest.DefaultSearchTimeout, "single byte prefix search")
	require.NoError(t, err)

	require.Equal(t, types.StatusMatched, out.Status)
	res := out.Result
	require.NotNil(t, res)
	require.Equal(t, byte(0x00), res.Hash[0])
	require.Equal(t, gethcrypto.Keccak256Hash(res.Encoded), res.Hash)
	require.GreaterOrEqual(t, res.FeePair.BaseFeeOffer, uint64(1_000_000_000))
	require.Less(t, res.FeePair.BaseFeeOffer, uint64(1_400_000_000))
	require.Equal(t, uint64(1_000_000), res.FeePair.PriorityFeeOffer)
	// the winning base fee lies in the lane of the worker that found it
	require.Equal(t, res.Worker, int((res.FeePair.BaseFeeOffer-1_000_000_000)/100_000_000))
	require.GreaterOrEqual(t, out.Attempts, uint64(1))

	enc, err := txcodec.NewEncoder(tmpl)
	require.NoError(t, err)
	require.Equal(t, enc.Encode(nil, res.FeePair), res.Encoded)
}

func TestSearchExhaustsUnreachablePrefix(t *testing.T) {
	engine := NewEngine(unittest.Logger(t), Options{})
	out, err := engine.Search(context.Background(), unittest.TemplateFixture(t, 32),
		defaultLanes(t, 1), mustPrefix(t, unreachable))
	require.NoError(t, err)
	require.Equal(t, types.StatusExhausted, out.Status)
	require.Nil(t, out.Result)
	require.Equal(t, uint64(4), out.Attempts)
}

// TestSearchExhaustsTwentyBytePrefix searches a 20-byte prefix over a reduced space.
func TestSearchExhaustsTwentyBytePrefix(t *testing.T) {
	engine := NewEngine(unittest.Logger(t), Options{BatchSize: 64, TrackClosest: true})
	out, err := engine.Search(context.Background(), unittest.TemplateFixture(t, 32),
		defaultLanes(t, 2500), mustPrefix(t, "0x0000000000000000000000000000000000000000"))
	require.NoError(t, err)
	require.Equal(t, types.StatusExhausted, out.Status)
	require.Equal(t, uint64(4*2500), out.Attempts)
	require.NotNil(t, out.Closest)
	require.Less(t, out.Closest.MatchedNibbles, 40)
}

// TestSearchFirstMatchWins makes every worker match on its first candidate.
func TestSearchFirstMatchWins(t *testing.T) {
	engine := NewEngine(unittest.Logger(t), Options{})
	parts := defaultLanes(t, 1000)
	out, err := engine.Search(context.Background(), unittest.TemplateFixture(t, 16), parts, mustPrefix(t, ""))
	require.NoError(t, err)
	require.Equal(t, types.StatusMatched, out.Status)
	require.Equal(t, parts[out.Result.Worker].StartingFeePair(), out.Result.FeePair)
}

func TestRunClaimIsExclusive(t *testing.T) {
	r := newRun()
	var wg sync.WaitGroup
	wins := make(chan int, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if r.Claim(&types.MatchResult{Worker: i}) {
				wins <- i
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []int
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)
	require.Equal(t, winners[0], r.result.Load().Worker)
	require.True(t, r.Stopped())
}

func TestSearchInterruptedByContext(t *testing.T) {
	engine := NewEngine(unittest.Logger(t), Options{TrackClosest: true})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	tmpl, parts, prefix := unittest.TemplateFixture(t, 32), defaultLanes(t, 100_000_000), mustPrefix(t, unreachable)

	var out *types.Outcome
	var err error
	unittest.RequireCallMustReturnWithinTimeout(t, func() {
		out, err = engine.Search(ctx, tmpl, parts, prefix)
	}, unittest.DefaultSearchTimeout, "interrupted search")
	require.NoError(t, err)

	require.Equal(t, types.StatusInterrupted, out.Status)
	require.Nil(t, out.Result)
	require.Positive(t, out.Attempts)
	require.NotNil(t, out.Closest)
	require.Equal(t, out.Closest, engine.Closest())
}

func TestSearchStop(t *testing.T) {
	engine := NewEngine(unittest.Logger(t), Options{LogInterval: 10 * time.Millisecond})
	go func() {
		for engine.Attempts() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		engine.Stop()
	}()

	tmpl, parts, prefix := unittest.TemplateFixture(t, 32), defaultLanes(t, 100_000_000), mustPrefix(t, unreachable)

	var out *types.Outcome
	var err error
	unittest.RequireCallMustReturnWithinTimeout(t, func() {
		out, err = engine.Search(context.Background(), tmpl, parts, prefix)
	}, unittest.DefaultSearchTimeout, "stopped search")
	require.NoError(t, err)
	require.Equal(t, types.StatusInterrupted, out.Status)
}

func TestSearchStopBeforeStart(t *testing.T) {
	engine := NewEngine(unittest.Logger(t), Options{})
	tmpl := unittest.TemplateFixture(t, 32)
	engine.Stop()

	out, err := engine.Search(context.Background(), tmpl, defaultLanes(t, 100_000_000), mustPrefix(t, unreachable))
	require.NoError(t, err)
	require.Equal(t, types.StatusInterrupted, out.Status)
	require.Zero(t, out.Attempts)

	// the held stop is consumed by the run it interrupted
	out, err = engine.Search(context.Background(), tmpl, defaultLanes(t, 1), mustPrefix(t, unreachable))
	require.NoError(t, err)
	require.Equal(t, types.StatusExhausted, out.Status)
	require.Equal(t, uint64(4), out.Attempts)
}

func TestSearchSigned(t *testing.T) {
	key := unittest.PrivateKeyFixture(t)
	engine := NewEngine(unittest.Logger(t), Options{SigningKey: key, BatchSize: 8})

	out, err := engine.Search(context.Background(), unittest.TemplateFixture(t, 64),
		defaultLanes(t, 100_000), mustPrefix(t, "0xa"))
	require.NoError(t, err)
	require.Equal(t, types.StatusMatched, out.Status)

	res := out.Result
	require.True(t, res.Signed)
	require.Equal(t, byte(0xa), res.Hash[0]>>4)

	tx, err := txcodec.DecodeSigned(res.Encoded)
	require.NoError(t, err)
	require.Equal(t, res.Hash, tx.Hash())
	require.Equal(t, res.FeePair.MaxFeePerGas(), tx.GasFeeCap().Uint64())
}

func TestSearchConfigurationErrors(t *testing.T) {
	engine := NewEngine(unittest.Logger(t), Options{})
	ctx := context.Background()
	prefix := mustPrefix(t, "0x00")
	parts := defaultLanes(t, 10)

	_, err := engine.Search(ctx, nil, parts, prefix)
	require.ErrorIs(t, err, ErrConfiguration)

	tmpl := unittest.TemplateFixture(t, 8)
	tmpl.GasLimit = 0
	_, err = engine.Search(ctx, tmpl, parts, prefix)
	require.ErrorIs(t, err, ErrConfiguration)

	tmpl = unittest.TemplateFixture(t, 8)
	tmpl.ChainID = 0
	_, err = engine.Search(ctx, tmpl, parts, prefix)
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = engine.Search(ctx, unittest.TemplateFixture(t, 8), nil, prefix)
	require.ErrorIs(t, err, ErrConfiguration)

	overlapping := []types.WorkerPartition{parts[0], parts[0]}
	overlapping[1].WorkerIndex = 1
	_, err = engine.Search(ctx, unittest.TemplateFixture(t, 8), overlapping, prefix)
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = engine.Search(ctx, unittest.TemplateFixture(t, params.MaxInitCodeSize+1), parts, prefix)
	require.ErrorIs(t, err, txcodec.ErrEncoding)
}

type panickingSealer struct{}

func (panickingSealer) Seal([]byte, types.FeePair) ([]byte, error) { panic("arithmetic fault") }
func (panickingSealer) Signed() bool { return false }

func TestWorkerPanicFailsRun(t *testing.T) {
	engine := NewEngine(unittest.Logger(t), Options{})
	r := newRun()
	cfg := &worker.Config{Sealer: panickingSealer{}, Prefix: mustPrefix(t, "0x00"), BatchSize: 10}

	var wg sync.WaitGroup
	wg.Add(1)
	engine.runWorker(&wg, r, cfg, defaultLanes(t, 10)[0])
	wg.Wait()

	require.ErrorIs(t, r.failErr, ErrWorkerFailure)
	require.True(t, r.Stopped())
}
