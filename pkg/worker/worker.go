package worker

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Liam-Dow/vanity-txhash-deployer/internal/crypto"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/txcodec"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/types"
)

// DefaultBatchSize is the number of candidates evaluated between cancellation checks.
const DefaultBatchSize = 1000

// State is the terminal state of a worker run.
type State int

const (
	Running State = iota
	MatchFound
	CancelledExternally
	RangeExhausted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case MatchFound:
		return "match-found"
	case CancelledExternally:
		return "cancelled"
	case RangeExhausted:
		return "range-exhausted"
	default:
		return "unknown"
	}
}

// Coordinator is the shared state a worker reports to. All methods must be safe for
// concurrent use.
type Coordinator interface {
	// Stopped reports whether the shared cancellation signal is set.
	Stopped() bool
	// Claim publishes a match. It returns false if another worker already claimed one.
	Claim(result *types.MatchResult) bool
	// AddAttempts adds evaluated candidates to the global counter.
	AddAttempts(n uint64)
	// Offer submits a partial match and returns the best matched nibble count known so far.
	Offer(c types.Candidate) int
}

// Config contains configuration shared by all workers of a run
type Config struct {
	Sealer    txcodec.Sealer
	Prefix    crypto.Prefix
	BatchSize int
	// TrackClosest enables partial-match reporting through Coordinator.Offer.
	TrackClosest bool
}

// Worker evaluates the candidates of one partition
type Worker struct {
	config *Config
	coord  Coordinator
	hasher *crypto.Hasher

	// Pre-allocated encoding buffer, grown once by the first Seal
	buf []byte
}

// NewWorker creates a new worker instance
func NewWorker(config *Config, coord Coordinator) *Worker {
	return &Worker{
		config: config,
		coord:  coord,
		hasher: crypto.NewHasher(),
		buf:    make([]byte, 0, 512),
	}
}

// Evaluate encodes and hashes a single candidate and reports whether it matches the prefix.
// The returned encoding aliases the worker's buffer and is only valid until the next call.
func (w *Worker) Evaluate(fees types.FeePair) (common.Hash, []byte, bool, error) {
	enc, err := w.config.Sealer.Seal(w.buf, fees)
	if err != nil {
		return common.Hash{}, nil, false, err
	}
	w.buf = enc
	digest := w.hasher.Sum(enc)
	return digest, enc, w.config.Prefix.Match(digest[:]), nil
}

// Run iterates the partition until a match, external cancellation, or exhaustion.
func (w *Worker) Run(p types.WorkerPartition) (State, error) {
	batchSize := uint64(w.config.BatchSize)
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}
	best := 0

	for j := uint64(0); j < p.SpaceSize; {
		if w.coord.Stopped() {
			return CancelledExternally, nil
		}

		end := min(j+batchSize, p.SpaceSize)
		start := j
		for ; j < end; j++ {
			fees := p.FeeAt(j)
			digest, enc, ok, err := w.Evaluate(fees)
			if err != nil {
				w.coord.AddAttempts(j - start)
				return Running, err
			}
			if ok {
				w.coord.AddAttempts(j - start + 1)
				result := &types.MatchResult{
					FeePair: fees,
					Encoded: bytes.Clone(enc),
					Hash:    digest,
					Signed:  w.config.Sealer.Signed(),
					Worker:  p.WorkerIndex,
				}
				if w.coord.Claim(result) {
					return MatchFound, nil
				}
				return CancelledExternally, nil
			}
			if w.config.TrackClosest {
				if n := w.config.Prefix.MatchedNibbles(digest[:]); n > best {
					best = w.coord.Offer(types.Candidate{
						FeePair:        fees,
						Hash:           digest,
						MatchedNibbles: n,
						Worker:         p.WorkerIndex,
					})
				}
			}
		}
		w.coord.AddAttempts(end - start)
	}
	return RangeExhausted, nil
}
