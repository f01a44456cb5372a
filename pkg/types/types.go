package types

import (
	"encoding/hex"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// FeePair holds the two mutable search variables of a candidate transaction (wei).
type FeePair struct {
	BaseFeeOffer     uint64
	PriorityFeeOffer uint64
}

// MaxFeePerGas returns the fee cap used for the candidate: base offer plus priority offer.
// Callers must have validated that the sum fits in a uint64.
func (f FeePair) MaxFeePerGas() uint64 {
	return f.BaseFeeOffer + f.PriorityFeeOffer
}

// MaxPriorityFeePerGas returns the tip cap used for the candidate.
func (f FeePair) MaxPriorityFeePerGas() uint64 {
	return f.PriorityFeeOffer
}

// TransactionTemplate holds the fixed fields of the pending contract-creation transaction.
// The fee fields are never stored here; every candidate supplies its own FeePair.
type TransactionTemplate struct {
	ChainID  uint64
	Nonce    uint64
	Value    *big.Int
	Data     []byte
	GasLimit uint64
}

// ToDynamicFeeTx builds the go-ethereum representation of the template with the given fees.
// The returned struct owns copies of every mutable field.
func (t *TransactionTemplate) ToDynamicFeeTx(fees FeePair) *gethtypes.DynamicFeeTx {
	value := new(big.Int)
	if t.Value != nil {
		value.Set(t.Value)
	}
	return &gethtypes.DynamicFeeTx{
		ChainID:    new(big.Int).SetUint64(t.ChainID),
		Nonce:      t.Nonce,
		GasTipCap:  new(big.Int).SetUint64(fees.MaxPriorityFeePerGas()),
		GasFeeCap:  new(big.Int).SetUint64(fees.MaxFeePerGas()),
		Gas:        t.GasLimit,
		To:         nil,
		Value:      value,
		Data:       common.CopyBytes(t.Data),
		AccessList: gethtypes.AccessList{},
	}
}

// WorkerPartition is the disjoint slice of the fee space assigned to one worker.
//
// Iteration j in [0, SpaceSize) visits base = LaneStart + j%LaneWidth and
// priority = PriorityStart + j/LaneWidth.
type WorkerPartition struct {
	WorkerIndex   int
	LaneStart     uint64
	LaneWidth     uint64
	PriorityStart uint64
	SpaceSize     uint64
}

// StartingFeePair returns the first fee pair the worker evaluates.
func (p WorkerPartition) StartingFeePair() FeePair {
	return p.FeeAt(0)
}

// FeeAt returns the fee pair at iteration j of the partition.
func (p WorkerPartition) FeeAt(j uint64) FeePair {
	return FeePair{
		BaseFeeOffer:     p.LaneStart + j%p.LaneWidth,
		PriorityFeeOffer: p.PriorityStart + j/p.LaneWidth,
	}
}

// LastFeePair returns the final fee pair the worker evaluates.
func (p WorkerPartition) LastFeePair() FeePair {
	return p.FeeAt(p.SpaceSize - 1)
}

// MatchResult is the winning candidate of a search run. It is created once and never mutated.
type MatchResult struct {
	FeePair FeePair
	// Encoded holds the exact bytes that were hashed: the signing payload or the signed envelope.
	Encoded []byte
	Hash    common.Hash
	Signed  bool
	Worker  int
}

// HashHex returns the 0x-prefixed hex digest.
func (r *MatchResult) HashHex() string {
	return "0x" + hex.EncodeToString(r.Hash[:])
}

// Status is the terminal state of a search run.
type Status int

const (
	// StatusMatched means a worker found a candidate with the target prefix.
	StatusMatched Status = iota
	// StatusExhausted means every partition was fully evaluated without a match.
	StatusExhausted
	// StatusInterrupted means the caller cancelled the search before a match or exhaustion.
	StatusInterrupted
)

func (s Status) String() string {
	switch s {
	case StatusMatched:
		return "matched"
	case StatusExhausted:
		return "exhausted"
	case StatusInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Candidate is the closest non-winning hash seen so far, measured in matching leading nibbles.
type Candidate struct {
	FeePair        FeePair
	Hash           common.Hash
	MatchedNibbles int
	Worker         int
}

// Outcome is what a search run returns to the caller.
type Outcome struct {
	Status   Status
	Result   *MatchResult // set only for StatusMatched
	Closest  *Candidate   // best partial match, may be nil
	Attempts uint64
	Duration time.Duration
}

// Rate returns candidates per second.
func (o *Outcome) Rate() float64 {
	if o.Duration.Seconds() <= 0 {
		return 0
	}
	return float64(o.Attempts) / o.Duration.Seconds()
}
