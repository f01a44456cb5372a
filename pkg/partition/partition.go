// Package partition splits the fee-pair search space into disjoint per-worker lanes.
//
// Worker i owns base fees [base+i*stride, base+(i+1)*stride). Within its lane a worker
// sweeps the base fee one wei at a time and bumps the priority fee by one wei each time
// the lane wraps, so lanes can never overlap whatever the space size.
package partition

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/holiman/uint256"

	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/types"
)

// ErrConfiguration is returned for partition parameters that cannot describe a valid search.
var ErrConfiguration = errors.New("invalid search configuration")

// Partition assigns workerCount disjoint partitions in ascending index order.
// The result is a pure function of its arguments.
func Partition(workerCount int, base types.FeePair, stride, spaceSize uint64) ([]types.WorkerPartition, error) {
	if workerCount <= 0 {
		return nil, fmt.Errorf("%w: worker count must be positive, got %d", ErrConfiguration, workerCount)
	}
	if stride == 0 {
		return nil, fmt.Errorf("%w: stride must be positive", ErrConfiguration)
	}
	if spaceSize == 0 {
		return nil, fmt.Errorf("%w: space size must be positive", ErrConfiguration)
	}

	// the last lane must start inside uint64
	lastStart := new(uint256.Int).Mul(uint256.NewInt(uint64(workerCount-1)), uint256.NewInt(stride))
	lastStart.Add(lastStart, uint256.NewInt(base.BaseFeeOffer))
	if !lastStart.IsUint64() {
		return nil, fmt.Errorf("%w: lane start overflows uint64", ErrConfiguration)
	}

	parts := make([]types.WorkerPartition, workerCount)
	for i := range parts {
		parts[i] = types.WorkerPartition{
			WorkerIndex:   i,
			LaneStart:     base.BaseFeeOffer + uint64(i)*stride,
			LaneWidth:     stride,
			PriorityStart: base.PriorityFeeOffer,
			SpaceSize:     spaceSize,
		}
	}
	if err := Validate(parts); err != nil {
		return nil, err
	}
	return parts, nil
}

// Validate checks externally supplied partitions: positive sizes, no uint64 overflow of
// any visited fee cap, and no two partitions sharing a fee pair. The overlap check is
// conservative: it treats every partition as the full rectangle its rows span.
func Validate(parts []types.WorkerPartition) error {
	if len(parts) == 0 {
		return fmt.Errorf("%w: no partitions", ErrConfiguration)
	}

	// inclusive fee rectangles; checkOverflow guarantees every bound fits in uint64
	type rect struct {
		idx            int
		baseLo, baseHi uint64
		pLo, pHi       uint64
	}
	rects := make([]rect, 0, len(parts))
	for _, p := range parts {
		if p.LaneWidth == 0 || p.SpaceSize == 0 {
			return fmt.Errorf("%w: partition %d has zero lane width or space size", ErrConfiguration, p.WorkerIndex)
		}
		if err := checkOverflow(p); err != nil {
			return err
		}
		width := min(p.LaneWidth, p.SpaceSize)
		rows := (p.SpaceSize-1)/p.LaneWidth + 1
		rects = append(rects, rect{
			idx:    p.WorkerIndex,
			baseLo: p.LaneStart,
			baseHi: p.LaneStart + width - 1,
			pLo:    p.PriorityStart,
			pHi:    p.PriorityStart + rows - 1,
		})
	}

	sort.Slice(rects, func(i, j int) bool { return rects[i].baseLo < rects[j].baseLo })
	for i := range rects {
		for j := i + 1; j < len(rects) && rects[j].baseLo <= rects[i].baseHi; j++ {
			if rects[i].pLo <= rects[j].pHi && rects[j].pLo <= rects[i].pHi {
				return fmt.Errorf("%w: partitions %d and %d overlap", ErrConfiguration, rects[i].idx, rects[j].idx)
			}
		}
	}
	return nil
}

// checkOverflow ensures the largest base, priority and fee cap the partition visits fit in uint64.
func checkOverflow(p types.WorkerPartition) error {
	width := min(p.LaneWidth, p.SpaceSize)
	maxBase := new(uint256.Int).Add(uint256.NewInt(p.LaneStart), uint256.NewInt(width-1))
	maxPrio := new(uint256.Int).Add(uint256.NewInt(p.PriorityStart), uint256.NewInt((p.SpaceSize-1)/p.LaneWidth))
	maxFee := new(uint256.Int).Add(maxBase, maxPrio)
	if !maxFee.IsUint64() {
		return fmt.Errorf("%w: partition %d fee cap overflows uint64", ErrConfiguration, p.WorkerIndex)
	}
	return nil
}

// TotalSpace returns the number of distinct fee pairs covered by parts, saturating at
// math.MaxUint64.
func TotalSpace(parts []types.WorkerPartition) uint64 {
	total := new(uint256.Int)
	for _, p := range parts {
		total.Add(total, uint256.NewInt(p.SpaceSize))
	}
	if !total.IsUint64() {
		return math.MaxUint64
	}
	return total.Uint64()
}
