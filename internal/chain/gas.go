package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// Fee history window used for the priority fee estimate
const (
	FeeHistoryBlocks     = 10
	FeeHistoryPercentile = 10.0
)

// GasPrices is a snapshot of current network fees in wei.
type GasPrices struct {
	BaseFee     *big.Int
	PriorityFee *big.Int
}

// Total returns base fee plus priority fee.
func (g *GasPrices) Total() *big.Int {
	return new(big.Int).Add(g.BaseFee, g.PriorityFee)
}

// GasPrices reads the latest base fee and averages the 10th-percentile priority fee over
// the last FeeHistoryBlocks blocks.
func (c *Client) GasPrices(ctx context.Context) (*GasPrices, error) {
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}

	history, err := c.backend.FeeHistory(ctx, FeeHistoryBlocks, nil, []float64{FeeHistoryPercentile})
	if err != nil {
		return nil, fmt.Errorf("fee history: %w", err)
	}

	sum := new(big.Int)
	count := 0
	for _, reward := range history.Reward {
		if len(reward) == 0 || reward[0] == nil {
			continue
		}
		sum.Add(sum, reward[0])
		count++
	}
	priority := new(big.Int)
	if count > 0 {
		priority.Div(sum, big.NewInt(int64(count)))
	}

	return &GasPrices{BaseFee: new(big.Int).Set(baseFee), PriorityFee: priority}, nil
}

// ToGwei converts wei to gwei.
func ToGwei(wei *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.GWei)).Float64()
	return f
}
