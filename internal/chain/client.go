// Package chain talks to the execution-layer JSON-RPC endpoint: chain id and nonce lookup,
// gas price snapshots, broadcasting the winning transaction and waiting for its receipt.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// ErrChainIDMismatch is returned when the endpoint serves a different chain than configured.
var ErrChainIDMismatch = errors.New("rpc chain id does not match configured chain id")

// Backend is the subset of ethclient.Client the collaborator needs.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// Client wraps a Backend with logging and the lookups the deployer performs.
type Client struct {
	logger       zerolog.Logger
	backend      Backend
	pollInterval time.Duration
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, logger zerolog.Logger, url string) (*Client, func(), error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rpc: %w", err)
	}
	return NewClient(logger, ec), ec.Close, nil
}

// NewClient wraps an existing backend.
func NewClient(logger zerolog.Logger, backend Backend) *Client {
	return &Client{
		logger:       logger.With().Str("component", "chain-client").Logger(),
		backend:      backend,
		pollInterval: time.Second,
	}
}

// CheckChainID fails if the endpoint's chain id differs from want.
func (c *Client) CheckChainID(ctx context.Context, want uint64) error {
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	if !id.IsUint64() || id.Uint64() != want {
		return fmt.Errorf("%w: rpc=%s configured=%d", ErrChainIDMismatch, id, want)
	}
	return nil
}

// PendingNonce returns the next nonce of account, counting pending transactions.
func (c *Client) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	nonce, err := c.backend.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("nonce(%s): %w", account.Hex(), err)
	}
	c.logger.Debug().Str("account", account.Hex()).Uint64("nonce", nonce).Msg("fetched pending nonce")
	return nonce, nil
}

// Broadcast submits a signed transaction.
func (c *Client) Broadcast(ctx context.Context, tx *gethtypes.Transaction) error {
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("send transaction %s: %w", tx.Hash().Hex(), err)
	}
	c.logger.Info().Str("tx", tx.Hash().Hex()).Msg("transaction broadcast")
	return nil
}

// WaitMined polls for the receipt of hash until it is available or ctx is done.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			c.logger.Info().
				Str("tx", hash.Hex()).
				Uint64("block", receipt.BlockNumber.Uint64()).
				Uint64("status", receipt.Status).
				Msg("transaction mined")
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
