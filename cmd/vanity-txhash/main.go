package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Liam-Dow/vanity-txhash-deployer/internal/chain"
	"github.com/Liam-Dow/vanity-txhash-deployer/internal/config"
	"github.com/Liam-Dow/vanity-txhash-deployer/internal/crypto"
	"github.com/Liam-Dow/vanity-txhash-deployer/internal/journal"
	logpkg "github.com/Liam-Dow/vanity-txhash-deployer/internal/logger"
	"github.com/Liam-Dow/vanity-txhash-deployer/internal/present"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/partition"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/search"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/txcodec"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/types"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/worker"
)

var (
	cfg     = config.NewConfig()
	logger  = zerolog.Nop()
	logFile *os.File
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "vanity-txhash",
		Short: "Deploy a contract under a vanity transaction hash",
		Long: `A command line utility for deploying contracts with a chosen transaction hash prefix.
The fee fields of an EIP-1559 contract-creation transaction are searched in parallel
until the keccak256 transaction hash starts with the target prefix.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		RunE:               runSearch,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfg.RPC, "rpc", "r", "", "RPC endpoint URL (env RPC)")
	pf.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Verbose output")
	pf.StringVarP(&cfg.LogFile, "log-file", "l", "", "Log file for progress tracking (default: stdout)")
	pf.StringVarP(&cfg.Journal, "journal", "j", "", "SQLite file recording every search run")
	pf.BoolVar(&cfg.JSON, "json", false, "Print results as JSON")

	f := rootCmd.Flags()
	f.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Number of worker goroutines")
	f.StringVarP(&cfg.PrivateKey, "private-key", "k", "", "Hex private key of the deployer (env PRIVATE_KEY)")
	f.Uint64VarP(&cfg.ChainID, "chain-id", "c", 0, "Target chain id (env CHAIN_ID)")
	f.StringVarP(&cfg.HashPrefix, "prefix", "p", "", "Target transaction hash prefix, hex (env HASH_PREFIX)")
	f.StringVarP(&cfg.Calldata, "calldata", "d", "", "Contract init code, hex (env CALLDATA)")
	f.StringVarP(&cfg.CalldataFile, "calldata-file", "F", "", "File containing contract init code, hex")
	f.Uint64VarP(&cfg.GasLimit, "gas-limit", "g", 0, "Gas limit of the deployment (env GAS_LIMIT)")
	f.Uint64Var(&cfg.BaseFee, "base-fee", cfg.BaseFee, "Lowest base fee offer in wei")
	f.Uint64Var(&cfg.PriorityFee, "priority-fee", cfg.PriorityFee, "Lowest priority fee offer in wei")
	f.Uint64Var(&cfg.Stride, "stride", cfg.Stride, "Width in wei of each worker's base fee lane")
	f.Uint64Var(&cfg.SpaceSize, "space", cfg.SpaceSize, "Candidates evaluated per worker")
	f.StringVarP(&cfg.HashMode, "hash-mode", "m", cfg.HashMode, "Hash to search: signed (on-chain hash) or payload (signing hash)")
	f.Int64VarP(&cfg.Nonce, "nonce", "n", cfg.Nonce, "Deployer nonce (default: pending nonce from the RPC)")
	f.IntVarP(&cfg.LogInterval, "log-interval", "i", cfg.LogInterval, "Logging interval in seconds (0 disables)")
	f.BoolVarP(&cfg.Yes, "yes", "y", false, "Broadcast a match without asking")
	f.BoolVar(&cfg.DryRun, "dry-run", false, "Never broadcast, print the raw transaction instead")

	rootCmd.AddCommand(newGasCmd(), newHistoryCmd())
	return rootCmd
}

func setup(cmd *cobra.Command, args []string) error {
	cfg.ApplyEnv(os.LookupEnv)
	setupLogging()
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}

func setupLogging() {
	if cfg.LogFile != "" {
		l, file, err := logpkg.NewFile(cfg.LogFile, cfg.Verbose)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		logger, logFile = l, file
		return
	}
	if cfg.JSON {
		// keep stdout for the JSON document
		logger = logpkg.NewConsole(os.Stderr, cfg.Verbose)
		return
	}
	logger = logpkg.New(cfg.Verbose)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := cfg.ApplySearchEnv(os.LookupEnv); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	key, err := cfg.GetPrivateKey()
	if err != nil {
		return err
	}
	calldata, err := cfg.GetCalldata()
	if err != nil {
		return err
	}
	prefix, err := cfg.GetPrefix()
	if err != nil {
		return err
	}
	sender := gethcrypto.PubkeyToAddress(key.PublicKey)

	logger.Info().
		Int("workers", cfg.Workers).
		Str("target", cfg.GetTargetDescription()).
		Str("sender", sender.Hex()).
		Uint64("chain_id", cfg.ChainID).
		Int("calldata_bytes", len(calldata)).
		Msg("starting vanity transaction hash search")

	var client *chain.Client
	if cfg.RPC != "" {
		c, closeClient, err := chain.Dial(ctx, logger, cfg.RPC)
		if err != nil {
			return err
		}
		defer closeClient()
		if err := c.CheckChainID(ctx, cfg.ChainID); err != nil {
			return err
		}
		client = c
	}

	nonce, err := resolveNonce(ctx, client, sender)
	if err != nil {
		return err
	}

	tmpl := &types.TransactionTemplate{
		ChainID:  cfg.ChainID,
		Nonce:    nonce,
		Value:    new(big.Int),
		Data:     calldata,
		GasLimit: cfg.GasLimit,
	}
	parts, err := partition.Partition(cfg.Workers, cfg.BaseFeePair(), cfg.Stride, cfg.SpaceSize)
	if err != nil {
		return err
	}

	opts := search.Options{
		BatchSize:    worker.DefaultBatchSize,
		LogInterval:  time.Duration(cfg.LogInterval) * time.Second,
		TrackClosest: true,
	}
	if cfg.Signed() {
		opts.SigningKey = key
	}
	engine := search.NewEngine(logger, opts)

	outcome, err := runEngine(ctx, engine, tmpl, parts, prefix)
	if err != nil {
		return err
	}

	d := present.Deployment{
		Sender:   sender,
		Nonce:    nonce,
		ChainID:  cfg.ChainID,
		GasLimit: cfg.GasLimit,
		Prefix:   prefix,
	}
	p := present.New(os.Stdout, os.Stdin)
	report := present.BuildReport(d, outcome)
	if cfg.JSON {
		if err := p.JSON(report); err != nil {
			return err
		}
	} else {
		p.Outcome(d, outcome)
	}

	var jrnl *journal.Journal
	var entryID int64
	if cfg.Journal != "" {
		jrnl, err = journal.Open(logger, cfg.Journal)
		if err != nil {
			return err
		}
		defer jrnl.Close()
		if entryID, err = jrnl.Record(ctx, report); err != nil {
			return err
		}
	}

	if outcome.Status != types.StatusMatched {
		return nil
	}
	return deploy(ctx, client, p, jrnl, entryID, tmpl, outcome.Result, key)
}

// resolveNonce prefers --nonce and otherwise asks the node for the pending nonce.
func resolveNonce(ctx context.Context, client *chain.Client, sender common.Address) (uint64, error) {
	if cfg.Nonce >= 0 {
		return uint64(cfg.Nonce), nil
	}
	if client == nil {
		return 0, config.ErrNoRPC
	}
	return client.PendingNonce(ctx, sender)
}

// runEngine runs the search until it finishes or the process receives SIGINT/SIGTERM.
func runEngine(ctx context.Context, engine *search.Engine, tmpl *types.TransactionTemplate, parts []types.WorkerPartition, prefix crypto.Prefix) (*types.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling for Ctrl+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	type searchResult struct {
		outcome *types.Outcome
		err     error
	}
	resultChan := make(chan searchResult, 1)
	go func() {
		outcome, err := engine.Search(ctx, tmpl, parts, prefix)
		resultChan <- searchResult{outcome: outcome, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.outcome, res.err
	case <-sigChan:
		logger.Warn().Msg("received interrupt signal, stopping workers")
		cancel()
		res := <-resultChan
		return res.outcome, res.err
	}
}

// deploy turns the match into a broadcastable transaction and, unless told otherwise, sends it.
func deploy(ctx context.Context, client *chain.Client, p *present.Presenter, jrnl *journal.Journal, entryID int64, tmpl *types.TransactionTemplate, res *types.MatchResult, key *ecdsa.PrivateKey) error {
	tx, err := finalTransaction(tmpl, res, key)
	if err != nil {
		return err
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return err
	}

	if cfg.DryRun {
		logger.Info().
			Str("tx", tx.Hash().Hex()).
			Str("raw", hexutil.Encode(raw)).
			Msg("dry run, transaction not broadcast")
		return nil
	}
	if !cfg.Yes {
		if cfg.JSON {
			logger.Warn().Msg("--json requires --yes to broadcast, transaction not sent")
			return nil
		}
		ok, err := p.Confirm()
		if err != nil {
			return err
		}
		if !ok {
			logger.Info().Msg("aborted by user")
			return nil
		}
	}

	if err := client.Broadcast(ctx, tx); err != nil {
		return err
	}
	if jrnl != nil {
		if err := jrnl.MarkBroadcast(ctx, entryID, tx.Hash().Hex()); err != nil {
			logger.Error().Err(err).Msg("failed to journal broadcast")
		}
	}

	receipt, err := client.WaitMined(ctx, tx.Hash())
	if err != nil {
		return err
	}
	logger.Info().
		Str("tx", receipt.TxHash.Hex()).
		Uint64("block", receipt.BlockNumber.Uint64()).
		Uint64("gas_used", receipt.GasUsed).
		Str("contract", receipt.ContractAddress.Hex()).
		Msg("transaction mined")
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("deployment %s reverted", tx.Hash().Hex())
	}
	return nil
}

// finalTransaction rebuilds the winning transaction. Signed matches are the exact bytes that
// were hashed; payload matches are signed now and get a different on-chain hash.
func finalTransaction(tmpl *types.TransactionTemplate, res *types.MatchResult, key *ecdsa.PrivateKey) (*gethtypes.Transaction, error) {
	if !res.Signed {
		logger.Warn().Msg("payload hash mode: the broadcast transaction hash differs from the matched hash")
		return txcodec.SignTemplate(tmpl, res.FeePair, key)
	}
	tx, err := txcodec.DecodeSigned(res.Encoded)
	if err != nil {
		return nil, err
	}
	if tx.Hash() != res.Hash {
		return nil, errors.New("decoded transaction hash does not match the search result")
	}
	return tx, nil
}
