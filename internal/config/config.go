package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/go-playground/validator/v10"

	"github.com/Liam-Dow/vanity-txhash-deployer/internal/crypto"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/types"
)

// Errors
var (
	ErrNoPrefix     = errors.New("must specify --prefix or HASH_PREFIX")
	ErrNoCalldata   = errors.New("must specify either --calldata or --calldata-file (or CALLDATA)")
	ErrNoPrivateKey = errors.New("must specify --private-key or PRIVATE_KEY")
	ErrNoRPC        = errors.New("must specify --rpc or RPC unless --nonce and --dry-run are both given")
)

// Hash modes
const (
	HashModeSigned  = "signed"
	HashModePayload = "payload"
)

// Defaults
const (
	DefaultMaxWorkers  = 8
	DefaultBaseFee     = 18_000_000
	DefaultPriorityFee = 1_250_000
	DefaultStride      = 100_000_000 // 0.1 gwei
	DefaultSpaceSize   = 100_000_000
	DefaultLogInterval = 5
)

// Environment variables consulted when the matching flag is left unset
const (
	EnvPrivateKey = "PRIVATE_KEY"
	EnvRPC        = "RPC"
	EnvChainID    = "CHAIN_ID"
	EnvHashPrefix = "HASH_PREFIX"
	EnvCalldata   = "CALLDATA"
	EnvGasLimit   = "GAS_LIMIT"
)

var validate = validator.New()

// Config holds the application configuration
type Config struct {
	Workers      int    `validate:"gt=0"`
	RPC          string `validate:"omitempty,url"`
	PrivateKey   string `validate:"required"`
	ChainID      uint64 `validate:"gt=0"`
	HashPrefix   string `validate:"required"`
	Calldata     string
	CalldataFile string
	GasLimit     uint64 `validate:"gt=0"`
	BaseFee      uint64
	PriorityFee  uint64
	Stride       uint64 `validate:"gt=0"`
	SpaceSize    uint64 `validate:"gt=0"`
	HashMode     string `validate:"oneof=signed payload"`
	// Nonce overrides the pending nonce lookup when non-negative.
	Nonce       int64 `validate:"gte=-1"`
	Verbose     bool
	LogFile     string
	LogInterval int `validate:"gte=0"` // Logging interval in seconds
	Yes         bool
	DryRun      bool
	Journal     string
	JSON        bool
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Workers:     min(runtime.NumCPU(), DefaultMaxWorkers),
		BaseFee:     DefaultBaseFee,
		PriorityFee: DefaultPriorityFee,
		Stride:      DefaultStride,
		SpaceSize:   DefaultSpaceSize,
		HashMode:    HashModeSigned,
		Nonce:       -1,
		LogInterval: DefaultLogInterval,
	}
}

// ApplyEnv fills unset string fields shared by every command from the environment.
// Flags always win.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvPrivateKey); ok && c.PrivateKey == "" {
		c.PrivateKey = v
	}
	if v, ok := lookup(EnvRPC); ok && c.RPC == "" {
		c.RPC = v
	}
	if v, ok := lookup(EnvHashPrefix); ok && c.HashPrefix == "" {
		c.HashPrefix = v
	}
	if v, ok := lookup(EnvCalldata); ok && c.Calldata == "" && c.CalldataFile == "" {
		c.Calldata = v
	}
}

// ApplySearchEnv fills the numeric search fields from the environment. Only the search
// command needs them, so a malformed value never breaks the other commands.
func (c *Config) ApplySearchEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvChainID); ok && c.ChainID == 0 {
		id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvChainID, err)
		}
		c.ChainID = id
	}
	if v, ok := lookup(EnvGasLimit); ok && c.GasLimit == 0 {
		gas, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvGasLimit, err)
		}
		c.GasLimit = gas
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.HashPrefix == "" {
		return ErrNoPrefix
	}
	if c.Calldata == "" && c.CalldataFile == "" {
		return ErrNoCalldata
	}
	if c.PrivateKey == "" {
		return ErrNoPrivateKey
	}
	if c.RPC == "" && !(c.Nonce >= 0 && c.DryRun) {
		return ErrNoRPC
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := c.GetPrefix(); err != nil {
		return err
	}
	return nil
}

// GetTargetDescription returns a human-readable description of the target
func (c *Config) GetTargetDescription() string {
	p, err := c.GetPrefix()
	if err != nil {
		return "invalid prefix: " + c.HashPrefix
	}
	return fmt.Sprintf("prefix %s (%d nibbles, %s hash)", p, p.Nibbles(), c.HashMode)
}

// GetPrefix parses the target hash prefix
func (c *Config) GetPrefix() (crypto.Prefix, error) {
	return crypto.ParsePrefix(c.HashPrefix)
}

// Signed reports whether the search hashes signed envelopes
func (c *Config) Signed() bool {
	return c.HashMode == HashModeSigned
}

// BaseFeePair returns the fee pair the partitions are laid out from
func (c *Config) BaseFeePair() types.FeePair {
	return types.FeePair{BaseFeeOffer: c.BaseFee, PriorityFeeOffer: c.PriorityFee}
}

// GetPrivateKey decodes the signing key
func (c *Config) GetPrivateKey() (*ecdsa.PrivateKey, error) {
	key, err := gethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(c.PrivateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	return key, nil
}

// GetCalldata returns the contract init code to deploy
func (c *Config) GetCalldata() ([]byte, error) {
	// Check if calldata file is specified
	if c.CalldataFile != "" {
		return readCalldataFromFile(c.CalldataFile)
	}

	if c.Calldata != "" {
		return crypto.DecodeHex(c.Calldata)
	}

	// This should not happen if validation passes
	return nil, ErrNoCalldata
}

// readCalldataFromFile reads hex init code from a file
func readCalldataFromFile(filename string) ([]byte, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return crypto.DecodeHex(string(content))
}
