// Package unittest provides fixtures and assertion helpers shared by the package tests.
package unittest

import (
	"crypto/ecdsa"
	"crypto/rand"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/types"
)

// Logger returns a zerolog.Logger configured for testing.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(os.Stdout).Level(zerolog.DebugLevel)
}

// PrivateKeyFixture generates a new random private key for use in tests.
// It fails the test immediately if key generation does not succeed.
func PrivateKeyFixture(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err, "failed to generate private key")
	return priv
}

// BytesFixture returns n random bytes.
func BytesFixture(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err, "failed to generate random bytes")
	return b
}

// TemplateFixture returns a contract-creation template with dataLen bytes of random init code.
func TemplateFixture(t *testing.T, dataLen int) *types.TransactionTemplate {
	t.Helper()
	return &types.TransactionTemplate{
		ChainID:  8453,
		Nonce:    7,
		Value:    big.NewInt(0),
		Data:     BytesFixture(t, dataLen),
		GasLimit: 1_500_000,
	}
}
