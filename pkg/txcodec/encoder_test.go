package txcodec

import (
	"math/big"
	"testing"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"github.com/Liam-Dow/vanity-txhash-deployer/internal/unittest"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/types"
)

// TestEncodeMatchesSigningHash cross-checks the payload against go-ethereum's London signer
// for short and long list headers.
func TestEncodeMatchesSigningHash(t *testing.T) {
	fees := []types.FeePair{
		{BaseFeeOffer: 0, PriorityFeeOffer: 0},
		{BaseFeeOffer: 18_000_000, PriorityFeeOffer: 1_250_000},
		{BaseFeeOffer: 1_000_000_000, PriorityFeeOffer: 1_000_000},
		{BaseFeeOffer: 1 << 40, PriorityFeeOffer: 127},
	}

	for _, dataLen := range []int{0, 1, 20, 300, 5000} {
		tmpl := unittest.TemplateFixture(t, dataLen)
		enc, err := NewEncoder(tmpl)
		require.NoError(t, err)

		signer := gethtypes.LatestSignerForChainID(new(big.Int).SetUint64(tmpl.ChainID))
		for _, fp := range fees {
			payload := enc.Encode(nil, fp)
			want := signer.Hash(gethtypes.NewTx(tmpl.ToDynamicFeeTx(fp)))
			require.Equal(t, want, gethcrypto.Keccak256Hash(payload), "dataLen=%d fees=%+v", dataLen, fp)
		}
	}
}

func TestEncodeWithValue(t *testing.T) {
	tmpl := unittest.TemplateFixture(t, 64)
	tmpl.Value = new(big.Int).Mul(big.NewInt(3), big.NewInt(params.Ether))
	enc, err := NewEncoder(tmpl)
	require.NoError(t, err)

	fp := types.FeePair{BaseFeeOffer: 5, PriorityFeeOffer: 6}
	signer := gethtypes.LatestSignerForChainID(new(big.Int).SetUint64(tmpl.ChainID))
	want := signer.Hash(gethtypes.NewTx(tmpl.ToDynamicFeeTx(fp)))
	require.Equal(t, want, gethcrypto.Keccak256Hash(enc.Encode(nil, fp)))
}

func TestEncodeDeterministic(t *testing.T) {
	tmpl := unittest.TemplateFixture(t, 100)
	enc, err := NewEncoder(tmpl)
	require.NoError(t, err)

	fp := types.FeePair{BaseFeeOffer: 1_000_000_000, PriorityFeeOffer: 1_000_000}
	first := enc.Encode(nil, fp)
	second := enc.Encode(make([]byte, 0, 4096), fp)
	require.Equal(t, first, second)

	// a second encoder over the same template agrees
	other, err := NewEncoder(tmpl)
	require.NoError(t, err)
	require.Equal(t, first, other.Encode(nil, fp))
}

func TestEncodeDataChangesOutput(t *testing.T) {
	tmpl := unittest.TemplateFixture(t, 100)
	enc, err := NewEncoder(tmpl)
	require.NoError(t, err)

	changed := *tmpl
	changed.Data = append([]byte{}, tmpl.Data...)
	changed.Data[50] ^= 0xff
	encChanged, err := NewEncoder(&changed)
	require.NoError(t, err)

	fp := types.FeePair{BaseFeeOffer: 1_000_000_000, PriorityFeeOffer: 1_000_000}
	require.NotEqual(t, enc.Encode(nil, fp), encChanged.Encode(nil, fp))
}

// TestEncodeFeeChangeIsLocal ensures that changing only the fee pair touches only the fee bytes.
func TestEncodeFeeChangeIsLocal(t *testing.T) {
	tmpl := unittest.TemplateFixture(t, 200)
	enc, err := NewEncoder(tmpl)
	require.NoError(t, err)

	a := types.FeePair{BaseFeeOffer: 1_000_000_000, PriorityFeeOffer: 1_000_000}
	b := types.FeePair{BaseFeeOffer: 1_000_000_001, PriorityFeeOffer: 1_000_001}
	outA := enc.Encode(nil, a)
	outB := enc.Encode(nil, b)
	require.Equal(t, len(outA), len(outB))

	feeLen := len(rlp.AppendUint64(rlp.AppendUint64(nil, a.MaxPriorityFeePerGas()), a.MaxFeePerGas()))
	feeEnd := len(outA) - len(enc.tail)
	feeStart := feeEnd - feeLen

	require.Equal(t, outA[:feeStart], outB[:feeStart])
	require.Equal(t, outA[feeEnd:], outB[feeEnd:])
	require.NotEqual(t, outA[feeStart:feeEnd], outB[feeStart:feeEnd])
}

func TestEncodeRejectsOversizedInitCode(t *testing.T) {
	tmpl := unittest.TemplateFixture(t, params.MaxInitCodeSize+1)
	_, err := NewEncoder(tmpl)
	require.ErrorIs(t, err, ErrEncoding)

	tmpl = unittest.TemplateFixture(t, params.MaxInitCodeSize)
	_, err = NewEncoder(tmpl)
	require.NoError(t, err)
}

func TestEncodeRejectsNegativeValue(t *testing.T) {
	tmpl := unittest.TemplateFixture(t, 4)
	tmpl.Value = big.NewInt(-1)
	_, err := NewEncoder(tmpl)
	require.ErrorIs(t, err, ErrEncoding)
}

func TestAppendString(t *testing.T) {
	tests := [][]byte{
		{},
		{0x00},
		{0x7f},
		{0x80},
		make([]byte, 55),
		make([]byte, 56),
		make([]byte, 1024),
	}
	for _, in := range tests {
		want, err := rlp.EncodeToBytes(in)
		require.NoError(t, err)
		require.Equal(t, want, appendString(nil, in), "len=%d", len(in))
	}
}
