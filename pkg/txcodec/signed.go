package txcodec

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/types"
)

// SignedEncoder encodes the signed envelope
// 0x02 || rlp([chainId, nonce, tip, feeCap, gas, to, value, data, accessList, yParity, r, s]),
// whose keccak256 is the on-chain transaction hash. Signatures are RFC 6979 deterministic,
// so the output is a pure function of the fields and the key.
type SignedEncoder struct {
	enc *Encoder
	key *ecdsa.PrivateKey
}

// NewSignedEncoder wraps enc with a signing key.
func NewSignedEncoder(enc *Encoder, key *ecdsa.PrivateKey) (*SignedEncoder, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil signing key", ErrEncoding)
	}
	return &SignedEncoder{enc: enc, key: key}, nil
}

// Sender returns the address of the signing key.
func (s *SignedEncoder) Sender() common.Address {
	return gethcrypto.PubkeyToAddress(s.key.PublicKey)
}

// Seal implements Sealer. dst is used first for the signing payload and then overwritten
// with the envelope.
func (s *SignedEncoder) Seal(dst []byte, fees types.FeePair) ([]byte, error) {
	payload := s.enc.Encode(dst, fees)
	sig, err := gethcrypto.Sign(gethcrypto.Keccak256(payload), s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: sign: %v", ErrEncoding, err)
	}

	var scratch [18]byte
	fee := rlp.AppendUint64(scratch[:0], fees.MaxPriorityFeePerGas())
	fee = rlp.AppendUint64(fee, fees.MaxFeePerGas())

	var sigEnc [1 + 33 + 33]byte
	tail := rlp.AppendUint64(sigEnc[:0], uint64(sig[64]))
	tail = appendString(tail, bytes.TrimLeft(sig[:32], "\x00"))
	tail = appendString(tail, bytes.TrimLeft(sig[32:64], "\x00"))

	out := append(payload[:0], gethtypes.DynamicFeeTxType)
	out = appendListHeader(out, len(s.enc.head)+len(fee)+len(s.enc.tail)+len(tail))
	out = append(out, s.enc.head...)
	out = append(out, fee...)
	out = append(out, s.enc.tail...)
	return append(out, tail...), nil
}

// Signed implements Sealer.
func (s *SignedEncoder) Signed() bool { return true }

// SignTemplate signs the template with fees using go-ethereum's London signer.
func SignTemplate(t *types.TransactionTemplate, fees types.FeePair, key *ecdsa.PrivateKey) (*gethtypes.Transaction, error) {
	signer := gethtypes.LatestSignerForChainID(new(big.Int).SetUint64(t.ChainID))
	tx, err := gethtypes.SignNewTx(key, signer, t.ToDynamicFeeTx(fees))
	if err != nil {
		return nil, fmt.Errorf("%w: sign: %v", ErrEncoding, err)
	}
	return tx, nil
}

// DecodeSigned parses a signed envelope produced by SignedEncoder.
func DecodeSigned(raw []byte) (*gethtypes.Transaction, error) {
	tx := new(gethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrEncoding, err)
	}
	return tx, nil
}
