// Package txcodec builds the canonical EIP-1559 byte encodings that a vanity search hashes.
//
// The fixed fields of a TransactionTemplate are RLP-encoded once; only the two fee
// scalars are encoded per candidate, so Encode does no allocation when dst has capacity.
package txcodec

import (
	"errors"
	"fmt"
	"math/big"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/types"
)

// ErrEncoding is returned when a template cannot be serialized into a valid transaction.
var ErrEncoding = errors.New("transaction cannot be encoded")

const (
	emptyString = 0x80
	emptyList   = 0xc0
)

// Sealer produces the bytes whose keccak256 is compared against the target prefix.
// Implementations are stateless and safe for concurrent use; per-call scratch lives in dst.
type Sealer interface {
	// Seal appends the encoding of the candidate with the given fees to dst[:0].
	Seal(dst []byte, fees types.FeePair) ([]byte, error)
	// Signed reports whether the sealed bytes are a signed envelope.
	Signed() bool
}

// Encoder encodes the unsigned signing payload
// 0x02 || rlp([chainId, nonce, tip, feeCap, gas, to, value, data, accessList]).
type Encoder struct {
	head []byte // chainId, nonce
	tail []byte // gas, to, value, data, accessList
}

// NewEncoder pre-encodes the fixed fields of the template.
func NewEncoder(t *types.TransactionTemplate) (*Encoder, error) {
	if len(t.Data) > params.MaxInitCodeSize {
		return nil, fmt.Errorf("%w: init code is %d bytes, limit is %d",
			ErrEncoding, len(t.Data), params.MaxInitCodeSize)
	}

	value := t.Value
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value", ErrEncoding)
	}
	valueEnc, err := rlp.EncodeToBytes(value)
	if err != nil {
		return nil, fmt.Errorf("%w: value: %v", ErrEncoding, err)
	}
	dataEnc, err := rlp.EncodeToBytes(t.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrEncoding, err)
	}

	head := rlp.AppendUint64(nil, t.ChainID)
	head = rlp.AppendUint64(head, t.Nonce)

	tail := rlp.AppendUint64(nil, t.GasLimit)
	tail = append(tail, emptyString) // contract creation: no recipient
	tail = append(tail, valueEnc...)
	tail = append(tail, dataEnc...)
	tail = append(tail, emptyList) // access list

	return &Encoder{head: head, tail: tail}, nil
}

// Encode appends the signing payload for fees to dst[:0] and returns it.
func (e *Encoder) Encode(dst []byte, fees types.FeePair) []byte {
	var scratch [18]byte
	fee := rlp.AppendUint64(scratch[:0], fees.MaxPriorityFeePerGas())
	fee = rlp.AppendUint64(fee, fees.MaxFeePerGas())

	dst = append(dst[:0], gethtypes.DynamicFeeTxType)
	dst = appendListHeader(dst, len(e.head)+len(fee)+len(e.tail))
	dst = append(dst, e.head...)
	dst = append(dst, fee...)
	return append(dst, e.tail...)
}

// Seal implements Sealer.
func (e *Encoder) Seal(dst []byte, fees types.FeePair) ([]byte, error) {
	return e.Encode(dst, fees), nil
}

// Signed implements Sealer.
func (e *Encoder) Signed() bool { return false }

// appendListHeader writes an RLP list prefix for a payload of size bytes.
func appendListHeader(dst []byte, size int) []byte {
	if size < 56 {
		return append(dst, emptyList+byte(size))
	}
	var buf [8]byte
	n := putBigEndian(buf[:], uint64(size))
	dst = append(dst, 0xf7+byte(n))
	return append(dst, buf[8-n:]...)
}

// appendString writes b as an RLP string item.
func appendString(dst, b []byte) []byte {
	if len(b) == 1 && b[0] < emptyString {
		return append(dst, b[0])
	}
	if len(b) < 56 {
		dst = append(dst, emptyString+byte(len(b)))
		return append(dst, b...)
	}
	var buf [8]byte
	n := putBigEndian(buf[:], uint64(len(b)))
	dst = append(dst, 0xb7+byte(n))
	dst = append(dst, buf[8-n:]...)
	return append(dst, b...)
}

// putBigEndian writes v right-aligned into buf and returns the number of significant bytes.
func putBigEndian(buf []byte, v uint64) int {
	n := 0
	for i := len(buf) - 1; v > 0; i-- {
		buf[i] = byte(v)
		v >>= 8
		n++
	}
	return n
}
