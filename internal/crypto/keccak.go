package crypto

import (
	"hash"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// DigestLen is the size of a keccak256 digest in bytes.
const DigestLen = 32

// Hasher computes keccak256 digests with a reusable sponge.
// A Hasher is not safe for concurrent use; give each worker its own.
type Hasher struct {
	h   hash.Hash
	buf [DigestLen]byte
}

// NewHasher creates a new keccak256 hasher.
func NewHasher() *Hasher {
	return &Hasher{h: sha3.NewLegacyKeccak256()}
}

// Sum hashes data and returns the digest by value.
func (k *Hasher) Sum(data []byte) common.Hash {
	k.h.Reset()
	k.h.Write(data)
	k.h.Sum(k.buf[:0])
	return common.Hash(k.buf)
}

// Keccak256 calculates the keccak256 hash of the input bytes
func Keccak256(data []byte) common.Hash {
	return NewHasher().Sum(data)
}
