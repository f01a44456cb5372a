package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ContractAddress derives the address of a contract created by sender at nonce:
// keccak256(rlp([sender, nonce]))[12:].
func ContractAddress(sender common.Address, nonce uint64) common.Address {
	return gethcrypto.CreateAddress(sender, nonce)
}

// DecodeHex decodes a hex string (with or without 0x, surrounding whitespace ignored).
func DecodeHex(s string) ([]byte, error) {
	h := trimHex(s)
	if len(h)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrInvalidHex, len(h))
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return b, nil
}

func trimHex(s string) string {
	h := strings.TrimSpace(s)
	if len(h) >= 2 && (h[0:2] == "0x" || h[0:2] == "0X") {
		h = h[2:]
	}
	return h
}
