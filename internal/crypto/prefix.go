package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Errors
var (
	ErrPrefixTooLong = errors.New("prefix is longer than a keccak256 digest")
	ErrInvalidHex    = errors.New("invalid hex string")
)

// Prefix is a target hash prefix: whole bytes plus an optional trailing high nibble.
type Prefix struct {
	full   []byte
	half   bool
	nibble byte
}

// NewPrefix creates a byte-aligned prefix. An empty prefix matches every digest.
func NewPrefix(b []byte) (Prefix, error) {
	if len(b) > DigestLen {
		return Prefix{}, fmt.Errorf("%w: %d bytes", ErrPrefixTooLong, len(b))
	}
	return Prefix{full: bytes.Clone(b)}, nil
}

// ParsePrefix decodes a hex prefix (with or without 0x, case-insensitive).
// Odd-length input is allowed; the last character then constrains the high nibble of the next byte.
func ParsePrefix(s string) (Prefix, error) {
	h := strings.ToLower(trimHex(s))
	if len(h) > 2*DigestLen {
		return Prefix{}, fmt.Errorf("%w: %d hex chars", ErrPrefixTooLong, len(h))
	}

	even := h[:len(h)&^1]
	full, err := hex.DecodeString(even)
	if err != nil {
		return Prefix{}, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	p := Prefix{full: full}
	if len(h)%2 == 1 {
		n, ok := nibbleValue(h[len(h)-1])
		if !ok {
			return Prefix{}, fmt.Errorf("%w: %q", ErrInvalidHex, h[len(h)-1])
		}
		p.half = true
		p.nibble = n
	}
	return p, nil
}

// Bytes returns the whole-byte part of the prefix.
func (p Prefix) Bytes() []byte {
	return p.full
}

// Nibbles returns the prefix length in hex characters.
func (p Prefix) Nibbles() int {
	n := 2 * len(p.full)
	if p.half {
		n++
	}
	return n
}

// String returns the prefix as 0x-prefixed hex.
func (p Prefix) String() string {
	s := "0x" + hex.EncodeToString(p.full)
	if p.half {
		s += string("0123456789abcdef"[p.nibble])
	}
	return s
}

// Match reports whether digest starts with the prefix.
func (p Prefix) Match(digest []byte) bool {
	if !Matches(digest, p.full) {
		return false
	}
	if p.half {
		return digest[len(p.full)]>>4 == p.nibble
	}
	return true
}

// Matches reports whether digest[:len(prefix)] equals prefix.
// It panics if prefix is longer than digest; NewPrefix and ParsePrefix reject such
// prefixes with ErrPrefixTooLong.
func Matches(digest, prefix []byte) bool {
	if len(prefix) > len(digest) {
		panic(fmt.Sprintf("crypto: prefix of %d bytes is longer than the %d byte digest", len(prefix), len(digest)))
	}
	return bytes.Equal(digest[:len(prefix)], prefix)
}

// MatchedNibbles counts how many leading hex characters of digest agree with the prefix.
func (p Prefix) MatchedNibbles(digest []byte) int {
	for i, b := range p.full {
		if digest[i] == b {
			continue
		}
		if digest[i]>>4 == b>>4 {
			return 2*i + 1
		}
		return 2 * i
	}
	if p.half && digest[len(p.full)]>>4 == p.nibble {
		return 2*len(p.full) + 1
	}
	return 2 * len(p.full)
}

func nibbleValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}
