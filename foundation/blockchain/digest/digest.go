// Package digest provides the hashing and hex encoding primitives used by
// every other part of the blockchain.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Size is the number of bytes in a digest.
const Size = sha256.Size

// Hash represents a SHA-256 digest.
type Hash [Size]byte

// ZeroHash represents the all zero sentinel used as the previous hash of
// the first block in a chain.
var ZeroHash Hash

// EmptyHash is the digest of an empty byte sequence.
var EmptyHash = Sum(nil)

// Sum returns the SHA-256 digest of the data.
func Sum(data []byte) Hash {
	return sha256.Sum256(data)
}

// Bytes returns a copy of the digest as a slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, h[:])
	return b
}

// Hex returns the canonical lowercase hex form of the digest.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String implements the fmt.Stringer interface.
func (h Hash) String() string {
	return h.Hex()
}

// IsZero reports whether the digest is the zero sentinel.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// MarshalText implements the encoding.TextMarshaler interface so digests
// are written to JSON as lowercase hex strings.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (h *Hash) UnmarshalText(text []byte) error {
	v, err := ParseHash(string(text))
	if err != nil {
		return err
	}

	*h = v
	return nil
}

// =============================================================================

// EncodingError is returned when a hex string can't be decoded.
type EncodingError struct {
	Input  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (ee *EncodingError) Error() string {
	return fmt.Sprintf("invalid hex %q: %s", ee.Input, ee.Reason)
}

// Unwrap returns the underlying decoder error, if any.
func (ee *EncodingError) Unwrap() error {
	return ee.Err
}

// EncodeHex converts the bytes into lowercase hex, two digits per byte.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// Prefixed converts the bytes into the 0x prefixed hex form used for display.
func Prefixed(b []byte) string {
	return hexutil.Encode(b)
}

// DecodeHex converts a hex string into bytes. Upper and lower case digits are
// accepted. An odd length string is padded with a leading zero, which keeps
// compatibility with chains written by older tooling. A 0x prefixed string
// is decoded strictly and odd lengths are rejected.
func DecodeHex(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hexutil.Decode("0x" + s[2:])
		if err != nil {
			return nil, &EncodingError{Input: s, Reason: err.Error(), Err: err}
		}
		return b, nil
	}

	if len(s)%2 == 1 {
		s = "0" + s
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, &EncodingError{Input: s, Reason: err.Error(), Err: err}
	}

	return b, nil
}

// ParseHash decodes a hex string that must hold exactly one digest.
func ParseHash(s string) (Hash, error) {
	b, err := DecodeHex(s)
	if err != nil {
		return Hash{}, err
	}

	if len(b) != Size {
		return Hash{}, &EncodingError{Input: s, Reason: fmt.Sprintf("got %d bytes, exp %d", len(b), Size)}
	}

	var h Hash
	copy(h[:], b)
	return h, nil
}

// FromBytes copies a digest held in a slice into a Hash.
func FromBytes(b []byte) (Hash, error) {
	if len(b) != Size {
		return Hash{}, &EncodingError{Input: EncodeHex(b), Reason: fmt.Sprintf("got %d bytes, exp %d", len(b), Size)}
	}

	var h Hash
	copy(h[:], b)
	return h, nil
}
