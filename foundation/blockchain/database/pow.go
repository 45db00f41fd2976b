package database

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
)

// MaxDifficulty is the highest target that can be requested. At this target
// the only valid solution is a hash of all zero bits.
//
// Every unit of target doubles the expected number of attempts. At roughly
// a million hashes a second, a target of 20 takes about a second, 30 about
// seventeen minutes and 45 about a year.
const MaxDifficulty = 256

// nonceSize is the number of trailing header bytes holding the nonce.
const nonceSize = 4

// Mine performs the proof of work search over a serialized block header.
// The nonce occupies the trailing four bytes of the header and is counted
// up as a big endian value starting at startNonce. The first nonce whose
// header hash has at least target leading zero bits is returned. The search
// polls the context on every attempt so it can be cancelled or timed out.
func Mine(ctx context.Context, header []byte, target uint, startNonce uint32, ev EventHandler) (uint32, error) {
	ev = safeHandler(ev)

	if len(header) < nonceSize {
		return 0, fmt.Errorf("header too short for a nonce, got %d bytes", len(header))
	}
	target = clampTarget(target)

	ev("database: Mine: MINING: started: target[%d]: nonce[%d]", target, startNonce)
	defer ev("database: Mine: MINING: completed")

	// Work on a copy so the caller's header isn't changed on failure.
	work := make([]byte, len(header))
	copy(work, header)
	nonceAt := len(work) - nonceSize

	nonce := startNonce
	var attempts uint64
	for {
		if err := ctx.Err(); err != nil {
			ev("database: Mine: MINING: CANCELLED: attempts[%d]", attempts)
			return 0, err
		}

		binary.BigEndian.PutUint32(work[nonceAt:], nonce)
		hash := digest.Sum(work)
		attempts++

		if HasRequiredLeadingZeroBits(hash[:], target) {
			ev("database: Mine: MINING: SOLVED: nonce[%d]: hash[%s]: attempts[%d]", nonce, hash, attempts)
			return nonce, nil
		}

		if attempts%1_000_000 == 0 {
			ev("database: Mine: MINING: attempts[%d]", attempts)
		}

		// The carry never leaves the nonce field, it wraps around.
		nonce++
		if nonce == startNonce {
			return 0, ErrNonceSpaceExhausted
		}
	}
}

// HasRequiredLeadingZeroBits checks the bytes start with at least the
// specified number of zero bits.
func HasRequiredLeadingZeroBits(b []byte, bits uint) bool {
	n := bits / 8
	if uint(len(b)) < n {
		return false
	}

	for i := uint(0); i < n; i++ {
		if b[i] != 0 {
			return false
		}
	}

	rem := bits % 8
	if rem == 0 {
		return true
	}

	if uint(len(b)) == n {
		return false
	}

	// With 3 bits remaining, the next byte must be less than 0010_0000.
	return b[n] < 1<<(8-rem)
}

// IsValidProofOfWork checks the hash satisfies the target. A target above
// MaxDifficulty is treated as MaxDifficulty.
func IsValidProofOfWork(hash []byte, target uint) bool {
	return HasRequiredLeadingZeroBits(hash, clampTarget(target))
}

// IsValidProofOfWorkHex checks the hex form of a hash satisfies the target
// by inspecting it one hex digit, four bits, at a time.
func IsValidProofOfWorkHex(hash string, target uint) (bool, error) {
	hash = strings.TrimPrefix(strings.TrimPrefix(hash, "0x"), "0X")
	target = clampTarget(target)

	n := target / 4
	if uint(len(hash)) < n {
		return false, nil
	}

	for i := uint(0); i < n; i++ {
		v, err := hexValue(hash, i)
		if err != nil {
			return false, err
		}
		if v != 0 {
			return false, nil
		}
	}

	rem := target % 4
	if rem == 0 {
		return true, nil
	}

	if uint(len(hash)) == n {
		return false, nil
	}

	v, err := hexValue(hash, n)
	if err != nil {
		return false, err
	}

	return v < 1<<(4-rem), nil
}

// =============================================================================

// hexValue returns the value of the hex digit at the specified position.
func hexValue(s string, i uint) (byte, error) {
	c := s[i]
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	}

	return 0, &digest.EncodingError{Input: s, Reason: fmt.Sprintf("invalid hexadecimal digit %q at %d", c, i)}
}

func clampTarget(target uint) uint {
	if target > MaxDifficulty {
		return MaxDifficulty
	}
	return target
}
