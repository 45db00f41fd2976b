package database_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/ardanlabs/filechain/foundation/blockchain/database"
	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
)

func Test_LeadingZeroBits(t *testing.T) {
	type table struct {
		name string
		b    []byte
		bits uint
		exp  bool
	}

	tt := []table{
		{name: "zero-target", b: []byte{0xff}, bits: 0, exp: true},
		{name: "four-bytes", b: []byte{0, 0, 0, 0, 1, 1, 1}, bits: 32, exp: true},
		{name: "four-bytes-plus", b: []byte{0, 0, 0, 0, 1, 1, 1}, bits: 33, exp: false},
		{name: "partial-17", b: []byte{0, 0, 0x74}, bits: 17, exp: true},
		{name: "partial-18", b: []byte{0, 0, 0x74}, bits: 18, exp: false},
		{name: "whole-16", b: []byte{0, 0, 0xf4}, bits: 16, exp: true},
		{name: "whole-24", b: []byte{0, 0, 0xf4}, bits: 24, exp: false},
		{name: "too-short", b: []byte{0}, bits: 9, exp: false},
		{name: "exact-length", b: []byte{0, 0}, bits: 16, exp: true},
	}

	t.Log("Given the need to count leading zero bits.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen checking %x for %d bits.", testID, tst.b, tst.bits)
				{
					if got := database.HasRequiredLeadingZeroBits(tst.b, tst.bits); got != tst.exp {
						t.Fatalf("\t%s\tTest %d:\tShould get %t, got %t.", failed, testID, tst.exp, got)
					}
					t.Logf("\t%s\tTest %d:\tShould get %t.", success, testID, tst.exp)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_ProofOfWorkHex(t *testing.T) {
	type table struct {
		name   string
		hash   string
		target uint
		exp    bool
	}

	tt := []table{
		{name: "16", hash: "0000f4", target: 16, exp: true},
		{name: "24", hash: "0000f4", target: 24, exp: false},
		{name: "17", hash: "000074", target: 17, exp: true},
		{name: "18", hash: "000074", target: 18, exp: false},
		{name: "prefixed", hash: "0x000074", target: 17, exp: true},
		{name: "upper", hash: "0000F4", target: 16, exp: true},
	}

	t.Log("Given the need to check the proof of work on a hex hash.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen checking %s for %d bits.", testID, tst.hash, tst.target)
				{
					got, err := database.IsValidProofOfWorkHex(tst.hash, tst.target)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to check the hash: %v", failed, testID, err)
					}

					if got != tst.exp {
						t.Fatalf("\t%s\tTest %d:\tShould get %t, got %t.", failed, testID, tst.exp, got)
					}
					t.Logf("\t%s\tTest %d:\tShould get %t.", success, testID, tst.exp)

					b, err := digest.DecodeHex(tst.hash)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to decode the hash: %v", failed, testID, err)
					}

					if database.IsValidProofOfWork(b, tst.target) != tst.exp {
						t.Fatalf("\t%s\tTest %d:\tShould agree with the byte form.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould agree with the byte form.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}

	t.Log("Given the need to reject malformed hex hashes.")
	{
		t.Logf("\tTest 0:\tWhen a digit is not hex.")
		{
			_, err := database.IsValidProofOfWorkHex("00zz", 16)

			var ee *digest.EncodingError
			if !errors.As(err, &ee) {
				t.Fatalf("\t%s\tTest 0:\tShould get an EncodingError: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get an EncodingError.", success)
		}
	}
}

func Test_Mine(t *testing.T) {
	header := make([]byte, database.HeaderSize)
	copy(header, "a header that needs a nonce")

	t.Log("Given the need to search for a nonce that solves a target.")
	{
		for testID, target := range []uint{0, 4, 8, 12} {
			t.Logf("\tTest %d:\tWhen mining for a target of %d.", testID, target)
			{
				nonce, err := database.Mine(context.Background(), header, target, 0, nil)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to mine: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to mine: nonce[%d]", success, testID, nonce)

				hash := digest.Sum(withNonce(header, nonce))
				if !database.IsValidProofOfWork(hash[:], target) {
					t.Fatalf("\t%s\tTest %d:\tShould solve the target, got %s.", failed, testID, hash)
				}
				t.Logf("\t%s\tTest %d:\tShould solve the target.", success, testID)

				for n := range nonce {
					hash := digest.Sum(withNonce(header, n))
					if database.IsValidProofOfWork(hash[:], target) {
						t.Fatalf("\t%s\tTest %d:\tShould return the first solution, %d solves too.", failed, testID, n)
					}
				}
				t.Logf("\t%s\tTest %d:\tShould return the first solution.", success, testID)

				if target == 0 && nonce != 0 {
					t.Fatalf("\t%s\tTest %d:\tShould get the start nonce for target 0, got %d.", failed, testID, nonce)
				}
			}
		}
	}
}

func Test_MineCancel(t *testing.T) {
	header := make([]byte, database.HeaderSize)

	t.Log("Given the need to stop mining on request.")
	{
		t.Logf("\tTest 0:\tWhen the target can't be reached before the timeout.")
		{
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			var events int
			ev := func(v string, args ...any) { events++ }

			_, err := database.Mine(ctx, header, database.MaxDifficulty, 0, ev)
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("\t%s\tTest 0:\tShould get the context error: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get the context error.", success)

			if events == 0 {
				t.Fatalf("\t%s\tTest 0:\tShould report mining events.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould report mining events.", success)
		}
	}
}

// =============================================================================

func Test_ProofOfWorkMonotonic(t *testing.T) {
	hashes := []digest.Hash{digest.ZeroHash, digest.EmptyHash}

	var ones digest.Hash
	for i := range ones {
		ones[i] = 0xff
	}
	hashes = append(hashes, ones)

	for i := range 64 {
		hashes = append(hashes, digest.Sum([]byte{byte(i)}))
	}

	header := make([]byte, database.HeaderSize)
	for _, target := range []uint{4, 8, 12} {
		nonce, err := database.Mine(context.Background(), header, target, 0, nil)
		if err != nil {
			t.Fatalf("Should be able to mine at target %d: %v", target, err)
		}
		hashes = append(hashes, digest.Sum(withNonce(header, nonce)))
	}

	t.Log("Given the need for a solved hash to solve every easier target.")
	{
		t.Logf("\tTest 0:\tWhen walking every target for %d hashes.", len(hashes))
		{
			for _, hash := range hashes {

				// The targets a hash solves must be 0 through some highest one.
				highest := -1
				for target := 0; target <= database.MaxDifficulty; target++ {
					valid := database.IsValidProofOfWork(hash[:], uint(target))
					switch {
					case valid && highest == target-1:
						highest = target
					case valid:
						t.Fatalf("\t%s\tTest 0:\tShould not solve target %d after failing %d for %s.", failed, target, highest+1, hash)
					}
				}

				if highest < 0 {
					t.Fatalf("\t%s\tTest 0:\tShould solve target 0 for %s.", failed, hash)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould solve every target below the highest solved one.", success)

			if !database.IsValidProofOfWork(digest.ZeroHash[:], database.MaxDifficulty) {
				t.Fatalf("\t%s\tTest 0:\tShould solve the maximum target with the zero hash.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould solve the maximum target with the zero hash.", success)
		}
	}
}

func withNonce(header []byte, nonce uint32) []byte {
	b := make([]byte, len(header))
	copy(b, header)
	binary.BigEndian.PutUint32(b[len(b)-4:], nonce)
	return b
}
