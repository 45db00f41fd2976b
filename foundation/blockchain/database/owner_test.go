package database_test

import (
	"strings"
	"testing"

	"github.com/ardanlabs/filechain/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
)

func Test_Owner(t *testing.T) {
	pk, err := crypto.HexToECDSA("fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959")
	if err != nil {
		t.Fatalf("Should be able to load the key: %v", err)
	}
	owner := database.PublicKeyToOwner(pk.PublicKey)

	t.Log("Given the need to tell address owners from user names.")
	{
		t.Logf("\tTest 0:\tWhen checking owners.")
		{
			for _, tst := range []struct {
				owner   string
				address bool
			}{
				{owner, true},
				{strings.ToLower(owner), true},
				{owner[2:], true},
				{database.DefaultOwner, false},
				{"bill", false},
				{owner[:len(owner)-1], false},
			} {
				if got := database.IsAddress(tst.owner); got != tst.address {
					t.Fatalf("\t%s\tTest 0:\tShould report %q as address[%t], got %t.", failed, tst.owner, tst.address, got)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould tell address owners from user names.", success)
		}

		t.Logf("\tTest 1:\tWhen normalizing owners.")
		{
			if got := database.OwnerAddress(strings.ToLower(owner)); got != owner {
				t.Fatalf("\t%s\tTest 1:\tShould checksum the address, got %s exp %s.", failed, got, owner)
			}
			if got := database.OwnerAddress("bill"); got != "bill" {
				t.Fatalf("\t%s\tTest 1:\tShould keep user names, got %s.", failed, got)
			}
			t.Logf("\t%s\tTest 1:\tShould normalize address owners only.", success)
		}
	}
}
