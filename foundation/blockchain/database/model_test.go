package database_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ardanlabs/filechain/foundation/blockchain/database"
	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
	"github.com/ardanlabs/filechain/foundation/validate"
)

func Test_Load(t *testing.T) {
	chain, staging := buildChain(t)

	t.Log("Given the need to reload a saved chain.")
	{
		t.Logf("\tTest 0:\tWhen the saved chain is untouched.")
		{
			cd := roundTrip(t, database.NewChainData(chain, staging))

			loaded, restored, err := database.Load(cd, chain.Dir(), nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to load the chain: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to load the chain.", success)

			if loaded.Height() != chain.Height() || loaded.Name() != chain.Name() {
				t.Fatalf("\t%s\tTest 0:\tShould get the same chain back, height %d.", failed, loaded.Height())
			}

			for i, block := range chain.Blocks() {
				got, err := loaded.Block(i)
				if err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould have block %d: %v", failed, i, err)
				}
				if got.Hash() != block.Hash() || !got.Sealed() {
					t.Fatalf("\t%s\tTest 0:\tShould get the same hash for block %d.", failed, i)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould get the same hash for every block.", success)

			if restored.Index() != 2 || restored.Len() != 1 || restored.Sealed() {
				t.Fatalf("\t%s\tTest 0:\tShould restore the staging block, index %d, tokens %d.", failed, restored.Index(), restored.Len())
			}
			t.Logf("\t%s\tTest 0:\tShould restore the staging block.", success)
		}

		t.Logf("\tTest 1:\tWhen the saved chain has no staging block.")
		{
			cd := roundTrip(t, database.NewChainData(chain, nil))

			_, restored, err := database.Load(cd, chain.Dir(), nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to load the chain: %v", failed, err)
			}

			if restored.Index() != chain.Height() || restored.Len() != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould open an empty staging block.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould open an empty staging block.", success)
		}
	}
}

func Test_LoadRejects(t *testing.T) {
	chain, staging := buildChain(t)

	type table struct {
		name   string
		edit   func(cd *database.ChainData)
		reason error
	}

	tt := []table{
		{
			name:   "merkle-root",
			edit:   func(cd *database.ChainData) { cd.Blocks[1].MerkleRoot = digest.Sum([]byte("edited")) },
			reason: database.ErrMerkleRootMismatch,
		},
		{
			name:   "previous-hash",
			edit:   func(cd *database.ChainData) { cd.Blocks[1].PreviousHash = digest.Sum([]byte("edited")) },
			reason: database.ErrPreviousHashMismatch,
		},
		{
			name: "nonce",
			edit: func(cd *database.ChainData) {
				cd.Blocks[0].Nonce++
			},
		},
		{
			name:   "version",
			edit:   func(cd *database.ChainData) { cd.Blocks[0].Version = 2 },
			reason: database.ErrVersionMismatch,
		},
		{
			name:   "staging-index",
			edit:   func(cd *database.ChainData) { cd.Staging.Index = 7 },
			reason: database.ErrIndexMismatch,
		},
		{
			name: "file-hash",
			edit: func(cd *database.ChainData) {
				for id, td := range cd.Blocks[0].Tokens {
					td.FileHash = digest.Sum([]byte("edited"))
					cd.Blocks[0].Tokens[id] = td
					break
				}
			},
		},
		{
			name: "author",
			edit: func(cd *database.ChainData) {
				for id, td := range cd.Blocks[1].Tokens {
					td.Author = "someone else"
					cd.Blocks[1].Tokens[id] = td
					break
				}
			},
		},
	}

	t.Log("Given the need to reject a hand edited chain.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen the %s is edited.", testID, tst.name)
				{
					cd := roundTrip(t, database.NewChainData(chain, staging))
					tst.edit(&cd)

					_, _, err := database.Load(cd, chain.Dir(), nil)
					if err == nil {
						t.Fatalf("\t%s\tTest %d:\tShould refuse to load the chain.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould refuse to load the chain: %v", success, testID, err)

					var ice *database.InvalidChainError
					if !errors.As(err, &ice) {
						t.Fatalf("\t%s\tTest %d:\tShould get an InvalidChainError: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get an InvalidChainError.", success, testID)

					if tst.reason != nil && !errors.Is(err, tst.reason) {
						t.Fatalf("\t%s\tTest %d:\tShould be refused with %q: %v", failed, testID, tst.reason, err)
					}
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_LoadValidation(t *testing.T) {
	chain, staging := buildChain(t)

	t.Log("Given the need to validate saved records.")
	{
		t.Logf("\tTest 0:\tWhen a token file name escapes its block directory.")
		{
			cd := roundTrip(t, database.NewChainData(chain, staging))
			for id, td := range cd.Blocks[0].Tokens {
				td.FileName = "../../etc/passwd"
				cd.Blocks[0].Tokens[id] = td
				break
			}

			_, _, err := database.Load(cd, chain.Dir(), nil)
			if !validate.IsFieldErrors(err) {
				t.Fatalf("\t%s\tTest 0:\tShould get field errors: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get field errors.", success)
		}

		t.Logf("\tTest 1:\tWhen the chain has no name.")
		{
			cd := roundTrip(t, database.NewChainData(chain, staging))
			cd.Name = ""

			_, _, err := database.Load(cd, chain.Dir(), nil)
			if !validate.IsFieldErrors(err) {
				t.Fatalf("\t%s\tTest 1:\tShould get field errors: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get field errors.", success)
		}
	}
}

// =============================================================================

// buildChain commits two blocks and stages a third.
func buildChain(t *testing.T) (*database.Chain, *database.Block) {
	t.Helper()

	src := t.TempDir()

	chain, err := database.NewChain(database.ChainConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Should be able to create the chain: %v", err)
	}

	for i, names := range [][]string{{"a.txt", "b.txt", "c.txt"}, {"d.txt", "e.txt"}} {
		block := stageFiles(t, chain, src, names...)
		if err := block.SetTarget(16); err != nil {
			t.Fatalf("Should be able to set the target: %v", err)
		}

		if err := chain.Commit(context.Background(), block, database.CommitOptions{ProofOfWork: true}); err != nil {
			t.Fatalf("Should be able to commit block %d: %v", i, err)
		}
	}

	return chain, stageFiles(t, chain, src, "f.txt")
}

// roundTrip sends the chain data through JSON the way the storage does.
func roundTrip(t *testing.T, cd database.ChainData) database.ChainData {
	t.Helper()

	data, err := json.Marshal(cd)
	if err != nil {
		t.Fatalf("Should be able to marshal the chain: %v", err)
	}

	var out database.ChainData
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Should be able to unmarshal the chain: %v", err)
	}

	return out
}
