package state

import (
	"fmt"

	"github.com/ardanlabs/filechain/foundation/blockchain/database"
	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
)

// QueryStaging represents to query the staging block in place of a
// committed one.
const QueryStaging = -1

// =============================================================================

// Verify re-derives every hash of the chain and of the staging block from
// the files on disk. Workers above one spread the chain across goroutines.
func (s *State) Verify(workers int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: Verify: started: height[%d]: workers[%d]", s.chain.Height(), workers)
	defer s.evHandler("state: Verify: completed")

	if err := s.chain.VerifyConcurrent(workers); err != nil {
		return err
	}

	if err := s.staging.VerifyMerkleRoot(); err != nil {
		return err
	}

	return s.staging.Verify()
}

// Header returns the serialized header of the block at the index. A
// negative index selects the staging block.
func (s *State) Header(index int) ([]byte, error) {
	block, err := s.QueryBlock(index)
	if err != nil {
		return nil, err
	}

	return block.HeaderBytes(), nil
}

// QueryBlock returns the block at the index. A negative index selects the
// staging block.
func (s *State) QueryBlock(index int) (*database.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 {
		return s.staging, nil
	}

	return s.chain.Block(index)
}

// FindToken searches the committed blocks and then the staging block for
// the token indexed under the id. The block holding it is returned too.
func (s *State) FindToken(id digest.Hash) (database.Token, *database.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, block := range append(s.chain.Blocks(), s.staging) {
		if tk, exists := block.Token(id); exists {
			return tk, block, nil
		}
	}

	return database.Token{}, nil, fmt.Errorf("token %s not found", id)
}

// Chain returns the committed chain.
func (s *State) Chain() *database.Chain {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.chain
}

// Staging returns the block being staged.
func (s *State) Staging() *database.Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.staging
}
