package state

import (
	"context"
	"fmt"

	"github.com/ardanlabs/filechain/foundation/blockchain/database"
	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
)

// Commit mines the staging block at the session target and appends it to
// the chain. A new staging block is opened on top and everything is
// persisted. Mining can be cancelled through the context, in which case
// the staging block is left as it was.
func (s *State) Commit(ctx context.Context) (digest.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	block := s.staging

	s.evHandler("state: Commit: MINING: blk[%d]: tokens[%d]: target[%d]", block.Index(), block.Len(), s.target)

	if err := block.SetTarget(s.target); err != nil {
		return digest.Hash{}, err
	}

	s.evHandler("state: Commit: MINING: perform POW")

	if err := s.chain.Commit(ctx, block, database.CommitOptions{ProofOfWork: true}); err != nil {
		return digest.Hash{}, err
	}

	s.evHandler("state: Commit: MINING: update local state")

	staging, err := s.chain.MakeNextBlock()
	if err != nil {
		return digest.Hash{}, fmt.Errorf("opening block %d: %w", s.chain.Height(), err)
	}
	s.staging = staging

	if err := s.save(); err != nil {
		return digest.Hash{}, err
	}

	return block.Hash(), nil
}
