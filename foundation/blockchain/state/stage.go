package state

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/filechain/foundation/blockchain/database"
	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
	"github.com/ardanlabs/filechain/foundation/validate"
)

// stageRequest is the input for staging a file.
type stageRequest struct {
	Owner    string `json:"owner" validate:"required"`
	FilePath string `json:"file_path" validate:"required"`
	Author   string `json:"author"`
}

// Stage adds the file to the staging block. An empty owner means the
// session user. The staged block is persisted on success.
func (s *State) Stage(owner string, filePath string, author string) (digest.Hash, database.StageResult, error) {
	if owner == "" {
		owner = s.User()
	}

	req := stageRequest{
		Owner:    owner,
		FilePath: filePath,
		Author:   author,
	}
	if err := validate.Check(req); err != nil {
		return digest.Hash{}, database.StageResult{}, fmt.Errorf("stage: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: Stage: started: blk[%d]: file[%s]", s.staging.Index(), filePath)
	defer s.evHandler("state: Stage: completed")

	res, err := s.staging.Stage(database.PseudoToken{
		Owner:    req.Owner,
		FilePath: req.FilePath,
		Author:   req.Author,
	})
	if err != nil {
		return digest.Hash{}, database.StageResult{}, err
	}

	if res.Overwritten {
		s.evHandler("state: Stage: WARNING: %s: replaced a file of the same name", res.Path)
	}

	s.evHandler("state: Stage: token[%s]: merkle[%s]", res.ID, s.staging.Header().MerkleRoot)

	if err := s.save(); err != nil {
		return digest.Hash{}, database.StageResult{}, err
	}

	return res.ID, res, nil
}

// Unstage discards the staging block and opens an empty one in its place.
// Files already copied into the block directory are left on disk.
func (s *State) Unstage() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: Unstage: discarding blk[%d]: tokens[%d]", s.staging.Index(), s.staging.Len())

	staging, err := s.chain.MakeNextBlock()
	if err != nil {
		return err
	}
	s.staging = staging

	return s.save()
}

// SetTarget sets the number of leading zero bits required of the next
// committed block and stores it with the chain. The target is capped at
// database.MaxDifficulty.
func (s *State) SetTarget(target uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.target = min(target, database.MaxDifficulty)
	s.evHandler("state: SetTarget: target[%d]", s.target)

	return s.save()
}

// Target returns the target used for the next commit.
func (s *State) Target() uint {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.target
}

// SwitchUser changes the owner recorded on tokens staged from now on and
// stores it with the chain.
func (s *State) SwitchUser(user string) error {
	if user == "" {
		return errors.New("user name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = user
	s.evHandler("state: SwitchUser: user[%s]", user)

	return s.save()
}

// User returns the owner recorded on newly staged tokens.
func (s *State) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.user
}
