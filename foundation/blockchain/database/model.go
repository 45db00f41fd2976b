package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
	"github.com/ardanlabs/filechain/foundation/validate"
)

// TokenData represents what is serialized to disk for a token. The token
// hash is not stored, it is the key the token is filed under in BlockData.
type TokenData struct {
	Owner     string      `json:"owner"`
	FileName  string      `json:"file_name" validate:"filename"`
	Author    string      `json:"author"`
	TimeStamp int64       `json:"timestamp" validate:"gte=0"`
	FileHash  digest.Hash `json:"file_hash"`
}

// NewTokenData constructs the serialized form of a token.
func NewTokenData(tk Token) TokenData {
	return TokenData{
		Owner:     tk.Owner,
		FileName:  tk.FileName,
		Author:    tk.Author,
		TimeStamp: tk.TimeStamp.Unix(),
		FileHash:  tk.FileHash,
	}
}

// LoadToken reconstructs a token from its serialized form. The file name
// must be a bare name so the token can't point outside its block directory.
func LoadToken(td TokenData) (Token, error) {
	if err := validate.Check(td); err != nil {
		return Token{}, fmt.Errorf("token %s: %w", td.FileName, err)
	}

	tk := Token{
		Owner:     td.Owner,
		FileName:  td.FileName,
		Author:    td.Author,
		TimeStamp: time.Unix(td.TimeStamp, 0).UTC(),
		FileHash:  td.FileHash,
	}

	return tk, nil
}

// =============================================================================

// BlockData represents what is serialized to disk for a block.
type BlockData struct {
	Index        int                       `json:"index" validate:"gte=0"`
	Version      uint32                    `json:"version"`
	Target       uint32                    `json:"target" validate:"lte=256"`
	Nonce        uint32                    `json:"nonce"`
	PreviousHash digest.Hash               `json:"previous_hash"`
	MerkleRoot   digest.Hash               `json:"merkle_root"`
	TimeStamp    int64                     `json:"timestamp" validate:"gte=0"`
	Tokens       map[digest.Hash]TokenData `json:"tokens" validate:"dive"`
}

// NewBlockData constructs the serialized form of a block.
func NewBlockData(b *Block) BlockData {
	tokens := make(map[digest.Hash]TokenData, len(b.tokens))
	for id, tk := range b.tokens {
		tokens[id] = NewTokenData(tk)
	}

	return BlockData{
		Index:        b.index,
		Version:      b.header.Version,
		Target:       b.header.Target,
		Nonce:        b.header.Nonce,
		PreviousHash: b.header.PrevHash,
		MerkleRoot:   b.header.MerkleRoot,
		TimeStamp:    b.header.TimeStamp.Unix(),
		Tokens:       tokens,
	}
}

// toBlock converts the serialized form into an unsealed block that lives
// under the chain directory. The block directory is not created, a missing
// directory surfaces as a verification failure.
func toBlock(bd BlockData, chainDir string) (*Block, error) {
	if err := validate.Check(bd); err != nil {
		return nil, fmt.Errorf("block %d: %w", bd.Index, err)
	}

	tokens := make(map[digest.Hash]Token, len(bd.Tokens))
	for id, td := range bd.Tokens {
		tk, err := LoadToken(td)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", bd.Index, err)
		}
		tokens[id] = tk
	}

	b := Block{
		dir:   filepath.Join(chainDir, blockDirName(bd.Index)),
		index: bd.Index,
		header: Header{
			Version:    bd.Version,
			PrevHash:   bd.PreviousHash,
			MerkleRoot: bd.MerkleRoot,
			TimeStamp:  time.Unix(bd.TimeStamp, 0).UTC(),
			Target:     bd.Target,
			Nonce:      bd.Nonce,
		},
		tokens: tokens,
	}

	return &b, nil
}

// =============================================================================

// ChainData represents what is serialized to disk for a chain and the block
// that is being staged on top of it.
type ChainData struct {
	Name      string        `json:"name" validate:"required"`
	TimeStamp int64         `json:"timestamp" validate:"gte=0"`
	Blocks    []BlockData   `json:"blocks" validate:"dive"`
	Staging   *BlockData    `json:"staging,omitempty"`
	Settings  *SettingsData `json:"settings,omitempty"`
}

// SettingsData is the user and target selected for the sessions working on
// a chain. They are kept with the chain so each program run picks them up.
type SettingsData struct {
	User   string `json:"user" validate:"required"`
	Target uint   `json:"target" validate:"lte=256"`
}

// NewChainData constructs the serialized form of a chain. The staging block
// is optional.
func NewChainData(c *Chain, staging *Block) ChainData {
	blocks := make([]BlockData, len(c.blocks))
	for i, b := range c.blocks {
		blocks[i] = NewBlockData(b)
	}

	cd := ChainData{
		Name:      c.name,
		TimeStamp: c.timeStamp.Unix(),
		Blocks:    blocks,
	}

	if staging != nil {
		bd := NewBlockData(staging)
		cd.Staging = &bd
	}

	return cd
}

// Load rebuilds a chain from its serialized form. Every block goes through
// the same checks as a newly committed block, its proof of work must already
// be solved, and then the whole chain is verified against the files under
// dir. The staging block is restored when one was saved, otherwise a new one
// is opened on top of the tip.
func Load(cd ChainData, dir string, ev EventHandler) (*Chain, *Block, error) {
	ev = safeHandler(ev)

	if err := validate.Check(cd); err != nil {
		return nil, nil, fmt.Errorf("chain data: %w", err)
	}

	chain, err := NewChain(ChainConfig{
		Dir:       dir,
		Name:      cd.Name,
		TimeStamp: time.Unix(cd.TimeStamp, 0).UTC(),
		EvHandler: ev,
	})
	if err != nil {
		return nil, nil, err
	}

	ev("database: Load: started: name[%s]: blocks[%d]", cd.Name, len(cd.Blocks))

	for i, bd := range cd.Blocks {
		block, err := toBlock(bd, dir)
		if err != nil {
			return nil, nil, &InvalidChainError{Index: i, Err: err}
		}

		if err := block.VerifyMerkleRoot(); err != nil {
			return nil, nil, &InvalidChainError{Index: i, Err: err}
		}

		if err := chain.Commit(context.Background(), block, CommitOptions{}); err != nil {
			return nil, nil, err
		}
	}

	if err := chain.Verify(); err != nil {
		return nil, nil, err
	}

	var staging *Block
	switch cd.Staging {
	case nil:
		staging, err = chain.MakeNextBlock()
	default:
		staging, err = RestoreStaging(chain, *cd.Staging)
	}
	if err != nil {
		return nil, nil, err
	}

	ev("database: Load: completed: height[%d]: staged[%d]", chain.Height(), staging.Len())

	return chain, staging, nil
}

// RestoreStaging rebuilds an uncommitted block. It must be the next block of
// the chain and its files must still match its tokens.
func RestoreStaging(chain *Chain, bd BlockData) (*Block, error) {
	block, err := toBlock(bd, chain.dir)
	if err != nil {
		return nil, err
	}

	if next := chain.Height(); block.index != next {
		return nil, chainError(block.index, ErrIndexMismatch, "staging block got %d, exp %d", block.index, next)
	}

	expPrevHash := digest.ZeroHash
	if tip, exists := chain.Tip(); exists {
		expPrevHash = tip.Hash()
	}
	if block.header.PrevHash != expPrevHash {
		return nil, chainError(block.index, ErrPreviousHashMismatch, "staging block %s, blockchain block %s", block.header.PrevHash, expPrevHash)
	}

	if err := block.VerifyMerkleRoot(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(block.dir, 0755); err != nil {
		return nil, &IOError{Op: "mkdir", Path: block.dir, Err: err}
	}

	if err := block.Verify(); err != nil {
		return nil, err
	}

	return block, nil
}
