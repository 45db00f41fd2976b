package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
)

// ChainConfig represents the configuration required to construct a chain.
type ChainConfig struct {
	Dir       string
	Name      string           // Defaults to the last component of Dir.
	TimeStamp time.Time        // Defaults to now.
	EvHandler EventHandler     // Optional.
	Now       func() time.Time // Clock used for the timestamp check, defaults to time.Now.
	Version   uint32           // Block format version the chain accepts, defaults to Version.
}

// CommitOptions controls how a block is committed.
type CommitOptions struct {
	ProofOfWork bool // Mine the block. Otherwise the stored nonce must already solve the target.
}

// Chain represents an ordered, append only sequence of committed blocks.
type Chain struct {
	name      string
	dir       string
	version   uint32
	timeStamp time.Time
	blocks    []*Block
	evHandler EventHandler
	now       func() time.Time
}

// NewChain constructs an empty chain and makes sure the chain directory
// exists.
func NewChain(cfg ChainConfig) (*Chain, error) {
	if cfg.Dir == "" {
		return nil, errors.New("chain directory is required")
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, &IOError{Op: "mkdir", Path: cfg.Dir, Err: err}
	}

	name := cfg.Name
	if name == "" {
		name = baseName(filepath.Clean(cfg.Dir))
	}

	timeStamp := cfg.TimeStamp
	if timeStamp.IsZero() {
		timeStamp = time.Now().UTC().Truncate(time.Second)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	version := cfg.Version
	if version == 0 {
		version = Version
	}

	c := Chain{
		name:      name,
		dir:       cfg.Dir,
		version:   version,
		timeStamp: timeStamp,
		evHandler: safeHandler(cfg.EvHandler),
		now:       now,
	}

	return &c, nil
}

// MakeNextBlock constructs a new staging block that follows the tip.
func (c *Chain) MakeNextBlock() (*Block, error) {
	prevHash := digest.ZeroHash
	if tip, exists := c.Tip(); exists {
		prevHash = tip.Hash()
	}

	block, err := NewBlock(c.Height(), prevHash, c.dir)
	if err != nil {
		return nil, err
	}
	block.header.Version = c.version

	return block, nil
}

// Commit validates the block against the tip of the chain, performs the
// proof of work if requested, and appends the block. Nothing changes when
// an error is returned.
func (c *Chain) Commit(ctx context.Context, block *Block, opts CommitOptions) error {
	if block == nil {
		return errors.New("no block provided")
	}

	c.evHandler("database: Commit: validate: blk[%d]: check: block is not already committed", block.index)

	if block.sealed {
		return &InvalidChainError{Index: block.index, Err: ErrBlockSealed}
	}

	c.evHandler("database: Commit: validate: blk[%d]: check: block index is the next index", block.index)

	if next := c.Height(); block.index != next {
		return chainError(block.index, ErrIndexMismatch, "got %d, exp %d", block.index, next)
	}

	c.evHandler("database: Commit: validate: blk[%d]: check: previous hash does match the tip", block.index)

	expPrevHash := digest.ZeroHash
	if tip, exists := c.Tip(); exists {
		expPrevHash = tip.Hash()
	}
	if block.header.PrevHash != expPrevHash {
		return chainError(block.index, ErrPreviousHashMismatch, "proposed block %s, blockchain block %s", block.header.PrevHash, expPrevHash)
	}

	c.evHandler("database: Commit: validate: blk[%d]: check: block version matches chain version", block.index)

	if block.header.Version != c.version {
		return chainError(block.index, ErrVersionMismatch, "got %d, exp %d", block.header.Version, c.version)
	}

	c.evHandler("database: Commit: validate: blk[%d]: check: block timestamp is in the past", block.index)

	if now := c.now(); !block.header.TimeStamp.Before(now) {
		return chainError(block.index, ErrFutureBlock, "block %s, now %s", block.header.TimeStamp.Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	}

	nonce := block.header.Nonce
	target := uint(block.header.Target)

	switch {
	case opts.ProofOfWork:
		var err error
		nonce, err = Mine(ctx, block.HeaderBytes(), target, block.header.Nonce, c.evHandler)
		if err != nil {
			return fmt.Errorf("mining block %d: %w", block.index, err)
		}

	default:
		c.evHandler("database: Commit: validate: blk[%d]: check: block hash has been solved", block.index)

		hash := block.Hash()
		if !IsValidProofOfWork(hash[:], target) {
			return chainError(block.index, ErrProofOfWork, "hash %s, target %d", hash, target)
		}
	}

	block.header.Nonce = nonce
	block.sealed = true
	c.blocks = append(c.blocks, block)

	c.evHandler("database: Commit: blk[%d]: hash[%s]: tokens[%d]", block.index, block.Hash(), block.Len())

	return nil
}

// Verify re-derives every hash in the chain from the files on disk. The
// first failure is returned.
func (c *Chain) Verify() error {
	for i, block := range c.blocks {
		if err := c.verifyBlock(i, block); err != nil {
			return err
		}
	}

	return nil
}

// VerifyConcurrent performs the same work as Verify spread across the
// specified number of workers. When several blocks fail, the failure with
// the lowest index is returned, the same one Verify would return.
func (c *Chain) VerifyConcurrent(workers int) error {
	if workers <= 1 || len(c.blocks) <= 1 {
		return c.Verify()
	}

	errs := make([]error, len(c.blocks))
	jobs := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = c.verifyBlock(i, c.blocks[i])
			}
		}()
	}

	for i := range c.blocks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

// Height returns the number of committed blocks.
func (c *Chain) Height() int {
	return len(c.blocks)
}

// Tip returns the last committed block.
func (c *Chain) Tip() (*Block, bool) {
	if len(c.blocks) == 0 {
		return nil, false
	}
	return c.blocks[len(c.blocks)-1], true
}

// Block returns the committed block at the specified index.
func (c *Chain) Block(index int) (*Block, error) {
	if index < 0 || index >= len(c.blocks) {
		return nil, fmt.Errorf("block %d does not exist, height %d", index, len(c.blocks))
	}
	return c.blocks[index], nil
}

// Blocks returns the committed blocks in index order.
func (c *Chain) Blocks() []*Block {
	blocks := make([]*Block, len(c.blocks))
	copy(blocks, c.blocks)
	return blocks
}

// Name returns the name of the chain.
func (c *Chain) Name() string {
	return c.name
}

// Dir returns the directory holding the block directories.
func (c *Chain) Dir() string {
	return c.dir
}

// TimeStamp returns the time the chain was created.
func (c *Chain) TimeStamp() time.Time {
	return c.timeStamp
}

// =============================================================================

// verifyBlock checks the block against its position in the chain and then
// checks its tokens against the files on disk.
func (c *Chain) verifyBlock(i int, block *Block) error {
	if block.index != i {
		return chainError(i, ErrIndexMismatch, "got %d, exp %d", block.index, i)
	}

	expPrevHash := digest.ZeroHash
	if i > 0 {
		expPrevHash = c.blocks[i-1].Hash()
	}
	if block.header.PrevHash != expPrevHash {
		return chainError(i, ErrPreviousHashMismatch, "proposed block %s, blockchain block %s", block.header.PrevHash, expPrevHash)
	}

	hash := block.Hash()
	if !IsValidProofOfWork(hash[:], uint(block.header.Target)) {
		return chainError(i, ErrProofOfWork, "hash %s, target %d", hash, block.header.Target)
	}

	if err := block.VerifyMerkleRoot(); err != nil {
		return &InvalidChainError{Index: i, Err: err}
	}

	if err := block.Verify(); err != nil {
		return &InvalidChainError{Index: i, Err: err}
	}

	return nil
}
