package database

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
	"github.com/ardanlabs/filechain/foundation/blockchain/merkle"
)

// HeaderSize is the number of bytes in a serialized block header.
const HeaderSize = 80

// Header represents the information hashed to identify a block.
type Header struct {
	Version    uint32      // Format version of the block.
	PrevHash   digest.Hash // Hash of the previous block in the chain.
	MerkleRoot digest.Hash // Merkle root over the hashes of the tokens in the block.
	TimeStamp  time.Time   // Time the block was created.
	Target     uint32      // Number of leading zero bits needed to solve the hash.
	Nonce      uint32      // Value identified to solve the hash.
}

// Bytes serializes the header.
//
//	version (4) | previous hash (32) | merkle root (32) | timestamp (4) | target (4) | nonce (4)
func (h Header) Bytes() []byte {
	b := make([]byte, 0, HeaderSize)
	b = binary.BigEndian.AppendUint32(b, h.Version)
	b = append(b, h.PrevHash[:]...)
	b = append(b, h.MerkleRoot[:]...)
	b = binary.BigEndian.AppendUint32(b, unixSeconds32(h.TimeStamp))
	b = binary.BigEndian.AppendUint32(b, h.Target)
	b = binary.BigEndian.AppendUint32(b, h.Nonce)

	return b
}

// Hash returns the digest of the serialized header.
func (h Header) Hash() digest.Hash {
	return digest.Sum(h.Bytes())
}

// Hex returns the serialized header as lowercase hex.
func (h Header) Hex() string {
	return digest.EncodeHex(h.Bytes())
}

// ParseHeader reconstructs a header from its serialized form.
func ParseHeader(b []byte) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, fmt.Errorf("header must be %d bytes, got %d", HeaderSize, len(b))
	}

	var h Header
	h.Version = binary.BigEndian.Uint32(b[0:4])
	copy(h.PrevHash[:], b[4:36])
	copy(h.MerkleRoot[:], b[36:68])
	h.TimeStamp = time.Unix(int64(binary.BigEndian.Uint32(b[68:72])), 0).UTC()
	h.Target = binary.BigEndian.Uint32(b[72:76])
	h.Nonce = binary.BigEndian.Uint32(b[76:80])

	return h, nil
}

// =============================================================================

// TokenEntry pairs a token with the hash it is indexed under.
type TokenEntry struct {
	ID    digest.Hash
	Token Token
}

// StageResult describes the outcome of staging a token into a block.
type StageResult struct {
	ID          digest.Hash
	Token       Token
	Path        string // Location of the copy inside the block directory.
	Overwritten bool   // A file of the same name was replaced.
}

// Block represents a group of tokens batched together behind one header.
// Once committed to a chain a block is sealed and can't change.
type Block struct {
	dir    string
	index  int
	header Header
	tokens map[digest.Hash]Token
	sealed bool
}

// NewBlock constructs an empty staging block and makes sure the block
// directory exists under the chain directory.
func NewBlock(index int, prevHash digest.Hash, chainDir string) (*Block, error) {
	dir := filepath.Join(chainDir, blockDirName(index))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &IOError{Op: "mkdir", Path: dir, Err: err}
	}

	b := Block{
		dir:   dir,
		index: index,
		header: Header{
			Version:    Version,
			PrevHash:   prevHash,
			MerkleRoot: merkle.Root(nil),
			TimeStamp:  time.Now().UTC(),
		},
		tokens: make(map[digest.Hash]Token),
	}

	return &b, nil
}

// Stage constructs a token from the raw input, copies the file into the block
// directory and indexes the token under its hash. A file with the same name
// already in the block directory is replaced and reported as Overwritten.
func (b *Block) Stage(pt PseudoToken) (StageResult, error) {
	if b.sealed {
		return StageResult{}, ErrBlockSealed
	}

	// The content is read once so the copy is exactly what was hashed.
	content, err := os.ReadFile(pt.FilePath)
	if err != nil {
		return StageResult{}, &IOError{Op: "read", Path: pt.FilePath, Err: err}
	}

	tk := newToken(pt.Owner, pt.FilePath, pt.Author, content)
	id := tk.Hash()

	if _, exists := b.tokens[id]; exists {
		return StageResult{}, &DuplicateTokenError{ID: id, FileName: tk.FileName}
	}

	dst := filepath.Join(b.dir, tk.FileName)
	overwritten, err := writeFileAtomic(dst, content)
	if err != nil {
		return StageResult{}, err
	}

	b.tokens[id] = tk
	b.header.MerkleRoot = b.calcMerkleRoot()

	sr := StageResult{
		ID:          id,
		Token:       tk,
		Path:        dst,
		Overwritten: overwritten,
	}

	return sr, nil
}

// SetTarget sets the number of leading zero bits the block hash needs when
// it is mined. The target is capped at MaxDifficulty.
func (b *Block) SetTarget(target uint) error {
	if b.sealed {
		return ErrBlockSealed
	}

	b.header.Target = uint32(clampTarget(target))
	return nil
}

// Verify checks every token in the block against the file in the block
// directory and that each token still hashes to the key it is stored under.
// Cross block linkage is the job of the chain.
func (b *Block) Verify() error {
	for _, id := range b.sortedIDs() {
		tk := b.tokens[id]

		if err := tk.Verify(b.dir); err != nil {
			return &InvalidBlockError{Index: b.index, FileName: tk.FileName, Err: err}
		}

		if hash := tk.Hash(); hash != id {
			return &InvalidBlockError{
				Index:    b.index,
				FileName: tk.FileName,
				Err:      fmt.Errorf("token hashes do not match, original %s, calculated %s", id, hash),
			}
		}
	}

	return nil
}

// VerifyMerkleRoot rebuilds the merkle tree over the tokens held by the block,
// checks every level of it and compares its root with the header.
func (b *Block) VerifyMerkleRoot() error {
	tree, err := merkle.NewLeafTree(b.sortedIDs())
	if err != nil {
		return &InvalidBlockError{Index: b.index, Err: err}
	}

	if err := tree.Verify(); err != nil {
		return &InvalidBlockError{Index: b.index, Err: fmt.Errorf("%w: %w", ErrMerkleRootMismatch, err)}
	}

	root, err := digest.FromBytes(tree.MerkleRoot)
	if err != nil {
		return &InvalidBlockError{Index: b.index, Err: err}
	}

	if root != b.header.MerkleRoot {
		return &InvalidBlockError{
			Index: b.index,
			Err:   fmt.Errorf("%w: got %s, exp %s", ErrMerkleRootMismatch, b.header.MerkleRoot, root),
		}
	}

	return nil
}

// Proof returns the merkle proof for the token indexed under the id. See
// merkle.VerifyProof for how it is checked against the merkle root.
func (b *Block) Proof(id digest.Hash) ([][]byte, []int64, error) {
	if _, exists := b.tokens[id]; !exists {
		return nil, nil, fmt.Errorf("token %s not found in block %d", id, b.index)
	}

	tree, err := merkle.NewLeafTree(b.sortedIDs())
	if err != nil {
		return nil, nil, err
	}

	return tree.Proof(merkle.Leaf(id))
}

// Index returns the position of the block in the chain.
func (b *Block) Index() int {
	return b.index
}

// Dir returns the directory holding the block's files.
func (b *Block) Dir() string {
	return b.dir
}

// Header returns a copy of the block header.
func (b *Block) Header() Header {
	return b.header
}

// HeaderBytes returns the serialized block header.
func (b *Block) HeaderBytes() []byte {
	return b.header.Bytes()
}

// Hash returns the unique hash for the block.
func (b *Block) Hash() digest.Hash {
	return b.header.Hash()
}

// Sealed reports whether the block has been committed.
func (b *Block) Sealed() bool {
	return b.sealed
}

// Len returns the number of tokens in the block.
func (b *Block) Len() int {
	return len(b.tokens)
}

// Token returns the token indexed under the specified id.
func (b *Block) Token(id digest.Hash) (Token, bool) {
	tk, exists := b.tokens[id]
	return tk, exists
}

// Tokens returns a copy of the tokens in merkle order.
func (b *Block) Tokens() []TokenEntry {
	ids := b.sortedIDs()

	entries := make([]TokenEntry, len(ids))
	for i, id := range ids {
		entries[i] = TokenEntry{ID: id, Token: b.tokens[id]}
	}

	return entries
}

// =============================================================================

// sortedIDs returns the token hashes in ascending byte order. This is the
// leaf order of the merkle tree.
func (b *Block) sortedIDs() []digest.Hash {
	ids := make([]digest.Hash, 0, len(b.tokens))
	for id := range b.tokens {
		ids = append(ids, id)
	}

	slices.SortFunc(ids, func(a, b digest.Hash) int {
		return bytes.Compare(a[:], b[:])
	})

	return ids
}

// calcMerkleRoot computes the merkle root over the current token set.
func (b *Block) calcMerkleRoot() digest.Hash {
	return merkle.Root(b.sortedIDs())
}

// blockDirName returns the name of the directory for a block.
func blockDirName(index int) string {
	return fmt.Sprintf("Block%d", index)
}

// writeFileAtomic writes the content to a temp file in the destination
// directory and renames it into place, so a failed copy never leaves a
// partial file behind. It reports whether a file was replaced.
func writeFileAtomic(dst string, content []byte) (bool, error) {
	overwritten := true
	if _, err := os.Stat(dst); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return false, &IOError{Op: "stat", Path: dst, Err: err}
		}
		overwritten = false
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".stage-*")
	if err != nil {
		return false, &IOError{Op: "create", Path: dst, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return false, &IOError{Op: "write", Path: tmp.Name(), Err: err}
	}

	if err := tmp.Close(); err != nil {
		return false, &IOError{Op: "close", Path: tmp.Name(), Err: err}
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return false, &IOError{Op: "rename", Path: dst, Err: err}
	}

	return overwritten, nil
}
