package database

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
)

// PseudoToken is the raw input needed to stage a token. The file at FilePath
// is read and copied into the block directory.
type PseudoToken struct {
	Owner    string
	FilePath string
	Author   string
}

// Token is the provenance record for a single file. A token does not store
// its own hash, the hash is the key the token is indexed under in a block.
type Token struct {
	Owner     string
	FileName  string
	Author    string
	TimeStamp time.Time
	FileHash  digest.Hash
}

// NewToken reads the file at the specified path and constructs a token
// for it stamped with the current time.
func NewToken(owner string, filePath string, author string) (Token, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return Token{}, &IOError{Op: "read", Path: filePath, Err: err}
	}

	return newToken(owner, filePath, author, content), nil
}

// newToken constructs a token over file content that was already read.
func newToken(owner string, filePath string, author string, content []byte) Token {
	return Token{
		Owner:     owner,
		FileName:  baseName(filePath),
		Author:    author,
		TimeStamp: time.Now().UTC().Truncate(time.Second),
		FileHash:  digest.Sum(content),
	}
}

// CanonicalBytes returns the byte encoding the token hash is computed over.
//
//	owner | file name | author | file hash (32) | timestamp (4)
func (tk Token) CanonicalBytes() []byte {
	text := tk.Owner + tk.FileName + tk.Author

	b := make([]byte, 0, len(text)+digest.Size+4)
	b = append(b, text...)
	b = append(b, tk.FileHash[:]...)
	b = binary.BigEndian.AppendUint32(b, unixSeconds32(tk.TimeStamp))

	return b
}

// Hash returns the identity hash of the token.
func (tk Token) Hash() digest.Hash {
	return digest.Sum(tk.CanonicalBytes())
}

// Verify re-reads the token's file from the specified directory and checks
// its content still matches the recorded file hash.
func (tk Token) Verify(dir string) error {
	fileHash, err := FileHash(filepath.Join(dir, tk.FileName))
	if err != nil {
		return err
	}

	if fileHash != tk.FileHash {
		return &TokenMismatchError{
			FileName: tk.FileName,
			Expected: tk.FileHash,
			Actual:   fileHash,
		}
	}

	return nil
}

// String implements the fmt.Stringer interface.
func (tk Token) String() string {
	return fmt.Sprintf("%s:%s:%s:%d:%s", tk.Owner, tk.FileName, tk.Author, tk.TimeStamp.Unix(), tk.FileHash)
}

// =============================================================================

// FileHash reads the whole file and returns the digest of its content.
func FileHash(path string) (digest.Hash, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return digest.Hash{}, &IOError{Op: "read", Path: path, Err: err}
	}

	return digest.Sum(content), nil
}

// baseName returns the last component of a path using either separator, so
// paths written on another platform still resolve to the file name.
func baseName(path string) string {
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// unixSeconds32 truncates a time to the 32 bit unix seconds used in the
// binary encodings.
func unixSeconds32(t time.Time) uint32 {
	return uint32(t.Unix())
}
