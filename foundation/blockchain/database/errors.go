package database

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
)

// Set of reasons a block can be refused by the chain. They are wrapped in
// an InvalidChainError so the position of the failure is known.
var (
	ErrIndexMismatch        = errors.New("block index does not follow the chain")
	ErrPreviousHashMismatch = errors.New("previous block hashes do not match")
	ErrVersionMismatch      = errors.New("block version differs from chain version")
	ErrFutureBlock          = errors.New("block cannot be from the future")
	ErrProofOfWork          = errors.New("block hash does not satisfy its target")
	ErrMerkleRootMismatch   = errors.New("merkle root does not match tokens")
)

// ErrBlockSealed is returned when a committed block is asked to change.
var ErrBlockSealed = errors.New("block is committed and can't be modified")

// ErrNonceSpaceExhausted is returned when every nonce has been tried without
// a solution for the target.
var ErrNonceSpaceExhausted = errors.New("nonce space exhausted")

// ErrNoChain is returned by a serializer that holds no chain yet.
var ErrNoChain = errors.New("no chain stored")

// =============================================================================

// IOError represents a file that could not be read or written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (ioe *IOError) Error() string {
	return fmt.Sprintf("%s %s: %s", ioe.Op, ioe.Path, ioe.Err)
}

// Unwrap provides access to the file system error.
func (ioe *IOError) Unwrap() error {
	return ioe.Err
}

// TokenMismatchError represents a file whose content no longer matches the
// digest recorded in its token.
type TokenMismatchError struct {
	FileName string
	Expected digest.Hash
	Actual   digest.Hash
}

// Error implements the error interface.
func (tme *TokenMismatchError) Error() string {
	return fmt.Sprintf("%s hashes do not match, original %s, calculated %s", tme.FileName, tme.Expected, tme.Actual)
}

// DuplicateTokenError represents a token whose hash is already staged.
type DuplicateTokenError struct {
	ID       digest.Hash
	FileName string
}

// Error implements the error interface.
func (dte *DuplicateTokenError) Error() string {
	return fmt.Sprintf("token %s for %s is already staged", dte.ID, dte.FileName)
}

// InvalidBlockError represents a block that failed verification. FileName
// names the token at fault when there is one.
type InvalidBlockError struct {
	Index    int
	FileName string
	Err      error
}

// Error implements the error interface.
func (ibe *InvalidBlockError) Error() string {
	if ibe.FileName == "" {
		return fmt.Sprintf("block %d not verified: %s", ibe.Index, ibe.Err)
	}
	return fmt.Sprintf("block %d not verified: token %s: %s", ibe.Index, ibe.FileName, ibe.Err)
}

// Unwrap provides access to the token level error.
func (ibe *InvalidBlockError) Unwrap() error {
	return ibe.Err
}

// InvalidChainError represents a block that can't be part of the chain, or
// a chain that failed verification.
type InvalidChainError struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (ice *InvalidChainError) Error() string {
	return fmt.Sprintf("blockchain is not valid at block %d: %s", ice.Index, ice.Err)
}

// Unwrap provides access to the block level error.
func (ice *InvalidChainError) Unwrap() error {
	return ice.Err
}

// chainError is a helper for building an InvalidChainError that wraps one
// of the reason sentinels.
func chainError(index int, reason error, format string, args ...any) error {
	return &InvalidChainError{
		Index: index,
		Err:   fmt.Errorf("%w: %s", reason, fmt.Sprintf(format, args...)),
	}
}
