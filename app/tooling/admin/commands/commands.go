// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ardanlabs/filechain/foundation/blockchain/database"
	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
	"github.com/ardanlabs/filechain/foundation/blockchain/state"
	"github.com/ardanlabs/filechain/foundation/blockchain/storage/disk"
)

// ErrHelp provides context that help was given.
var ErrHelp = errors.New("provided help")

// Config represents the settings the chain commands need.
type Config struct {
	ChainDir  string
	Workers   int
	EvHandler state.EventHandler
}

// =============================================================================

// SHA256 prints the digest of the text.
func SHA256(text string) error {
	fmt.Println(digest.Sum([]byte(text)))
	return nil
}

// SHA256Hex prints the digest of the bytes the hex string encodes.
func SHA256Hex(hex string) error {
	b, err := digest.DecodeHex(hex)
	if err != nil {
		return err
	}

	fmt.Println(digest.Sum(b))
	return nil
}

// SHA256File prints the digest of the file content.
func SHA256File(path string) error {
	if path == "" {
		return errors.New("file path is required")
	}

	hash, err := database.FileHash(path)
	if err != nil {
		return err
	}

	fmt.Println(hash)
	return nil
}

// ProofOfWork reports whether the hex hash satisfies the target.
func ProofOfWork(hash string, target string) error {
	n, err := strconv.ParseUint(target, 10, 32)
	if err != nil {
		return fmt.Errorf("target must be a positive number: %q", target)
	}

	valid, err := database.IsValidProofOfWorkHex(hash, uint(n))
	if err != nil {
		return err
	}

	fmt.Printf("target[%d] valid[%t]\n", n, valid)
	return nil
}

// Header prints the serialized header of the block at the index. An empty
// index selects the staging block.
func Header(cfg Config, index string) error {
	i := state.QueryStaging
	if index != "" {
		var err error
		if i, err = strconv.Atoi(index); err != nil {
			return fmt.Errorf("index must be a number: %q", index)
		}
	}

	st, err := open(cfg)
	if err != nil {
		return err
	}
	defer st.Shutdown()

	header, err := st.Header(i)
	if err != nil {
		return err
	}

	fmt.Println(digest.EncodeHex(header))
	return nil
}

// ParseHeader decodes a serialized header and prints its fields.
func ParseHeader(hex string) error {
	b, err := digest.DecodeHex(hex)
	if err != nil {
		return err
	}

	h, err := database.ParseHeader(b)
	if err != nil {
		return err
	}

	fmt.Printf("version:     %d\n", h.Version)
	fmt.Printf("previous:    %s\n", digest.Prefixed(h.PrevHash.Bytes()))
	fmt.Printf("merkle root: %s\n", digest.Prefixed(h.MerkleRoot.Bytes()))
	fmt.Printf("timestamp:   %s\n", h.TimeStamp.Format(time.RFC3339))
	fmt.Printf("target:      %d\n", h.Target)
	fmt.Printf("nonce:       %d\n", h.Nonce)
	fmt.Printf("hash:        %s\n", digest.Prefixed(h.Hash().Bytes()))
	fmt.Printf("solved:      %t\n", database.IsValidProofOfWork(h.Hash().Bytes(), uint(h.Target)))

	return nil
}

// Verify checks the chain in the chain directory against its files. Opening
// the chain already verifies it, the second pass includes the staging block.
func Verify(cfg Config) error {
	st, err := open(cfg)
	if err != nil {
		return err
	}
	defer st.Shutdown()

	if err := st.Verify(cfg.Workers); err != nil {
		return err
	}

	tip, exists := st.Chain().Tip()
	if !exists {
		fmt.Printf("chain %s is empty and valid\n", st.Chain().Name())
		return nil
	}

	fmt.Printf("chain %s valid: height[%d]: tip[%s]\n", st.Chain().Name(), st.Chain().Height(), tip.Hash())
	return nil
}

// =============================================================================

// open loads the chain stored in the chain directory. An empty directory
// is reported rather than turned into a new chain.
func open(cfg Config) (*state.State, error) {
	dir, err := filepath.Abs(cfg.ChainDir)
	if err != nil {
		return nil, err
	}

	strg, err := disk.New(dir, filepath.Base(dir))
	if err != nil {
		return nil, err
	}

	if _, err := strg.Read(); err != nil {
		return nil, err
	}

	return state.New(state.Config{
		Dir:       dir,
		Storage:   strg,
		EvHandler: cfg.EvHandler,
	})
}
