// Package nameservice reads a folder of private keys and creates a name
// service lookup for the owners of staged files.
package nameservice

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/filechain/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
)

// NameService maintains a map of owner addresses for name lookup.
type NameService struct {
	owners map[string]string
}

// New constructs a NameService with the addresses of the keys found under
// root. A root that does not exist gives an empty name service.
func New(root string) (*NameService, error) {
	ns := NameService{
		owners: make(map[string]string),
	}

	fn := func(fileName string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if d.IsDir() || filepath.Ext(fileName) != ".ecdsa" {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return err
		}

		owner := database.PublicKeyToOwner(privateKey.PublicKey)
		ns.owners[owner] = strings.TrimSuffix(filepath.Base(fileName), ".ecdsa")

		return nil
	}

	if err := filepath.WalkDir(root, fn); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ns, nil
		}
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified owner. Address owners match in
// any letter case. Owners that are not addresses of known keys are returned
// as is.
func (ns *NameService) Lookup(owner string) string {
	if !database.IsAddress(owner) {
		return owner
	}

	name, exists := ns.owners[database.OwnerAddress(owner)]
	if !exists {
		return owner
	}
	return name
}

// Copy returns a copy of the map of names and owners.
func (ns *NameService) Copy() map[string]string {
	cpy := make(map[string]string, len(ns.owners))
	for owner, name := range ns.owners {
		cpy[owner] = name
	}
	return cpy
}
