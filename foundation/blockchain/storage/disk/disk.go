// Package disk implements the ability to read and write the blockchain to
// disk as a single JSON document.
package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ardanlabs/filechain/foundation/blockchain/database"
)

// Disk represents the serialization implementation for reading and storing
// the blockchain in a JSON file named after the chain. This implements the
// database.Serializer interface.
type Disk struct {
	dbPath string
	mu     sync.Mutex
}

// New constructs a Disk value for use. The chain is stored in the file
// {dir}/{name}.json.
func New(dir string, name string) (*Disk, error) {
	if name == "" {
		return nil, errors.New("chain name is required")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: filepath.Join(dir, fmt.Sprintf("%s.json", name))}, nil
}

// Close in this implementation has nothing to do since the file is
// written in full and closed on every call to Write.
func (d *Disk) Close() error {
	return nil
}

// Write takes the specified chain and replaces what is stored on disk. The
// data is written to a temp file first and renamed into place so a failed
// write leaves the previous version intact.
func (d *Disk) Write(chainData database.ChainData) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Marshal the chain for writing to disk in a more human readable format.
	data, err := json.MarshalIndent(chainData, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(d.dbPath), ".chain-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(f.Name(), d.dbPath)
}

// Read returns the chain stored on disk. When nothing has been written yet
// database.ErrNoChain is returned.
func (d *Disk) Read() (database.ChainData, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.Open(d.dbPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return database.ChainData{}, database.ErrNoChain
		}
		return database.ChainData{}, err
	}
	defer f.Close()

	var chainData database.ChainData
	if err := json.NewDecoder(f).Decode(&chainData); err != nil {
		return database.ChainData{}, fmt.Errorf("decoding %s: %w", d.dbPath, err)
	}

	return chainData, nil
}

// Reset will clear out the blockchain on disk.
func (d *Disk) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.Remove(d.dbPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// Path returns the location of the chain file.
func (d *Disk) Path() string {
	return d.dbPath
}
