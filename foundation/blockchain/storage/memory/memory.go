// Package memory implements the ability to read and write the blockchain to
// memory.
package memory

import (
	"encoding/json"
	"sync"

	"github.com/ardanlabs/filechain/foundation/blockchain/database"
)

// Memory represents the serialization implementation for reading and storing
// the blockchain in memory. This implements the database.Serializer
// interface.
type Memory struct {
	mu     sync.RWMutex
	data   []byte
	writes int
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Write takes the specified chain and stores a copy in memory. The copy is
// kept in its encoded form so later changes to the caller's value can't
// leak into what is stored.
func (m *Memory) Write(chainData database.ChainData) error {
	data, err := json.Marshal(chainData)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = data
	m.writes++

	return nil
}

// Read returns a copy of the stored chain. When nothing has been written yet
// database.ErrNoChain is returned.
func (m *Memory) Read() (database.ChainData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return database.ChainData{}, database.ErrNoChain
	}

	var chainData database.ChainData
	if err := json.Unmarshal(m.data, &chainData); err != nil {
		return database.ChainData{}, err
	}

	return chainData, nil
}

// Reset will clear out the blockchain in memory.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = nil
	return nil
}

// Writes returns the number of times the chain has been written.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.writes
}
