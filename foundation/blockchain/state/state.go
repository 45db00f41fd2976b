// Package state is the core API for the blockchain and implements all the
// session rules for staging, committing and verifying files.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/filechain/foundation/blockchain/database"
)

// EventHandler defines a function that is called when events
// occur in the processing of staging and committing blocks.
type EventHandler func(v string, args ...any)

// =============================================================================

// Config represents the configuration required to open a chain.
type Config struct {
	Dir       string
	User      string // Owner of staged tokens when none is stored, defaults to database.DefaultOwner.
	Target    uint   // Leading zero bits required of committed blocks when none is stored.
	Storage   database.Serializer
	EvHandler EventHandler
}

// State manages the chain, the block being staged on top of it, and the
// user and target selected for the session.
type State struct {
	dir       string
	user      string
	target    uint
	evHandler EventHandler
	storage   database.Serializer

	mu      sync.Mutex
	chain   *database.Chain
	staging *database.Block
}

// New opens the chain held by the storage, or starts a new one when the
// storage is empty. An existing chain is fully verified before it is used.
// Stored settings take the place of the user and target in the config.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}

	user := cfg.User
	if user == "" {
		user = database.DefaultOwner
	}

	s := State{
		dir:       cfg.Dir,
		user:      user,
		target:    min(cfg.Target, database.MaxDifficulty),
		evHandler: ev,
		storage:   cfg.Storage,
	}

	cd, err := cfg.Storage.Read()
	switch {
	case errors.Is(err, database.ErrNoChain):
		ev("state: New: no chain stored: starting a new chain in %s", cfg.Dir)
		if err := s.reset(); err != nil {
			return nil, err
		}

	case err != nil:
		return nil, fmt.Errorf("reading chain: %w", err)

	default:
		ev("state: New: loading chain %s: blocks[%d]", cd.Name, len(cd.Blocks))

		chain, staging, err := database.Load(cd, cfg.Dir, database.EventHandler(ev))
		if err != nil {
			return nil, fmt.Errorf("loading chain: %w", err)
		}
		s.chain = chain
		s.staging = staging

		if cd.Settings != nil {
			s.user = cd.Settings.User
			s.target = min(cd.Settings.Target, database.MaxDifficulty)
			ev("state: New: settings: user[%s]: target[%d]", s.user, s.target)
		}
	}

	return &s, nil
}

// Shutdown cleanly releases the storage.
func (s *State) Shutdown() error {
	s.evHandler("state: Shutdown: started")
	defer s.evHandler("state: Shutdown: completed")

	return s.storage.Close()
}

// Truncate resets the chain both in storage and in memory. Files already
// copied into block directories stay on disk.
func (s *State) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: Truncate: resetting chain in %s", s.dir)

	if err := s.storage.Reset(); err != nil {
		return err
	}

	return s.reset()
}

// Save writes the chain and the staging block to storage.
func (s *State) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save()
}

// =============================================================================

// reset starts a new empty chain with an empty staging block.
func (s *State) reset() error {
	chain, err := database.NewChain(database.ChainConfig{
		Dir:       s.dir,
		EvHandler: database.EventHandler(s.evHandler),
	})
	if err != nil {
		return err
	}

	staging, err := chain.MakeNextBlock()
	if err != nil {
		return err
	}

	s.chain = chain
	s.staging = staging

	return nil
}

// save writes the current state to storage. The caller must hold the lock.
func (s *State) save() error {
	s.evHandler("state: save: write to storage: height[%d]: staged[%d]", s.chain.Height(), s.staging.Len())

	cd := database.NewChainData(s.chain, s.staging)
	cd.Settings = &database.SettingsData{
		User:   s.user,
		Target: s.target,
	}

	if err := s.storage.Write(cd); err != nil {
		return fmt.Errorf("writing chain: %w", err)
	}

	return nil
}
