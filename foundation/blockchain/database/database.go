// Package database handles the core types of the blockchain: the tokens that
// record the provenance of a file, the blocks that seal a batch of tokens
// behind a mined header, and the chain that links those blocks together.
package database

// Version is the block and chain format version written into every header.
const Version uint32 = 1

// EventHandler defines a function that is called when events occur in the
// processing of staging, mining, and committing blocks.
type EventHandler func(v string, args ...any)

// Serializer interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Serializer interface {
	Write(chainData ChainData) error
	Read() (ChainData, error)
	Reset() error
	Close() error
}

// safeHandler returns an event handler that can always be called.
func safeHandler(ev EventHandler) EventHandler {
	if ev == nil {
		return func(v string, args ...any) {}
	}
	return ev
}
