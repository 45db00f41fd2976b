package database

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultOwner is the owner recorded on tokens when no user has been
// selected.
const DefaultOwner = "@admin"

// PublicKeyToOwner converts the public key to the address used as the owner
// of a token when a user stages files with a private key.
func PublicKeyToOwner(pk ecdsa.PublicKey) string {
	return crypto.PubkeyToAddress(pk).String()
}

// IsAddress reports whether the owner is a hex account address, with or
// without the 0x prefix, rather than a free form user name.
func IsAddress(owner string) bool {
	return common.IsHexAddress(owner)
}

// OwnerAddress returns the checksummed form of an address owner so owners
// written with different letter case compare equal. Other owners are
// returned as is.
func OwnerAddress(owner string) string {
	if !IsAddress(owner) {
		return owner
	}

	return common.HexToAddress(owner).String()
}
