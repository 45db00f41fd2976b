// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

// Package merkle provides an implementation of a merkle tree for summarizing
// the tokens held in a block.
//
// An empty tree has the root hash(""). A single leaf is its own root. On
// every layer an odd trailing node is paired with itself, it is never
// promoted unchanged.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"

	"github.com/ardanlabs/filechain/foundation/blockchain/digest"
)

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// =============================================================================

// Tree represents a sha256 merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable constraint.
type Tree[T Hashable[T]] struct {
	Root       *Node[T]
	Leafs      []*Node[T]
	MerkleRoot []byte
}

// NewTree constructs a new merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable interface.
func NewTree[T Hashable[T]](values []T) (*Tree[T], error) {
	var t Tree[T]
	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// Generate constructs the leafs and nodes of the tree from the specified
// data. If the tree has been generated previously, the tree is re-generated
// from scratch.
func (t *Tree[T]) Generate(values []T) error {
	if len(values) == 0 {
		t.Root = nil
		t.Leafs = nil
		t.MerkleRoot = hashPair(nil, nil)
		return nil
	}

	leafs := make([]*Node[T], 0, len(values))
	for _, value := range values {
		hash, err := value.Hash()
		if err != nil {
			return err
		}

		leafs = append(leafs, &Node[T]{
			Hash:  hash,
			Value: value,
			leaf:  true,
		})
	}

	root := leafs[0]
	if len(leafs) > 1 {
		root = buildIntermediate(leafs)
	}

	t.Root = root
	t.Leafs = leafs
	t.MerkleRoot = root.Hash

	return nil
}

// Proof returns the set of hashes and the order of concatenating those
// hashes for proving a value is in the tree.
//
// Order 0 says the proof hash comes first, order 1 says it comes second.
// Starting from the leaf hash, hash(concat) at each step must end at the
// merkle root. See VerifyProof.
func (t *Tree[T]) Proof(data T) ([][]byte, []int64, error) {
	for _, node := range t.Leafs {
		if !node.Value.Equals(data) {
			continue
		}

		var merkleProof [][]byte
		var order []int64
		nodeParent := node.Parent

		for nodeParent != nil {
			if nodeParent.Left == node {
				merkleProof = append(merkleProof, nodeParent.Right.Hash)
				order = append(order, 1) // right leaf, concat second.
			} else {
				merkleProof = append(merkleProof, nodeParent.Left.Hash)
				order = append(order, 0) // left leaf, concat first.
			}
			node = nodeParent
			nodeParent = nodeParent.Parent
		}

		return merkleProof, order, nil
	}

	return nil, nil, errors.New("unable to find data in tree")
}

// Verify validates the hashes at each level of the tree and returns an error
// if the resulting hash at the root of the tree doesn't match the root hash.
func (t *Tree[T]) Verify() error {
	calculatedMerkleRoot := hashPair(nil, nil)
	if t.Root != nil {
		var err error
		if calculatedMerkleRoot, err = t.Root.verify(); err != nil {
			return err
		}
	}

	if !bytes.Equal(t.MerkleRoot, calculatedMerkleRoot) {
		return errors.New("root hash invalid")
	}

	return nil
}

// =============================================================================

// Node represents a node, root, or leaf in the tree. It stores pointers to its
// immediate relationships, a hash, the data if it is a leaf, and other metadata.
type Node[T Hashable[T]] struct {
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	Hash   []byte
	Value  T
	leaf   bool
}

// verify walks down the tree until hitting a leaf, calculating the hash at
// each level and returning the resulting hash of the node.
func (n *Node[T]) verify() ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	rightBytes, err := n.Right.verify()
	if err != nil {
		return nil, err
	}

	leftBytes, err := n.Left.verify()
	if err != nil {
		return nil, err
	}

	return hashPair(leftBytes, rightBytes), nil
}

// =============================================================================

// buildIntermediate is a helper function that for a given layer of nodes,
// constructs the next layer up until a single root remains. An odd trailing
// node is paired with itself.
func buildIntermediate[T Hashable[T]](nl []*Node[T]) *Node[T] {
	nodes := make([]*Node[T], 0, (len(nl)+1)/2)

	for i := 0; i < len(nl); i += 2 {
		left, right := i, i+1
		if i+1 == len(nl) {
			right = i
		}

		n := Node[T]{
			Left:  nl[left],
			Right: nl[right],
			Hash:  hashPair(nl[left].Hash, nl[right].Hash),
		}

		nodes = append(nodes, &n)
		nl[left].Parent = &n
		nl[right].Parent = &n
	}

	if len(nodes) == 1 {
		return nodes[0]
	}

	return buildIntermediate(nodes)
}

// hashPair returns the sha256 of the two hashes joined left to right.
func hashPair(left, right []byte) []byte {
	sum := sha256.Sum256(concat(left, right))
	return sum[:]
}

// concat joins two hashes into a new slice so neither input is aliased.
func concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// =============================================================================

// Leaf is a digest used directly as a leaf of the tree. Its hash is the
// digest itself.
type Leaf digest.Hash

// Hash implements the Hashable interface.
func (l Leaf) Hash() ([]byte, error) {
	return digest.Hash(l).Bytes(), nil
}

// Equals implements the Hashable interface.
func (l Leaf) Equals(other Leaf) bool {
	return l == other
}

// Root reduces an ordered sequence of digests to a single root digest.
func Root(leaves []digest.Hash) digest.Hash {
	tree, err := NewLeafTree(leaves)
	if err != nil {

		// A leaf hash and sha256 writes never fail.
		panic(err)
	}

	root, err := digest.FromBytes(tree.MerkleRoot)
	if err != nil {
		panic(err)
	}

	return root
}

// NewLeafTree constructs a sha256 tree over an ordered sequence of digests.
func NewLeafTree(leaves []digest.Hash) (*Tree[Leaf], error) {
	values := make([]Leaf, len(leaves))
	for i, l := range leaves {
		values[i] = Leaf(l)
	}

	return NewTree(values)
}

// VerifyProof checks that a leaf hash combined with the proof returned by
// Tree.Proof produces the root hash.
func VerifyProof(leaf []byte, proof [][]byte, order []int64, root []byte) bool {
	if len(proof) != len(order) {
		return false
	}

	current := leaf
	for i, p := range proof {
		switch order[i] {
		case 0:
			current = hashPair(p, current)
		case 1:
			current = hashPair(current, p)
		default:
			return false
		}
	}

	return bytes.Equal(current, root)
}
