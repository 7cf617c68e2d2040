// Copyright 2025 Flux Point Studios
//
// Package merkle builds the domain-separated Merkle trees shared by the
// trace engine's span tree (C4) and the L2 accumulator's batch tree
// (C5): both leaves-already-hashed-by-the-caller, odd-level
// duplication, H("poi-trace:node:v1|"+left+"|"+right) internal nodes.
//
// Grounded on the teacher's pkg/merkle.BuildTree/GenerateProof/
// VerifyProof (level-by-level pairwise combination, odd-node
// duplication, sibling-path proofs) and pkg/anchor_proof.
// MerkleInclusionProof/MerkleNode for the proof shape, generalized
// with the SDK's domain-prefix hashing instead of plain SHA-256.
package merkle

import (
	"crypto/subtle"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poihash"
)

// LeafHash domain-separates a raw leaf payload (e.g. a span hash or a
// canonical batch item encoding) before it enters the tree, per
// spec.md §3's `H("poi-trace:leaf:v1|" + payload)`.
func LeafHash(payload []byte) poihash.Hash {
	return poihash.Domain(poihash.PrefixLeaf, payload)
}

// Position marks which side of a combination a sibling hash sits on.
type Position int

const (
	Left Position = iota
	Right
)

func (p Position) String() string {
	if p == Left {
		return "left"
	}
	return "right"
}

// Tree is an immutable Merkle tree over pre-hashed leaves. Leaves are
// expected to already carry their own domain separation (e.g.
// poihash.Domain(poihash.PrefixLeaf, spanHash[:])) — Tree only
// combines them.
type Tree struct {
	levels [][]poihash.Hash // levels[0] = leaves ... levels[len-1] = [root]
}

// New builds a tree from leaves in their given order. An empty slice
// yields a tree whose Root reports ok=false (spec: "root is empty
// string when there are zero leaves").
func New(leaves []poihash.Hash) *Tree {
	if len(leaves) == 0 {
		return &Tree{levels: nil}
	}
	level := make([]poihash.Hash, len(leaves))
	copy(level, leaves)
	levels := [][]poihash.Hash{level}
	for len(level) > 1 {
		level = combineLevel(level)
		levels = append(levels, level)
	}
	return &Tree{levels: levels}
}

func combineLevel(level []poihash.Hash) []poihash.Hash {
	n := len(level)
	if n%2 == 1 {
		level = append(level, level[n-1])
		n++
	}
	next := make([]poihash.Hash, n/2)
	for i := 0; i < n; i += 2 {
		next[i/2] = combine(level[i], level[i+1])
	}
	return next
}

func combine(left, right poihash.Hash) poihash.Hash {
	payload := left.Hex() + "|" + right.Hex()
	return poihash.Domain(poihash.PrefixNode, []byte(payload))
}

// Len reports the number of leaves the tree was built from.
func (t *Tree) Len() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels[0])
}

// Root returns the tree's root hash. ok is false for an empty tree,
// matching spec.md's "root is empty string when there are zero
// leaves"; a single-leaf tree's root equals that leaf's hash.
func (t *Tree) Root() (hash poihash.Hash, ok bool) {
	if len(t.levels) == 0 {
		return poihash.Hash{}, false
	}
	top := t.levels[len(t.levels)-1]
	return top[0], true
}

// RootHex renders Root as hex, or "" for an empty tree.
func (t *Tree) RootHex() string {
	root, ok := t.Root()
	if !ok {
		return ""
	}
	return root.Hex()
}

// Step is one hop of a proof path: the sibling hash and which side it
// sat on relative to the node being proven.
type Step struct {
	Sibling  poihash.Hash
	Position Position
}

// Proof is an inclusion proof for one leaf: its hash, its original
// index, and the sibling path from leaf to root. A single-leaf tree's
// proof has an empty Path.
type Proof struct {
	LeafHash poihash.Hash
	Index    int
	Path     []Step
	TreeSize int
}

// Prove returns an inclusion proof for the leaf at index. Odd-level
// duplication never shortens a proof: a duplicated sibling still
// appears as an explicit Step.
func (t *Tree) Prove(index int) (Proof, error) {
	if len(t.levels) == 0 {
		return Proof{}, poierrors.New(poierrors.KindInvalidInput, "cannot prove inclusion in an empty tree")
	}
	n := t.Len()
	if index < 0 || index >= n {
		return Proof{}, poierrors.New(poierrors.KindInvalidInput, "leaf index out of range")
	}

	proof := Proof{
		LeafHash: t.levels[0][index],
		Index:    index,
		TreeSize: n,
	}

	idx := index
	for lvl := 0; lvl < len(t.levels)-1; lvl++ {
		level := t.levels[lvl]
		// A level with an odd count was padded by duplicating its
		// last element before combination; mirror that here so the
		// sibling lookup matches what New() actually combined.
		padded := level
		if len(level)%2 == 1 {
			padded = append(append([]poihash.Hash{}, level...), level[len(level)-1])
		}
		if idx%2 == 0 {
			proof.Path = append(proof.Path, Step{Sibling: padded[idx+1], Position: Right})
		} else {
			proof.Path = append(proof.Path, Step{Sibling: padded[idx-1], Position: Left})
		}
		idx /= 2
	}
	return proof, nil
}

// VerifyProof replays proof.Path from proof.LeafHash and reports
// whether it reconstructs to root using constant-time comparison.
func VerifyProof(proof Proof, root poihash.Hash) bool {
	current := proof.LeafHash
	for _, step := range proof.Path {
		switch step.Position {
		case Left:
			current = combine(step.Sibling, current)
		case Right:
			current = combine(current, step.Sibling)
		}
	}
	return subtle.ConstantTimeCompare(current[:], root[:]) == 1
}
