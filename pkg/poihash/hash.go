// Copyright 2025 Flux Point Studios
//
// Package poihash implements the PoI SDK's hash primitives: a SHA-256
// wrapper, domain-separated hashing, and the rolling-hash/root-hash
// helpers the trace engine and L2 accumulator build on.
//
// Grounded on the teacher's pkg/merkle.HashData/CombineHashes (plain
// SHA-256 helpers) and pkg/commitment.HashBytes/HashConcat, generalized
// here with the explicit domain-prefix scheme spec.md §4.2 requires.
package poihash

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/codec"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
)

// Domain prefixes, versioned v1 per spec.md §4.2.
const (
	PrefixEvent    = "poi-trace:event:v1|"
	PrefixRoll     = "poi-trace:roll:v1|"
	PrefixRoot     = "poi-trace:root:v1|"
	PrefixSpan     = "poi-trace:span:v1|"
	PrefixLeaf     = "poi-trace:leaf:v1|"
	PrefixNode     = "poi-trace:node:v1|"
	PrefixManifest = "poi-trace:manifest:v1|"
	PrefixGenesis  = "poi-trace:genesis:v1"
)

// Hash is a 32-byte SHA-256 digest.
type Hash [32]byte

// Hex renders h as 64-char lowercase hex, with no "0x" prefix.
func (h Hash) Hex() string {
	return codec.BytesToHex(h[:])
}

// IsZero reports whether h is the all-zero hash (used as a sentinel
// for "no hash computed yet").
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns a copy of h's 32 bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, h[:])
	return out
}

// HexToHash parses a 64-char lowercase hex string into a Hash.
func HexToHash(s string) (Hash, error) {
	b, err := codec.HexToBytes(s)
	if err != nil {
		return Hash{}, err
	}
	if len(b) != 32 {
		return Hash{}, errInvalidHashLength(len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// SHA256 hashes data with plain SHA-256.
func SHA256(data []byte) Hash {
	return sha256.Sum256(data)
}

// SHA256Hex hashes data and renders the digest as lowercase hex.
func SHA256Hex(data []byte) string {
	h := SHA256(data)
	return h.Hex()
}

// Domain computes H(prefix || payload), where prefix is hashed as its
// literal ASCII bytes. This is the SDK-wide domain-separation primitive
// spec.md §4.2 names.
func Domain(prefix string, payload []byte) Hash {
	h := sha256.New()
	h.Write([]byte(prefix))
	h.Write(payload)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Genesis is the rolling-hash seed G = H(genesis prefix).
func Genesis() Hash {
	return Domain(PrefixGenesis, nil)
}

// RollingState is the (currentHash, itemCount) pair the trace engine
// folds events through.
type RollingState struct {
	CurrentHash Hash
	ItemCount   int
}

// NewRollingState returns the initial rolling state (G, 0).
func NewRollingState() RollingState {
	return RollingState{CurrentHash: Genesis(), ItemCount: 0}
}

// Update folds one more event hash into the rolling state:
// H(rollPrefix || state.currentHash || eventHash).
func (s RollingState) Update(eventHash Hash) RollingState {
	next := Domain(PrefixRoll, append(append([]byte{}, s.CurrentHash[:]...), eventHash[:]...))
	return RollingState{CurrentHash: next, ItemCount: s.ItemCount + 1}
}

// RootHash combines a rolling hash with sorted span hashes into
// the trace run's root hash:
// H(rootPrefix || rolling || join('|', spans.sort(spanSeq).map(hash))).
func RootHash(rolling Hash, spanHashesBySeq []Hash) Hash {
	payload := append([]byte{}, rolling[:]...)
	for i, h := range spanHashesBySeq {
		if i > 0 {
			payload = append(payload, '|')
		}
		payload = append(payload, h.Hex()...)
	}
	return Domain(PrefixRoot, payload)
}

// SortSpanHashesBySeq is a small helper used by callers that hold
// (spanSeq, hash) pairs and need them ordered before calling RootHash.
func SortSpanHashesBySeq(seqs []int, hashes []Hash) []Hash {
	type pair struct {
		seq  int
		hash Hash
	}
	pairs := make([]pair, len(seqs))
	for i := range seqs {
		pairs[i] = pair{seq: seqs[i], hash: hashes[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].seq < pairs[j].seq })
	out := make([]Hash, len(pairs))
	for i, p := range pairs {
		out[i] = p.hash
	}
	return out
}

func errInvalidHashLength(n int) error {
	return poierrors.New(poierrors.KindInvalidHashFormat, fmt.Sprintf("hash must be 32 bytes, got %d", n))
}
