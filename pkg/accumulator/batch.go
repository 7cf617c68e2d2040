package accumulator

import (
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/codec"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/merkle"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poihash"
)

// batchEmptyPrefix domain-separates the distinguished empty-batch
// hash from every non-empty batch's Merkle root.
const batchEmptyPrefix = "poi-l2:batch-empty:v1"

// batchItemPrefix domain-separates a batch item's leaf hash from
// other leaf producers sharing pkg/merkle.
const batchItemPrefix = "poi-l2:item:v1|"

// accPrefix domain-separates the accumulator's chaining hash.
const accPrefix = "poi-l2:acc:v1|"

// itemLeafHash computes the domain-separated Merkle leaf for item.
func itemLeafHash(item Item) (poihash.Hash, error) {
	encoded, err := codec.MarshalCanonical(item)
	if err != nil {
		return poihash.Hash{}, poierrors.Wrap(poierrors.KindCanonicalizationFailed, "canonicalize batch item", err)
	}
	leaf := poihash.Domain(batchItemPrefix, encoded)
	return merkle.LeafHash(leaf.Bytes()), nil
}

// BatchRoot computes the Merkle root over items, or the distinguished
// empty-batch hash if items is empty.
func BatchRoot(items []Item) (poihash.Hash, error) {
	if len(items) == 0 {
		return poihash.Domain(batchEmptyPrefix, nil), nil
	}
	leaves := make([]poihash.Hash, len(items))
	for i, item := range items {
		leaf, err := itemLeafHash(item)
		if err != nil {
			return poihash.Hash{}, err
		}
		leaves[i] = leaf
	}
	tree := merkle.New(leaves)
	root, _ := tree.Root()
	return root, nil
}

// chainRoot folds batchRoot into prior per spec.md's accumulator
// chaining rule: the first commit's accumulatorRoot is its own
// batchRoot; every subsequent commit folds the prior root with the
// new batchRoot under a domain prefix.
func chainRoot(priorHex string, commitCount int, batchRoot poihash.Hash) (poihash.Hash, error) {
	if commitCount == 0 {
		return batchRoot, nil
	}
	prior, err := poihash.HexToHash(priorHex)
	if err != nil {
		return poihash.Hash{}, err
	}
	payload := append(append([]byte{}, prior.Bytes()...), batchRoot.Bytes()...)
	return poihash.Domain(accPrefix, payload), nil
}
