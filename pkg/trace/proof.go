package trace

import (
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/chunkpacker"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/merkle"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poihash"
)

// SpanTree rebuilds the span Merkle tree from a finalized bundle's
// per-span hashes (spans are already stored in spanSeq order).
func SpanTree(bundle *Bundle) (*merkle.Tree, error) {
	leaves := make([]poihash.Hash, len(bundle.Run.Spans))
	for i, span := range bundle.Run.Spans {
		if span.Hash == "" {
			return nil, poierrors.New(poierrors.KindInvalidInput, "span is missing its hash; bundle is not finalized")
		}
		h, err := poihash.HexToHash(span.Hash)
		if err != nil {
			return nil, err
		}
		leaves[i] = merkle.LeafHash(h.Bytes())
	}
	return merkle.New(leaves), nil
}

// ProveSpan returns an inclusion proof for the span at index (in
// spanSeq order) of bundle's span tree.
func ProveSpan(bundle *Bundle, index int) (merkle.Proof, error) {
	tree, err := SpanTree(bundle)
	if err != nil {
		return merkle.Proof{}, err
	}
	return tree.Prove(index)
}

// VerifySpanInclusion recomputes the span hash from the disclosed
// span and its events, derives the leaf, and replays proof.Path to
// root. Any bit-flip in span, spanEvents, or the proof falsifies it.
func VerifySpanInclusion(proof merkle.Proof, span chunkpacker.Span, spanEvents []chunkpacker.Event, root poihash.Hash) bool {
	eventHashes := make([]string, len(spanEvents))
	for i, ev := range spanEvents {
		eventHashes[i] = ev.Hash
	}
	recomputed, err := spanHash(span, eventHashes)
	if err != nil {
		return false
	}
	leaf := merkle.LeafHash(recomputed.Bytes())
	if leaf != proof.LeafHash {
		return false
	}
	return merkle.VerifyProof(proof, root)
}
