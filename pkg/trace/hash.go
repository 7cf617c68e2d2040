package trace

import (
	"strings"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/chunkpacker"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/codec"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poihash"
)

// eventHash computes H(eventPrefix || canonical(e minus hash field)).
func eventHash(e chunkpacker.Event) (poihash.Hash, error) {
	e.Hash = ""
	encoded, err := codec.MarshalCanonical(e)
	if err != nil {
		return poihash.Hash{}, poierrors.Wrap(poierrors.KindCanonicalizationFailed, "canonicalize event", err)
	}
	return poihash.Domain(poihash.PrefixEvent, encoded), nil
}

// spanHash computes H(spanPrefix || canonical(span minus hash) || '|'
// || join('|', eventHashes_in_seq_order)).
func spanHash(s chunkpacker.Span, eventHashesHex []string) (poihash.Hash, error) {
	s.Hash = ""
	encoded, err := codec.MarshalCanonical(s)
	if err != nil {
		return poihash.Hash{}, poierrors.Wrap(poierrors.KindCanonicalizationFailed, "canonicalize span", err)
	}
	payload := append([]byte{}, encoded...)
	payload = append(payload, '|')
	payload = append(payload, []byte(strings.Join(eventHashesHex, "|"))...)
	return poihash.Domain(poihash.PrefixSpan, payload), nil
}
