package trace

import (
	"sort"
	"strconv"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/chunkpacker"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/codec"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poihash"
)

// ManifestFormatVersion identifies the Manifest wire shape.
const ManifestFormatVersion = "poi-manifest-v1"

// Manifest is the public-safe descriptor of a finalized bundle.
type Manifest struct {
	FormatVersion string                  `json:"formatVersion"`
	RunID         string                  `json:"runId"`
	AgentID       string                  `json:"agentId"`
	RootHash      string                  `json:"rootHash"`
	MerkleRoot    string                  `json:"merkleRoot"`
	ManifestHash  string                  `json:"manifestHash,omitempty"`
	TotalEvents   int                     `json:"totalEvents"`
	TotalSpans    int                     `json:"totalSpans"`
	StartedAt     string                  `json:"startedAt"`
	EndedAt       string                  `json:"endedAt,omitempty"`
	DurationMs    int64                   `json:"durationMs,omitempty"`
	PublicView    PublicView              `json:"publicView"`
	Chunks        []chunkpacker.ChunkRef  `json:"chunks"`
}

// ManifestOptions controls chunk packing at manifest creation.
type ManifestOptions struct {
	ChunkSizeBytes int
	Compression    chunkpacker.Compression
	KeyProvider    chunkpacker.KeyProvider
}

func manifestHash(m Manifest) (poihash.Hash, error) {
	m.ManifestHash = ""
	encoded, err := codec.MarshalCanonical(m)
	if err != nil {
		return poihash.Hash{}, poierrors.Wrap(poierrors.KindCanonicalizationFailed, "canonicalize manifest", err)
	}
	return poihash.Domain(poihash.PrefixManifest, encoded), nil
}

// CreateManifest packs bundle's spans/events into chunks (C3), builds
// the manifest minus ManifestHash, then computes and fills it in.
func CreateManifest(bundle *Bundle, opts ManifestOptions) (*Manifest, []chunkpacker.Chunk, error) {
	eventsBySpan := make(map[string][]chunkpacker.Event)
	for _, ev := range bundle.Run.Events {
		if ev.SpanID != "" {
			eventsBySpan[ev.SpanID] = append(eventsBySpan[ev.SpanID], ev)
		}
	}

	chunks, err := chunkpacker.Pack(bundle.Run.Spans, eventsBySpan, chunkpacker.Config{
		ChunkSizeBytes: opts.ChunkSizeBytes,
		Compression:    opts.Compression,
		KeyProvider:    opts.KeyProvider,
	})
	if err != nil {
		return nil, nil, err
	}

	refs := make([]chunkpacker.ChunkRef, len(chunks))
	for i, c := range chunks {
		refs[i] = c.ChunkRef
	}

	m := Manifest{
		FormatVersion: ManifestFormatVersion,
		RunID:         bundle.Run.ID,
		AgentID:       bundle.Run.AgentID,
		RootHash:      bundle.Run.RootHash,
		MerkleRoot:    bundle.MerkleRoot,
		TotalEvents:   len(bundle.Run.Events),
		TotalSpans:    len(bundle.Run.Spans),
		StartedAt:     bundle.Run.StartedAt,
		EndedAt:       bundle.Run.EndedAt,
		DurationMs:    durationMs(bundle.Run.StartedAt, bundle.Run.EndedAt),
		PublicView:    bundle.PublicView,
		Chunks:        refs,
	}

	h, err := manifestHash(m)
	if err != nil {
		return nil, nil, err
	}
	m.ManifestHash = h.Hex()

	return &m, chunks, nil
}

// VerifyManifest recomputes manifestHash, verifies each referenced
// chunk (content hash and size), detects missing/extra chunks, and
// checks that rootHash/merkleRoot are present. keyProvider may be nil
// if chunks are not encrypted; encrypted chunks without a key provider
// are size-checked but not content-hash-checked (a warning notes the
// gap).
func VerifyManifest(m *Manifest, chunks []chunkpacker.Chunk, keyProvider chunkpacker.KeyProvider) *VerifyResult {
	result := &VerifyResult{Valid: true}

	got, err := manifestHash(*m)
	if err != nil {
		result.fail("manifest-hash-mismatch: " + err.Error())
	} else if got.Hex() != m.ManifestHash {
		result.fail("manifest-hash-mismatch")
	}

	if m.RootHash == "" {
		result.fail("rootHash is missing")
	}
	if m.MerkleRoot == "" && m.TotalSpans > 0 {
		result.fail("merkleRoot is missing")
	}

	byIndex := make(map[int]chunkpacker.Chunk, len(chunks))
	for _, c := range chunks {
		byIndex[c.Index] = c
	}

	seen := make(map[int]bool)
	for _, ref := range m.Chunks {
		seen[ref.Index] = true
		actual, ok := byIndex[ref.Index]
		if !ok {
			result.fail("chunk-missing: index " + strconv.Itoa(ref.Index))
			continue
		}
		if actual.Size != ref.Size {
			result.fail("chunk-size-mismatch: index " + strconv.Itoa(ref.Index))
		}
		if actual.KeyID != "" && keyProvider == nil {
			result.warn("chunk " + strconv.Itoa(ref.Index) + " is encrypted; content hash not verified without a key provider")
			continue
		}
		payload, err := chunkpacker.Unpack(actual, keyProvider)
		if err != nil {
			result.fail("chunk-missing: index " + strconv.Itoa(ref.Index) + ": " + err.Error())
			continue
		}
		_ = payload // hash already verified by Unpack
	}
	for idx := range byIndex {
		if !seen[idx] {
			result.warn("chunk-extra: index " + strconv.Itoa(idx) + " not referenced by manifest")
		}
	}

	return result
}

// ReconstructBundle re-derives a bundle from a manifest and its
// chunks, read in index order. The rolling hash is intentionally left
// blank (spec.md §9): callers needing full verification must retain
// the original rolling hash or recompute it from the reconstructed
// events via VerifyBundle.
func ReconstructBundle(m *Manifest, chunks []chunkpacker.Chunk, keyProvider chunkpacker.KeyProvider) (*Bundle, error) {
	ordered := append([]chunkpacker.Chunk{}, chunks...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var spans []chunkpacker.Span
	var events []chunkpacker.Event
	for _, c := range ordered {
		payload, err := chunkpacker.Unpack(c, keyProvider)
		if err != nil {
			return nil, err
		}
		spans = append(spans, payload.Spans...)
		events = append(events, payload.Events...)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].SpanSeq < spans[j].SpanSeq })
	sort.Slice(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })

	run := Run{
		ID:            m.RunID,
		SchemaVersion: SchemaVersion,
		AgentID:       m.AgentID,
		Status:        StatusFinalized,
		StartedAt:     m.StartedAt,
		EndedAt:       m.EndedAt,
		Events:        events,
		Spans:         spans,
		RootHash:      m.RootHash,
		NextSeq:       len(events),
		NextSpanSeq:   len(spans),
	}

	return &Bundle{
		Run:        run,
		MerkleRoot: m.MerkleRoot,
		PublicView: m.PublicView,
	}, nil
}
