// Copyright 2025 Flux Point Studios
//
// Package anchor implements the PoI SDK's schema-versioned anchor
// envelope (C6): the metadata structure a caller embeds in an L1
// transaction, a defensive forward-compatible parser, and a verifier
// that cross-checks a fetched transaction against an expected bundle
// commitment using the chain-provider contract (C7).
//
// Grounded on the teacher's pkg/anchor_proof.AnchorChain/AnchorReference
// (embeddable anchor record shape) and pkg/anchor.AnchorData/AnchorResult
// (submit/verify split), generalized to the spec's v1/v2 schema duality.
package anchor

import (
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/codec"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poihash"
)

// Schema identifies the anchor envelope/entry wire shape.
type Schema string

const (
	SchemaV1 Schema = "poi-anchor-v1"
	SchemaV2 Schema = "poi-anchor-v2"
)

// ConventionalLabel is the transaction-metadata label this SDK uses by
// convention; callers may override it.
const ConventionalLabel = 2222

// AnchorTypeV1 is the literal "type" discriminator v1 entries carry.
const AnchorTypeV1 = "poi-anchor"

// VersionV1 is the literal "version" string v1 entries carry.
const VersionV1 = "1.0"

// L2Metadata is v2's optional settlement-provenance block.
type L2Metadata struct {
	HeadID           string `json:"headId"`
	TotalCommits     int    `json:"totalCommits"`
	SettlementTxHash string `json:"settlementTxHash,omitempty"`
}

// Entry is the SDK's internal representation of one anchor record,
// covering both v1 and v2 fields. ToWireMap renders the wire shape for
// the entry's own Schema; ParseEnvelope reads either shape back.
type Entry struct {
	Schema       Schema      `json:"-"`
	RootHash     string      `json:"rootHash"`
	ManifestHash string      `json:"manifestHash"`
	MerkleRoot   string      `json:"merkleRoot,omitempty"`
	ItemCount    int         `json:"itemCount,omitempty"`
	Timestamp    string      `json:"timestamp"`
	AgentID      string      `json:"agentId,omitempty"`
	StorageURI   string      `json:"storageUri,omitempty"`
	SessionID    string      `json:"sessionId,omitempty"` // v2 only
	L2Metadata   *L2Metadata `json:"l2Metadata,omitempty"` // v2 only
}

// Envelope is the top-level structure callers embed under a metadata
// label: { schema, anchors }.
type Envelope struct {
	Schema  Schema  `json:"schema"`
	Anchors []Entry `json:"anchors"`
}

// ToWireMap renders e to the JSON shape matching its own Schema, for
// embedding in a transaction-metadata map.
func (e Entry) ToWireMap() map[string]interface{} {
	if e.Schema == SchemaV1 {
		m := map[string]interface{}{
			"type":         AnchorTypeV1,
			"version":      VersionV1,
			"rootHash":     e.RootHash,
			"manifestHash": e.ManifestHash,
			"timestamp":    e.Timestamp,
		}
		if e.MerkleRoot != "" {
			m["merkleRoot"] = e.MerkleRoot
		}
		if e.ItemCount != 0 {
			m["itemCount"] = e.ItemCount
		}
		if e.AgentID != "" {
			m["agentId"] = e.AgentID
		}
		if e.StorageURI != "" {
			m["storageUri"] = e.StorageURI
		}
		return m
	}

	m := map[string]interface{}{
		"schema":       string(SchemaV2),
		"rootHash":     e.RootHash,
		"merkleRoot":   e.MerkleRoot,
		"manifestHash": e.ManifestHash,
		"storageUri":   e.StorageURI,
		"agentId":      e.AgentID,
		"sessionId":    e.SessionID,
		"timestamp":    e.Timestamp,
	}
	if e.L2Metadata != nil {
		l2 := map[string]interface{}{
			"headId":       e.L2Metadata.HeadID,
			"totalCommits": e.L2Metadata.TotalCommits,
		}
		if e.L2Metadata.SettlementTxHash != "" {
			l2["settlementTxHash"] = e.L2Metadata.SettlementTxHash
		}
		m["l2Metadata"] = l2
	}
	return m
}

// manifestHashPrefix domain-separates the anchor entry's own
// self-commitment hash from the trace engine's manifestHash (a
// different artifact despite the shared field name — see spec.md
// §4.5's "manifestHash = deterministic hash of the entry without the
// hash field" for an L2 settlement entry that has no real manifest).
const manifestHashPrefix = "poi-anchor:entry:v1|"

// ComputeEntryManifestHash derives e's self-commitment hash: the
// canonical encoding of e (wire-shaped, ManifestHash cleared) hashed
// with the anchor-entry domain prefix.
func ComputeEntryManifestHash(e Entry) (poihash.Hash, error) {
	e.ManifestHash = ""
	encoded, err := codec.MarshalCanonical(e.ToWireMap())
	if err != nil {
		return poihash.Hash{}, poierrors.Wrap(poierrors.KindCanonicalizationFailed, "canonicalize anchor entry", err)
	}
	return poihash.Domain(manifestHashPrefix, encoded), nil
}
