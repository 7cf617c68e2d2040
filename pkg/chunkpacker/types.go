// Copyright 2025 Flux Point Studios
//
// Package chunkpacker implements the PoI SDK's chunked, optionally
// compressed and encrypted packaging of trace spans/events (C3): the
// storage-facing data model the trace engine (C4) builds manifests
// from.
//
// Grounded on the teacher's pkg/proof/bundle_format.go (gzip
// compression of a bundle) for the compression half, and
// orbas1-Synnergy/synnergy-network/core/security.go (XChaCha20-Poly1305,
// nonce‖ciphertext‖tag) for the AEAD half.
package chunkpacker

// Visibility marks whether an event or span's payload is safe to
// publish verbatim, should be redacted, or must stay private.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityPrivate  Visibility = "private"
	VisibilityRedacted Visibility = "redacted"
)

// EventKind tags the shape of an event's payload.
type EventKind string

const (
	KindInferenceStart EventKind = "inference-start"
	KindInferenceEnd   EventKind = "inference-end"
	KindToolCall       EventKind = "tool-call"
	KindToolResult     EventKind = "tool-result"
	KindStreamChunk    EventKind = "stream-chunk"
	KindDecision       EventKind = "decision"
	KindError          EventKind = "error"
	KindCustom         EventKind = "custom"
)

// knownKinds is used by ParseEventKind to detect unrecognized kinds
// (per spec.md §9: forward-compatible parsing maps them to KindCustom
// with the payload preserved and a warning raised).
var knownKinds = map[EventKind]bool{
	KindInferenceStart: true,
	KindInferenceEnd:   true,
	KindToolCall:       true,
	KindToolResult:     true,
	KindStreamChunk:    true,
	KindDecision:       true,
	KindError:          true,
	KindCustom:         true,
}

// ParseEventKind maps raw to a known EventKind, or to KindCustom plus
// ok=false if raw is not one of the known kinds (the payload is left
// untouched by the caller either way).
func ParseEventKind(raw string) (kind EventKind, ok bool) {
	k := EventKind(raw)
	if knownKinds[k] {
		return k, true
	}
	return KindCustom, false
}

// Event is an immutable trace record. Relationships to other events
// or spans are expressed by ID, never by pointer.
type Event struct {
	ID         string                 `json:"id"`
	Seq        int                    `json:"seq"`
	Timestamp  string                 `json:"timestamp"`
	Kind       EventKind              `json:"kind"`
	Visibility Visibility             `json:"visibility"`
	SpanID     string                 `json:"spanId,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Hash       string                 `json:"hash,omitempty"`
}

// SpanStatus is a span's lifecycle state.
type SpanStatus string

const (
	SpanOpen      SpanStatus = "open"
	SpanCompleted SpanStatus = "completed"
	SpanFailed    SpanStatus = "failed"
	SpanCancelled SpanStatus = "cancelled"
)

// Span groups the events recorded between its open and close.
type Span struct {
	ID           string                 `json:"id"`
	SpanSeq      int                    `json:"spanSeq"`
	Name         string                 `json:"name"`
	Status       SpanStatus             `json:"status"`
	Visibility   Visibility             `json:"visibility"`
	StartedAt    string                 `json:"startedAt"`
	EndedAt      string                 `json:"endedAt,omitempty"`
	DurationMs   int64                  `json:"durationMs,omitempty"`
	ParentSpanID string                 `json:"parentSpanId,omitempty"`
	EventIDs     []string               `json:"eventIds"`
	ChildSpanIDs []string               `json:"childSpanIds,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Hash         string                 `json:"hash,omitempty"`
}

// Compression names a chunk's compression scheme.
type Compression string

const (
	CompressionGzip Compression = "gzip"
	CompressionNone Compression = "none"
)

// EncryptionMode names a chunk's key-management scheme, per spec.md
// §4.3's three modes.
type EncryptionMode string

const (
	EncryptionNone      EncryptionMode = "none"
	EncryptionEphemeral EncryptionMode = "ephemeral"
	EncryptionSealed    EncryptionMode = "sealed"
	EncryptionWrapped   EncryptionMode = "wrapped"
)

// ChunkRef is the manifest-facing descriptor of a chunk: the plaintext
// hash, stored size, compression, owned spans, and key id. It never
// carries chunk content.
type ChunkRef struct {
	Index       int         `json:"index"`
	Hash        string      `json:"hash"`
	Size        int         `json:"size"`
	Compression Compression `json:"compression"`
	SpanIDs     []string    `json:"spanIds"`
	KeyID       string      `json:"keyId,omitempty"`
}

// Chunk is a storage unit: a ChunkRef plus the opaque bytes a caller
// persists under chunks/<hash>.json (or whatever framing the caller's
// compression/encryption choice implies).
type Chunk struct {
	ChunkRef
	Content []byte `json:"-"`
}

// ChunkPayload is the canonical {spans, events} shape hashed and
// packed into each chunk's plaintext content.
type ChunkPayload struct {
	Spans  []Span  `json:"spans"`
	Events []Event `json:"events"`
}
