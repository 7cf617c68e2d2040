package chunkpacker

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/codec"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poihash"
)

// Config controls Pack's chunking, compression and encryption choices.
type Config struct {
	// ChunkSizeBytes bounds each chunk's canonical-encoded payload
	// size; a span is never split across chunks, so the final chunk of
	// a run with one huge span may exceed this target.
	ChunkSizeBytes int
	Compression    Compression
	// KeyProvider is nil for EncryptionNone, required otherwise.
	KeyProvider KeyProvider
}

// DefaultChunkSizeBytes is used when Config.ChunkSizeBytes is zero.
const DefaultChunkSizeBytes = 256 * 1024

func (c Config) chunkSize() int {
	if c.ChunkSizeBytes <= 0 {
		return DefaultChunkSizeBytes
	}
	return c.ChunkSizeBytes
}

// Pack walks spans in spanSeq order, appending each span and its
// owned events (already sorted by seq by the caller) to the current
// chunk until the next span would push canonical size above the
// target, then emits the chunk and starts a new one. The final chunk
// is always emitted, even if undersized. A run with no spans packs to
// zero chunks.
func Pack(spans []Span, eventsBySpan map[string][]Event, cfg Config) ([]Chunk, error) {
	if len(spans) == 0 {
		return nil, nil
	}

	target := cfg.chunkSize()

	var chunks []Chunk
	var curSpans []Span
	var curEvents []Event
	curSize := 0

	flush := func() error {
		if len(curSpans) == 0 {
			return nil
		}
		chunk, err := sealChunk(len(chunks), curSpans, curEvents, cfg)
		if err != nil {
			return err
		}
		chunks = append(chunks, chunk)
		curSpans, curEvents, curSize = nil, nil, 0
		return nil
	}

	for _, span := range spans {
		events := eventsBySpan[span.ID]
		encoded, err := codec.MarshalCanonical(ChunkPayload{Spans: []Span{span}, Events: events})
		if err != nil {
			return nil, poierrors.Wrap(poierrors.KindCanonicalizationFailed, "encode span for sizing", err)
		}
		spanSize := len(encoded)

		if len(curSpans) > 0 && curSize+spanSize > target {
			if err := flush(); err != nil {
				return nil, err
			}
		}

		curSpans = append(curSpans, span)
		curEvents = append(curEvents, events...)
		curSize += spanSize
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return chunks, nil
}

func sealChunk(index int, spans []Span, events []Event, cfg Config) (Chunk, error) {
	payload := ChunkPayload{Spans: spans, Events: events}
	plaintext, err := codec.MarshalCanonical(payload)
	if err != nil {
		return Chunk{}, poierrors.Wrap(poierrors.KindCanonicalizationFailed, "encode chunk payload", err)
	}
	plaintextHash := poihash.SHA256Hex(plaintext)

	content := plaintext
	compression := CompressionNone
	if cfg.Compression == CompressionGzip {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(plaintext); err != nil {
			return Chunk{}, poierrors.Wrap(poierrors.KindCompressionFailed, "gzip write", err)
		}
		if err := gw.Close(); err != nil {
			return Chunk{}, poierrors.Wrap(poierrors.KindCompressionFailed, "gzip close", err)
		}
		content = buf.Bytes()
		compression = CompressionGzip
	}

	var keyID string
	if cfg.KeyProvider != nil {
		sealed, err := cfg.KeyProvider.Seal(content)
		if err != nil {
			return Chunk{}, err
		}
		content = sealed
		keyID = cfg.KeyProvider.KeyID()
	}

	spanIDs := make([]string, len(spans))
	for i, s := range spans {
		spanIDs[i] = s.ID
	}

	return Chunk{
		ChunkRef: ChunkRef{
			Index:       index,
			Hash:        plaintextHash,
			Size:        len(content),
			Compression: compression,
			SpanIDs:     spanIDs,
			KeyID:       keyID,
		},
		Content: content,
	}, nil
}

// Unpack reverses sealChunk: decrypt (if keyProvider given), decompress
// (per chunk.Compression), and verify the plaintext hash before
// returning the decoded payload.
func Unpack(chunk Chunk, keyProvider KeyProvider) (ChunkPayload, error) {
	data := chunk.Content

	if chunk.KeyID != "" {
		if keyProvider == nil {
			return ChunkPayload{}, poierrors.New(poierrors.KindDecryptionFailed, "chunk is encrypted but no key provider was supplied")
		}
		opened, err := keyProvider.Open(data)
		if err != nil {
			return ChunkPayload{}, err
		}
		data = opened
	}

	switch chunk.Compression {
	case CompressionGzip:
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return ChunkPayload{}, poierrors.Wrap(poierrors.KindCompressionFailed, "gzip reader", err)
		}
		defer gr.Close()
		decompressed, err := io.ReadAll(gr)
		if err != nil {
			return ChunkPayload{}, poierrors.Wrap(poierrors.KindCompressionFailed, "gzip read", err)
		}
		data = decompressed
	case CompressionNone, "":
	default:
		return ChunkPayload{}, poierrors.New(poierrors.KindCompressionFailed, "unknown compression scheme")
	}

	gotHash := poihash.SHA256Hex(data)
	if gotHash != chunk.Hash {
		return ChunkPayload{}, poierrors.New(poierrors.KindHashMismatch, "chunk plaintext hash mismatch")
	}

	var payload ChunkPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ChunkPayload{}, poierrors.Wrap(poierrors.KindCanonicalizationFailed, "decode chunk payload", err)
	}
	return payload, nil
}
