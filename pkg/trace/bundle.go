package trace

import (
	"sort"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/chunkpacker"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/merkle"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poihash"
)

// PublicEvent is a privacy-projected Event: public events keep their
// payload verbatim, everything else is replaced by its hash.
type PublicEvent struct {
	ID          string                 `json:"id"`
	Seq         int                    `json:"seq"`
	Timestamp   string                 `json:"timestamp"`
	Kind        chunkpacker.EventKind  `json:"kind"`
	Visibility  chunkpacker.Visibility `json:"visibility"`
	SpanID      string                 `json:"spanId,omitempty"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	PayloadHash string                 `json:"payloadHash,omitempty"`
}

// PublicSpan is a privacy-projected Span.
type PublicSpan struct {
	ID           string                 `json:"id"`
	SpanSeq      int                    `json:"spanSeq"`
	Name         string                 `json:"name"`
	Status       chunkpacker.SpanStatus `json:"status"`
	Visibility   chunkpacker.Visibility `json:"visibility"`
	StartedAt    string                 `json:"startedAt"`
	EndedAt      string                 `json:"endedAt,omitempty"`
	DurationMs   int64                  `json:"durationMs,omitempty"`
	ParentSpanID string                 `json:"parentSpanId,omitempty"`
	EventIDs     []string               `json:"eventIds"`
	ChildSpanIDs []string               `json:"childSpanIds,omitempty"`
	Hash         string                 `json:"hash,omitempty"`
}

// PublicView is the redacted projection of a run embedded in its
// manifest: safe to publish regardless of individual event/span
// visibility settings.
type PublicView struct {
	Events []PublicEvent `json:"events"`
	Spans  []PublicSpan  `json:"spans"`
}

// Bundle is the immutable artifact produced by Engine.Finalize: the
// full run, the span Merkle root, and a public-safe view.
type Bundle struct {
	Run        Run        `json:"run"`
	MerkleRoot string     `json:"merkleRoot"`
	PublicView PublicView `json:"publicView"`
}

// Finalize closes any open spans, computes span hashes and the span
// Merkle tree, computes rootHash, and returns an immutable Bundle.
// Calling Finalize again after success returns the same cached bundle
// (finalize is idempotent in its committed outputs once entered).
func (e *Engine) Finalize() (*Bundle, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if e.run.Status == StatusFinalized {
		return e.bundle, nil
	}
	if e.run.Status == StatusAborted {
		return nil, poierrors.New(poierrors.KindRecordingFinalized, "run was aborted")
	}

	e.run.Status = StatusFinalizing

	for id := range e.openSpans {
		e.closeSpan(e.spanIndex[id], chunkpacker.SpanCompleted)
	}

	eventHashesBySpan := make(map[string][]string)
	for _, ev := range e.run.Events {
		if ev.SpanID != "" {
			eventHashesBySpan[ev.SpanID] = append(eventHashesBySpan[ev.SpanID], ev.Hash)
		}
	}

	spanHashes := make([]poihash.Hash, len(e.run.Spans))
	for i, span := range e.run.Spans {
		h, err := spanHash(span, eventHashesBySpan[span.ID])
		if err != nil {
			e.run.Status = StatusRecording
			return nil, err
		}
		e.run.Spans[i].Hash = h.Hex()
		spanHashes[i] = h
	}

	leaves := make([]poihash.Hash, len(spanHashes))
	for i, h := range spanHashes {
		leaves[i] = merkle.LeafHash(h.Bytes())
	}
	tree := merkle.New(leaves)
	merkleRootHex := tree.RootHex()

	root := poihash.RootHash(e.rolling.CurrentHash, spanHashes)
	e.run.RootHash = root.Hex()
	e.run.Status = StatusFinalized
	e.run.EndedAt = nowISO()

	bundle := &Bundle{
		Run:        e.run.clone(),
		MerkleRoot: merkleRootHex,
		PublicView: buildPublicView(e.run),
	}
	e.bundle = bundle
	return bundle, nil
}

func buildPublicView(run *Run) PublicView {
	view := PublicView{
		Events: make([]PublicEvent, len(run.Events)),
		Spans:  make([]PublicSpan, len(run.Spans)),
	}
	for i, ev := range run.Events {
		pe := PublicEvent{
			ID:         ev.ID,
			Seq:        ev.Seq,
			Timestamp:  ev.Timestamp,
			Kind:       ev.Kind,
			Visibility: ev.Visibility,
			SpanID:     ev.SpanID,
		}
		if ev.Visibility == chunkpacker.VisibilityPublic {
			pe.Payload = ev.Payload
		} else {
			pe.PayloadHash = ev.Hash
		}
		view.Events[i] = pe
	}
	for i, sp := range run.Spans {
		ps := PublicSpan{
			ID:           sp.ID,
			SpanSeq:      sp.SpanSeq,
			Name:         sp.Name,
			Status:       sp.Status,
			Visibility:   sp.Visibility,
			StartedAt:    sp.StartedAt,
			EndedAt:      sp.EndedAt,
			DurationMs:   sp.DurationMs,
			ParentSpanID: sp.ParentSpanID,
			EventIDs:     sp.EventIDs,
			ChildSpanIDs: sp.ChildSpanIDs,
		}
		if sp.Visibility != chunkpacker.VisibilityPublic {
			ps.Hash = sp.Hash
		}
		view.Spans[i] = ps
	}
	return view
}

// VerifyResult is the structured outcome of a verify call: fatal
// errors and non-fatal warnings accumulate rather than aborting on
// the first finding.
type VerifyResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *VerifyResult) fail(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

func (r *VerifyResult) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// VerifyBundle recomputes event hashes, replays the rolling hash from
// genesis, reconstructs span hashes and the Merkle root, and compares
// them against the bundle's committed values.
func VerifyBundle(bundle *Bundle) *VerifyResult {
	result := &VerifyResult{Valid: true}
	run := bundle.Run

	rolling := poihash.NewRollingState()
	for _, ev := range run.Events {
		got, err := eventHash(ev)
		if err != nil {
			result.fail("event " + ev.ID + ": " + err.Error())
			continue
		}
		if got.Hex() != ev.Hash {
			result.fail("event " + ev.ID + ": hash-mismatch")
			continue
		}
		rolling = rolling.Update(got)
	}
	if rolling.CurrentHash.Hex() != run.RollingHash {
		result.fail("rolling hash mismatch")
	}

	eventHashesBySpan := make(map[string][]string)
	for _, ev := range run.Events {
		if ev.SpanID != "" {
			eventHashesBySpan[ev.SpanID] = append(eventHashesBySpan[ev.SpanID], ev.Hash)
		}
	}

	spansBySeq := append([]chunkpacker.Span{}, run.Spans...)
	sort.Slice(spansBySeq, func(i, j int) bool { return spansBySeq[i].SpanSeq < spansBySeq[j].SpanSeq })

	spanHashes := make([]poihash.Hash, len(spansBySeq))
	for i, span := range spansBySeq {
		got, err := spanHash(span, eventHashesBySpan[span.ID])
		if err != nil {
			result.fail("span " + span.ID + ": " + err.Error())
			continue
		}
		if got.Hex() != span.Hash {
			result.fail("span " + span.ID + ": merkle-mismatch")
		}
		spanHashes[i] = got
	}

	leaves := make([]poihash.Hash, len(spanHashes))
	for i, h := range spanHashes {
		leaves[i] = merkle.LeafHash(h.Bytes())
	}
	merkleRootHex := merkle.New(leaves).RootHex()
	if merkleRootHex != bundle.MerkleRoot {
		result.fail("merkle-mismatch: root does not match")
	}

	root := poihash.RootHash(rolling.CurrentHash, spanHashes)
	if root.Hex() != run.RootHash {
		result.fail("hash-mismatch: rootHash does not match")
	}

	if run.Status != StatusFinalized {
		result.warn("run status is not finalized")
	}

	return result
}
