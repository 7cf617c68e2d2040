// Copyright 2025 Flux Point Studios
//
// Package trace implements the PoI SDK's trace engine (C4): an
// ordered, append-only event log grouped into spans, committed via a
// rolling hash and a span Merkle tree, and finalized into an immutable
// bundle with a public-safe manifest.
//
// Grounded on the teacher's pkg/batch.Collector (batch/run lifecycle,
// sequence counters, closeBatch building a Merkle tree over collected
// items) and pkg/anchor_proof's StateProofReference shape for the
// verify-result structure, generalized to the spec's event/span model.
package trace

import (
	"time"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/chunkpacker"
)

// SchemaVersion identifies the shape of a Run produced by this engine.
const SchemaVersion = "poi-trace-v1"

// Status is a run's lifecycle state: recording -> finalizing ->
// finalized, with a terminal aborted reachable from any non-terminal
// state.
type Status string

const (
	StatusRecording  Status = "recording"
	StatusFinalizing Status = "finalizing"
	StatusFinalized  Status = "finalized"
	StatusAborted    Status = "aborted"
)

// Run is one recording session: the mutable state a TraceEngine
// serializes operations against. Once Status reaches Finalized or
// Aborted no further mutation is permitted.
type Run struct {
	ID            string               `json:"id"`
	SchemaVersion string               `json:"schemaVersion"`
	AgentID       string               `json:"agentId"`
	Status        Status               `json:"status"`
	StartedAt     string               `json:"startedAt"`
	EndedAt       string               `json:"endedAt,omitempty"`
	Events        []chunkpacker.Event  `json:"events"`
	Spans         []chunkpacker.Span   `json:"spans"`
	RollingHash   string               `json:"rollingHash"`
	RootHash      string               `json:"rootHash,omitempty"`
	NextSeq       int                  `json:"nextSeq"`
	NextSpanSeq   int                  `json:"nextSpanSeq"`
}

// clone copies a Run's event and span slices (and each span's id
// lists) so bundles retain a snapshot independent of the engine's
// further (rejected, post-finalize) mutation attempts. Event payload
// maps are shared with the original, not copied.
func (r *Run) clone() Run {
	out := *r
	out.Events = append([]chunkpacker.Event{}, r.Events...)
	out.Spans = make([]chunkpacker.Span, len(r.Spans))
	for i, s := range r.Spans {
		out.Spans[i] = s
		out.Spans[i].EventIDs = append([]string{}, s.EventIDs...)
		out.Spans[i].ChildSpanIDs = append([]string{}, s.ChildSpanIDs...)
	}
	return out
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

const isoLayout = "2006-01-02T15:04:05.000Z"

// durationMs returns end-start in milliseconds, or 0 if either
// timestamp fails to parse (defensive: timestamps are always engine-
// generated, but a caller-supplied RecordInput.Timestamp could be
// malformed).
func durationMs(start, end string) int64 {
	s, err1 := time.Parse(isoLayout, start)
	e, err2 := time.Parse(isoLayout, end)
	if err1 != nil || err2 != nil {
		return 0
	}
	return e.Sub(s).Milliseconds()
}
