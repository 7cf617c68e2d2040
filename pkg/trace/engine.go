package trace

import (
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/chunkpacker"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poihash"
)

// Engine owns one Run's mutable state. record/startSpan/endSpan/
// finalize must be serialized by the caller (spec.md §5); Engine
// detects re-entrant calls on the same instance and rejects them
// fatally rather than silently corrupting the sequence counters.
type Engine struct {
	run       *Run
	rolling   poihash.RollingState
	openSpans map[string]bool
	spanIndex map[string]int // spanID -> index into run.Spans
	busy      bool
	bundle    *Bundle // cached once finalized, for idempotent re-finalize
}

// NewEngine starts a fresh recording session for agentID.
func NewEngine(agentID string) *Engine {
	return &Engine{
		run: &Run{
			ID:            poierrors.NewID(),
			SchemaVersion: SchemaVersion,
			AgentID:       agentID,
			Status:        StatusRecording,
			StartedAt:     nowISO(),
			RollingHash:   poihash.Genesis().Hex(),
		},
		rolling:   poihash.NewRollingState(),
		openSpans: make(map[string]bool),
		spanIndex: make(map[string]int),
	}
}

// RunID returns the engine's run id.
func (e *Engine) RunID() string { return e.run.ID }

// Status returns the run's current lifecycle state.
func (e *Engine) Status() Status { return e.run.Status }

func (e *Engine) enter() error {
	if e.busy {
		return poierrors.New(poierrors.KindRecordingNotStarted, "concurrent call on the same trace engine instance")
	}
	e.busy = true
	return nil
}

func (e *Engine) exit() { e.busy = false }

func (e *Engine) requireRecording() error {
	switch e.run.Status {
	case StatusRecording:
		return nil
	case StatusFinalized, StatusFinalizing:
		return poierrors.New(poierrors.KindRecordingFinalized, "run is already finalized")
	default:
		return poierrors.New(poierrors.KindRecordingNotStarted, "run is not recording")
	}
}

// RecordInput is the caller-supplied shape for record(); ID and
// Timestamp are filled in by the engine when absent.
type RecordInput struct {
	ID         string
	Timestamp  string
	Kind       chunkpacker.EventKind
	Visibility chunkpacker.Visibility
	SpanID     string
	Payload    map[string]interface{}
}

// Record assigns seq, stamps a timestamp if absent, computes the
// event hash, folds it into the rolling hash, and appends the event
// to the run. If SpanID is set, the event id is appended to that
// span's EventIDs — the span must currently be open.
func (e *Engine) Record(in RecordInput) (chunkpacker.Event, error) {
	if err := e.enter(); err != nil {
		return chunkpacker.Event{}, err
	}
	defer e.exit()

	if err := e.requireRecording(); err != nil {
		return chunkpacker.Event{}, err
	}

	if in.SpanID != "" && !e.openSpans[in.SpanID] {
		return chunkpacker.Event{}, poierrors.New(poierrors.KindSpanNotOpen, "event references a span that is not open: "+in.SpanID)
	}

	ev := chunkpacker.Event{
		ID:         in.ID,
		Seq:        e.run.NextSeq,
		Timestamp:  in.Timestamp,
		Kind:       in.Kind,
		Visibility: in.Visibility,
		SpanID:     in.SpanID,
		Payload:    in.Payload,
	}
	if ev.ID == "" {
		ev.ID = poierrors.NewID()
	}
	if ev.Timestamp == "" {
		ev.Timestamp = nowISO()
	}
	if ev.Visibility == "" {
		ev.Visibility = chunkpacker.VisibilityPublic
	}

	h, err := eventHash(ev)
	if err != nil {
		return chunkpacker.Event{}, err
	}
	ev.Hash = h.Hex()

	e.run.NextSeq++
	e.rolling = e.rolling.Update(h)
	e.run.RollingHash = e.rolling.CurrentHash.Hex()
	e.run.Events = append(e.run.Events, ev)

	if ev.SpanID != "" {
		idx := e.spanIndex[ev.SpanID]
		e.run.Spans[idx].EventIDs = append(e.run.Spans[idx].EventIDs, ev.ID)
	}

	return ev, nil
}

// StartSpan opens a new span, assigning spanSeq.
func (e *Engine) StartSpan(name, parentSpanID string) (chunkpacker.Span, error) {
	if err := e.enter(); err != nil {
		return chunkpacker.Span{}, err
	}
	defer e.exit()

	if err := e.requireRecording(); err != nil {
		return chunkpacker.Span{}, err
	}
	if parentSpanID != "" && !e.openSpans[parentSpanID] {
		return chunkpacker.Span{}, poierrors.New(poierrors.KindSpanNotOpen, "parent span is not open: "+parentSpanID)
	}

	span := chunkpacker.Span{
		ID:           poierrors.NewID(),
		SpanSeq:      e.run.NextSpanSeq,
		Name:         name,
		Status:       chunkpacker.SpanOpen,
		Visibility:   chunkpacker.VisibilityPublic,
		StartedAt:    nowISO(),
		ParentSpanID: parentSpanID,
	}
	e.run.NextSpanSeq++
	e.run.Spans = append(e.run.Spans, span)
	e.spanIndex[span.ID] = len(e.run.Spans) - 1
	e.openSpans[span.ID] = true

	if parentSpanID != "" {
		parentIdx := e.spanIndex[parentSpanID]
		e.run.Spans[parentIdx].ChildSpanIDs = append(e.run.Spans[parentIdx].ChildSpanIDs, span.ID)
	}

	return span, nil
}

// EndSpan closes span id if open. Idempotent once closed: a second
// call on an already-closed span is a no-op, not an error.
func (e *Engine) EndSpan(id string) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err := e.requireRecording(); err != nil {
		return err
	}

	idx, known := e.spanIndex[id]
	if !known {
		return poierrors.New(poierrors.KindSpanNotOpen, "unknown span: "+id)
	}
	if !e.openSpans[id] {
		return nil // already closed; idempotent
	}

	e.closeSpan(idx, chunkpacker.SpanCompleted)
	return nil
}

func (e *Engine) closeSpan(idx int, status chunkpacker.SpanStatus) {
	span := &e.run.Spans[idx]
	span.EndedAt = nowISO()
	span.Status = status
	span.DurationMs = durationMs(span.StartedAt, span.EndedAt)
	delete(e.openSpans, span.ID)
}

// Abort transitions the run to StatusAborted from any non-terminal
// state.
func (e *Engine) Abort() error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	switch e.run.Status {
	case StatusFinalized, StatusAborted:
		return poierrors.New(poierrors.KindRecordingFinalized, "run already reached a terminal state")
	}
	e.run.Status = StatusAborted
	e.run.EndedAt = nowISO()
	return nil
}
