package chunkpacker

import (
	"testing"
)

func sampleSpan(id string, seq int) Span {
	return Span{
		ID:        id,
		SpanSeq:   seq,
		Name:      "span-" + id,
		Status:    SpanCompleted,
		StartedAt: "2026-01-01T00:00:00.000Z",
		EndedAt:   "2026-01-01T00:00:01.000Z",
		EventIDs:  []string{id + "-e0", id + "-e1", id + "-e2"},
	}
}

func sampleEvents(spanID string, n int) []Event {
	events := make([]Event, n)
	for i := 0; i < n; i++ {
		events[i] = Event{
			ID:         spanID + "-e" + itoa(i),
			Seq:        i,
			Timestamp:  "2026-01-01T00:00:00.000Z",
			Kind:       KindToolCall,
			Visibility: VisibilityPublic,
			SpanID:     spanID,
			Payload:    map[string]interface{}{"n": i},
		}
	}
	return events
}

func itoa(i int) string {
	digits := "0123456789"
	if i < 10 {
		return string(digits[i])
	}
	return string(digits[i/10]) + string(digits[i%10])
}

func TestPack_SingleSpanSingleChunk(t *testing.T) {
	span := sampleSpan("s0", 0)
	events := sampleEvents("s0", 3)

	chunks, err := Pack([]Span{span}, map[string][]Event{"s0": events}, Config{ChunkSizeBytes: 1_000_000})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if len(chunks[0].SpanIDs) != 1 || chunks[0].SpanIDs[0] != "s0" {
		t.Errorf("SpanIDs = %v, want [s0]", chunks[0].SpanIDs)
	}
}

func TestPack_Empty(t *testing.T) {
	chunks, err := Pack(nil, nil, Config{})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected zero chunks for an empty run, got %d", len(chunks))
	}
}

func TestPack_NeverSplitsASpan(t *testing.T) {
	spans := []Span{sampleSpan("s0", 0), sampleSpan("s1", 1), sampleSpan("s2", 2)}
	byID := map[string][]Event{
		"s0": sampleEvents("s0", 3),
		"s1": sampleEvents("s1", 3),
		"s2": sampleEvents("s2", 3),
	}

	chunks, err := Pack(spans, byID, Config{ChunkSizeBytes: 1}) // force one span per chunk
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3 (one per span)", len(chunks))
	}
	for i, c := range chunks {
		if len(c.SpanIDs) != 1 {
			t.Errorf("chunk %d has %d spans, want exactly 1", i, len(c.SpanIDs))
		}
	}
}

func TestPackUnpack_RoundTrip_NoEncryption(t *testing.T) {
	span := sampleSpan("s0", 0)
	events := sampleEvents("s0", 2)

	chunks, err := Pack([]Span{span}, map[string][]Event{"s0": events}, Config{Compression: CompressionGzip})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	payload, err := Unpack(chunks[0], nil)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(payload.Spans) != 1 || payload.Spans[0].ID != "s0" {
		t.Errorf("unexpected spans in unpacked payload: %+v", payload.Spans)
	}
	if len(payload.Events) != 2 {
		t.Errorf("len(events) = %d, want 2", len(payload.Events))
	}
}

func TestPackUnpack_RoundTrip_Ephemeral(t *testing.T) {
	kp, err := NewEphemeralKeyProvider()
	if err != nil {
		t.Fatalf("NewEphemeralKeyProvider: %v", err)
	}

	span := sampleSpan("s0", 0)
	events := sampleEvents("s0", 2)
	chunks, err := Pack([]Span{span}, map[string][]Event{"s0": events}, Config{Compression: CompressionGzip, KeyProvider: kp})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if chunks[0].KeyID == "" {
		t.Errorf("expected non-empty KeyID for encrypted chunk")
	}

	payload, err := Unpack(chunks[0], kp)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(payload.Events) != 2 {
		t.Errorf("len(events) = %d, want 2", len(payload.Events))
	}
}

func TestUnpack_WrongKeyFails(t *testing.T) {
	kp1, _ := NewEphemeralKeyProvider()
	kp2, _ := NewEphemeralKeyProvider()

	span := sampleSpan("s0", 0)
	chunks, err := Pack([]Span{span}, map[string][]Event{"s0": sampleEvents("s0", 1)}, Config{KeyProvider: kp1})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	if _, err := Unpack(chunks[0], kp2); err == nil {
		t.Errorf("expected decryption to fail with the wrong key")
	}
}

func TestUnpack_DetectsTamperedContent(t *testing.T) {
	span := sampleSpan("s0", 0)
	chunks, err := Pack([]Span{span}, map[string][]Event{"s0": sampleEvents("s0", 1)}, Config{})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	tampered := chunks[0]
	content := append([]byte{}, tampered.Content...)
	content[0] ^= 0xFF
	tampered.Content = content

	if _, err := Unpack(tampered, nil); err == nil {
		t.Errorf("expected hash mismatch on tampered chunk content")
	}
}

func TestWrappedKeyProvider_RequiresRecipients(t *testing.T) {
	if _, err := NewWrappedKeyProvider(nil); err == nil {
		t.Errorf("expected error with zero recipients")
	}
}
