package poihash

import (
	"testing"
)

func TestSHA256Hex_SeedVectors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"hello", "hello", "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{"empty", "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SHA256Hex([]byte(tc.in))
			if got != tc.want {
				t.Errorf("SHA256Hex(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestHash_HexRoundTrip(t *testing.T) {
	h := SHA256([]byte("proof of intent"))
	parsed, err := HexToHash(h.Hex())
	if err != nil {
		t.Fatalf("HexToHash: %v", err)
	}
	if parsed != h {
		t.Errorf("round-trip mismatch: %s vs %s", parsed.Hex(), h.Hex())
	}
}

func TestHexToHash_RejectsWrongLength(t *testing.T) {
	if _, err := HexToHash("deadbeef"); err == nil {
		t.Errorf("expected error for short hash")
	}
}

func TestDomain_DistinctFromPlainHash(t *testing.T) {
	payload := []byte("same payload")
	plain := SHA256(payload)
	domained := Domain(PrefixEvent, payload)
	if plain == domained {
		t.Errorf("domain-separated hash must differ from plain SHA-256 of the same payload")
	}
}

func TestDomain_DifferentPrefixesDiffer(t *testing.T) {
	payload := []byte("payload")
	a := Domain(PrefixEvent, payload)
	b := Domain(PrefixSpan, payload)
	if a == b {
		t.Errorf("different domain prefixes must yield different hashes")
	}
}

func TestRollingState_Deterministic(t *testing.T) {
	events := []Hash{
		SHA256([]byte("e1")),
		SHA256([]byte("e2")),
		SHA256([]byte("e3")),
	}

	fold := func() RollingState {
		s := NewRollingState()
		for _, e := range events {
			s = s.Update(e)
		}
		return s
	}

	a, b := fold(), fold()
	if a != b {
		t.Errorf("rolling hash must be deterministic for identical event sequences")
	}
	if a.ItemCount != len(events) {
		t.Errorf("ItemCount = %d, want %d", a.ItemCount, len(events))
	}
}

func TestRollingState_OrderSensitive(t *testing.T) {
	e1, e2 := SHA256([]byte("e1")), SHA256([]byte("e2"))

	s1 := NewRollingState().Update(e1).Update(e2)
	s2 := NewRollingState().Update(e2).Update(e1)

	if s1.CurrentHash == s2.CurrentHash {
		t.Errorf("rolling hash must be sensitive to event order")
	}
}

func TestRollingState_TamperDetection(t *testing.T) {
	original := NewRollingState().Update(SHA256([]byte("e1"))).Update(SHA256([]byte("e2")))
	tampered := NewRollingState().Update(SHA256([]byte("e1"))).Update(SHA256([]byte("e2-tampered")))

	if original.CurrentHash == tampered.CurrentHash {
		t.Errorf("tampering with a folded event must change the rolling hash")
	}
}

func TestRootHash_OrderIndependentInput_ButSortedFirst(t *testing.T) {
	rolling := NewRollingState().Update(SHA256([]byte("e1"))).CurrentHash

	h1, h2, h3 := SHA256([]byte("span1")), SHA256([]byte("span2")), SHA256([]byte("span3"))

	sortedA := SortSpanHashesBySeq([]int{0, 1, 2}, []Hash{h1, h2, h3})
	sortedB := SortSpanHashesBySeq([]int{2, 0, 1}, []Hash{h3, h1, h2})

	rootA := RootHash(rolling, sortedA)
	rootB := RootHash(rolling, sortedB)

	if rootA != rootB {
		t.Errorf("root hash must be independent of input order once spans are sorted by seq")
	}
}

func TestRootHash_EmptySpanList(t *testing.T) {
	rolling := NewRollingState().CurrentHash
	root := RootHash(rolling, nil)
	if root.IsZero() {
		t.Errorf("root hash of an empty span list must still be a well-defined non-zero digest")
	}
}

func TestIdempotencyKey_Deterministic(t *testing.T) {
	body := map[string]interface{}{"a": 1, "b": "x"}
	k1, err := IdempotencyKey("post", "https://api.example.com/v1/anchor/", body, IdempotencyOptions{})
	if err != nil {
		t.Fatalf("IdempotencyKey: %v", err)
	}
	k2, err := IdempotencyKey("POST", "https://api.example.com:443/v1/anchor", body, IdempotencyOptions{})
	if err != nil {
		t.Fatalf("IdempotencyKey: %v", err)
	}
	if k1 != k2 {
		t.Errorf("normalized-equivalent calls must produce the same idempotency key: %s vs %s", k1, k2)
	}
}

func TestIdempotencyKey_DefaultFormat(t *testing.T) {
	k, err := IdempotencyKey("GET", "https://api.example.com/v1/status", nil, IdempotencyOptions{})
	if err != nil {
		t.Fatalf("IdempotencyKey: %v", err)
	}
	const prefix = "idem_"
	if len(k) != len(prefix)+32 {
		t.Fatalf("key length = %d, want %d", len(k), len(prefix)+32)
	}
	if k[:len(prefix)] != prefix {
		t.Errorf("key %q does not start with %q", k, prefix)
	}
}

func TestIdempotencyKey_DifferentBodiesDiffer(t *testing.T) {
	k1, err := IdempotencyKey("POST", "https://api.example.com/v1/anchor", map[string]interface{}{"n": 1}, IdempotencyOptions{})
	if err != nil {
		t.Fatal(err)
	}
	k2, err := IdempotencyKey("POST", "https://api.example.com/v1/anchor", map[string]interface{}{"n": 2}, IdempotencyOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if k1 == k2 {
		t.Errorf("different request bodies must produce different idempotency keys")
	}
}

func TestIdempotencyKey_TimestampForcesDistinctKeys(t *testing.T) {
	k1, err := IdempotencyKey("POST", "https://api.example.com/v1/anchor", nil, IdempotencyOptions{IncludeTimestamp: 1000})
	if err != nil {
		t.Fatal(err)
	}
	k2, err := IdempotencyKey("POST", "https://api.example.com/v1/anchor", nil, IdempotencyOptions{IncludeTimestamp: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if k1 == k2 {
		t.Errorf("distinct timestamps must force distinct idempotency keys")
	}
}
