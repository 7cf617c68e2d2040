package codec

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
)

func TestCanonical_SortsKeys(t *testing.T) {
	in := map[string]interface{}{"z": 1, "a": 2, "m": 3}
	got, err := MarshalCanonical(in)
	if err != nil {
		t.Fatalf("MarshalCanonical: %v", err)
	}
	want := `{"a":2,"m":3,"z":1}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCanonical_DropsNulls(t *testing.T) {
	in := map[string]interface{}{"a": 1, "b": nil, "c": 3}
	got, err := MarshalCanonical(in)
	if err != nil {
		t.Fatalf("MarshalCanonical: %v", err)
	}
	want := `{"a":1,"c":3}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCanonical_KeepsNullsWhenConfigured(t *testing.T) {
	in := map[string]interface{}{"a": 1, "b": nil}
	got, err := Canonical(in, Options{DropNulls: false})
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	want := `{"a":1,"b":null}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCanonical_Deterministic(t *testing.T) {
	a := map[string]interface{}{"x": 1, "y": []interface{}{1, 2, 3}}
	b := map[string]interface{}{"y": []interface{}{1, 2, 3}, "x": 1}

	ca, err := MarshalCanonical(a)
	if err != nil {
		t.Fatal(err)
	}
	cb, err := MarshalCanonical(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ca, cb) {
		t.Errorf("canonical forms differ: %s vs %s", ca, cb)
	}
}

func TestCanonical_Idempotent(t *testing.T) {
	in := map[string]interface{}{"b": 2, "a": []interface{}{"x", nil, 3}}
	first, err := MarshalCanonical(in)
	if err != nil {
		t.Fatal(err)
	}

	var reparsed interface{}
	if err := json.Unmarshal(first, &reparsed); err != nil {
		t.Fatal(err)
	}
	second, err := MarshalCanonical(reparsed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("canonical(parse(canonical(x))) != canonical(x): %s vs %s", first, second)
	}
}

func TestCanonical_ArrayNilBecomesNull(t *testing.T) {
	in := []interface{}{"a", nil, "b"}
	got, err := MarshalCanonical(in)
	if err != nil {
		t.Fatal(err)
	}
	want := `["a",null,"b"]`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCanonical_RejectsNonFinite(t *testing.T) {
	for _, tc := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := MarshalCanonical(tc); err == nil {
			t.Errorf("expected error for non-finite float %v", tc)
		}
	}
}

func TestCanonical_NegativeZero(t *testing.T) {
	got, err := MarshalCanonical(math.Copysign(0, -1))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "0" {
		t.Errorf("got %s, want 0", got)
	}
}

func TestCanonical_CircularReference(t *testing.T) {
	m := map[string]interface{}{}
	m["self"] = m
	if _, err := MarshalCanonical(m); err == nil {
		t.Errorf("expected circular-reference error")
	}
}

func TestCanonical_DepthExceeded(t *testing.T) {
	var deep interface{} = "leaf"
	for i := 0; i < 10; i++ {
		deep = []interface{}{deep}
	}
	if _, err := Canonical(deep, Options{MaxDepth: 3}); err == nil {
		t.Errorf("expected depth-exceeded error")
	}
}

func TestCanonical_RejectsUnsafeInteger(t *testing.T) {
	if _, err := MarshalCanonical(int64(1) << 60); err == nil {
		t.Errorf("expected error for integer outside safe range")
	}
}

func TestHexRoundTrip(t *testing.T) {
	b := []byte{0xde, 0xad, 0xbe, 0xef}
	hexStr := BytesToHex(b)
	got, err := HexToBytes(hexStr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, b) {
		t.Errorf("round-trip mismatch: %x vs %x", got, b)
	}

	// tolerate 0x prefix and uppercase
	got2, err := HexToBytes("0xDEADBEEF")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got2, b) {
		t.Errorf("0x/uppercase mismatch: %x vs %x", got2, b)
	}
}

func TestBase64RoundTrip(t *testing.T) {
	b := []byte("proof of intent")
	got, err := Base64ToBytes(BytesToBase64(b))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, b) {
		t.Errorf("base64 round-trip mismatch")
	}

	gotURL, err := Base64URLToBytes(BytesToBase64URL(b))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotURL, b) {
		t.Errorf("base64url round-trip mismatch")
	}
}
