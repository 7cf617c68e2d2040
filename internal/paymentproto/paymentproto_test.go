package paymentproto

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockLedger struct {
	confirmed map[string]bool
}

func (m *mockLedger) ConfirmPayment(key string, amount int64) (bool, error) {
	return m.confirmed[key], nil
}

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodPost, "http://gateway.example/v1/invoke", nil)
}

func TestVerifyRequest_AcceptsValidProof(t *testing.T) {
	r := newRequest(t)
	key, err := BuildIdempotencyKey(r.Method, r.URL.String(), nil)
	if err != nil {
		t.Fatalf("BuildIdempotencyKey: %v", err)
	}

	v := NewVerifier("", &mockLedger{confirmed: map[string]bool{key: true}}, 0)
	if err := v.VerifyRequest(r, key, 1_000_000); err != nil {
		t.Errorf("expected valid proof to pass, got %v", err)
	}
}

func TestVerifyRequest_RejectsMismatchedKey(t *testing.T) {
	r := newRequest(t)
	v := NewVerifier("", &mockLedger{confirmed: map[string]bool{"wrong-key": true}}, 0)
	if err := v.VerifyRequest(r, "wrong-key", 1_000_000); err == nil {
		t.Errorf("expected a key-mismatch error")
	}
}

func TestVerifyRequest_RejectsUnconfirmedPayment(t *testing.T) {
	r := newRequest(t)
	key, _ := BuildIdempotencyKey(r.Method, r.URL.String(), nil)
	v := NewVerifier("", &mockLedger{confirmed: map[string]bool{}}, 0)
	if err := v.VerifyRequest(r, key, 1_000_000); err == nil {
		t.Errorf("expected an unconfirmed-payment error")
	}
}

func TestVerifyRequest_RejectsReplay(t *testing.T) {
	r := newRequest(t)
	key, _ := BuildIdempotencyKey(r.Method, r.URL.String(), nil)
	v := NewVerifier("", &mockLedger{confirmed: map[string]bool{key: true}}, 0)

	if err := v.VerifyRequest(r, key, 1_000_000); err != nil {
		t.Fatalf("first verification should pass: %v", err)
	}
	if err := v.VerifyRequest(r, key, 1_000_000); err == nil {
		t.Errorf("expected the second use of the same proof to be rejected as a replay")
	}
}
