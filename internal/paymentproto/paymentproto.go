// Copyright 2025 Flux Point Studios
//
// Package paymentproto implements a minimal per-request payment-proof
// header scheme for "pay-per-call" APIs, named in spec.md §1 as an
// external HTTP payment protocol the SDK sits alongside. A caller
// attaches a proof header to each request; gateway/ verifies it before
// forwarding. This is thin glue outside the core's testable surface —
// it exists to exercise pkg/poihash.IdempotencyKey end-to-end over a
// real HTTP shape, not to implement a payment settlement system.
package paymentproto

import (
	"net/http"
	"sync"
	"time"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poihash"
)

// DefaultHeaderName is the HTTP header carrying the payment proof.
const DefaultHeaderName = "X-PoI-Payment-Proof"

// Proof is the decoded content of a payment-proof header: an
// idempotency key derived from the request, plus the amount the
// caller claims to have paid.
type Proof struct {
	IdempotencyKey string
	AmountLovelace int64
}

// Verifier checks payment proofs attached to incoming requests and
// deduplicates retried attempts by idempotency key, so a client
// retrying a timed-out request is not charged twice.
type Verifier struct {
	mu         sync.Mutex
	headerName string
	seen       map[string]time.Time
	ledger     PaymentLedger
	ttl        time.Duration
}

// PaymentLedger is the minimal contract a real payment backend (an
// external service, not part of this repo) must satisfy: given a
// claimed idempotency key and amount, confirm whether that payment
// actually cleared.
type PaymentLedger interface {
	ConfirmPayment(idempotencyKey string, amountLovelace int64) (bool, error)
}

// NewVerifier builds a Verifier backed by ledger. headerName defaults
// to DefaultHeaderName if empty. ttl bounds how long a seen
// idempotency key is remembered for dedup purposes (0 disables dedup
// expiry — entries are kept indefinitely, fine for short-lived
// gateway processes).
func NewVerifier(headerName string, ledger PaymentLedger, ttl time.Duration) *Verifier {
	if headerName == "" {
		headerName = DefaultHeaderName
	}
	return &Verifier{
		headerName: headerName,
		seen:       make(map[string]time.Time),
		ledger:     ledger,
		ttl:        ttl,
	}
}

// BuildIdempotencyKey derives the idempotency key a client should
// attach for a given outbound request, so the gateway and the client
// compute the identical key independently.
func BuildIdempotencyKey(method, url string, body interface{}) (string, error) {
	return poihash.IdempotencyKey(method, url, body, poihash.IdempotencyOptions{Prefix: "pay"})
}

// VerifyRequest checks r's payment-proof header: recomputes the
// expected idempotency key for r, confirms the claimed key matches,
// confirms the ledger has actually recorded that payment, and rejects
// a duplicate (already-seen) key to prevent replay.
func (v *Verifier) VerifyRequest(r *http.Request, claimedKey string, amountLovelace int64) error {
	expectedKey, err := BuildIdempotencyKey(r.Method, r.URL.String(), nil)
	if err != nil {
		return poierrors.Wrap(poierrors.KindInvalidInput, "derive expected idempotency key", err)
	}
	if claimedKey != expectedKey {
		return poierrors.New(poierrors.KindUnauthorized, "payment proof key does not match this request")
	}

	v.mu.Lock()
	seenAt, duplicate := v.seen[claimedKey]
	if duplicate && v.ttl > 0 && time.Since(seenAt) > v.ttl {
		delete(v.seen, claimedKey)
		duplicate = false
	}
	v.mu.Unlock()
	if duplicate {
		return poierrors.New(poierrors.KindUnauthorized, "payment proof already used")
	}

	ok, err := v.ledger.ConfirmPayment(claimedKey, amountLovelace)
	if err != nil {
		return poierrors.Wrap(poierrors.KindSubmissionFailed, "confirm payment", err)
	}
	if !ok {
		return poierrors.New(poierrors.KindUnauthorized, "payment not confirmed")
	}

	v.mu.Lock()
	v.seen[claimedKey] = time.Now()
	v.mu.Unlock()
	return nil
}

// HeaderName returns the header this verifier reads payment proofs from.
func (v *Verifier) HeaderName() string { return v.headerName }
