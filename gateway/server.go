// Copyright 2025 Flux Point Studios
//
// Package gateway is a thin reverse-proxy server metering paid API
// calls through internal/paymentproto before forwarding them upstream,
// and exposing a small set of PoI verification endpoints. It is glue
// outside the SDK core (spec.md §1/§5) — its job is to exercise
// pkg/trace and pkg/anchor over real HTTP, not to
// add functionality the core doesn't already own.
//
// Grounded on the wider pack's use of go-chi/chi/v5 as an HTTP router
// (the teacher itself has no HTTP router of its own — see
// DESIGN.md/SPEC_FULL.md §3 for why chi is borrowed from
// orbas1-Synnergy/synnergy-network rather than left unused).
package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Flux-Point-Studios/orynq-sdk/internal/paymentproto"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/anchor"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/trace"
)

// Config controls gateway construction.
type Config struct {
	// UpstreamURL is the backend the gateway proxies paid requests to.
	UpstreamURL string
	// PaymentRequired gates whether VerifyRequest is enforced at all
	// (disabled by default for local development).
	PaymentRequired bool
	// Logger defaults to a component-prefixed stdlib logger when nil,
	// matching the teacher's log.New(..., "[Component] ", ...) convention.
	Logger *log.Logger
}

func (c Config) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.New(log.Writer(), "[Gateway] ", log.LstdFlags)
}

// Server is the gateway's HTTP handler.
type Server struct {
	router   chi.Router
	logger   *log.Logger
	verifier *paymentproto.Verifier
	required bool
	proxy    *httputil.ReverseProxy
}

// New builds a Server. ledger backs payment-proof confirmation; pass
// a no-op ledger that always confirms if PaymentRequired is false.
func New(cfg Config, ledger paymentproto.PaymentLedger) (*Server, error) {
	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, err
	}

	s := &Server{
		logger:   cfg.logger(),
		verifier: paymentproto.NewVerifier("", ledger, 24*time.Hour),
		required: cfg.PaymentRequired,
		proxy:    httputil.NewSingleHostReverseProxy(upstream),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequest)

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/bundles/verify", s.handleVerifyBundle)
	r.Post("/v1/anchors/parse", s.handleParseAnchor)
	r.NotFound(s.handleProxy)

	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleVerifyBundle(w http.ResponseWriter, r *http.Request) {
	var bundle trace.Bundle
	if err := json.NewDecoder(r.Body).Decode(&bundle); err != nil {
		http.Error(w, "invalid bundle JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	result := trace.VerifyBundle(&bundle)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleParseAnchor(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid envelope JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	result := anchor.ParseEnvelope(raw)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	if s.required {
		claimedKey := r.Header.Get(s.verifier.HeaderName())
		if err := s.verifier.VerifyRequest(r, claimedKey, 0); err != nil {
			http.Error(w, "payment verification failed: "+err.Error(), http.StatusPaymentRequired)
			return
		}
	}
	s.proxy.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
