// Copyright 2025 Flux Point Studios
//
// Package signer defines the minimal wallet/signer adapter contract
// spec.md §1 names as an external collaborator, plus one dev-only
// Ed25519 implementation for local testing and the CLI demo.
//
// Grounded on the teacher's pkg/crypto/bls.KeyManager load-or-generate
// pattern, generalized from BLS validator keys to a single Ed25519
// signer identity.
package signer

import "context"

// Signer signs arbitrary payloads (typically a bundle's rootHash or
// an anchor entry's self-hash) and exposes its public key for
// verification. Real implementations (hardware wallet, remote KMS,
// browser wallet extension) live outside this repo; this package only
// defines the contract plus a development stand-in.
type Signer interface {
	Sign(ctx context.Context, payload []byte) (signature []byte, err error)
	PublicKey() []byte
}
