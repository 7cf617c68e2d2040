package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/codec"
)

// Ed25519Signer is a dev-only Signer backed by a key file containing
// the hex-encoded private key, created on first use if it does not
// exist. It is not a production key-custody solution: the private key
// is held in plaintext on disk, which is acceptable only for local
// demos per spec.md §1's "key management" non-goal.
type Ed25519Signer struct {
	keyPath    string
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewEd25519Signer loads an existing key at keyPath, or generates and
// persists a new one if keyPath is non-empty and the file does not
// exist. If keyPath is empty, a key is generated in memory only.
func NewEd25519Signer(keyPath string) (*Ed25519Signer, error) {
	s := &Ed25519Signer{keyPath: keyPath}

	if keyPath != "" {
		if _, err := os.Stat(keyPath); err == nil {
			return s, s.loadKey()
		}
	}
	return s, s.generateAndSaveKey()
}

func (s *Ed25519Signer) loadKey() error {
	data, err := os.ReadFile(s.keyPath)
	if err != nil {
		return fmt.Errorf("read ed25519 key file: %w", err)
	}
	keyBytes, err := codec.HexToBytes(string(data))
	if err != nil {
		return fmt.Errorf("decode ed25519 key hex: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return fmt.Errorf("ed25519 key file has %d bytes, want %d", len(keyBytes), ed25519.PrivateKeySize)
	}
	s.privateKey = ed25519.PrivateKey(keyBytes)
	s.publicKey = s.privateKey.Public().(ed25519.PublicKey)
	return nil
}

func (s *Ed25519Signer) generateAndSaveKey() error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate ed25519 key pair: %w", err)
	}
	s.privateKey = priv
	s.publicKey = pub

	if s.keyPath == "" {
		return nil
	}
	return os.WriteFile(s.keyPath, []byte(codec.BytesToHex(priv)), 0o600)
}

// Sign signs payload with the signer's private key. ctx is accepted
// for interface symmetry with remote signer implementations; the
// local Ed25519 operation never blocks on it.
func (s *Ed25519Signer) Sign(_ context.Context, payload []byte) ([]byte, error) {
	return ed25519.Sign(s.privateKey, payload), nil
}

// PublicKey returns the signer's Ed25519 public key.
func (s *Ed25519Signer) PublicKey() []byte {
	return append([]byte{}, s.publicKey...)
}

// Verify reports whether signature is a valid Ed25519 signature over
// payload under publicKey.
func Verify(publicKey, payload, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), payload, signature)
}
