package chunkpacker

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/box"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poihash"
)

// KeyProvider seals and opens chunk plaintext for one packer session.
// All three encryption modes spec.md §4.3 names implement this same
// interface so the packer's Pack/Unpack loop never branches on mode.
type KeyProvider interface {
	// KeyID identifies the active key for ChunkRef.KeyID.
	KeyID() string
	// Seal encrypts plaintext, returning nonce‖ciphertext‖tag.
	Seal(plaintext []byte) ([]byte, error)
	// Open decrypts a Seal-produced frame.
	Open(sealed []byte) ([]byte, error)
}

// aeadKeyProvider implements Seal/Open with XChaCha20-Poly1305 over a
// fixed 32-byte session key, grounded on
// orbas1-Synnergy/synnergy-network/core/security.go's Encrypt/Decrypt.
type aeadKeyProvider struct {
	key   [chacha20poly1305.KeySize]byte
	keyID string
}

func (p *aeadKeyProvider) KeyID() string { return p.keyID }

func (p *aeadKeyProvider) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(p.key[:])
	if err != nil {
		return nil, poierrors.Wrap(poierrors.KindEncryptionFailed, "init aead", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, poierrors.Wrap(poierrors.KindEncryptionFailed, "generate nonce", err)
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ct...), nil
}

func (p *aeadKeyProvider) Open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(p.key[:])
	if err != nil {
		return nil, poierrors.Wrap(poierrors.KindDecryptionFailed, "init aead", err)
	}
	minLen := chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	if len(sealed) < minLen {
		return nil, poierrors.New(poierrors.KindDecryptionFailed, "ciphertext too short")
	}
	nonce, ct := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	out, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, poierrors.Wrap(poierrors.KindDecryptionFailed, "aead open", err)
	}
	return out, nil
}

// NewEphemeralKeyProvider generates a fresh random session key held
// only in memory for the packer's lifetime.
func NewEphemeralKeyProvider() (KeyProvider, error) {
	var key [chacha20poly1305.KeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, poierrors.Wrap(poierrors.KindEncryptionFailed, "generate session key", err)
	}
	id := sha256Short(key[:])
	return &aeadKeyProvider{key: key, keyID: "ephemeral:" + id}, nil
}

// SealedKeyProvider abstracts a TEE-style key custodian: the actual
// session key never leaves the adapter, which seals/opens on its
// behalf. A real TEE integration is out of repo scope (spec.md §1);
// core supplies an in-memory stand-in for tests.
type SealedKeyProvider interface {
	KeyProvider
}

// NewInMemorySealedKeyProvider is a no-TEE stand-in: functionally
// identical to the ephemeral provider, but labeled distinctly so
// callers can distinguish "should have used a real TEE" configurations
// in tests and logs.
func NewInMemorySealedKeyProvider() (SealedKeyProvider, error) {
	var key [chacha20poly1305.KeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, poierrors.Wrap(poierrors.KindEncryptionFailed, "generate session key", err)
	}
	id := sha256Short(key[:])
	return &aeadKeyProvider{key: key, keyID: "sealed:" + id}, nil
}

// WrappedKeyProvider seals chunks under one session key, and wraps
// that session key to a list of recipient X25519 public keys using
// NaCl sealed-box, so each recipient can independently recover it.
// Grounded on the wrapped-to-public-keys idiom in
// quantumlife-canon-core/internal/persist/sealed_secret_store.go.
type WrappedKeyProvider struct {
	*aeadKeyProvider
	WrappedTo map[string][]byte // recipient pubkey hex -> sealed session key
}

// NewWrappedKeyProvider generates a session key and seals it to each
// recipient's X25519 public key.
func NewWrappedKeyProvider(recipients [][32]byte) (*WrappedKeyProvider, error) {
	if len(recipients) == 0 {
		return nil, poierrors.New(poierrors.KindInvalidInput, "wrapped mode requires at least one recipient public key")
	}
	var key [chacha20poly1305.KeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, poierrors.Wrap(poierrors.KindEncryptionFailed, "generate session key", err)
	}

	wrapped := make(map[string][]byte, len(recipients))
	for _, pub := range recipients {
		sealed, err := box.SealAnonymous(nil, key[:], &pub, rand.Reader)
		if err != nil {
			return nil, poierrors.Wrap(poierrors.KindEncryptionFailed, "wrap session key", err)
		}
		wrapped[hex.EncodeToString(pub[:])] = sealed
	}

	id := sha256Short(key[:])
	return &WrappedKeyProvider{
		aeadKeyProvider: &aeadKeyProvider{key: key, keyID: "wrapped:" + id},
		WrappedTo:       wrapped,
	}, nil
}

// UnwrapSessionKey recovers the session key for a recipient given
// their keypair, for use by a recipient who was not the packer.
func UnwrapSessionKey(wrapped []byte, pub, priv *[32]byte) ([chacha20poly1305.KeySize]byte, error) {
	var key [chacha20poly1305.KeySize]byte
	out, ok := box.OpenAnonymous(nil, wrapped, pub, priv)
	if !ok {
		return key, poierrors.New(poierrors.KindDecryptionFailed, "failed to unwrap session key")
	}
	copy(key[:], out)
	return key, nil
}

// sha256Short derives a short, human-scannable key id from a session
// key. It is never used as key material itself.
func sha256Short(b []byte) string {
	digest := poihash.SHA256(b)
	return digest.Hex()[:8]
}
