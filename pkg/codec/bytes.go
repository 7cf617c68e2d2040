package codec

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
)

// BytesToHex renders b as lowercase hex without a "0x" prefix.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// HexToBytes decodes hex-encoded text, tolerating an optional "0x"
// prefix and uppercase digits.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	b, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return nil, poierrors.Wrap(poierrors.KindInvalidHashFormat, "invalid hex", err)
	}
	return b, nil
}

// BytesToBase64 renders b as standard (padded) base64.
func BytesToBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Base64ToBytes decodes standard base64, with or without padding.
func Base64ToBytes(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, poierrors.Wrap(poierrors.KindInvalidInput, "invalid base64", err)
	}
	return b, nil
}

// BytesToBase64URL renders b as base64url without padding.
func BytesToBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Base64URLToBytes decodes base64url, accepting both padded and
// unpadded input.
func Base64URLToBytes(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, poierrors.Wrap(poierrors.KindInvalidInput, "invalid base64url", err)
	}
	return b, nil
}
