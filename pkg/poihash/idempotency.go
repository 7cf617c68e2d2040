package poihash

import (
	"net/url"
	"strings"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/codec"
)

// IdempotencyOptions controls IdempotencyKey generation.
type IdempotencyOptions struct {
	// Prefix is prepended to the key, followed by an underscore.
	// Defaults to "idem".
	Prefix string
	// ByteLength is the number of leading hash bytes hex-encoded into
	// the key. Defaults to 16, producing a 32-character hex suffix.
	//
	// spec.md §9 flags the source as ambiguous between "N bytes" and
	// "N hex characters" for this knob. This implementation fixes the
	// semantics as bytes (see SPEC_FULL.md §4): the default ByteLength
	// of 16 yields the `^idem_[a-f0-9]{32}$` form used in the seed
	// tests, since 16 bytes render as 32 hex characters.
	ByteLength int
	// IncludeTimestamp injects nowMillis into the hash input, forcing
	// otherwise-identical calls apart. Zero means "do not include".
	IncludeTimestamp int64
}

func (o IdempotencyOptions) prefix() string {
	if o.Prefix == "" {
		return "idem"
	}
	return o.Prefix
}

func (o IdempotencyOptions) byteLength() int {
	if o.ByteLength <= 0 {
		return 16
	}
	return o.ByteLength
}

// IdempotencyKey derives a stable retry key from an HTTP-shaped call:
// method is upper-cased, the URL has its default port and trailing
// slash stripped, and body is canonicalized before hashing
// "method|url|canonical(body)". Equal inputs (after normalization)
// always produce equal keys; see IdempotencyOptions.IncludeTimestamp
// to force distinct keys for otherwise-identical calls.
func IdempotencyKey(method, rawURL string, body interface{}, opts IdempotencyOptions) (string, error) {
	normMethod := strings.ToUpper(strings.TrimSpace(method))
	normURL, err := normalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	canonicalBody := []byte("null")
	if body != nil {
		canonicalBody, err = codec.MarshalCanonical(body)
		if err != nil {
			return "", err
		}
	}

	payload := normMethod + "|" + normURL + "|" + string(canonicalBody)
	if opts.IncludeTimestamp != 0 {
		payload += "|" + msToString(opts.IncludeTimestamp)
	}

	digest := SHA256([]byte(payload))
	n := opts.byteLength()
	if n > len(digest) {
		n = len(digest)
	}
	return opts.prefix() + "_" + codec.BytesToHex(digest[:n]), nil
}

func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if isDefaultPort(u.Scheme, u.Port()) {
		u.Host = u.Hostname()
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String(), nil
}

func isDefaultPort(scheme, port string) bool {
	switch scheme {
	case "http":
		return port == "80"
	case "https":
		return port == "443"
	default:
		return port == ""
	}
}

func msToString(ms int64) string {
	if ms == 0 {
		return "0"
	}
	neg := ms < 0
	if neg {
		ms = -ms
	}
	var buf [20]byte
	i := len(buf)
	for ms > 0 {
		i--
		buf[i] = byte('0' + ms%10)
		ms /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
