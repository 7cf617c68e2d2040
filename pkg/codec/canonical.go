// Copyright 2025 Flux Point Studios
//
// Package codec implements deterministic byte serialization of
// structured values (RFC 8785 JSON Canonicalization Scheme, with the
// concrete rules spelled out in the PoI SDK specification) plus the
// hex/base64 codecs the rest of the SDK hashes and transports with.
//
// Canonicalization is grounded on the teacher repo's
// commitment.CanonicalizeJSON (recursive key-sort over a parsed JSON
// value), generalized here to walk maps, slices, pointers and scalars
// directly via reflection (structs still round-trip through
// encoding/json so their tags apply), and to add the precision, depth
// and cycle-detection guarantees the spec requires.
package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"unicode/utf16"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
)

// DefaultMaxDepth bounds recursion when the caller does not supply one.
const DefaultMaxDepth = 64

// Options controls canonicalization behavior.
type Options struct {
	// MaxDepth bounds array/object nesting. Zero means DefaultMaxDepth.
	MaxDepth int
	// DropNulls removes map keys whose value is null. DefaultOptions sets
	// it to true, matching spec.md §4.1 ("null in a mapping is dropped by
	// default"); the zero Options value keeps nulls.
	DropNulls bool
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// DefaultOptions returns the spec's default canonicalization policy:
// nulls dropped from mappings, depth bounded at DefaultMaxDepth.
func DefaultOptions() Options {
	return Options{MaxDepth: DefaultMaxDepth, DropNulls: true}
}

type walker struct {
	opts    Options
	visited map[uintptr]bool
}

// Canonical serializes v to RFC 8785-style canonical bytes: object keys
// sorted by UTF-16 code units, no insignificant whitespace, numbers in
// shortest round-trip form with -0 normalized to 0, arrays preserving
// order, nil map values dropped per Options.DropNulls, nil slice
// elements become JSON null.
func Canonical(v interface{}, opts Options) ([]byte, error) {
	w := &walker{opts: opts, visited: make(map[uintptr]bool)}
	node, err := w.normalize(reflect.ValueOf(v), 0)
	if err != nil {
		return nil, err
	}
	var buf []byte
	buf, err = encodeNode(buf, node)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// MarshalCanonical is a convenience wrapper using DefaultOptions.
func MarshalCanonical(v interface{}) ([]byte, error) {
	return Canonical(v, DefaultOptions())
}

// node is the canonicalized intermediate representation: one of
// nil, bool, jsonNumber, string, []node, or *object (ordered, sorted).
type jsonNumber string

type object struct {
	keys   []string
	values map[string]interface{}
}

// normalize walks an arbitrary Go value (structs included, via a JSON
// round-trip at the leaf) into the canonical node shape, detecting
// cycles along the current DFS path and enforcing the depth bound.
func (w *walker) normalize(rv reflect.Value, depth int) (interface{}, error) {
	if depth > w.opts.maxDepth() {
		return nil, poierrors.New(poierrors.KindDepthExceeded, fmt.Sprintf("exceeded max depth %d", w.opts.maxDepth()))
	}

	if !rv.IsValid() {
		return nil, nil
	}

	// Unwrap interfaces.
	for rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		addr := rv.Pointer()
		if w.visited[addr] {
			return nil, poierrors.New(poierrors.KindCircularReference, "circular reference detected")
		}
		w.visited[addr] = true
		defer delete(w.visited, addr)
		return w.normalize(rv.Elem(), depth+1)

	case reflect.Bool:
		return rv.Bool(), nil

	case reflect.String:
		return rv.String(), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n > maxSafeInt || n < -maxSafeInt {
			return nil, poierrors.New(poierrors.KindInvalidInput, fmt.Sprintf("integer %d outside safe JSON number range", n))
		}
		return jsonNumber(strconv.FormatInt(n, 10)), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := rv.Uint()
		if n > uint64(maxSafeInt) {
			return nil, poierrors.New(poierrors.KindInvalidInput, fmt.Sprintf("integer %d outside safe JSON number range", n))
		}
		return jsonNumber(strconv.FormatUint(n, 10)), nil

	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return normalizeFloat(f)

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		if rv.Kind() == reflect.Slice {
			addr := rv.Pointer()
			if rv.Len() > 0 {
				if w.visited[addr] {
					return nil, poierrors.New(poierrors.KindCircularReference, "circular reference detected")
				}
				w.visited[addr] = true
				defer delete(w.visited, addr)
			}
		}
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := w.normalize(rv.Index(i), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil

	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		addr := rv.Pointer()
		if w.visited[addr] {
			return nil, poierrors.New(poierrors.KindCircularReference, "circular reference detected")
		}
		w.visited[addr] = true
		defer delete(w.visited, addr)

		if rv.Type().Key().Kind() != reflect.String {
			return nil, poierrors.New(poierrors.KindUnsupportedType, "map keys must be strings")
		}
		obj := &object{values: make(map[string]interface{})}
		for _, key := range rv.MapKeys() {
			val, err := w.normalize(rv.MapIndex(key), depth+1)
			if err != nil {
				return nil, err
			}
			if val == nil && w.opts.DropNulls {
				continue
			}
			k := key.String()
			if _, exists := obj.values[k]; !exists {
				obj.keys = append(obj.keys, k)
			}
			obj.values[k] = val
		}
		sort.Slice(obj.keys, func(i, j int) bool {
			a, b := utf16.Encode([]rune(obj.keys[i])), utf16.Encode([]rune(obj.keys[j]))
			for k := 0; k < len(a) && k < len(b); k++ {
				if a[k] != b[k] {
					return a[k] < b[k]
				}
			}
			return len(a) < len(b)
		})
		return obj, nil

	case reflect.Struct:
		// Route through encoding/json so struct tags, omitempty, and
		// embedding behave the way callers expect, then canonicalize
		// the resulting generic value.
		raw, err := json.Marshal(rv.Interface())
		if err != nil {
			return nil, poierrors.Wrap(poierrors.KindCanonicalizationFailed, "marshal struct", err)
		}
		var generic interface{}
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, poierrors.Wrap(poierrors.KindCanonicalizationFailed, "unmarshal struct", err)
		}
		return w.normalize(reflect.ValueOf(generic), depth+1)

	case reflect.Invalid:
		return nil, nil

	default:
		return nil, poierrors.New(poierrors.KindUnsupportedType, fmt.Sprintf("unsupported kind %s", rv.Kind()))
	}
}

// maxSafeInt mirrors JS's Number.MAX_SAFE_INTEGER (2^53 - 1): the
// largest integer value representable exactly as an IEEE-754 double,
// which is what RFC 8785's "shortest round-trip" number form assumes.
const maxSafeInt = 1<<53 - 1

func normalizeFloat(f float64) (jsonNumber, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", poierrors.New(poierrors.KindInvalidInput, "non-finite number")
	}
	if f == 0 {
		f = 0 // normalize -0 to 0
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return jsonNumber(strconv.FormatFloat(f, 'f', -1, 64)), nil
	}
	return jsonNumber(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func encodeNode(buf []byte, node interface{}) ([]byte, error) {
	switch n := node.(type) {
	case nil:
		return append(buf, "null"...), nil
	case bool:
		if n {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case jsonNumber:
		return append(buf, string(n)...), nil
	case string:
		return appendQuotedString(buf, n), nil
	case []interface{}:
		buf = append(buf, '[')
		for i, elem := range n {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = encodeNode(buf, elem)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	case *object:
		buf = append(buf, '{')
		for i, k := range n.keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendQuotedString(buf, k)
			buf = append(buf, ':')
			var err error
			buf, err = encodeNode(buf, n.values[k])
			if err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil
	default:
		return nil, poierrors.New(poierrors.KindUnsupportedType, fmt.Sprintf("unsupported node type %T", node))
	}
}

func appendQuotedString(buf []byte, s string) []byte {
	quoted, _ := json.Marshal(s)
	return append(buf, quoted...)
}
