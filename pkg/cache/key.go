// Package cache provides the process-wide registry of compiled-expression
// pools: named LRU caches keyed by a digest of the expression text and its
// static compilation inputs.
//
// Features:
//   - Deterministic cache keys: equal compilation inputs always digest to
//     the same key, regardless of namespace map iteration order
//   - Named caches with independent LRU capacity
//   - Validity stamps: a stale entry is replaced, and its pool destroyed,
//     the moment a caller presents a newer stamp
//   - Prometheus counters for hits, misses and evictions
package cache

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Key identifies one pool slot: a digest over every input that affects
// compilation.
type Key [32]byte

// KeyInputs are the compilation inputs folded into a cache key.
//
// The base URI is deliberately not part of the key: expressions that
// resolve relative URIs differently under different base URIs would
// collide, so callers relying on per-document base URIs should use
// distinct cache names instead.
type KeyInputs struct {
	// Text is the expression source.
	Text string
	// Namespaces maps declared prefixes to URIs.
	Namespaces map[string]string
	// LibraryID is the identity token of the attached function library.
	LibraryID uint64
	// Template marks value-template compilation, which parses the same
	// text differently than plain expression compilation.
	Template bool
}

// BuildKey digests the compilation inputs into a cache key. Namespace
// bindings are folded in prefix-sorted order so map iteration order never
// affects the key.
func BuildKey(in KeyInputs) Key {
	var b strings.Builder
	b.WriteString(in.Text)
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(in.LibraryID, 10))

	prefixes := make([]string, 0, len(in.Namespaces))
	for prefix := range in.Namespaces {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		b.WriteByte('|')
		b.WriteString(prefix)
		b.WriteByte('=')
		b.WriteString(in.Namespaces[prefix])
	}

	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(in.Template))

	return blake2b.Sum256([]byte(b.String()))
}
