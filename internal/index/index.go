// Package index maps clause shapes to the facts that can satisfy them.
//
// A fact is filed under up to four keys derived from its relation and the
// values of its first two argument positions. A rule clause computes the one
// key that combines its relation with whichever of those positions it pins
// to a literal, so lookup never scans facts of the wrong shape.
package index

import (
	"hash/fnv"

	"github.com/roach88/luma/internal/ir"
)

// Key is a derived index key.
type Key uint64

const (
	arg0Multiplier = 3
	arg1Multiplier = 5
)

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// FactKeys returns every key a fact clause is filed under: the relation key
// always, then one key per literal among the first two arguments, then the
// key combining both when both are literal.
//
// Arithmetic wraps; collisions only widen a candidate list, never narrow it,
// because matching re-checks every term.
func FactKeys(c ir.Clause) []Key {
	base := hashString(c.Relation())
	keys := []Key{Key(base)}

	args := c.Args()
	var h0, h1 uint64
	lit0 := len(args) > 0 && args[0].IsLiteral()
	lit1 := len(args) > 1 && args[1].IsLiteral()
	if lit0 {
		h0 = hashString(args[0].Value)
		keys = append(keys, Key(base+h0*arg0Multiplier))
	}
	if lit1 {
		h1 = hashString(args[1].Value)
		keys = append(keys, Key(base+h1*arg1Multiplier))
	}
	if lit0 && lit1 {
		keys = append(keys, Key(base+h0*arg0Multiplier+h1*arg1Multiplier))
	}
	return keys
}

// RelationKey returns the key every fact of the given relation is filed
// under, whatever its argument values.
func RelationKey(relation string) Key {
	return Key(hashString(relation))
}

// QueryKey returns the single key a rule clause looks up.
func QueryKey(c ir.Clause) Key {
	key := hashString(c.Relation())
	args := c.Args()
	if len(args) > 0 && args[0].IsLiteral() {
		key += hashString(args[0].Value) * arg0Multiplier
	}
	if len(args) > 1 && args[1].IsLiteral() {
		key += hashString(args[1].Value) * arg1Multiplier
	}
	return Key(key)
}

// Index is a multi-key map from Key to facts in insertion order.
//
// Index is not safe for concurrent use; the store that owns it serializes
// access.
type Index struct {
	buckets map[Key][]*ir.Statement
	facts   int
}

// New creates an empty index.
func New() *Index {
	return &Index{buckets: make(map[Key][]*ir.Statement)}
}

// Add files fact under every key in keys.
func (ix *Index) Add(keys []Key, fact *ir.Statement) {
	for _, k := range keys {
		ix.buckets[k] = append(ix.buckets[k], fact)
	}
	ix.facts++
}

// Insert files fact under its derived FactKeys.
func (ix *Index) Insert(fact *ir.Statement) {
	ix.Add(FactKeys(fact.Clause()), fact)
}

// Lookup returns the facts filed under key, in insertion order. The returned
// slice must not be modified.
func (ix *Index) Lookup(key Key) []*ir.Statement {
	return ix.buckets[key]
}

// Len returns the number of facts added since the last Reset.
func (ix *Index) Len() int {
	return ix.facts
}

// Keys returns the number of distinct keys in use.
func (ix *Index) Keys() int {
	return len(ix.buckets)
}

// Reset empties the index.
func (ix *Index) Reset() {
	clear(ix.buckets)
	ix.facts = 0
}
