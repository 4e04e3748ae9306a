// ABOUTME: KeySpace descriptors bind typed keys/values to byte codecs
// ABOUTME: A KeySpace carries no storage state; it is reused across views

// Package keyspace implements a typed key-space layer over the engine in
// pkg/storage: KeySpace descriptors, Tree/TxTree handles, typed views, and
// the Txn transaction driver described in sled_tree.rs's SledTree /
// AsKeySpace / TransactionSledTree / AsTxnKeySpace.
package keyspace

import "github.com/reconbug/treekv/pkg/storage"

// KeyCodec serializes a typed key into an order-preserving byte string and
// reverses the operation. SerializeKey must preserve K's logical ordering
// in the byte-lexicographic order of its output, or every range and
// prefix-scan operation on this KeySpace silently misbehaves.
type KeyCodec[K any] struct {
	SerializeKey   func(K) []byte
	DeserializeKey func([]byte) (K, error)
}

// ValueCodec serializes and deserializes the stored value.
type ValueCodec[V any] struct {
	SerializeValue   func(V) []byte
	DeserializeValue func([]byte) (V, error)
}

// RangeCodec turns a typed Range[K] into the byte-level interval the tree
// scans. It is derived mechanically from KeyCodec by DefaultRangeCodec,
// but a KeySpace may supply its own when a tighter byte-level adjustment
// is possible.
type RangeCodec[K any] struct {
	SerializeRange func(Range[K]) (storage.ByteRange, error)
}

// KeySpace describes how one logical schema is laid out inside a shared
// physical tree: how its keys and values serialize, and how range bounds
// over its keys translate to byte bounds. It holds no storage handle —
// the same KeySpace value is reused across every View built on top of it,
// mirroring the Rust SledKeySpace trait's associated functions without
// Go's lack of associated-type traits (see DESIGN.md).
type KeySpace[K, V any] struct {
	Name string
	KeyCodec[K]
	ValueCodec[V]
	RangeCodec[K]

	// ToKey extracts a key from a value, letting AppendValues compute the
	// storage key from the value alone. Optional; nil if unused.
	ToKey func(V) K
}

// NewKeySpace builds a KeySpace with a range codec mechanically derived
// from the key codec via DefaultRangeCodec.
func NewKeySpace[K, V any](name string, kc KeyCodec[K], vc ValueCodec[V]) KeySpace[K, V] {
	return KeySpace[K, V]{
		Name:       name,
		KeyCodec:   kc,
		ValueCodec: vc,
		RangeCodec: DefaultRangeCodec(kc),
	}
}

// WithToKey returns a copy of ks with ToKey set, enabling AppendValues.
func (ks KeySpace[K, V]) WithToKey(toKey func(V) K) KeySpace[K, V] {
	ks.ToKey = toKey
	return ks
}
