// ABOUTME: View and TxView narrow a Tree/TxTree into one typed KeySpace
// ABOUTME: Every method here forwards to the Tree layer with native types

package keyspace

import (
	"fmt"

	"github.com/reconbug/treekv/pkg/storage"
)

// View is a typed handle onto one KeySpace living inside a shared Tree.
// Build it once with KeySpaceOf and reuse it; it holds no per-call state.
type View[K, V any] struct {
	tree *Tree
	ks   KeySpace[K, V]
}

// KeySpaceOf narrows tree into a typed View over ks. Multiple KeySpaces
// may be built over the same *Tree; their namespace tags (derived from
// ks.Name) keep their key layouts disjoint.
func KeySpaceOf[K, V any](tree *Tree, ks KeySpace[K, V]) View[K, V] {
	return View[K, V]{tree: tree, ks: ks}
}

// Tree returns the underlying physical tree handle.
func (v View[K, V]) Tree() *Tree { return v.tree }

// ScanRawPrefix calls fn with the raw (undecoded) key suffix and decoded
// value for every stored entry whose serialized key starts with
// rawPrefix. It is an escape hatch for composite-key KeySpaces that need
// to scan by a partial key (e.g. by the first N fields of a multi-field
// key), something a generic KeyCodec can't express on its own.
func (v View[K, V]) ScanRawPrefix(rawPrefix []byte, fn func(rawKeySuffix []byte, val V) bool) error {
	var decodeErr error
	v.tree.ScanPrefix(v.ks.Name, rawPrefix, func(rawKey, rawVal []byte) bool {
		val, err := v.ks.DeserializeValue(rawVal)
		if err != nil {
			decodeErr = fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, err)
			return false
		}
		return fn(rawKey, val)
	})
	return decodeErr
}

// Get fetches the value stored under key, if any.
func (v View[K, V]) Get(key K) (V, bool, error) {
	var zero V
	raw, ok := v.tree.Get(v.ks.Name, v.ks.SerializeKey(key))
	if !ok {
		return zero, false, nil
	}
	val, err := v.ks.DeserializeValue(raw)
	if err != nil {
		return zero, false, fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, err)
	}
	return val, true, nil
}

// Insert stores key/val, overwriting any existing value, and returns the
// value it overwrote (if any), per spec §4.1's insert result "previous v
// or None".
func (v View[K, V]) Insert(key K, val V) (V, bool, error) {
	var zero V
	rawPrev, existed, err := v.tree.Insert(v.ks.Name, v.ks.SerializeKey(key), v.ks.SerializeValue(val))
	if err != nil {
		return zero, false, err
	}
	if !existed {
		return zero, false, nil
	}
	prev, derr := v.ks.DeserializeValue(rawPrev)
	if derr != nil {
		return zero, false, fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, derr)
	}
	return prev, true, nil
}

// Remove deletes key, returning the value it removed (if any), per spec
// §4.1's remove result "previous v or None". Removing an absent key is a
// no-op. flush requests an engine flush only when the Tree's sync policy
// and flush are both true, per the remove(k, flush) op table entry.
func (v View[K, V]) Remove(key K, flush bool) (V, bool, error) {
	var zero V
	rawPrev, existed, err := v.tree.Remove(v.ks.Name, v.ks.SerializeKey(key), flush)
	if err != nil {
		return zero, false, err
	}
	if !existed {
		return zero, false, nil
	}
	prev, derr := v.ks.DeserializeValue(rawPrev)
	if derr != nil {
		return zero, false, fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, derr)
	}
	return prev, true, nil
}

// Last returns the highest key and its value, if the KeySpace is non-empty.
func (v View[K, V]) Last() (K, V, bool, error) {
	var zeroK K
	var zeroV V
	rawKey, rawVal, ok := v.tree.Last(v.ks.Name)
	if !ok {
		return zeroK, zeroV, false, nil
	}
	key, err := v.ks.DeserializeKey(rawKey)
	if err != nil {
		return zeroK, zeroV, false, fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, err)
	}
	val, err := v.ks.DeserializeValue(rawVal)
	if err != nil {
		return zeroK, zeroV, false, fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, err)
	}
	return key, val, true, nil
}

// Range iterates every key/value pair in r's window, calling fn until it
// returns false or the window is exhausted. Decode errors abort iteration
// and are returned.
func (v View[K, V]) Range(r RangeOptions[K], fn func(K, V) bool) error {
	br, err := v.ks.SerializeRange(r.Range)
	if err != nil {
		return fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, err)
	}

	var decodeErr error
	v.tree.RangeKVs(v.ks.Name, br, r.reverse, func(rawKey, rawVal []byte) bool {
		key, err := v.ks.DeserializeKey(rawKey)
		if err != nil {
			decodeErr = fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, err)
			return false
		}
		val, err := v.ks.DeserializeValue(rawVal)
		if err != nil {
			decodeErr = fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, err)
			return false
		}
		return fn(key, val)
	})
	return decodeErr
}

// RangeRemove deletes every key in r's window. flush requests an engine
// flush only when the Tree's sync policy and flush are both true, per the
// range_remove(R, flush) op table entry.
func (v View[K, V]) RangeRemove(r Range[K], flush bool) error {
	br, err := v.ks.SerializeRange(r)
	if err != nil {
		return fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, err)
	}
	return v.tree.RangeRemove(v.ks.Name, br, flush)
}

// Append stores a batch of key/value pairs atomically.
func (v View[K, V]) Append(kvs []struct {
	Key K
	Val V
}) error {
	raw := make([][2][]byte, len(kvs))
	for i, kv := range kvs {
		raw[i] = [2][]byte{v.ks.SerializeKey(kv.Key), v.ks.SerializeValue(kv.Val)}
	}
	return v.tree.Append(v.ks.Name, raw)
}

// AppendValues stores a batch of values, deriving each key via ks.ToKey.
// Panics if the KeySpace was not built with WithToKey — callers that need
// this must opt in explicitly, mirroring sled_tree.rs's ValueToKey trait
// bound on SledValueToKey.
func (v View[K, V]) AppendValues(vals []V) error {
	if v.ks.ToKey == nil {
		panic(fmt.Sprintf("keyspace %q: AppendValues requires WithToKey", v.ks.Name))
	}
	raw := make([][2][]byte, len(vals))
	for i, val := range vals {
		raw[i] = [2][]byte{v.ks.SerializeKey(v.ks.ToKey(val)), v.ks.SerializeValue(val)}
	}
	return v.tree.Append(v.ks.Name, raw)
}

// Export calls fn with every key/value pair in the KeySpace, in key order.
func (v View[K, V]) Export(fn func(K, V) bool) error {
	var decodeErr error
	v.tree.Export(v.ks.Name, func(rawKey, rawVal []byte) bool {
		key, err := v.ks.DeserializeKey(rawKey)
		if err != nil {
			decodeErr = fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, err)
			return false
		}
		val, err := v.ks.DeserializeValue(rawVal)
		if err != nil {
			decodeErr = fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, err)
			return false
		}
		return fn(key, val)
	})
	return decodeErr
}

// TxView is KeySpaceOf's transactional analogue: a typed handle onto one
// KeySpace, bound to an in-flight TxTree. Construct it inside a Txn
// closure with TxKeySpaceOf.
type TxView[K, V any] struct {
	txt *TxTree
	ks  KeySpace[K, V]
}

// TxKeySpaceOf narrows txt into a typed transactional view over ks.
func TxKeySpaceOf[K, V any](txt *TxTree, ks KeySpace[K, V]) TxView[K, V] {
	return TxView[K, V]{txt: txt, ks: ks}
}

// Raw returns the untyped TxTree escape hatch, mirroring sled_tree.rs's
// `impl Deref for AsTxnKeySpace`: generic helpers (like a sequence
// generator's IncrementAndFetch) that must work across any KeySpace reach
// through here instead of duplicating per-type plumbing.
func (v TxView[K, V]) Raw() *TxTree { return v.txt }

// Get fetches the value stored under key within the transaction.
func (v TxView[K, V]) Get(key K) (V, bool, error) {
	var zero V
	raw, ok := v.txt.Get(v.ks.Name, v.ks.SerializeKey(key))
	if !ok {
		return zero, false, nil
	}
	val, err := v.ks.DeserializeValue(raw)
	if err != nil {
		return zero, false, fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, err)
	}
	return val, true, nil
}

// Insert stores key/val within the transaction.
func (v TxView[K, V]) Insert(key K, val V) {
	v.txt.Insert(v.ks.Name, v.ks.SerializeKey(key), v.ks.SerializeValue(val))
}

// Remove deletes key within the transaction.
func (v TxView[K, V]) Remove(key K) {
	v.txt.Remove(v.ks.Name, v.ks.SerializeKey(key))
}

// UpdateAndFetch reads, transforms, and writes back the value under key,
// returning the new value. f receives the zero value and existed=false
// when key is absent.
func (v TxView[K, V]) UpdateAndFetch(key K, f func(old V, existed bool) (V, error)) (V, error) {
	var zero V
	rawKey := v.ks.SerializeKey(key)

	raw, err := v.txt.UpdateAndFetch(v.ks.Name, rawKey, func(oldRaw []byte, existed bool) ([]byte, error) {
		var old V
		if existed {
			decoded, derr := v.ks.DeserializeValue(oldRaw)
			if derr != nil {
				return nil, fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, derr)
			}
			old = decoded
		}
		next, ferr := f(old, existed)
		if ferr != nil {
			return nil, ferr
		}
		return v.ks.SerializeValue(next), nil
	})
	if err != nil {
		return zero, err
	}

	next, err := v.ks.DeserializeValue(raw)
	if err != nil {
		return zero, fmt.Errorf("%w: keyspace %q: %v", storage.ErrSerialization, v.ks.Name, err)
	}
	return next, nil
}
