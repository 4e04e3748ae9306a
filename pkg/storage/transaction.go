// ABOUTME: Transaction support for atomic multi-key operations
// ABOUTME: Implements Begin/Commit/Abort with copy-on-write atomicity

package storage

import (
	"github.com/reconbug/treekv/pkg/btree"
)

// KVTX represents a key-value transaction
type KVTX struct {
	db   *KV
	meta []byte // Saved meta for rollback
}

// Begin starts a new transaction
func (db *KV) Begin() *KVTX {
	tx := &KVTX{
		db:   db,
		meta: db.saveMeta(),
	}
	return tx
}

// Commit commits the transaction atomically. flush controls whether the
// commit requests an fsync (see KV.Update).
func (tx *KVTX) Commit(flush bool) error {
	return tx.db.updateOrRevert(tx.meta, flush)
}

// Abort rolls back the transaction
func (tx *KVTX) Abort() {
	// Revert in-memory state
	tx.db.loadMeta(tx.meta)

	// Discard temporary pages
	tx.db.page.temp = tx.db.page.temp[:0]
	tx.db.page.updates = make(map[uint64][]byte)
}

// Get retrieves a value within the transaction
func (tx *KVTX) Get(key []byte) ([]byte, bool) {
	return tx.db.tree.Get(key)
}

// Set inserts or updates a key-value pair within the transaction
func (tx *KVTX) Set(key []byte, val []byte) {
	tx.db.tree.Insert(key, val)
}

// Del deletes a key within the transaction
func (tx *KVTX) Del(key []byte) bool {
	return tx.db.tree.Delete(key)
}

// Scan performs a range scan within the transaction
func (tx *KVTX) Scan(start []byte, callback func(key, val []byte) bool) {
	tx.db.tree.Scan(start, callback)
}

// NewIterator creates an iterator within the transaction
func (tx *KVTX) NewIterator() *btree.BIter {
	return tx.db.tree.NewIterator()
}

// Cursor is a bidirectional iterator over a transaction's tree. It wraps
// btree.BIter to expose the forward/reverse pair the keyspace range
// iterator needs (SeekGE/SeekLE to establish a starting bound, Next/Prev
// to walk in either direction).
type Cursor struct {
	iter *btree.BIter
}

// NewCursor returns a positioned-nowhere cursor for the transaction's tree.
func (tx *KVTX) NewCursor() *Cursor {
	return &Cursor{iter: tx.db.tree.NewIterator()}
}

// SeekGE positions the cursor at the first key >= the given key.
func (c *Cursor) SeekGE(key []byte) bool { return c.iter.SeekGE(key) }

// SeekLE positions the cursor at the last key <= the given key.
func (c *Cursor) SeekLE(key []byte) bool { return c.iter.SeekLE(key) }

// SeekLast positions the cursor at the last key in the tree.
func (c *Cursor) SeekLast() bool { return c.iter.SeekLast() }

// Next advances the cursor forward. Returns false past the last key.
func (c *Cursor) Next() bool { return c.iter.Next() }

// Prev moves the cursor backward. Returns false before the first key.
func (c *Cursor) Prev() bool { return c.iter.Prev() }

// Valid reports whether the cursor is positioned at a key.
func (c *Cursor) Valid() bool { return c.iter.Valid() }

// Key returns the key at the cursor's current position.
func (c *Cursor) Key() []byte { return c.iter.Key() }

// Val returns the value at the cursor's current position.
func (c *Cursor) Val() []byte { return c.iter.Val() }
