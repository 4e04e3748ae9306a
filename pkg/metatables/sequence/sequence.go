// ABOUTME: SequenceTable hands out monotonically increasing counters
// ABOUTME: keyed by name, the most direct use of TxTree.UpdateAndFetch

// Package sequence implements a named counter table on top of keyspace,
// the Go shape of sled_tree.rs's txn_incr_seq doc-comment example.
package sequence

import (
	"github.com/reconbug/treekv/pkg/keyspace"
)

// TableName is the default physical-tree namespace key for sequences.
const TableName = "sequences"

// SequenceTable hands out names -> uint64 counters. Each name starts
// implicitly at 0; IncrementAndFetch on an unseen name returns 1.
type SequenceTable struct {
	tree *keyspace.Tree
	ks   keyspace.KeySpace[string, uint64]
}

// Open binds a SequenceTable to tree.
func Open(tree *keyspace.Tree) *SequenceTable {
	return &SequenceTable{
		tree: tree,
		ks:   keyspace.NewKeySpace[string, uint64](TableName, keyspace.StringKeyCodec(), keyspace.Uint64ValueCodec()),
	}
}

// Current returns name's current value, or 0 if it has never been
// incremented.
func (s *SequenceTable) Current(name string) (uint64, error) {
	view := keyspace.KeySpaceOf(s.tree, s.ks)
	val, ok, err := view.Get(name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return val, nil
}

// IncrementAndFetch atomically increments name's counter and returns the
// new value. Concurrent callers racing on the same name never lose an
// update: the whole read-modify-write happens inside one Txn closure.
func (s *SequenceTable) IncrementAndFetch(name string) (uint64, error) {
	return keyspace.Txn(s.tree, true, func(txt *keyspace.TxTree) (uint64, error) {
		v := keyspace.TxKeySpaceOf(txt, s.ks)
		return v.UpdateAndFetch(name, func(old uint64, existed bool) (uint64, error) {
			if !existed {
				return 1, nil
			}
			return old + 1, nil
		})
	})
}

// Reset sets name's counter to an explicit value, bypassing the
// read-modify-write path. Used to seed a sequence after a snapshot
// restore.
func (s *SequenceTable) Reset(name string, value uint64) error {
	view := keyspace.KeySpaceOf(s.tree, s.ks)
	_, _, err := view.Insert(name, value)
	return err
}
