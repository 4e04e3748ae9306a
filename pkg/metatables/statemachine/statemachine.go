// ABOUTME: KVTable is the generic apply target for replicated log entries
// ABOUTME: opaque string keys, opaque byte values, reshaped from the

// Package statemachine implements the generic "apply committed Raft log
// entries onto a state machine" target: a flat KeySpace[string, []byte],
// grounded on the teacher's pkg/document/pkg/metadata idea of a flexible
// attribute store, reshaped down to its essential shape for this layer.
package statemachine

import (
	"github.com/reconbug/treekv/pkg/keyspace"
)

// TableName is the physical-tree namespace key for the applied state.
const TableName = "state_machine"

// KVTable is a flat opaque key/value store, the target a Raft state
// machine applies committed log entries onto.
type KVTable struct {
	tree *keyspace.Tree
	ks   keyspace.KeySpace[string, []byte]
}

// Open binds a KVTable to tree.
func Open(tree *keyspace.Tree) *KVTable {
	return &KVTable{
		tree: tree,
		ks:   keyspace.NewKeySpace[string, []byte](TableName, keyspace.StringKeyCodec(), keyspace.BytesValueCodec()),
	}
}

func (k *KVTable) view() keyspace.View[string, []byte] {
	return keyspace.KeySpaceOf(k.tree, k.ks)
}

// Get fetches the value stored under key.
func (k *KVTable) Get(key string) ([]byte, bool, error) {
	return k.view().Get(key)
}

// Apply applies one committed log command to the state machine: a
// command with a nil value removes key, otherwise it overwrites it. This
// mirrors a Raft FSM's Apply(logEntry) contract.
func (k *KVTable) Apply(key string, value []byte) error {
	if value == nil {
		_, _, err := k.view().Remove(key, true)
		return err
	}
	_, _, err := k.view().Insert(key, value)
	return err
}

// Export streams every key/value pair currently applied, in key order,
// used when a follower builds an install-snapshot payload.
func (k *KVTable) Export(fn func(key string, value []byte) bool) error {
	return k.view().Export(fn)
}
