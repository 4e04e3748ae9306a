// ABOUTME: SnapshotMeta records where the last durable snapshot left off
// ABOUTME: reshaped from the teacher's WAL checkpoint marker concept

// Package snapshotindex stores the single well-known marker a state
// machine reads on startup to know where to resume log replay, reshaped
// from the teacher's pkg/wal/checkpoint.go checkpoint-marker concept into
// a keyspace entry instead of a WAL record.
package snapshotindex

import (
	"encoding/binary"
	"fmt"

	"github.com/reconbug/treekv/pkg/keyspace"
)

// TableName is the physical-tree namespace key for the snapshot marker.
const TableName = "snapshot_index"

// markerKey is the single key this table ever uses; there is only ever
// one "latest snapshot" marker.
const markerKey = "latest"

// SnapshotMeta describes the most recent snapshot taken of the state
// machine: the last log index and term it covers, and where its payload
// lives on disk.
type SnapshotMeta struct {
	LastIncludedIndex uint64
	LastIncludedTerm  uint64
	Path              string
}

func encodeSnapshotMeta(m SnapshotMeta) []byte {
	buf := make([]byte, 16+len(m.Path))
	binary.BigEndian.PutUint64(buf[0:8], m.LastIncludedIndex)
	binary.BigEndian.PutUint64(buf[8:16], m.LastIncludedTerm)
	copy(buf[16:], m.Path)
	return buf
}

func decodeSnapshotMeta(b []byte) (SnapshotMeta, error) {
	if len(b) < 16 {
		return SnapshotMeta{}, fmt.Errorf("snapshotindex: marker too short: %d bytes", len(b))
	}
	return SnapshotMeta{
		LastIncludedIndex: binary.BigEndian.Uint64(b[0:8]),
		LastIncludedTerm:  binary.BigEndian.Uint64(b[8:16]),
		Path:              string(b[16:]),
	}, nil
}

// Index is the keyspace-backed snapshot marker.
type Index struct {
	tree *keyspace.Tree
	ks   keyspace.KeySpace[string, SnapshotMeta]
}

// Open binds an Index to tree.
func Open(tree *keyspace.Tree) *Index {
	return &Index{
		tree: tree,
		ks: keyspace.NewKeySpace[string, SnapshotMeta](TableName, keyspace.StringKeyCodec(), keyspace.ValueCodec[SnapshotMeta]{
			SerializeValue:   encodeSnapshotMeta,
			DeserializeValue: decodeSnapshotMeta,
		}),
	}
}

// Latest returns the current snapshot marker, if a snapshot has ever been
// recorded.
func (i *Index) Latest() (SnapshotMeta, bool, error) {
	return keyspace.KeySpaceOf(i.tree, i.ks).Get(markerKey)
}

// Record overwrites the snapshot marker. Called after a snapshot's
// payload has been durably written to meta.Path.
func (i *Index) Record(meta SnapshotMeta) error {
	_, _, err := keyspace.KeySpaceOf(i.tree, i.ks).Insert(markerKey, meta)
	return err
}
