// ABOUTME: LogKeySpace stores a replicated log as keyspace entries
// ABOUTME: keyed by log index, replacing a bespoke append-only WAL file

// Package raftlog reshapes the teacher's pkg/wal append-only log format
// (pkg/wal/entry.go's Entry{LSN, TxnID, OpType, Key, Value, Timestamp})
// into one more KeySpace sharing the metadata tree: a Raft log no longer
// needs its own file format once every consumer is just a typed view over
// the shared engine.
package raftlog

import (
	"encoding/binary"
	"fmt"

	"github.com/reconbug/treekv/pkg/keyspace"
)

// TableName is the physical-tree namespace key for the replicated log.
const TableName = "raft_log"

// LogEntry is one replicated-log record: the term it was proposed in and
// an opaque command payload.
type LogEntry struct {
	Term    uint64
	Payload []byte
}

func encodeLogEntry(e LogEntry) []byte {
	buf := make([]byte, 8+len(e.Payload))
	binary.BigEndian.PutUint64(buf[0:8], e.Term)
	copy(buf[8:], e.Payload)
	return buf
}

func decodeLogEntry(b []byte) (LogEntry, error) {
	if len(b) < 8 {
		return LogEntry{}, fmt.Errorf("raftlog: entry too short: %d bytes", len(b))
	}
	return LogEntry{
		Term:    binary.BigEndian.Uint64(b[0:8]),
		Payload: append([]byte{}, b[8:]...),
	}, nil
}

func logEntryValueCodec() keyspace.ValueCodec[LogEntry] {
	return keyspace.ValueCodec[LogEntry]{
		SerializeValue:   encodeLogEntry,
		DeserializeValue: decodeLogEntry,
	}
}

// LogKeySpace is a keyspace.View over the replicated log, keyed by
// monotonically increasing log index.
type LogKeySpace struct {
	tree *keyspace.Tree
	ks   keyspace.KeySpace[uint64, LogEntry]
}

// Open binds a LogKeySpace to tree.
func Open(tree *keyspace.Tree) *LogKeySpace {
	return &LogKeySpace{
		tree: tree,
		ks:   keyspace.NewKeySpace[uint64, LogEntry](TableName, keyspace.Uint64KeyCodec(), logEntryValueCodec()),
	}
}

func (l *LogKeySpace) view() keyspace.View[uint64, LogEntry] {
	return keyspace.KeySpaceOf(l.tree, l.ks)
}

// Get returns the entry at index, if present.
func (l *LogKeySpace) Get(index uint64) (LogEntry, bool, error) {
	return l.view().Get(index)
}

// Append stores a batch of (index, entry) pairs atomically, as a single
// AppendEntries RPC would.
func (l *LogKeySpace) Append(entries map[uint64]LogEntry) error {
	kvs := make([]struct {
		Key uint64
		Val LogEntry
	}, 0, len(entries))
	for idx, e := range entries {
		kvs = append(kvs, struct {
			Key uint64
			Val LogEntry
		}{Key: idx, Val: e})
	}
	return l.view().Append(kvs)
}

// Last returns the highest log index and its entry, if the log is
// non-empty. Callers use this to learn the log's last index/term for the
// AppendEntries consistency check.
func (l *LogKeySpace) Last() (index uint64, entry LogEntry, ok bool, err error) {
	return l.view().Last()
}

// RangeKVs replays every entry from start (inclusive) in ascending order.
func (l *LogKeySpace) RangeKVs(start uint64, fn func(index uint64, entry LogEntry) bool) error {
	return l.view().Range(keyspace.Included(start).Forward(), fn)
}

// TruncateFrom deletes every entry at or after index, used to resolve a
// log conflict once a divergent leader's entries are discovered.
func (l *LogKeySpace) TruncateFrom(index uint64) error {
	return l.view().RangeRemove(keyspace.Included(index), true)
}
