// ABOUTME: Ready-made codecs for the key/value types metatables builds on
// ABOUTME: Big-endian uint64 keys preserve numeric order byte-lexicographically

package keyspace

import (
	"encoding/binary"
	"fmt"
)

// StringKeyCodec serializes a string key as its raw UTF-8 bytes. Go's
// string byte order already matches Go's string comparison order, so no
// escaping is needed for this codec alone — callers sharing a tree with
// other KeySpaces still rely on Tree's own namespace tagging for
// disjointness, not on this codec.
func StringKeyCodec() KeyCodec[string] {
	return KeyCodec[string]{
		SerializeKey: func(k string) []byte { return []byte(k) },
		DeserializeKey: func(b []byte) (string, error) {
			return string(b), nil
		},
	}
}

// Uint64KeyCodec serializes a uint64 key as 8 big-endian bytes, which
// preserves numeric order in byte-lexicographic order.
func Uint64KeyCodec() KeyCodec[uint64] {
	return KeyCodec[uint64]{
		SerializeKey: func(k uint64) []byte {
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], k)
			return buf[:]
		},
		DeserializeKey: func(b []byte) (uint64, error) {
			if len(b) != 8 {
				return 0, fmt.Errorf("uint64 key: want 8 bytes, got %d", len(b))
			}
			return binary.BigEndian.Uint64(b), nil
		},
	}
}

// BytesValueCodec passes value bytes through unchanged.
func BytesValueCodec() ValueCodec[[]byte] {
	return ValueCodec[[]byte]{
		SerializeValue:   func(v []byte) []byte { return v },
		DeserializeValue: func(b []byte) ([]byte, error) { return append([]byte{}, b...), nil },
	}
}

// Uint64ValueCodec serializes a uint64 value as 8 big-endian bytes.
func Uint64ValueCodec() ValueCodec[uint64] {
	return ValueCodec[uint64]{
		SerializeValue: func(v uint64) []byte {
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], v)
			return buf[:]
		},
		DeserializeValue: func(b []byte) (uint64, error) {
			if len(b) != 8 {
				return 0, fmt.Errorf("uint64 value: want 8 bytes, got %d", len(b))
			}
			return binary.BigEndian.Uint64(b), nil
		},
	}
}

// StringValueCodec serializes a string value as its raw UTF-8 bytes.
func StringValueCodec() ValueCodec[string] {
	return ValueCodec[string]{
		SerializeValue:   func(v string) []byte { return []byte(v) },
		DeserializeValue: func(b []byte) (string, error) { return string(b), nil },
	}
}
