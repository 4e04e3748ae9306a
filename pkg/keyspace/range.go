// ABOUTME: Range describes typed bounds for a key-space scan
// ABOUTME: DefaultRangeCodec lowers them to byte bounds via successor padding

package keyspace

import "github.com/reconbug/treekv/pkg/storage"

// boundKind distinguishes an absent, inclusive, or exclusive bound.
type boundKind int

const (
	boundNone boundKind = iota
	boundIncluded
	boundExcluded
)

type bound[K any] struct {
	kind boundKind
	key  K
}

// Range describes a typed [start, end] scan window. Build one with
// Unbounded, Included, and Excluded, e.g.:
//
//	Included(lo).To(Excluded(hi))
type Range[K any] struct {
	start bound[K]
	end   bound[K]
}

// Unbounded returns a range with no lower bound, to be combined with .To.
func Unbounded[K any]() Range[K] {
	return Range[K]{}
}

// Included returns a lower (or, via .To, upper) bound that includes key.
func Included[K any](key K) Range[K] {
	return Range[K]{start: bound[K]{kind: boundIncluded, key: key}}
}

// Excluded returns a lower (or, via .To, upper) bound that excludes key.
func Excluded[K any](key K) Range[K] {
	return Range[K]{start: bound[K]{kind: boundExcluded, key: key}}
}

// To combines r (used as the lower bound) with upper as the upper bound.
func (r Range[K]) To(upper Range[K]) Range[K] {
	r.end = upper.start
	return r
}

// reversible marks the range to be scanned back to front. View.Range
// passes it to Tree.RangeKVs, which then walks the resulting byte interval
// with Prev instead of Next.
type reversible struct {
	reverse bool
}

// RangeOptions carries traversal direction alongside a Range.
type RangeOptions[K any] struct {
	Range[K]
	reversible
}

// Reverse returns a copy of r that iterates from the highest key down.
func (r Range[K]) Reverse() RangeOptions[K] {
	return RangeOptions[K]{Range: r, reversible: reversible{reverse: true}}
}

// Forward returns r wrapped for forward iteration (the default).
func (r Range[K]) Forward() RangeOptions[K] {
	return RangeOptions[K]{Range: r}
}

// DefaultRangeCodec derives a RangeCodec from a KeyCodec using the
// successor-padding trick already used by storage/encoding.go's
// EncodeKeyPartial/CMP_* infinity padding: appending a single 0x00 byte to
// an encoded key produces the smallest byte string strictly greater than
// it, so every longer key that has the bound as a prefix sorts after it.
func DefaultRangeCodec[K any](kc KeyCodec[K]) RangeCodec[K] {
	return RangeCodec[K]{
		SerializeRange: func(r Range[K]) (storage.ByteRange, error) {
			var br storage.ByteRange

			switch r.start.kind {
			case boundIncluded:
				br.Start = kc.SerializeKey(r.start.key)
			case boundExcluded:
				br.Start = successor(kc.SerializeKey(r.start.key))
			}

			switch r.end.kind {
			case boundIncluded:
				br.End = successor(kc.SerializeKey(r.end.key))
			case boundExcluded:
				br.End = kc.SerializeKey(r.end.key)
			}

			return br, nil
		},
	}
}

// successor returns the smallest byte string strictly greater than b.
func successor(b []byte) []byte {
	out := make([]byte, len(b)+1)
	copy(out, b)
	return out
}
