// ABOUTME: ByteRange describes a half-open [Start, End) byte-key interval
// ABOUTME: Produced by keyspace range codecs, consumed by keyspace.Tree's range scans

package storage

// ByteRange is a half-open interval over encoded keys: Start is inclusive,
// End is exclusive. A nil Start means "from the first key"; a nil End
// means "to the last key".
type ByteRange struct {
	Start []byte
	End   []byte
}
