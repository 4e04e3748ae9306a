// ABOUTME: Batch accumulates writes and applies them as one transaction
// ABOUTME: Gives callers atomic multi-key writes without a closure

package storage

// op is a single staged mutation.
type op struct {
	del bool
	key []byte
	val []byte
}

// Batch accumulates Set/Del calls and applies them atomically with Apply.
// Unlike Update, a Batch lets a caller build up a set of writes across
// several function calls before committing them as one transaction.
type Batch struct {
	ops []op
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Set stages a key/value write.
func (b *Batch) Set(key, val []byte) {
	b.ops = append(b.ops, op{key: append([]byte{}, key...), val: append([]byte{}, val...)})
}

// Del stages a key deletion.
func (b *Batch) Del(key []byte) {
	b.ops = append(b.ops, op{del: true, key: append([]byte{}, key...)})
}

// Len reports the number of staged operations.
func (b *Batch) Len() int { return len(b.ops) }

// Apply commits every staged operation as a single transaction. Either
// every operation lands or, on error, none of them do. flush controls
// whether the commit requests an fsync (see KV.Update).
func (db *KV) Apply(b *Batch, flush bool) error {
	return db.Update(flush, func(tx *KVTX) error {
		for _, o := range b.ops {
			if o.del {
				tx.Del(o.key)
			} else {
				tx.Set(o.key, o.val)
			}
		}
		return nil
	})
}
