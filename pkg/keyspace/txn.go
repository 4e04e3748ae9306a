// ABOUTME: TxTree and Txn implement the transaction driver (spec §4.2)
// ABOUTME: Conflict retries loop here; every other error aborts immediately

package keyspace

import (
	"errors"
	"fmt"
	"time"

	"github.com/reconbug/treekv/pkg/storage"
)

// maxTxnAttempts bounds the transaction driver's conflict-retry loop. The
// single-writer storage.KV backing this package serializes every Update
// call, so ErrConflict never actually surfaces in practice (see
// DESIGN.md's Open Question resolution); the bound exists so a future
// engine backend that does signal real conflicts can't retry forever.
const maxTxnAttempts = 16

// TxTree is the handle passed into the closure given to Txn. It must
// not be retained past the closure's return: every method call reaches
// through to the storage.KVTX backing the one in-flight transaction, and
// that handle is invalid once the closure returns (Go has no borrow
// checker to enforce this, so it is a documented convention, not a
// compiler error — see DESIGN.md).
type TxTree struct {
	tx *storage.KVTX
}

// Get fetches the raw bytes stored under name+key within the transaction.
func (t *TxTree) Get(name string, key []byte) ([]byte, bool) {
	return t.tx.Get(tagKey(name, key))
}

// Insert stores key/val under name within the transaction.
func (t *TxTree) Insert(name string, key, val []byte) {
	t.tx.Set(tagKey(name, key), val)
}

// Remove deletes key from name within the transaction. A no-op if absent.
func (t *TxTree) Remove(name string, key []byte) {
	t.tx.Del(tagKey(name, key))
}

// UpdateAndFetch reads the current value under name+key (nil, false if
// absent), applies f to compute the next value, stores it, and returns it.
// This is the read-modify-write primitive sled_tree.rs's
// `impl Deref for AsTxnKeySpace` doc comment demonstrates via
// txn_incr_seq: a sequence generator is just UpdateAndFetch plus an
// encode/decode pair around a uint64.
func (t *TxTree) UpdateAndFetch(name string, key []byte, f func(old []byte, existed bool) ([]byte, error)) ([]byte, error) {
	old, existed := t.Get(name, key)
	next, err := f(old, existed)
	if err != nil {
		return nil, err
	}
	t.Insert(name, key, next)
	return next, nil
}

// ErrTxnAborted wraps a caller-returned error from a Txn closure, letting
// callers distinguish "closure declined to commit" from an engine failure
// via errors.As/errors.Is, while still exposing the Unwrap chain.
type ErrTxnAborted struct {
	Cause error
}

func (e *ErrTxnAborted) Error() string { return fmt.Sprintf("keyspace: transaction aborted: %v", e.Cause) }
func (e *ErrTxnAborted) Unwrap() error { return e.Cause }

// Txn runs f against a transactional view of the tree and commits its
// writes if f returns a nil error. Effective sync is sync ∧ tree.sync
// (spec §4.2 step 1); when effective sync is true the engine is asked to
// flush on commit, otherwise no flush is requested. A storage.ErrConflict
// return value (or wrapped occurrence) re-runs the closure, for at most
// maxTxnAttempts attempts in total, discarding partial writes each attempt; any other
// error aborts immediately and is returned wrapped in ErrTxnAborted, never
// retried — the Conflict-vs-abort split spec §4.2 and §7 both call out.
//
// Txn is a free function, not a Tree method, because Go methods cannot be
// generic over a type parameter the receiver doesn't carry (see
// DESIGN.md).
func Txn[T any](tree *Tree, sync bool, f func(*TxTree) (T, error)) (T, error) {
	var zero T
	var result T

	effectiveSync := sync && tree.sync

	start := time.Now()
	attempts := 0
	conflicts := 0

	for {
		attempts++
		var innerErr error

		err := tree.kv.Update(effectiveSync, func(tx *storage.KVTX) error {
			txt := &TxTree{tx: tx}
			v, ferr := f(txt)
			if ferr != nil {
				innerErr = ferr
				return ferr
			}
			result = v
			return nil
		})

		if err == nil {
			if effectiveSync {
				tree.recordFlush()
			}
			if tree.met != nil {
				tree.met.RecordTxn(attempts, conflicts, true, time.Since(start))
			}
			return result, nil
		}

		if errors.Is(innerErr, storage.ErrConflict) && attempts < maxTxnAttempts {
			conflicts++
			if tree.log != nil {
				tree.log.TxnLogger().LogTxnConflict(attempts)
			}
			continue
		}

		if tree.log != nil {
			tree.log.TxnLogger().LogTxnAbort(innerErr)
		}
		if tree.met != nil {
			tree.met.RecordTxn(attempts, conflicts, false, time.Since(start))
		}

		if innerErr == nil {
			// The closure succeeded but the engine failed to commit: this
			// is an engine failure, not a caller abort.
			return zero, err
		}
		return zero, &ErrTxnAborted{Cause: innerErr}
	}
}
