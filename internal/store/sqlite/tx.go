package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"docuport-backend-go/internal/store"
)

type writeKind int

const (
	writeSet writeKind = iota
	writeUpdate
	writeDelete
)

type writeOp struct {
	kind       writeKind
	collection string
	id         string
	fields     map[string]any
	merge      bool
}

func (op writeOp) apply(ctx context.Context, q querier) error {
	switch op.kind {
	case writeSet:
		return setDocument(ctx, q, op.collection, op.id, op.fields, op.merge)
	case writeUpdate:
		return updateDocument(ctx, q, op.collection, op.id, op.fields)
	case writeDelete:
		return deleteDocument(ctx, q, op.collection, op.id)
	default:
		return fmt.Errorf("unknown write op %d", op.kind)
	}
}

// emulatedTx records writes during the callback and exposes live reads. There
// is no isolation snapshot: Get observes current database state, and another
// writer can interleave between the read phase and the apply phase
// undetected. Unsuitable for contended counters or any read-then-write
// invariant against concurrent writers.
type emulatedTx struct {
	ctx     context.Context
	adapter *Adapter
	writes  []writeOp
}

func (t *emulatedTx) Get(collection, id string) (*store.Document, error) {
	return t.adapter.Get(t.ctx, collection, id)
}

func (t *emulatedTx) Set(collection, id string, fields map[string]any, merge bool) error {
	t.writes = append(t.writes, writeOp{kind: writeSet, collection: collection, id: id, fields: fields, merge: merge})
	return nil
}

func (t *emulatedTx) Update(collection, id string, fields map[string]any) error {
	t.writes = append(t.writes, writeOp{kind: writeUpdate, collection: collection, id: id, fields: fields})
	return nil
}

func (t *emulatedTx) Delete(collection, id string) error {
	t.writes = append(t.writes, writeOp{kind: writeDelete, collection: collection, id: id})
	return nil
}

// RunTransaction implements store.Store with the record-then-apply emulation:
// writes queued during fn are invisible until fn returns, then applied in
// order inside one engine transaction. If fn returns an error, or any apply
// step fails, nothing is written. There is no conflict retry.
func (a *Adapter) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if !a.IsConfigured() {
		return store.ErrNotConfigured
	}
	etx := &emulatedTx{ctx: ctx, adapter: a}
	if err := fn(ctx, etx); err != nil {
		return err
	}
	if len(etx.writes) == 0 {
		return nil
	}
	return a.inWriteTx(ctx, func(tx *sql.Tx) error {
		for i, op := range etx.writes {
			if err := op.apply(ctx, tx); err != nil {
				return fmt.Errorf("transaction write %d: %w", i, err)
			}
		}
		return nil
	})
}

// emulatedBatch applies its operations sequentially in submission order.
// Unlike the transaction apply phase this is deliberately not wrapped in an
// engine transaction: it mirrors the contract of backends where each batched
// operation is an independent call, so a mid-batch failure leaves the earlier
// operations committed and Commit reports exactly how far it got.
type emulatedBatch struct {
	adapter *Adapter
	writes  []writeOp
}

// Batch implements store.Store.
func (a *Adapter) Batch() store.Batch {
	return &emulatedBatch{adapter: a}
}

func (b *emulatedBatch) Set(collection, id string, fields map[string]any, merge bool) store.Batch {
	b.writes = append(b.writes, writeOp{kind: writeSet, collection: collection, id: id, fields: fields, merge: merge})
	return b
}

func (b *emulatedBatch) Update(collection, id string, fields map[string]any) store.Batch {
	b.writes = append(b.writes, writeOp{kind: writeUpdate, collection: collection, id: id, fields: fields})
	return b
}

func (b *emulatedBatch) Delete(collection, id string) store.Batch {
	b.writes = append(b.writes, writeOp{kind: writeDelete, collection: collection, id: id})
	return b
}

func (b *emulatedBatch) Commit(ctx context.Context) error {
	if !b.adapter.IsConfigured() {
		return store.ErrNotConfigured
	}
	for i, op := range b.writes {
		if err := b.adapter.inWriteTx(ctx, func(tx *sql.Tx) error {
			return op.apply(ctx, tx)
		}); err != nil {
			return &store.BatchError{Applied: i, FailedIndex: i, Err: err}
		}
	}
	return nil
}
