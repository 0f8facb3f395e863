package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"docuport-backend-go/internal/store"
)

// nativeTx adapts the engine's optimistic transaction handle. Reads observe a
// consistent snapshot, writes are invisible until commit, and the engine
// retries the whole callback on write conflict.
type nativeTx struct {
	adapter *Adapter
	tx      *firestore.Transaction
}

func (t *nativeTx) Get(collection, id string) (*store.Document, error) {
	snap, err := t.tx.Get(t.adapter.client.Collection(collection).Doc(id))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, classify("tx get", err)
	}
	return snapshotToDocument(collection, snap), nil
}

func (t *nativeTx) Set(collection, id string, fields map[string]any, merge bool) error {
	data, err := translateWriteFields(fields)
	if err != nil {
		return fmt.Errorf("tx set %s/%s: %w", collection, id, err)
	}
	ref := t.adapter.client.Collection(collection).Doc(id)
	if merge {
		return t.tx.Set(ref, data, firestore.MergeAll)
	}
	return t.tx.Set(ref, data)
}

func (t *nativeTx) Update(collection, id string, fields map[string]any) error {
	updates, err := translateUpdates(fields)
	if err != nil {
		return fmt.Errorf("tx update %s/%s: %w", collection, id, err)
	}
	return t.tx.Update(t.adapter.client.Collection(collection).Doc(id), updates)
}

func (t *nativeTx) Delete(collection, id string) error {
	return t.tx.Delete(t.adapter.client.Collection(collection).Doc(id))
}

// RunTransaction implements store.Store by delegating to the engine's
// transaction primitive. On success all writes are atomically visible; if fn
// returns an error nothing is written.
func (a *Adapter) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if !a.IsConfigured() {
		return store.ErrNotConfigured
	}
	err := a.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &nativeTx{adapter: a, tx: tx})
	})
	if err != nil {
		return classify("transaction", err)
	}
	return nil
}

// nativeBatch accumulates writes into the engine's write batch; Commit is one
// atomic round trip, all-or-nothing.
type nativeBatch struct {
	adapter *Adapter
	batch   *firestore.WriteBatch
	err     error // first translation failure, reported at Commit
}

// Batch implements store.Store.
func (a *Adapter) Batch() store.Batch {
	if !a.IsConfigured() {
		return &nativeBatch{err: store.ErrNotConfigured}
	}
	return &nativeBatch{adapter: a, batch: a.client.Batch()}
}

func (b *nativeBatch) Set(collection, id string, fields map[string]any, merge bool) store.Batch {
	if b.err != nil {
		return b
	}
	data, err := translateWriteFields(fields)
	if err != nil {
		b.err = fmt.Errorf("batch set %s/%s: %w", collection, id, err)
		return b
	}
	ref := b.adapter.client.Collection(collection).Doc(id)
	if merge {
		b.batch.Set(ref, data, firestore.MergeAll)
	} else {
		b.batch.Set(ref, data)
	}
	return b
}

func (b *nativeBatch) Update(collection, id string, fields map[string]any) store.Batch {
	if b.err != nil {
		return b
	}
	updates, err := translateUpdates(fields)
	if err != nil {
		b.err = fmt.Errorf("batch update %s/%s: %w", collection, id, err)
		return b
	}
	b.batch.Update(b.adapter.client.Collection(collection).Doc(id), updates)
	return b
}

func (b *nativeBatch) Delete(collection, id string) store.Batch {
	if b.err != nil {
		return b
	}
	b.batch.Delete(b.adapter.client.Collection(collection).Doc(id))
	return b
}

func (b *nativeBatch) Commit(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	if _, err := b.batch.Commit(ctx); err != nil {
		return classify("batch commit", err)
	}
	return nil
}
