// Package store defines the backend-agnostic document persistence contract:
// a document model, a conjunctive query model with opaque pagination cursors,
// a closed set of atomic field operations, and the Store facade covering
// CRUD, queries, transactions, batched writes and live subscriptions.
//
// Two adapter families satisfy the contract. The Firestore adapter maps every
// operation onto a native engine primitive (server-pushed change streams,
// optimistic transactions, atomic batches). The SQLite adapter has none of
// those primitives available and emulates them: record-then-apply
// transactions without isolation or conflict retry, sequential batches that
// surface partial failure, and poll-driven subscriptions with staleness
// bounded by the poll interval. The divergences are documented on the
// relevant methods rather than papered over.
package store

import "context"

// Store is the document persistence facade. Exactly one conforming adapter is
// selected at application start via configuration and injected where needed;
// the backend is never re-probed per call.
type Store interface {
	// Kind identifies the backend family ("firestore", "sqlite"). Cursors
	// are resumable only against the kind that issued them, and the proxy
	// wire contract routes on it.
	Kind() string

	// IsConfigured reports whether the adapter holds a usable client. When
	// false, every operation returns ErrNotConfigured.
	IsConfigured() bool

	// Get returns the document, or (nil, nil) when it does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Set writes the document. With merge=false the document is replaced:
	// any previously-present field absent from fields is removed. With
	// merge=true the supplied fields are shallow-merged into the existing
	// document, which is created if absent.
	Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error

	// Update applies a partial write to an existing document and returns
	// ErrNotFound when it does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes the document. Deleting an absent document succeeds.
	Delete(ctx context.Context, collection, id string) error

	// Add writes fields under a new id and returns it.
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Query runs a filtered, ordered, paginated read over a collection.
	Query(ctx context.Context, collection string, opts Options) (*Result, error)

	// RunTransaction executes fn within one logical transaction attempt.
	// Writes queued through the Tx are invisible until commit; if fn returns
	// an error nothing is applied. Isolation and conflict retry are
	// backend-dependent: see the adapter.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Batch returns a new write batch. Batches are short-lived: create,
	// chain, commit once, discard.
	Batch() Batch

	// SubscribeToDocument delivers the current document (nil when absent)
	// and then a fresh snapshot on every observed change. onError is
	// invoked on stream failure; the engine neither retries nor
	// unsubscribes on the caller's behalf.
	SubscribeToDocument(ctx context.Context, collection, id string,
		onNext func(*Document), onError func(error)) (Unsubscribe, error)

	// SubscribeToQuery delivers the current result set and then fresh
	// result sets as the backend observes changes.
	SubscribeToQuery(ctx context.Context, collection string, opts Options,
		onNext func([]*Document), onError func(error)) (Unsubscribe, error)

	// Close releases the underlying client and stops all subscriptions.
	Close() error
}

// Tx is the handle passed to a transaction callback. It is scoped to one
// attempt and must not escape the callback.
type Tx interface {
	Get(collection, id string) (*Document, error)
	Set(collection, id string, fields map[string]any, merge bool) error
	Update(collection, id string, fields map[string]any) error
	Delete(collection, id string) error
}

// Batch accumulates ordered write operations for a single Commit. The
// mutating methods return the batch for chaining.
//
// Commit errors always propagate: a native batch is all-or-nothing, an
// emulated batch reports partial application through *BatchError.
type Batch interface {
	Set(collection, id string, fields map[string]any, merge bool) Batch
	Update(collection, id string, fields map[string]any) Batch
	Delete(collection, id string) Batch
	Commit(ctx context.Context) error
}

// Unsubscribe tears down a subscription. Once it returns, no further
// onNext/onError invocation occurs for that handle, even if a fetch or stream
// event was in flight. It must not be called from inside the subscription's
// own callback.
type Unsubscribe func()
