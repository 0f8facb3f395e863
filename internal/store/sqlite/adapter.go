// Package sqlite implements the store contract on an embedded SQL engine.
//
// The engine offers none of the primitives the push-capable backend is built
// on, so this adapter emulates them and documents what that costs:
// transactions record writes during the callback and apply them afterwards
// (atomicity of intent, no isolation, no conflict retry), batches apply
// sequentially and surface partial failure, and subscriptions poll on a fixed
// interval with staleness bounded by that interval.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"docuport-backend-go/internal/store"
)

// BackendKind tags cursors and proxy routes produced by this adapter.
const BackendKind = "sqlite"

// DefaultPollInterval bounds subscription staleness when no interval is
// configured.
const DefaultPollInterval = 2 * time.Second

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	fields     TEXT NOT NULL DEFAULT '{}',
	created_ms INTEGER NOT NULL,
	updated_ms INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

// Adapter satisfies store.Store on a *sql.DB. Construct with Open and inject
// it once at application start; it owns the connection until Close.
type Adapter struct {
	db           *sql.DB
	logger       *zap.Logger
	pollInterval time.Duration

	subMu sync.Mutex
	subs  map[*store.PollHandle]struct{}
}

// Open opens (creating if needed) the database at path and prepares the
// document schema. Use ":memory:" for an in-process ephemeral store.
func Open(path string, pollInterval time.Duration, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes
	// writers, which the emulation relies on for its sequential apply phase.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare document schema: %w", err)
	}
	return &Adapter{
		db:           db,
		logger:       logger,
		pollInterval: pollInterval,
		subs:         make(map[*store.PollHandle]struct{}),
	}, nil
}

// Kind implements store.Store.
func (a *Adapter) Kind() string { return BackendKind }

// IsConfigured implements store.Store.
func (a *Adapter) IsConfigured() bool { return a != nil && a.db != nil }

// Close stops every live subscription and releases the database handle.
func (a *Adapter) Close() error {
	a.subMu.Lock()
	subs := make([]*store.PollHandle, 0, len(a.subs))
	for s := range a.subs {
		subs = append(subs, s)
	}
	a.subs = make(map[*store.PollHandle]struct{})
	a.subMu.Unlock()
	for _, s := range subs {
		s.Stop()
	}
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// querier is satisfied by *sql.DB and *sql.Tx so the row-level helpers can
// serve both the facade methods and the transaction apply phase.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Get implements store.Store. Absence is not an error.
func (a *Adapter) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if !a.IsConfigured() {
		return nil, store.ErrNotConfigured
	}
	return getDocument(ctx, a.db, collection, id)
}

func getDocument(ctx context.Context, q querier, collection, id string) (*store.Document, error) {
	row := q.QueryRowContext(ctx,
		"SELECT fields, created_ms, updated_ms FROM documents WHERE collection = ? AND id = ?",
		collection, id)
	var raw string
	var createdMS, updatedMS int64
	if err := row.Scan(&raw, &createdMS, &updatedMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeDocument(collection, id, raw, createdMS, updatedMS)
}

func decodeDocument(collection, id, raw string, createdMS, updatedMS int64) (*store.Document, error) {
	fields := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &store.Document{
		Collection: collection,
		ID:         id,
		Fields:     fields,
		CreatedAt:  time.UnixMilli(createdMS).UTC(),
		UpdatedAt:  time.UnixMilli(updatedMS).UTC(),
	}, nil
}

// Set implements store.Store. Field operations in fields are resolved by a
// read-modify-write against the current row; with a single serialized writer
// this is safe locally, but it is not atomic once concurrent writers reach
// the database through other connections.
func (a *Adapter) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	if !a.IsConfigured() {
		return store.ErrNotConfigured
	}
	return a.inWriteTx(ctx, func(tx *sql.Tx) error {
		return setDocument(ctx, tx, collection, id, fields, merge)
	})
}

func setDocument(ctx context.Context, q querier, collection, id string, fields map[string]any, merge bool) error {
	existing, err := getDocument(ctx, q, collection, id)
	if err != nil {
		return err
	}
	now := time.Now()
	var base map[string]any
	if existing != nil {
		base = existing.Fields
	}
	resolved, err := store.ApplyFieldOps(base, fields, now)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	next := resolved
	if !merge {
		// Replace semantics: only keys named in the payload survive. Field
		// operations still resolved against the prior value above.
		next = make(map[string]any, len(fields))
		for k := range fields {
			if v, ok := resolved[k]; ok {
				next[k] = v
			}
		}
	}
	return upsertRow(ctx, q, collection, id, next, existing, now)
}

func upsertRow(ctx context.Context, q querier, collection, id string, fields map[string]any, existing *store.Document, now time.Time) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	createdMS := now.UnixMilli()
	if existing != nil {
		createdMS = existing.CreatedAt.UnixMilli()
	}
	updatedMS := now.UnixMilli()
	if existing != nil && existing.UpdatedAt.UnixMilli() > updatedMS {
		updatedMS = existing.UpdatedAt.UnixMilli()
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields, created_ms, updated_ms) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET fields = excluded.fields, updated_ms = excluded.updated_ms`,
		collection, id, string(raw), createdMS, updatedMS)
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update implements store.Store. There is no native partial-write primitive
// here, so the adapter read-fetches the document and writes back a merged
// copy; a missing document fails with store.ErrNotFound rather than silently
// no-opping.
func (a *Adapter) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if !a.IsConfigured() {
		return store.ErrNotConfigured
	}
	return a.inWriteTx(ctx, func(tx *sql.Tx) error {
		return updateDocument(ctx, tx, collection, id, fields)
	})
}

func updateDocument(ctx context.Context, q querier, collection, id string, fields map[string]any) error {
	existing, err := getDocument(ctx, q, collection, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, store.ErrNotFound)
	}
	now := time.Now()
	resolved, err := store.ApplyFieldOps(existing.Fields, fields, now)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return upsertRow(ctx, q, collection, id, resolved, existing, now)
}

// Delete implements store.Store. Deleting an absent document succeeds.
func (a *Adapter) Delete(ctx context.Context, collection, id string) error {
	if !a.IsConfigured() {
		return store.ErrNotConfigured
	}
	return deleteDocument(ctx, a.db, collection, id)
}

func deleteDocument(ctx context.Context, q querier, collection, id string) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?", collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Add implements store.Store. The engine does not assign ids, so the adapter
// generates a collision-resistant one before writing.
func (a *Adapter) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if !a.IsConfigured() {
		return "", store.ErrNotConfigured
	}
	id := store.NewDocumentID()
	if err := a.Set(ctx, collection, id, fields, false); err != nil {
		return "", err
	}
	return id, nil
}

func (a *Adapter) inWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write: %w", err)
	}
	return nil
}
