// Package firestore implements the store contract on Cloud Firestore, the
// push-capable backend family: every facade operation maps onto a native
// engine primitive, including server-pushed change streams and optimistic
// multi-document transactions.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"docuport-backend-go/internal/store"
)

// BackendKind tags cursors and proxy routes produced by this adapter.
const BackendKind = "firestore"

// Adapter satisfies store.Store on an explicitly constructed
// *firestore.Client. The client is owned by whoever built it and injected
// here once at application start; there is no lazily-initialized shared
// handle.
type Adapter struct {
	client *firestore.Client
	logger *zap.Logger
}

// New wraps an existing Firestore client.
func New(client *firestore.Client, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, logger: logger}
}

// NewClient builds a Firestore client from project id and an optional
// service-account credentials file; with no file it relies on Application
// Default Credentials.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return client, nil
}

// Kind implements store.Store.
func (a *Adapter) Kind() string { return BackendKind }

// IsConfigured implements store.Store.
func (a *Adapter) IsConfigured() bool { return a != nil && a.client != nil }

// Close implements store.Store.
func (a *Adapter) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

// Get implements store.Store. Absence is not an error.
func (a *Adapter) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	if !a.IsConfigured() {
		return nil, store.ErrNotConfigured
	}
	snap, err := a.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, classify("get", err)
	}
	return snapshotToDocument(collection, snap), nil
}

// Set implements store.Store. Field operations translate to the engine's
// native transforms, so increments and array mutations are atomic under
// concurrent writers.
func (a *Adapter) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	if !a.IsConfigured() {
		return store.ErrNotConfigured
	}
	data, err := translateWriteFields(fields)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	ref := a.client.Collection(collection).Doc(id)
	if merge {
		_, err = ref.Set(ctx, data, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, data)
	}
	if err != nil {
		return classify("set", err)
	}
	return nil
}

// Update implements store.Store using the engine's dedicated partial-write
// primitive, which fails natively when the document does not exist.
func (a *Adapter) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if !a.IsConfigured() {
		return store.ErrNotConfigured
	}
	updates, err := translateUpdates(fields)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if _, err := a.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("update %s/%s: %w", collection, id, store.ErrNotFound)
		}
		return classify("update", err)
	}
	return nil
}

// Delete implements store.Store. The engine treats deleting an absent
// document as success, matching the contract.
func (a *Adapter) Delete(ctx context.Context, collection, id string) error {
	if !a.IsConfigured() {
		return store.ErrNotConfigured
	}
	if _, err := a.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return classify("delete", err)
	}
	return nil
}

// Add implements store.Store. The engine assigns the id via NewDoc.
func (a *Adapter) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if !a.IsConfigured() {
		return "", store.ErrNotConfigured
	}
	data, err := translateWriteFields(fields)
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	ref := a.client.Collection(collection).NewDoc()
	if _, err := ref.Create(ctx, data); err != nil {
		return "", classify("add", err)
	}
	return ref.ID, nil
}

func snapshotToDocument(collection string, snap *firestore.DocumentSnapshot) *store.Document {
	return &store.Document{
		Collection: collection,
		ID:         snap.Ref.ID,
		Fields:     snap.Data(),
		CreatedAt:  snap.CreateTime,
		UpdatedAt:  snap.UpdateTime,
	}
}

// translateWriteFields swaps field operation tokens for the engine's native
// sentinels. The switch is exhaustive over the closed variant set.
func translateWriteFields(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		op, isOp := v.(store.FieldOp)
		if !isOp {
			out[k] = v
			continue
		}
		switch op.Kind() {
		case store.OpIncrement:
			out[k] = firestore.Increment(op.Delta())
		case store.OpArrayUnion:
			out[k] = firestore.ArrayUnion(op.Items()...)
		case store.OpArrayRemove:
			out[k] = firestore.ArrayRemove(op.Items()...)
		case store.OpServerTimestamp:
			out[k] = firestore.ServerTimestamp
		case store.OpDeleteField:
			out[k] = firestore.Delete
		default:
			return nil, fmt.Errorf("field %q: unknown field operation %q", k, op.Kind())
		}
	}
	return out, nil
}

func translateUpdates(fields map[string]any) ([]firestore.Update, error) {
	data, err := translateWriteFields(fields)
	if err != nil {
		return nil, err
	}
	updates := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	return updates, nil
}

// classify maps engine errors onto the facade taxonomy. Permission failures
// become typed errors with a stable code; everything else is wrapped as a
// backend error.
func classify(op string, err error) error {
	switch status.Code(err) {
	case codes.PermissionDenied:
		return &store.PermissionError{Code: "permission-denied", Op: op, Err: err}
	case codes.Unauthenticated:
		return &store.PermissionError{Code: "unauthenticated", Op: op, Err: err}
	default:
		return fmt.Errorf("firestore %s: %w", op, err)
	}
}
