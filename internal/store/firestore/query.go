package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"docuport-backend-go/internal/store"
)

// firestoreCursor resumes from the last item of the previous page: the
// document id is enough to re-fetch the snapshot the engine needs for
// StartAfter.
type firestoreCursor struct {
	Collection string `json:"c"`
	DocID      string `json:"d"`
}

// operatorMap is the 1:1 translation from the closed operator set to the
// engine's filter primitives. A missing entry means the combination must be
// rejected, never guessed.
var operatorMap = map[store.Operator]string{
	store.OpEqual:              "==",
	store.OpNotEqual:           "!=",
	store.OpLessThan:           "<",
	store.OpLessThanOrEqual:    "<=",
	store.OpGreaterThan:        ">",
	store.OpGreaterThanOrEqual: ">=",
	store.OpArrayContains:      "array-contains",
	store.OpIn:                 "in",
}

// Query implements store.Store.
func (a *Adapter) Query(ctx context.Context, collection string, opts store.Options) (*store.Result, error) {
	if !a.IsConfigured() {
		return nil, store.ErrNotConfigured
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	q := a.client.Collection(collection).Query
	for _, c := range opts.Conditions {
		native, ok := operatorMap[c.Op]
		if !ok {
			return nil, fmt.Errorf("%w: %q", store.ErrUnsupportedOperator, c.Op)
		}
		q = q.Where(c.Field, native, c.Value)
	}
	for _, ord := range opts.OrderBy {
		dir := firestore.Asc
		if ord.Direction == store.Descending {
			dir = firestore.Desc
		}
		q = q.OrderBy(ord.Field, dir)
	}
	paginated := opts.Limit > 0 || opts.Cursor != ""
	if paginated && len(opts.OrderBy) == 0 {
		// Cursors need a total order; fall back to document id.
		q = q.OrderBy(firestore.DocumentID, firestore.Asc)
	}
	if opts.Cursor != "" {
		var cur firestoreCursor
		if err := store.DecodeCursor(opts.Cursor, BackendKind, &cur); err != nil {
			return nil, err
		}
		if cur.Collection != collection {
			return nil, fmt.Errorf("%w: cursor issued for collection %q", store.ErrCursorMismatch, cur.Collection)
		}
		snap, err := a.client.Collection(collection).Doc(cur.DocID).Get(ctx)
		if err != nil {
			return nil, classify("query cursor", err)
		}
		q = q.StartAfter(snap)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	items := []*store.Document{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify("query", err)
		}
		items = append(items, snapshotToDocument(collection, snap))
	}

	res := &store.Result{
		Items:   items,
		HasMore: store.PageHasMore(len(items), opts.Limit),
	}
	if opts.Limit > 0 && len(items) > 0 {
		cursor, err := store.EncodeCursor(BackendKind, firestoreCursor{
			Collection: collection,
			DocID:      items[len(items)-1].ID,
		})
		if err != nil {
			return nil, err
		}
		res.Cursor = cursor
	}
	return res, nil
}
