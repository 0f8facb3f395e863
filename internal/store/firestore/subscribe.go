package firestore

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"docuport-backend-go/internal/store"
)

// streamSubscription attaches to the engine's native change stream and
// invokes the update callback on every server-acknowledged change. On stream
// failure the error callback fires once and the stream stops; the engine is
// not re-attached on the caller's behalf, the caller decides whether to
// resubscribe.
//
// Callbacks run under mu and are gated on the active flag, so once stop
// returns no callback can fire even for an event already received.
type streamSubscription struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	active bool
}

func (s *streamSubscription) deliver(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	fn()
	return true
}

func (s *streamSubscription) stop() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	s.cancel()
}

// SubscribeToDocument implements store.Store on the native snapshot stream.
// The first delivery is the current document state (nil when absent); deletes
// arrive as a nil snapshot.
func (a *Adapter) SubscribeToDocument(ctx context.Context, collection, id string,
	onNext func(*store.Document), onError func(error)) (store.Unsubscribe, error) {
	if !a.IsConfigured() {
		return nil, store.ErrNotConfigured
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &streamSubscription{cancel: cancel, active: true}

	iter := a.client.Collection(collection).Doc(id).Snapshots(ctx)
	go func() {
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				a.logger.Warn("document snapshot stream failed",
					zap.String("collection", collection), zap.String("id", id), zap.Error(err))
				if onError != nil {
					sub.deliver(func() { onError(classify("subscribe", err)) })
				}
				return
			}
			var doc *store.Document
			if snap.Exists() {
				doc = snapshotToDocument(collection, snap)
			}
			if !sub.deliver(func() { onNext(doc) }) {
				return
			}
		}
	}()
	return sub.stop, nil
}

// SubscribeToQuery implements store.Store on the native query snapshot
// stream; every server-acknowledged change to the result set delivers a fresh
// full snapshot.
func (a *Adapter) SubscribeToQuery(ctx context.Context, collection string, opts store.Options,
	onNext func([]*store.Document), onError func(error)) (store.Unsubscribe, error) {
	if !a.IsConfigured() {
		return nil, store.ErrNotConfigured
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Cursor != "" {
		return nil, fmt.Errorf("subscriptions do not support cursors")
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
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &streamSubscription{cancel: cancel, active: true}

	iter := q.Snapshots(ctx)
	go func() {
		defer iter.Stop()
		for {
			qsnap, err := iter.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				a.logger.Warn("query snapshot stream failed",
					zap.String("collection", collection), zap.Error(err))
				if onError != nil {
					sub.deliver(func() { onError(classify("subscribe", err)) })
				}
				return
			}
			docs := []*store.Document{}
			for {
				snap, err := qsnap.Documents.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					if onError != nil {
						sub.deliver(func() { onError(classify("subscribe", err)) })
					}
					return
				}
				docs = append(docs, snapshotToDocument(collection, snap))
			}
			if !sub.deliver(func() { onNext(docs) }) {
				return
			}
		}
	}()
	return sub.stop, nil
}
