package sqlite

import (
	"context"

	"docuport-backend-go/internal/store"
)

// SubscribeToDocument implements store.Store with a poll-driven emulation:
// the document is re-read every poll interval, so observed staleness is
// bounded by that interval rather than near-immediate. See store.PollHandle
// for the delivery and unsubscribe guarantees.
func (a *Adapter) SubscribeToDocument(ctx context.Context, collection, id string,
	onNext func(*store.Document), onError func(error)) (store.Unsubscribe, error) {
	if !a.IsConfigured() {
		return nil, store.ErrNotConfigured
	}
	h := store.NewPollHandle(a.pollInterval, a.logger, func(ctx context.Context) (func(), error) {
		doc, err := a.Get(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		return func() { onNext(doc) }, nil
	}, onError)
	a.register(h)
	h.Start(ctx)
	return func() { a.unregister(h); h.Stop() }, nil
}

// SubscribeToQuery implements store.Store; see SubscribeToDocument for the
// polling semantics.
func (a *Adapter) SubscribeToQuery(ctx context.Context, collection string, opts store.Options,
	onNext func([]*store.Document), onError func(error)) (store.Unsubscribe, error) {
	if !a.IsConfigured() {
		return nil, store.ErrNotConfigured
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	h := store.NewPollHandle(a.pollInterval, a.logger, func(ctx context.Context) (func(), error) {
		res, err := a.Query(ctx, collection, opts)
		if err != nil {
			return nil, err
		}
		return func() { onNext(res.Items) }, nil
	}, onError)
	a.register(h)
	h.Start(ctx)
	return func() { a.unregister(h); h.Stop() }, nil
}

func (a *Adapter) register(h *store.PollHandle) {
	a.subMu.Lock()
	a.subs[h] = struct{}{}
	a.subMu.Unlock()
}

func (a *Adapter) unregister(h *store.PollHandle) {
	a.subMu.Lock()
	delete(a.subs, h)
	a.subMu.Unlock()
}
