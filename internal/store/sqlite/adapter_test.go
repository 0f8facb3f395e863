package sqlite

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuport-backend-go/internal/store"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := Open(":memory:", 10*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestKindAndConfigured(t *testing.T) {
	a := newTestAdapter(t)
	assert.Equal(t, "sqlite", a.Kind())
	assert.True(t, a.IsConfigured())
}

func TestGetAbsentReturnsNilNil(t *testing.T) {
	a := newTestAdapter(t)
	doc, err := a.Get(context.Background(), "users", "ghost")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestSetGetRoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	fields := map[string]any{"name": "alice", "age": 30, "tags": []any{"a", "b"}}
	require.NoError(t, a.Set(ctx, "users", "u1", fields, false))

	doc, err := a.Get(ctx, "users", "u1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "users", doc.Collection)
	assert.Equal(t, "u1", doc.ID)
	assert.Equal(t, "alice", doc.Fields["name"])
	assert.Equal(t, 30.0, doc.Fields["age"], "numbers come back as JSON numbers")
	assert.Equal(t, []any{"a", "b"}, doc.Fields["tags"])
	assert.False(t, doc.CreatedAt.IsZero())
	assert.False(t, doc.UpdatedAt.Before(doc.CreatedAt))
}

func TestWriteMetadataNonDecreasing(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "users", "u1", map[string]any{"v": 1}, false))
	first, err := a.Get(ctx, "users", "u1")
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, a.Set(ctx, "users", "u1", map[string]any{"v": 2}, false))
	second, err := a.Get(ctx, "users", "u1")
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt, "creation time survives rewrites")
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
}

func TestSetReplaceVersusMerge(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "users", "u1", map[string]any{"a": 1, "b": 2}, false))

	// Merge keeps fields the payload does not name.
	require.NoError(t, a.Set(ctx, "users", "u1", map[string]any{"b": 3, "c": 4}, true))
	doc, err := a.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 3.0, "c": 4.0}, doc.Fields)

	// Replace drops them.
	require.NoError(t, a.Set(ctx, "users", "u1", map[string]any{"b": 9}, false))
	doc, err = a.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": 9.0}, doc.Fields)
}

func TestSetMergeCreatesWhenAbsent(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.Set(ctx, "users", "u1", map[string]any{"a": 1}, true))
	doc, err := a.Get(ctx, "users", "u1")
	require.NoError(t, err)
	require.NotNil(t, doc)
}

func TestFieldOperations(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "stats", "s1", map[string]any{
		"hits": store.Increment(1),
		"tags": store.ArrayUnion("a"),
	}, false))
	doc, err := a.Get(ctx, "stats", "s1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, doc.Fields["hits"], "increment on a missing field starts from zero")
	assert.Equal(t, []any{"a"}, doc.Fields["tags"])

	require.NoError(t, a.Update(ctx, "stats", "s1", map[string]any{
		"hits": store.Increment(4),
		"tags": store.ArrayUnion("a", "b"),
	}))
	doc, err = a.Get(ctx, "stats", "s1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, doc.Fields["hits"])
	assert.Equal(t, []any{"a", "b"}, doc.Fields["tags"])

	require.NoError(t, a.Update(ctx, "stats", "s1", map[string]any{
		"tags": store.ArrayRemove("a"),
		"hits": store.DeleteField(),
		"seen": store.ServerTimestamp(),
	}))
	doc, err = a.Get(ctx, "stats", "s1")
	require.NoError(t, err)
	assert.Equal(t, []any{"b"}, doc.Fields["tags"])
	_, present := doc.Fields["hits"]
	assert.False(t, present)
	ts, ok := doc.Fields["seen"].(string)
	require.True(t, ok, "server timestamp persists as an encoded time")
	_, err = time.Parse(time.RFC3339Nano, ts)
	require.NoError(t, err)
}

func TestIncrementNonNumericFails(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.Set(ctx, "stats", "s1", map[string]any{"hits": "many"}, false))
	err := a.Update(ctx, "stats", "s1", map[string]any{"hits": store.Increment(1)})
	require.Error(t, err)
}

func TestUpdateMissingDocument(t *testing.T) {
	a := newTestAdapter(t)
	err := a.Update(context.Background(), "users", "ghost", map[string]any{"a": 1})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.Set(ctx, "users", "u1", map[string]any{"a": 1}, false))
	require.NoError(t, a.Delete(ctx, "users", "u1"))
	require.NoError(t, a.Delete(ctx, "users", "u1"))
	doc, err := a.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestAddAssignsID(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	id1, err := a.Add(ctx, "users", map[string]any{"name": "alice"})
	require.NoError(t, err)
	id2, err := a.Add(ctx, "users", map[string]any{"name": "bob"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	doc, err := a.Get(ctx, "users", id1)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "alice", doc.Fields["name"])
}

func TestTransactionReadModifyWrite(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.Set(ctx, "counters", "c1", map[string]any{"n": 10}, false))

	err := a.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		doc, err := tx.Get("counters", "c1")
		if err != nil {
			return err
		}
		n := doc.Fields["n"].(float64)
		if err := tx.Set("counters", "c1", map[string]any{"n": n + 1}, false); err != nil {
			return err
		}

		// Writes queue: the recorded Set is invisible inside the callback.
		again, err := tx.Get("counters", "c1")
		if err != nil {
			return err
		}
		assert.Equal(t, 10.0, again.Fields["n"])
		return nil
	})
	require.NoError(t, err)

	doc, err := a.Get(ctx, "counters", "c1")
	require.NoError(t, err)
	assert.Equal(t, 11.0, doc.Fields["n"])
}

func TestTransactionCallbackErrorAppliesNothing(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := a.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Set("users", "u1", map[string]any{"a": 1}, false); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	doc, err := a.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Nil(t, doc, "a failed callback must leave nothing written")
}

func TestTransactionApplyFailureRollsBackAll(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	err := a.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Set("users", "u1", map[string]any{"a": 1}, false); err != nil {
			return err
		}
		// Updating a missing document fails at apply time.
		return tx.Update("users", "ghost", map[string]any{"b": 2})
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	doc, err := a.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Nil(t, doc, "the apply phase is one engine transaction")
}

func TestBatchCommitsInOrder(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	err := a.Batch().
		Set("users", "u1", map[string]any{"n": 1}, false).
		Update("users", "u1", map[string]any{"n": store.Increment(1)}).
		Set("users", "u2", map[string]any{"n": 5}, false).
		Delete("users", "u2").
		Commit(ctx)
	require.NoError(t, err)

	doc, err := a.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, 2.0, doc.Fields["n"])
	doc, err = a.Get(ctx, "users", "u2")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestBatchPartialFailure(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	err := a.Batch().
		Set("users", "u1", map[string]any{"n": 1}, false).
		Update("users", "ghost", map[string]any{"n": 2}).
		Set("users", "u3", map[string]any{"n": 3}, false).
		Commit(ctx)
	require.Error(t, err)

	var batchErr *store.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 1, batchErr.Applied)
	assert.Equal(t, 1, batchErr.FailedIndex)
	assert.ErrorIs(t, batchErr.Err, store.ErrNotFound)

	// Operations before the failure stay committed, later ones never run.
	doc, err := a.Get(ctx, "users", "u1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	doc, err = a.Get(ctx, "users", "u3")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestSubscribeToDocumentPolls(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	var last atomic.Value // *store.Document or nil marker
	var deliveries atomic.Int64
	unsubscribe, err := a.SubscribeToDocument(ctx, "users", "u1", func(doc *store.Document) {
		deliveries.Add(1)
		if doc != nil {
			last.Store(doc)
		}
	}, nil)
	require.NoError(t, err)

	// Initial snapshot for an absent document.
	require.Eventually(t, func() bool { return deliveries.Load() >= 1 },
		2*time.Second, time.Millisecond)

	require.NoError(t, a.Set(ctx, "users", "u1", map[string]any{"name": "alice"}, false))
	require.Eventually(t, func() bool {
		doc, _ := last.Load().(*store.Document)
		return doc != nil && doc.Fields["name"] == "alice"
	}, 2*time.Second, time.Millisecond)

	unsubscribe()
	after := deliveries.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, deliveries.Load(), "no delivery after unsubscribe returns")
}

func TestSubscribeToQueryPolls(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.Set(ctx, "users", "u1", map[string]any{"active": true}, false))
	require.NoError(t, a.Set(ctx, "users", "u2", map[string]any{"active": false}, false))

	var count atomic.Int64
	unsubscribe, err := a.SubscribeToQuery(ctx, "users", store.Options{
		Conditions: []store.Condition{{Field: "active", Op: store.OpEqual, Value: true}},
	}, func(docs []*store.Document) {
		count.Store(int64(len(docs)))
	}, nil)
	require.NoError(t, err)
	defer unsubscribe()

	require.Eventually(t, func() bool { return count.Load() == 1 },
		2*time.Second, time.Millisecond)

	require.NoError(t, a.Update(ctx, "users", "u2", map[string]any{"active": true}))
	require.Eventually(t, func() bool { return count.Load() == 2 },
		2*time.Second, time.Millisecond)
}

func TestCloseStopsSubscriptions(t *testing.T) {
	a, err := Open(":memory:", time.Millisecond, nil)
	require.NoError(t, err)

	var deliveries atomic.Int64
	_, err = a.SubscribeToDocument(context.Background(), "users", "u1", func(*store.Document) {
		deliveries.Add(1)
	}, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return deliveries.Load() >= 1 },
		2*time.Second, time.Millisecond)
	require.NoError(t, a.Close())
	after := deliveries.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, deliveries.Load())
}

func TestNotConfigured(t *testing.T) {
	var a *Adapter
	assert.False(t, a.IsConfigured())

	bare := &Adapter{}
	_, err := bare.Get(context.Background(), "users", "u1")
	require.ErrorIs(t, err, store.ErrNotConfigured)
	require.ErrorIs(t, bare.Set(context.Background(), "users", "u1", nil, false), store.ErrNotConfigured)
	require.ErrorIs(t, bare.Batch().Commit(context.Background()), store.ErrNotConfigured)
}
