package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuport-backend-go/internal/store"
)

func seedUsers(t *testing.T, a *Adapter) {
	t.Helper()
	ctx := context.Background()
	users := []struct {
		id     string
		name   string
		age    int
		active bool
		tags   []any
	}{
		{"u1", "alice", 30, true, []any{"admin", "staff"}},
		{"u2", "bob", 25, true, []any{"staff"}},
		{"u3", "carol", 35, false, []any{"admin"}},
		{"u4", "dave", 25, true, nil},
		{"u5", "erin", 40, false, []any{"guest"}},
	}
	for _, u := range users {
		require.NoError(t, a.Set(ctx, "users", u.id, map[string]any{
			"name": u.name, "age": u.age, "active": u.active, "tags": u.tags,
		}, false))
	}
}

func ids(docs []*store.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestQueryEquality(t *testing.T) {
	a := newTestAdapter(t)
	seedUsers(t, a)

	res, err := a.Query(context.Background(), "users", store.Options{
		Conditions: []store.Condition{{Field: "name", Op: store.OpEqual, Value: "bob"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "u2", res.Items[0].ID)
	assert.False(t, res.HasMore)
	assert.Empty(t, res.Cursor, "unlimited queries issue no cursor")
}

func TestQueryComparisons(t *testing.T) {
	a := newTestAdapter(t)
	seedUsers(t, a)
	ctx := context.Background()

	tests := []struct {
		op   store.Operator
		val  any
		want []string
	}{
		{store.OpNotEqual, "alice", []string{"u2", "u3", "u4", "u5"}},
		{store.OpLessThan, 30, []string{"u2", "u4"}},
		{store.OpLessThanOrEqual, 30, []string{"u1", "u2", "u4"}},
		{store.OpGreaterThan, 30, []string{"u3", "u5"}},
		{store.OpGreaterThanOrEqual, 35, []string{"u3", "u5"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			field := "age"
			if tt.op == store.OpNotEqual {
				field = "name"
			}
			res, err := a.Query(ctx, "users", store.Options{
				Conditions: []store.Condition{{Field: field, Op: tt.op, Value: tt.val}},
				OrderBy:    []store.Order{{Field: "name", Direction: store.Ascending}},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(res.Items))
		})
	}
}

func TestQueryConditionsConjoin(t *testing.T) {
	a := newTestAdapter(t)
	seedUsers(t, a)

	res, err := a.Query(context.Background(), "users", store.Options{
		Conditions: []store.Condition{
			{Field: "active", Op: store.OpEqual, Value: true},
			{Field: "age", Op: store.OpLessThan, Value: 30},
		},
		OrderBy: []store.Order{{Field: "name", Direction: store.Ascending}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u4"}, ids(res.Items))
}

func TestQueryArrayContains(t *testing.T) {
	a := newTestAdapter(t)
	seedUsers(t, a)

	res, err := a.Query(context.Background(), "users", store.Options{
		Conditions: []store.Condition{{Field: "tags", Op: store.OpArrayContains, Value: "admin"}},
		OrderBy:    []store.Order{{Field: "name", Direction: store.Ascending}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u3"}, ids(res.Items))
}

func TestQueryIn(t *testing.T) {
	a := newTestAdapter(t)
	seedUsers(t, a)

	res, err := a.Query(context.Background(), "users", store.Options{
		Conditions: []store.Condition{{Field: "name", Op: store.OpIn, Value: []any{"alice", "erin"}}},
		OrderBy:    []store.Order{{Field: "age", Direction: store.Descending}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"u5", "u1"}, ids(res.Items))

	_, err = a.Query(context.Background(), "users", store.Options{
		Conditions: []store.Condition{{Field: "name", Op: store.OpIn, Value: "alice"}},
	})
	require.Error(t, err, "in requires a list operand")
}

func TestQueryOrdering(t *testing.T) {
	a := newTestAdapter(t)
	seedUsers(t, a)
	ctx := context.Background()

	res, err := a.Query(ctx, "users", store.Options{
		OrderBy: []store.Order{{Field: "age", Direction: store.Descending}},
	})
	require.NoError(t, err)
	// Equal ages fall back to the id tiebreaker.
	assert.Equal(t, []string{"u5", "u3", "u1", "u2", "u4"}, ids(res.Items))

	res, err = a.Query(ctx, "users", store.Options{
		OrderBy: []store.Order{
			{Field: "active", Direction: store.Descending},
			{Field: "age", Direction: store.Ascending},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u4", "u1", "u3", "u5"}, ids(res.Items))
}

func TestQueryPagination(t *testing.T) {
	a := newTestAdapter(t)
	seedUsers(t, a)
	ctx := context.Background()

	opts := store.Options{
		OrderBy: []store.Order{{Field: "name", Direction: store.Ascending}},
		Limit:   2,
	}

	var seen []string
	page1, err := a.Query(ctx, "users", opts)
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	assert.True(t, page1.HasMore)
	require.NotEmpty(t, page1.Cursor)
	seen = append(seen, ids(page1.Items)...)

	opts.Cursor = page1.Cursor
	page2, err := a.Query(ctx, "users", opts)
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	assert.True(t, page2.HasMore)
	seen = append(seen, ids(page2.Items)...)

	opts.Cursor = page2.Cursor
	page3, err := a.Query(ctx, "users", opts)
	require.NoError(t, err)
	require.Len(t, page3.Items, 1)
	assert.False(t, page3.HasMore, "a short page means the set is exhausted")
	seen = append(seen, ids(page3.Items)...)

	// Pages never overlap and cover the whole ordered set.
	assert.Equal(t, []string{"u1", "u2", "u3", "u4", "u5"}, seen)
}

func TestQueryPaginationExactMultiple(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, a.Set(ctx, "nums", fmt.Sprintf("n%d", i), map[string]any{"i": i}, false))
	}

	opts := store.Options{Limit: 2, OrderBy: []store.Order{{Field: "i", Direction: store.Ascending}}}
	page1, err := a.Query(ctx, "nums", opts)
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)

	opts.Cursor = page1.Cursor
	page2, err := a.Query(ctx, "nums", opts)
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	// Known approximation: a full final page still reports more, and the
	// follow-up query comes back empty.
	assert.True(t, page2.HasMore)

	opts.Cursor = page2.Cursor
	page3, err := a.Query(ctx, "nums", opts)
	require.NoError(t, err)
	assert.Empty(t, page3.Items)
	assert.False(t, page3.HasMore)
}

func TestQueryCursorFromOtherBackend(t *testing.T) {
	a := newTestAdapter(t)
	seedUsers(t, a)

	foreign, err := store.EncodeCursor("firestore", map[string]any{"c": "users", "d": "u1"})
	require.NoError(t, err)

	_, err = a.Query(context.Background(), "users", store.Options{Limit: 2, Cursor: foreign})
	require.ErrorIs(t, err, store.ErrCursorMismatch)
}

func TestQueryCursorFromOtherCollection(t *testing.T) {
	a := newTestAdapter(t)
	seedUsers(t, a)
	ctx := context.Background()

	page, err := a.Query(ctx, "users", store.Options{Limit: 2})
	require.NoError(t, err)
	require.NotEmpty(t, page.Cursor)

	_, err = a.Query(ctx, "orders", store.Options{Limit: 2, Cursor: page.Cursor})
	require.ErrorIs(t, err, store.ErrCursorMismatch)
}

func TestQueryUnsupportedOperator(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.Query(context.Background(), "users", store.Options{
		Conditions: []store.Condition{{Field: "name", Op: "not-in", Value: []any{"x"}}},
	})
	require.ErrorIs(t, err, store.ErrUnsupportedOperator)
}

func TestQueryScopedToCollection(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.Set(ctx, "users", "a", map[string]any{"v": 1}, false))
	require.NoError(t, a.Set(ctx, "orders", "a", map[string]any{"v": 2}, false))

	res, err := a.Query(ctx, "users", store.Options{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 1.0, res.Items[0].Fields["v"])
}
