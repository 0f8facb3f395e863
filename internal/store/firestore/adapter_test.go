package firestore

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"docuport-backend-go/internal/store"
)

func TestOperatorMapCoversClosedSet(t *testing.T) {
	all := []store.Operator{
		store.OpEqual, store.OpNotEqual, store.OpLessThan, store.OpLessThanOrEqual,
		store.OpGreaterThan, store.OpGreaterThanOrEqual, store.OpArrayContains, store.OpIn,
	}
	for _, op := range all {
		native, ok := operatorMap[op]
		require.True(t, ok, "operator %q has no native translation", op)
		assert.NotEmpty(t, native)
	}
	assert.Len(t, operatorMap, len(all), "no translations outside the closed set")
}

func TestTranslateWriteFields(t *testing.T) {
	out, err := translateWriteFields(map[string]any{
		"count":   store.Increment(2.5),
		"tags":    store.ArrayUnion("a", "b"),
		"old":     store.ArrayRemove("x"),
		"seen":    store.ServerTimestamp(),
		"gone":    store.DeleteField(),
		"literal": "unchanged",
	})
	require.NoError(t, err)

	assert.Equal(t, firestore.Increment(2.5), out["count"])
	assert.Equal(t, firestore.ArrayUnion("a", "b"), out["tags"])
	assert.Equal(t, firestore.ArrayRemove("x"), out["old"])
	assert.Equal(t, firestore.ServerTimestamp, out["seen"])
	assert.Equal(t, firestore.Delete, out["gone"])
	assert.Equal(t, "unchanged", out["literal"])
}

func TestTranslateUpdates(t *testing.T) {
	updates, err := translateUpdates(map[string]any{
		"n":    store.Increment(1),
		"name": "alice",
	})
	require.NoError(t, err)
	require.Len(t, updates, 2)

	byPath := map[string]firestore.Update{}
	for _, u := range updates {
		byPath[u.Path] = u
	}
	assert.Equal(t, firestore.Increment(1.0), byPath["n"].Value)
	assert.Equal(t, "alice", byPath["name"].Value)
}

func TestClassify(t *testing.T) {
	var perm *store.PermissionError

	err := classify("set", status.Error(codes.PermissionDenied, "nope"))
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "permission-denied", perm.Code)
	assert.Equal(t, "set", perm.Op)

	err = classify("get", status.Error(codes.Unauthenticated, "who"))
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "unauthenticated", perm.Code)

	plain := errors.New("wire broke")
	err = classify("query", plain)
	assert.False(t, errors.As(err, &perm))
	assert.ErrorIs(t, err, plain)
}

func TestCursorsAreBackendTagged(t *testing.T) {
	c, err := store.EncodeCursor(BackendKind, firestoreCursor{Collection: "users", DocID: "u9"})
	require.NoError(t, err)

	var cur firestoreCursor
	require.NoError(t, store.DecodeCursor(c, BackendKind, &cur))
	assert.Equal(t, "u9", cur.DocID)

	require.ErrorIs(t, store.DecodeCursor(c, "sqlite", &cur), store.ErrCursorMismatch)
}

func TestNotConfigured(t *testing.T) {
	var a *Adapter
	assert.False(t, a.IsConfigured())

	bare := New(nil, nil)
	assert.False(t, bare.IsConfigured())
	_, err := bare.Get(context.Background(), "users", "u1")
	require.ErrorIs(t, err, store.ErrNotConfigured)
	require.ErrorIs(t, bare.Set(context.Background(), "users", "u1", nil, false), store.ErrNotConfigured)
	_, err = bare.Query(context.Background(), "users", store.Options{})
	require.ErrorIs(t, err, store.ErrNotConfigured)
	require.NoError(t, bare.Close())
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), "", "")
	require.Error(t, err)
}
