package sqlite

import (
	"context"
	"fmt"
	"strings"

	"docuport-backend-go/internal/store"
)

// sqliteCursor is the engine continuation token wrapped into the opaque
// Cursor type: the row offset where the next page starts. Keyset resumption
// is not possible in general here because ordering keys live inside the JSON
// column.
type sqliteCursor struct {
	Collection string `json:"c"`
	Offset     int    `json:"o"`
}

// Query implements store.Store. Each condition becomes a parameterized clause
// fragment; values are bound positionally, never interpolated.
func (a *Adapter) Query(ctx context.Context, collection string, opts store.Options) (*store.Result, error) {
	if !a.IsConfigured() {
		return nil, store.ErrNotConfigured
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	where := []string{"collection = ?"}
	args := []any{collection}
	for _, c := range opts.Conditions {
		frag, fragArgs, err := translateCondition(c)
		if err != nil {
			return nil, err
		}
		where = append(where, frag)
		args = append(args, fragArgs...)
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, fields, created_ms, updated_ms FROM documents WHERE ")
	sb.WriteString(strings.Join(where, " AND "))

	sb.WriteString(" ORDER BY ")
	for _, ord := range opts.OrderBy {
		sb.WriteString("json_extract(fields, ?) ")
		if ord.Direction == store.Descending {
			sb.WriteString("DESC")
		} else {
			sb.WriteString("ASC")
		}
		sb.WriteString(", ")
		args = append(args, jsonPath(ord.Field))
	}
	// Stable tiebreaker so pages never overlap while paginating.
	sb.WriteString("id ASC")

	offset := 0
	if opts.Cursor != "" {
		var cur sqliteCursor
		if err := store.DecodeCursor(opts.Cursor, BackendKind, &cur); err != nil {
			return nil, err
		}
		if cur.Collection != collection {
			return nil, fmt.Errorf("%w: cursor issued for collection %q", store.ErrCursorMismatch, cur.Collection)
		}
		offset = cur.Offset
	}
	if opts.Limit > 0 {
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, opts.Limit, offset)
	} else if offset > 0 {
		sb.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, offset)
	}

	rows, err := a.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	items := []*store.Document{}
	for rows.Next() {
		var id, raw string
		var createdMS, updatedMS int64
		if err := rows.Scan(&id, &raw, &createdMS, &updatedMS); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		doc, err := decodeDocument(collection, id, raw, createdMS, updatedMS)
		if err != nil {
			return nil, err
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}

	res := &store.Result{
		Items:   items,
		HasMore: store.PageHasMore(len(items), opts.Limit),
	}
	if opts.Limit > 0 && len(items) > 0 {
		cursor, err := store.EncodeCursor(BackendKind, sqliteCursor{
			Collection: collection,
			Offset:     offset + len(items),
		})
		if err != nil {
			return nil, err
		}
		res.Cursor = cursor
	}
	return res, nil
}

func translateCondition(c store.Condition) (string, []any, error) {
	path := jsonPath(c.Field)
	switch c.Op {
	case store.OpEqual:
		v, err := bindValue(c.Value)
		return "json_extract(fields, ?) = ?", []any{path, v}, err
	case store.OpNotEqual:
		v, err := bindValue(c.Value)
		return "json_extract(fields, ?) != ?", []any{path, v}, err
	case store.OpLessThan:
		v, err := bindValue(c.Value)
		return "json_extract(fields, ?) < ?", []any{path, v}, err
	case store.OpLessThanOrEqual:
		v, err := bindValue(c.Value)
		return "json_extract(fields, ?) <= ?", []any{path, v}, err
	case store.OpGreaterThan:
		v, err := bindValue(c.Value)
		return "json_extract(fields, ?) > ?", []any{path, v}, err
	case store.OpGreaterThanOrEqual:
		v, err := bindValue(c.Value)
		return "json_extract(fields, ?) >= ?", []any{path, v}, err
	case store.OpArrayContains:
		v, err := bindValue(c.Value)
		return "EXISTS (SELECT 1 FROM json_each(documents.fields, ?) WHERE json_each.value = ?)",
			[]any{path, v}, err
	case store.OpIn:
		list, ok := c.Value.([]any)
		if !ok || len(list) == 0 {
			return "", nil, fmt.Errorf("operator %q requires a non-empty list value", store.OpIn)
		}
		placeholders := make([]string, len(list))
		args := []any{path}
		for i, item := range list {
			v, err := bindValue(item)
			if err != nil {
				return "", nil, err
			}
			placeholders[i] = "?"
			args = append(args, v)
		}
		return "json_extract(fields, ?) IN (" + strings.Join(placeholders, ", ") + ")", args, nil
	default:
		return "", nil, fmt.Errorf("%w: %q", store.ErrUnsupportedOperator, c.Op)
	}
}

func jsonPath(field string) string {
	return "$." + field
}

// bindValue restricts condition operands to scalars the engine can compare
// against json_extract output.
func bindValue(v any) (any, error) {
	switch n := v.(type) {
	case string, bool, float64, float32, int, int32, int64, nil:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported condition value type %T", n)
	}
}
