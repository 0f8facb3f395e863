package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Operator is a query comparison operator. The set is closed; adapters must
// reject unsupported operators explicitly rather than mis-translating them.
type Operator string

const (
	OpEqual              Operator = "=="
	OpNotEqual           Operator = "!="
	OpLessThan           Operator = "<"
	OpLessThanOrEqual    Operator = "<="
	OpGreaterThan        Operator = ">"
	OpGreaterThanOrEqual Operator = ">="
	OpArrayContains      Operator = "array-contains"
	OpIn                 Operator = "in"
)

// Valid reports whether op is a member of the closed operator set.
func (op Operator) Valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLessThan, OpLessThanOrEqual,
		OpGreaterThan, OpGreaterThanOrEqual, OpArrayContains, OpIn:
		return true
	}
	return false
}

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Condition is one (field, operator, value) filter. Conditions in a query
// conjoin; there is no disjunction.
type Condition struct {
	Field string   `json:"field"`
	Op    Operator `json:"op"`
	Value any      `json:"value"`
}

// Order is one (field, direction) sort key.
type Order struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Options describes a query: conjunctive conditions, multi-key ordering, an
// optional limit and an optional cursor from a previous page. When no
// ordering is given, result order is backend-defined and must not be relied
// upon.
type Options struct {
	Conditions []Condition `json:"conditions,omitempty"`
	OrderBy    []Order     `json:"orderBy,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Cursor     Cursor      `json:"cursor,omitempty"`
}

// Validate rejects options outside the closed contract before translation.
func (o Options) Validate() error {
	for _, c := range o.Conditions {
		if c.Field == "" {
			return fmt.Errorf("condition on empty field path")
		}
		if !c.Op.Valid() {
			return fmt.Errorf("%w: %q", ErrUnsupportedOperator, c.Op)
		}
	}
	for _, ord := range o.OrderBy {
		if ord.Field == "" {
			return fmt.Errorf("order on empty field path")
		}
		if ord.Direction != Ascending && ord.Direction != Descending {
			return fmt.Errorf("invalid sort direction %q", ord.Direction)
		}
	}
	if o.Limit < 0 {
		return fmt.Errorf("negative limit %d", o.Limit)
	}
	return nil
}

// Cursor is an opaque pagination resumption token. Callers persist and
// resubmit it verbatim; its contents belong to the adapter that issued it and
// are resumable only against that adapter's backend.
type Cursor string

// Result is one page of query results. Cursor is empty when the page was not
// limited; HasMore is computed as len(Items) >= limit when a limit was
// supplied. That is a known approximation: it falsely reports true when the
// result set exactly equals the page size, and the follow-up query then
// returns an empty page.
type Result struct {
	Items   []*Document `json:"items"`
	Cursor  Cursor      `json:"cursor,omitempty"`
	HasMore bool        `json:"hasMore"`
}

// cursorEnvelope tags the adapter-private payload with the issuing backend so
// a token replayed against the wrong backend fails loudly instead of being
// misread.
type cursorEnvelope struct {
	Backend string          `json:"b"`
	Payload json.RawMessage `json:"p"`
}

// EncodeCursor wraps an adapter-private payload into an opaque token.
func EncodeCursor(backend string, payload any) (Cursor, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode cursor payload: %w", err)
	}
	env, err := json.Marshal(cursorEnvelope{Backend: backend, Payload: raw})
	if err != nil {
		return "", fmt.Errorf("encode cursor envelope: %w", err)
	}
	return Cursor(base64.RawURLEncoding.EncodeToString(env)), nil
}

// DecodeCursor unwraps a token issued by EncodeCursor into payload. It
// returns ErrCursorMismatch when the token was issued by a different backend.
func DecodeCursor(c Cursor, backend string, payload any) error {
	raw, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return fmt.Errorf("malformed cursor: %w", err)
	}
	var env cursorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("malformed cursor: %w", err)
	}
	if env.Backend != backend {
		return fmt.Errorf("%w: issued by %q, replayed against %q", ErrCursorMismatch, env.Backend, backend)
	}
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return fmt.Errorf("malformed cursor payload: %w", err)
	}
	return nil
}

// PageHasMore implements the shared hasMore approximation.
func PageHasMore(itemCount, limit int) bool {
	return limit > 0 && itemCount >= limit
}
