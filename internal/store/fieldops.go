package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// FieldOpKind identifies one of the five field operation variants. The set is
// closed: adapters switch exhaustively over it and reject anything else, so a
// new variant cannot be silently ignored by one backend.
type FieldOpKind string

const (
	OpIncrement       FieldOpKind = "increment"
	OpArrayUnion      FieldOpKind = "arrayUnion"
	OpArrayRemove     FieldOpKind = "arrayRemove"
	OpServerTimestamp FieldOpKind = "serverTimestamp"
	OpDeleteField     FieldOpKind = "deleteField"
)

// FieldOp is a tagged marker placed in a write payload to request an atomic
// update instead of a literal value write. Construct values with Increment,
// ArrayUnion, ArrayRemove, ServerTimestamp or DeleteField.
type FieldOp struct {
	kind  FieldOpKind
	delta float64
	items []any
}

// Increment atomically adds delta to a numeric field, treating a missing
// field as zero.
func Increment(delta float64) FieldOp {
	return FieldOp{kind: OpIncrement, delta: delta}
}

// ArrayUnion adds the given items to an array field, skipping items already
// present (set semantics).
func ArrayUnion(items ...any) FieldOp {
	return FieldOp{kind: OpArrayUnion, items: items}
}

// ArrayRemove removes all occurrences of the given items from an array field.
func ArrayRemove(items ...any) FieldOp {
	return FieldOp{kind: OpArrayRemove, items: items}
}

// ServerTimestamp sets the field to the backend's notion of the current time
// at write application.
func ServerTimestamp() FieldOp {
	return FieldOp{kind: OpServerTimestamp}
}

// DeleteField removes the field from the document.
func DeleteField() FieldOp {
	return FieldOp{kind: OpDeleteField}
}

// Kind returns the operation variant.
func (op FieldOp) Kind() FieldOpKind { return op.kind }

// Delta returns the increment delta; meaningful only for OpIncrement.
func (op FieldOp) Delta() float64 { return op.delta }

// Items returns the operand items; meaningful for OpArrayUnion/OpArrayRemove.
func (op FieldOp) Items() []any { return op.items }

// fieldOpWire is the JSON form of a FieldOp used by the proxy wire contract.
// The "$op" key doubles as the tag that distinguishes an operation from an
// ordinary map value.
type fieldOpWire struct {
	Op    FieldOpKind `json:"$op"`
	Delta float64     `json:"delta,omitempty"`
	Items []any       `json:"items,omitempty"`
}

// MarshalJSON encodes the operation as a tagged object.
func (op FieldOp) MarshalJSON() ([]byte, error) {
	if op.kind == "" {
		return nil, fmt.Errorf("cannot marshal zero FieldOp")
	}
	return json.Marshal(fieldOpWire{Op: op.kind, Delta: op.delta, Items: op.items})
}

// UnmarshalJSON decodes a tagged object produced by MarshalJSON.
func (op *FieldOp) UnmarshalJSON(data []byte) error {
	var w fieldOpWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Op {
	case OpIncrement, OpArrayUnion, OpArrayRemove, OpServerTimestamp, OpDeleteField:
		op.kind, op.delta, op.items = w.Op, w.Delta, w.Items
		return nil
	default:
		return fmt.Errorf("unknown field operation %q", w.Op)
	}
}

// ReviveFieldOps walks a field map freshly decoded from JSON and replaces
// tagged objects with FieldOp values. The proxy intermediary calls this on
// incoming write payloads so operations survive the wire round-trip.
func ReviveFieldOps(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return nil, nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		m, ok := v.(map[string]any)
		if !ok {
			out[k] = v
			continue
		}
		tag, tagged := m["$op"].(string)
		if !tagged {
			out[k] = v
			continue
		}
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("re-encode field %q: %w", k, err)
		}
		var op FieldOp
		if err := op.UnmarshalJSON(raw); err != nil {
			return nil, fmt.Errorf("field %q: invalid operation %q: %w", k, tag, err)
		}
		out[k] = op
	}
	return out, nil
}

// ApplyFieldOps resolves a write payload against the current document state,
// returning the merged field map. This is the read-modify-write fallback used
// where a backend has no native primitive for a variant; it is not atomic
// under concurrent writers and adapters using it document that loss.
//
// existing may be nil (document absent). now supplies the server timestamp.
func ApplyFieldOps(existing, updates map[string]any, now time.Time) (map[string]any, error) {
	out := make(map[string]any, len(existing)+len(updates))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range updates {
		op, isOp := v.(FieldOp)
		if !isOp {
			out[k] = v
			continue
		}
		switch op.Kind() {
		case OpIncrement:
			base, err := toFloat(out[k])
			if err != nil {
				return nil, fmt.Errorf("increment %q: %w", k, err)
			}
			out[k] = base + op.Delta()
		case OpArrayUnion:
			arr := toArray(out[k])
			for _, item := range op.Items() {
				if !containsValue(arr, item) {
					arr = append(arr, item)
				}
			}
			out[k] = arr
		case OpArrayRemove:
			arr := toArray(out[k])
			kept := make([]any, 0, len(arr))
			for _, cur := range arr {
				if !containsValue(op.Items(), cur) {
					kept = append(kept, cur)
				}
			}
			out[k] = kept
		case OpServerTimestamp:
			out[k] = now.UTC()
		case OpDeleteField:
			delete(out, k)
		default:
			return nil, fmt.Errorf("field %q: unknown field operation %q", k, op.Kind())
		}
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("field holds non-numeric value %T", v)
	}
}

func toArray(v any) []any {
	if arr, ok := v.([]any); ok {
		return arr
	}
	return nil
}

// containsValue compares by normalized JSON encoding, so 1 and 1.0 (or two
// equal maps) count as the same set member regardless of decode path.
func containsValue(arr []any, item any) bool {
	want, err := json.Marshal(normalize(item))
	if err != nil {
		return false
	}
	for _, cur := range arr {
		got, err := json.Marshal(normalize(cur))
		if err == nil && string(got) == string(want) {
			return true
		}
	}
	return false
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
