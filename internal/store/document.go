package store

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Document is one addressable record: a field mapping identified by
// (collection, id). CreatedAt/UpdatedAt are backend-assigned metadata and are
// non-decreasing across successive writes to the same document.
type Document struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Fields     map[string]any `json:"fields"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Clone returns a shallow copy of the document with its own field map, so
// callers can mutate the result without aliasing adapter-owned state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Fields = make(map[string]any, len(d.Fields))
	for k, v := range d.Fields {
		c.Fields[k] = v
	}
	return &c
}

// NewDocumentID generates a collision-resistant document id for backends that
// do not assign ids themselves: a millisecond timestamp component (base36,
// sortable by creation time) plus a random suffix.
func NewDocumentID() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	u := uuid.New()
	return ts + "-" + hex.EncodeToString(u[:6])
}
