// Package reqid tags a context with the id of one projection so that
// subscribers can correlate its start, field and finish events.
package reqid

import (
	"context"
	"sync/atomic"
)

// key is the context key for the request ID.
type key struct{}

var last atomic.Int64

// NewContext returns a copy of parent with a new request ID stored.
// It also returns the generated ID. IDs are unique within the process.
func NewContext(parent context.Context) (context.Context, int64) {
	id := last.Add(1)
	return context.WithValue(parent, key{}, id), id
}

// Ensure returns ctx unchanged when it already carries an ID, and a derived
// context with a new ID otherwise.
func Ensure(ctx context.Context) (context.Context, int64) {
	if id, ok := FromContext(ctx); ok {
		return ctx, id
	}
	return NewContext(ctx)
}

// FromContext extracts the request ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(key{})
	id, ok := v.(int64)
	return id, ok
}
