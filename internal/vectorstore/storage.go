package vectorstore

import (
	"context"

	"ragchat/internal/domain"
)

// Factory returns a fresh, uninitialized index. The service asks for a new
// one on every build so the index serving queries is never reset in place.
type Factory func() domain.Index

// Dropper is implemented by indexes that hold external resources, such as a
// remote collection, which must be released once the index is replaced.
type Dropper interface {
	Drop(ctx context.Context) error
}

// Release drops idx if it holds external resources. Nil and in-process
// indexes are a no-op.
func Release(ctx context.Context, idx domain.Index) error {
	if d, ok := idx.(Dropper); ok {
		return d.Drop(ctx)
	}
	return nil
}
