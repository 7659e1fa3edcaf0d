package speech

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned by ObjectStore.Get for unknown names.
var ErrObjectNotFound = errors.New("object not found")

// IndexRow points from an utterance to its stored audio.
type IndexRow struct {
	Text        string
	Language    string
	Hash        string
	StoragePath string
	SizeBytes   int64
	CreatedAt   time.Time
}

// Index is the remote lookup table. Lookup matches text and language exactly.
type Index interface {
	Lookup(ctx context.Context, text, language string) (IndexRow, bool, error)
	Insert(ctx context.Context, row IndexRow) error
	Close() error
}

// ObjectStore holds the remote audio bytes.
type ObjectStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

// Remote is the shared tier: an index plus the objects it points to.
type Remote struct {
	Index   Index
	Objects ObjectStore
}

// Close releases both halves of the tier.
func (r *Remote) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Index != nil {
		errs = append(errs, r.Index.Close())
	}
	if r.Objects != nil {
		errs = append(errs, r.Objects.Close())
	}
	return errors.Join(errs...)
}
