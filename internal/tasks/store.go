package tasks

import "context"

// Store is the record store adapter. Single-document writes are atomic;
// nothing spans more than one document.
type Store interface {
	// List returns every record ordered by CreatedTime descending.
	List(ctx context.Context) ([]Task, error)
	// ListByParent is a one-shot fetch of records whose ParentID equals parentID.
	ListByParent(ctx context.Context, parentID string) ([]Task, error)
	// Get returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (Task, error)
	// Put writes one document. With merge, absent fields of task leave the
	// stored values untouched (see Task.MergeInto); without it the document is
	// replaced.
	Put(ctx context.Context, task Task, merge bool) error
	// Delete of a missing id succeeds.
	Delete(ctx context.Context, id string) error
	NewID() string
}
