package model

// ChangeSet is the minimal set of writes that converges a user's persisted
// collection onto a submitted list. It is applied atomically by the store.
type ChangeSet[T any] struct {
	Deleted []string // ids to delete
	Updated []T      // full rows to write back
}

// Empty reports whether applying the change set would be a no-op.
func (c ChangeSet[T]) Empty() bool {
	return len(c.Deleted) == 0 && len(c.Updated) == 0
}
