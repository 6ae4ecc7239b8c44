package kanban

import "context"

// List is a persisted, ordered collection owned by the workspace.
// The workspace's state.Collection implements it; controllers only mutate through it.
type List[T any] interface {
	// Snapshot returns a copy of the current items.
	Snapshot() []T

	// Mutate applies fn to a copy of the items and, when fn succeeds, stores and
	// broadcasts the result. An error from fn leaves the collection unchanged.
	Mutate(ctx context.Context, fn func([]T) ([]T, error)) error
}

// indexOf returns the position of the item with the given id, or -1.
func indexOf[T any](items []T, id string, idOf func(T) string) int {
	for i := range items {
		if idOf(items[i]) == id {
			return i
		}
	}
	return -1
}

func taskID(t Task) string       { return t.ID }
func meetingID(m Meeting) string { return m.ID }
