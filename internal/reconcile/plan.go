package reconcile

import "github.com/sakif/life-tracker/internal/model"

// plan computes the change set that converges persisted onto submitted.
//
//   - a persisted item whose id is absent from submitted is deleted
//   - a submitted item whose id matches a persisted item is merged into a copy
//     of it; the copy is written back only if merge reports a change
//   - submitted items without an id, or with an id that is not persisted,
//     are ignored (creation is a separate operation)
//
// plan performs no I/O. Any merge error aborts planning, so validation
// failures are reported before a single write happens.
func plan[T any, I any](
	persisted []T,
	submitted []I,
	idOf func(T) string,
	itemID func(I) string,
	merge func(current *T, item I) (bool, error),
) (model.ChangeSet[T], error) {
	var cs model.ChangeSet[T]

	keep := make(map[string]struct{}, len(submitted))
	for _, item := range submitted {
		if id := itemID(item); id != "" {
			keep[id] = struct{}{}
		}
	}

	index := make(map[string]int, len(persisted))
	working := make([]T, len(persisted))
	copy(working, persisted)
	for i, p := range persisted {
		id := idOf(p)
		index[id] = i
		if _, ok := keep[id]; !ok {
			cs.Deleted = append(cs.Deleted, id)
		}
	}

	changed := make([]bool, len(persisted))
	for _, item := range submitted {
		id := itemID(item)
		if id == "" {
			continue
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		didChange, err := merge(&working[i], item)
		if err != nil {
			return model.ChangeSet[T]{}, err
		}
		changed[i] = changed[i] || didChange
	}

	for i := range working {
		if changed[i] {
			cs.Updated = append(cs.Updated, working[i])
		}
	}
	return cs, nil
}
