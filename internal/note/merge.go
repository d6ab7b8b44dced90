package note

// MergeOptions controls how an imported batch is combined with a store.
type MergeOptions struct {
	// OverwriteExisting replaces a stored note that has the same id, in place
	OverwriteExisting bool `json:"overwrite_existing"`

	// MergeCollections registers each imported note's collection
	MergeCollections bool `json:"merge_collections"`
}

// DefaultMergeOptions keeps existing notes and registers new collections.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		OverwriteExisting: false,
		MergeCollections:  true,
	}
}

// Merge folds batch into state and returns the new state. Neither input is
// modified.
//
// Notes whose id is already present are replaced at their original position
// when OverwriteExisting is set and dropped otherwise; new notes are appended
// in batch order. Callers don't need to pre-filter the batch. Without
// MergeCollections, notes aimed at an unregistered collection land in Default.
func Merge(state State, batch []Note, opts MergeOptions) State {
	merged := state.Clone()
	if merged.Notes == nil {
		merged.Notes = []Note{}
	}

	index := make(map[string]int, len(merged.Notes))
	for i, n := range merged.Notes {
		if _, seen := index[n.ID]; !seen {
			index[n.ID] = i
		}
	}

	if !merged.HasCollection(DefaultCollection) {
		merged.Collections = append([]string{DefaultCollection}, merged.Collections...)
	}

	for _, incoming := range batch {
		if !opts.MergeCollections && !merged.HasCollection(incoming.Collection) {
			incoming.Collection = DefaultCollection
		}

		if i, exists := index[incoming.ID]; exists {
			if opts.OverwriteExisting {
				merged.Notes[i] = incoming
			}
		} else {
			index[incoming.ID] = len(merged.Notes)
			merged.Notes = append(merged.Notes, incoming)
		}

		if opts.MergeCollections {
			merged.EnsureCollection(incoming.Collection)
		}
	}

	return merged
}
