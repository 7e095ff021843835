package schema

import "sort"

// CategoryDiff partitions one category of collections.
type CategoryDiff struct {
	New     map[string]Rule
	Updated map[string]Rule
	Removed map[string]Rule
}

// DiffResult is the per-category difference between two descriptions.
type DiffResult struct {
	Collections     CategoryDiff
	EdgeCollections CategoryDiff
	// Previous is kept so reverse operations can restore prior rules.
	Previous Description
}

// Diff compares previous against desired. Names present in both end up
// in Updated even when their rules are identical. New and Updated carry
// desired rules, Removed carries previous rules.
func Diff(previous, desired Description) DiffResult {
	previous = previous.Normalize()
	desired = desired.Normalize()
	return DiffResult{
		Collections:     diffCategory(previous.Collections, desired.Collections),
		EdgeCollections: diffCategory(previous.EdgeCollections, desired.EdgeCollections),
		Previous:        previous,
	}
}

func diffCategory(previous, desired map[string]Rule) CategoryDiff {
	cd := CategoryDiff{
		New:     map[string]Rule{},
		Updated: map[string]Rule{},
		Removed: map[string]Rule{},
	}
	for name, rule := range desired {
		if _, ok := previous[name]; ok {
			cd.Updated[name] = rule
		} else {
			cd.New[name] = rule
		}
	}
	for name, rule := range previous {
		if _, ok := desired[name]; !ok {
			cd.Removed[name] = rule
		}
	}
	return cd
}

// Empty reports whether the diff carries no entries at all.
func (d DiffResult) Empty() bool {
	return d.Collections.size() == 0 && d.EdgeCollections.size() == 0
}

func (c CategoryDiff) size() int {
	return len(c.New) + len(c.Updated) + len(c.Removed)
}

func sortedNames(m map[string]Rule) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
