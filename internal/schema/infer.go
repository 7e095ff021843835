package schema

// CollectionInfo describes one live collection.
type CollectionInfo struct {
	Name   string
	Edge   bool
	System bool
	// Rule is the collection's live validation rule, nil when it has none.
	Rule Rule
}

// Infer builds a description from a live collection listing. System
// collections and stateCollection are skipped; rules are only carried when
// withRules is set.
func Infer(collections []CollectionInfo, stateCollection string, withRules bool) Description {
	d := Empty()
	for _, c := range collections {
		if c.System || c.Name == stateCollection {
			continue
		}
		var rule Rule
		if withRules && len(c.Rule) > 0 {
			rule = c.Rule
		}
		if c.Edge {
			d.EdgeCollections[c.Name] = rule
		} else {
			d.Collections[c.Name] = rule
		}
	}
	return d
}
