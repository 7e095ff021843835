package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Rule is an opaque validation rule document. A nil Rule means the
// collection declares no rule.
type Rule map[string]any

// Description is a declarative name→rule mapping for document and edge
// collections. The two maps are separate namespaces.
type Description struct {
	Collections     map[string]Rule `json:"collections" yaml:"collections"`
	EdgeCollections map[string]Rule `json:"edge_collections" yaml:"edge_collections"`
}

// Empty returns a description with no collections.
func Empty() Description {
	return Description{
		Collections:     map[string]Rule{},
		EdgeCollections: map[string]Rule{},
	}
}

// Normalize replaces nil maps with empty ones.
func (d Description) Normalize() Description {
	if d.Collections == nil {
		d.Collections = map[string]Rule{}
	}
	if d.EdgeCollections == nil {
		d.EdgeCollections = map[string]Rule{}
	}
	return d
}

// IsEmpty reports whether d declares no collections at all.
func (d Description) IsEmpty() bool {
	return len(d.Collections) == 0 && len(d.EdgeCollections) == 0
}

// Has reports whether name is declared in either category.
func (d Description) Has(name string) bool {
	if _, ok := d.Collections[name]; ok {
		return true
	}
	_, ok := d.EdgeCollections[name]
	return ok
}

// Names returns every declared name, document collections first.
func (d Description) Names() []string {
	out := sortedNames(d.Collections)
	return append(out, sortedNames(d.EdgeCollections)...)
}

// JSON renders d as a single-line JSON document with sorted keys.
func (d Description) JSON() (string, error) {
	return marshalJS(d.Normalize())
}

// Level is a collection validation level. The zero value means no
// validation was requested.
type Level string

const (
	LevelUnset    Level = ""
	LevelNone     Level = "none"
	LevelNew      Level = "new"
	LevelModerate Level = "moderate"
	LevelStrict   Level = "strict"
)

// ParseLevel validates s as a validation level. An empty string yields
// LevelUnset.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelUnset, LevelNone, LevelNew, LevelModerate, LevelStrict:
		return l, nil
	default:
		return LevelUnset, fmt.Errorf("invalid validation level %q: expected one of none, new, moderate, strict", s)
	}
}

// ValidationMessage is attached to every generated collection schema.
const ValidationMessage = "Document violates collection validation rules"

// Options builds collection options for rule at level. Options are empty
// unless a level was requested and the rule is non-empty; the rule's
// "type" key is dropped.
func Options(rule Rule, level Level) map[string]any {
	opts := map[string]any{}
	if level == LevelUnset || len(rule) == 0 {
		return opts
	}
	body := make(map[string]any, len(rule))
	for k, v := range rule {
		if k == "type" {
			continue
		}
		body[k] = v
	}
	opts["schema"] = map[string]any{
		"rule":    body,
		"level":   string(level),
		"message": ValidationMessage,
	}
	return opts
}

func marshalJS(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
