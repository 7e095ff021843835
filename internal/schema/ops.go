package schema

import (
	"fmt"
	"slices"
)

// OpKind is the kind of a generated collection operation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpAlter  OpKind = "alter"
	OpDrop   OpKind = "drop"
)

// Operation is one generated arangosh statement.
type Operation struct {
	Kind    OpKind
	Name    string
	Edge    bool
	Options map[string]any
}

// JS renders the operation as an arangosh statement.
func (o Operation) JS() (string, error) {
	name, err := marshalJS(o.Name)
	if err != nil {
		return "", err
	}
	switch o.Kind {
	case OpDrop:
		return fmt.Sprintf("db._drop(%s)", name), nil
	case OpCreate, OpAlter:
		opts := o.Options
		if opts == nil {
			opts = map[string]any{}
		}
		rendered, err := marshalJS(opts)
		if err != nil {
			return "", fmt.Errorf("render options for %s: %w", o.Name, err)
		}
		if o.Kind == OpAlter {
			return fmt.Sprintf("db._collection(%s).properties(%s)", name, rendered), nil
		}
		if o.Edge {
			return fmt.Sprintf("db._create(%s, %s, \"edge\")", name, rendered), nil
		}
		return fmt.Sprintf("db._create(%s, %s)", name, rendered), nil
	default:
		return "", fmt.Errorf("unknown operation kind %q", o.Kind)
	}
}

// Statements renders ops in order.
func Statements(ops []Operation) ([]string, error) {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		s, err := op.JS()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ForwardOps emits creates for new entries, alters for updated entries and
// drops for removed entries: document collections before edge
// collections within each group, names sorted.
func ForwardOps(d DiffResult, level Level) []Operation {
	var ops []Operation
	for _, g := range []struct {
		entries map[string]Rule
		kind    OpKind
		edge    bool
	}{
		{d.Collections.New, OpCreate, false},
		{d.EdgeCollections.New, OpCreate, true},
		{d.Collections.Updated, OpAlter, false},
		{d.EdgeCollections.Updated, OpAlter, true},
		{d.Collections.Removed, OpDrop, false},
		{d.EdgeCollections.Removed, OpDrop, true},
	} {
		for _, name := range sortedNames(g.entries) {
			op := Operation{Kind: g.kind, Name: name, Edge: g.edge}
			if g.kind != OpDrop {
				op.Options = Options(g.entries[name], level)
			}
			ops = append(ops, op)
		}
	}
	return ops
}

// ReverseOps emits the inverse of ForwardOps(d, level) in reverse order.
// Updated entries revert to their previous rule and removed entries are
// recreated with it.
func ReverseOps(d DiffResult, level Level) []Operation {
	forward := ForwardOps(d, level)
	ops := make([]Operation, 0, len(forward))
	for _, op := range forward {
		ops = append(ops, inverse(op, d.Previous, level))
	}
	slices.Reverse(ops)
	return ops
}

func inverse(op Operation, previous Description, level Level) Operation {
	prevRule := previous.Collections[op.Name]
	if op.Edge {
		prevRule = previous.EdgeCollections[op.Name]
	}
	switch op.Kind {
	case OpCreate:
		return Operation{Kind: OpDrop, Name: op.Name, Edge: op.Edge}
	case OpDrop:
		return Operation{Kind: OpCreate, Name: op.Name, Edge: op.Edge, Options: Options(prevRule, level)}
	default:
		return Operation{Kind: OpAlter, Name: op.Name, Edge: op.Edge, Options: Options(prevRule, level)}
	}
}
