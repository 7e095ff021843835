// Package script reads migration scripts: the forward and reverse
// function bodies, write-collection annotations and the embedded schema
// literal.
package script

import (
	"regexp"
)

// Direction selects which function of a migration runs.
type Direction string

const (
	None    Direction = ""
	Forward Direction = "forward"
	Reverse Direction = "reverse"
)

// Extract returns the text of the requested function definition, from the
// function keyword through its closing brace. The script must define
// forward followed by reverse; any other shape yields ok == false for
// every direction.
func Extract(text string, d Direction) (body string, ok bool) {
	fwd, ok := findFunction(text, string(Forward), 0)
	if !ok {
		return "", false
	}
	rev, ok := findFunction(text, string(Reverse), fwd.end)
	if !ok {
		return "", false
	}
	switch d {
	case Forward:
		return text[fwd.start:fwd.end], true
	case Reverse:
		return text[rev.start:rev.end], true
	default:
		return "", false
	}
}

var writeAnnotation = regexp.MustCompile(`//\s*write\s*([\w-]+)`)

// ParseWriteCollections returns the names declared with `// write NAME`
// annotations, in source order.
func ParseWriteCollections(text string) []string {
	names := []string{}
	for _, m := range writeAnnotation.FindAllStringSubmatch(text, -1) {
		names = append(names, m[1])
	}
	return names
}
