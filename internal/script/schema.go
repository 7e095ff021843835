package script

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/loykin/migrado/internal/schema"
)

var schemaAssignment = regexp.MustCompile(`\b(?:var|let|const)\s+schema\s*=\s*`)

// ExtractSchema decodes the `var schema = {...}` literal in text. It
// returns nil without error when there is no such assignment or it is
// assigned null.
func ExtractSchema(text string) (*schema.Description, error) {
	start := -1
	for _, loc := range schemaAssignment.FindAllStringIndex(text, -1) {
		if !insideLiteral(text, loc[0]) {
			start = loc[1]
			break
		}
	}
	if start < 0 {
		return nil, nil
	}

	if strings.HasPrefix(text[start:], "null") {
		return nil, nil
	}
	if start >= len(text) || text[start] != '{' {
		line, col := lineCol(text, start)
		return nil, &ParseError{Line: line, Column: col, Msg: "schema literal must be an object"}
	}
	end, ok := matchPair(text, start, '{', '}')
	if !ok {
		line, col := lineCol(text, start)
		return nil, &ParseError{Line: line, Column: col, Msg: "unterminated schema literal"}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text[start:end])))
	dec.UseNumber()
	var d schema.Description
	if err := dec.Decode(&d); err != nil {
		line, col := lineCol(text, start)
		return nil, &ParseError{Line: line, Column: col, Msg: "malformed schema literal", Err: err}
	}
	d = d.Normalize()
	return &d, nil
}

// insideLiteral reports whether offset falls within a comment or string.
func insideLiteral(src string, offset int) bool {
	for i := 0; i < offset && i < len(src); {
		if isLiteralStart(src, i) {
			next, _ := skipLiteral(src, i)
			if offset < next {
				return true
			}
			i = next
			continue
		}
		i++
	}
	return false
}
