package script

import "strings"

const (
	forwardPlaceholder = "// add your forward migration here"
	reversePlaceholder = "// add your reverse migration here"
	statementIndent    = "\n    "
)

// Template is the skeleton written for a new migration.
const Template = `#!/usr/bin/arangosh --javascript.execute
// migrado migration v0.6

function forward() {
    var db = require("@arangodb").db
    ` + forwardPlaceholder + `
}

function reverse() {
    var db = require("@arangodb").db
    ` + reversePlaceholder + `
}

forward() // default action
`

// Render fills Template with generated statements. An empty slice leaves
// the corresponding placeholder in place for hand editing.
func Render(forward, reverse []string) string {
	out := Template
	if len(forward) > 0 {
		out = strings.Replace(out, forwardPlaceholder, strings.Join(forward, statementIndent), 1)
	}
	if len(reverse) > 0 {
		out = strings.Replace(out, reversePlaceholder, strings.Join(reverse, statementIndent), 1)
	}
	return out
}

// SchemaStatement renders the schema literal line embedded in a function
// body.
func SchemaStatement(descJSON string) string {
	return "var schema = " + descJSON
}
