package script

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/loykin/migrado/internal/schema"
)

func TestExtract_NestedBraces(t *testing.T) {
	src := "// header\nfunction forward(){ if(x){y=1} }\n// middle\nfunction reverse(){ z=2 }\nforward()\n"

	fwd, ok := Extract(src, Forward)
	if !ok || fwd != "function forward(){ if(x){y=1} }" {
		t.Fatalf("forward = %q, %v", fwd, ok)
	}
	rev, ok := Extract(src, Reverse)
	if !ok || rev != "function reverse(){ z=2 }" {
		t.Fatalf("reverse = %q, %v", rev, ok)
	}
}

func TestExtract_WhitespaceAndParams(t *testing.T) {
	src := "function   forward ( a, b )\n{\n  return a\n}\n\nfunction\treverse()\t{ }"
	fwd, ok := Extract(src, Forward)
	if !ok || !strings.HasSuffix(fwd, "return a\n}") {
		t.Fatalf("forward = %q", fwd)
	}
	if rev, ok := Extract(src, Reverse); !ok || rev != "function\treverse()\t{ }" {
		t.Fatalf("reverse = %q", rev)
	}
}

func TestExtract_IgnoresBracesInLiteralsAndComments(t *testing.T) {
	src := `function forward() {
    var s = "}"; var t = '{'; var u = ` + "`${x} }`" + `
    // } stray
    /* { also stray */
    db._create("a")
}
function reverse() { db._drop("a") }`

	fwd, ok := Extract(src, Forward)
	if !ok || !strings.HasSuffix(fwd, "db._create(\"a\")\n}") {
		t.Fatalf("forward = %q", fwd)
	}
	if _, ok := Extract(src, Reverse); !ok {
		t.Fatal("reverse should be found")
	}
}

func TestExtract_RegexLiterals(t *testing.T) {
	cases := map[string]string{
		"quote in regex":    `var s = "it's".replace(/'/g, "")`,
		"brace in regex":    `var re = /\{/`,
		"class with slash":  `var re = /[/}]+/gi`,
		"after return":      `return /"/.test(x)`,
		"escaped slash":     `var re = /a\/}/`,
		"division kept":     `var half = (a + b) / 2; var q = n / 4 / 2`,
		"division then str": `var r = total / count + "}"`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			src := "function forward() {\n    " + line + "\n    if (x) { db._create(\"things\") }\n}\n\n" +
				"function reverse() {\n    db._drop(\"things\")\n}\n"
			fwd, ok := Extract(src, Forward)
			if !ok || !strings.Contains(fwd, line) || !strings.HasSuffix(fwd, "}\n}") {
				t.Fatalf("forward = %q ok=%v", fwd, ok)
			}
			rev, ok := Extract(src, Reverse)
			if !ok || !strings.Contains(rev, `db._drop("things")`) {
				t.Fatalf("reverse = %q ok=%v", rev, ok)
			}
		})
	}
}

func TestExtractSchema_IgnoresRegexLiteral(t *testing.T) {
	body := "function forward() {\n    var re = /var schema = {/\n}"
	desc, err := ExtractSchema(body)
	if err != nil || desc != nil {
		t.Fatalf("desc = %v err = %v", desc, err)
	}
}

func TestExtract_ShapeMismatch(t *testing.T) {
	cases := map[string]string{
		"reverse first":  "function reverse(){ a() }\nfunction forward(){ b() }",
		"forward only":   "function forward(){ a() }",
		"unbalanced":     "function forward(){ if (x) { }\nfunction reverse(){ }",
		"commented out":  "// function forward(){ }\nfunction reverse(){ }",
		"name prefix":    "function forwardAll(){ }\nfunction reverse(){ }",
		"empty":          "",
		"in string only": `var s = "function forward(){ }"; function reverse(){ }`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			for _, d := range []Direction{Forward, Reverse} {
				if body, ok := Extract(src, d); ok {
					t.Fatalf("%s: expected none, got %q", d, body)
				}
			}
		})
	}
	if _, ok := Extract(Template, None); ok {
		t.Fatal("direction none should never extract")
	}
}

func TestExtract_Template(t *testing.T) {
	fwd, ok := Extract(Template, Forward)
	if !ok || !strings.Contains(fwd, forwardPlaceholder) {
		t.Fatalf("forward = %q", fwd)
	}
	rev, ok := Extract(Template, Reverse)
	if !ok || !strings.Contains(rev, reversePlaceholder) || strings.Contains(rev, "forward()") {
		t.Fatalf("reverse = %q", rev)
	}
}

func TestParseWriteCollections(t *testing.T) {
	src := "// write books\n//write authors\nfunction forward() {\n  //   write author_of\n}\n"
	got := ParseWriteCollections(src)
	if !reflect.DeepEqual(got, []string{"books", "authors", "author_of"}) {
		t.Fatalf("got %v", got)
	}

	got = ParseWriteCollections("// write my-coll\n")
	if !reflect.DeepEqual(got, []string{"my-coll"}) {
		t.Fatalf("hyphenated name: %v", got)
	}

	got = ParseWriteCollections(Template)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestExtractSchema(t *testing.T) {
	src := `function forward() {
    var db = require("@arangodb").db
    var schema = {"collections": {"things": null, "books": {"properties": {"n": {"type": "number"}}}}, "edge_collections": {}}
    db._create("things", {})
}`
	d, err := ExtractSchema(src)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || !d.Has("things") || !d.Has("books") {
		t.Fatalf("schema = %#v", d)
	}
	if d.EdgeCollections == nil {
		t.Fatal("edge collections should be normalized")
	}
}

func TestExtractSchema_Absent(t *testing.T) {
	for _, src := range []string{
		Template,
		"// var schema = {broken\nfunction forward(){}",
		"function forward(){ var schema = null }",
	} {
		d, err := ExtractSchema(src)
		if err != nil || d != nil {
			t.Fatalf("ExtractSchema(%q) = %v, %v", src, d, err)
		}
	}
}

func TestExtractSchema_Malformed(t *testing.T) {
	for _, src := range []string{
		"function forward() {\n  var schema = {\"collections\": {things: null}}\n}",
		"var schema = {\"collections\": {}",
		"var schema = 42",
	} {
		_, err := ExtractSchema(src)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("ExtractSchema(%q): expected ParseError, got %v", src, err)
		}
		if pe.Line == 0 {
			t.Fatalf("expected a line number in %v", pe)
		}
	}
}

func TestCheck(t *testing.T) {
	body, _ := Extract(Template, Forward)
	if err := Check("0001_initial.js", body); err != nil {
		t.Fatalf("template should compile: %v", err)
	}

	err := Check("0002.js", "function forward() { var x = ; }")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if !strings.Contains(pe.Error(), "0002.js") {
		t.Fatalf("error should name the migration: %v", pe)
	}
}

func TestRender(t *testing.T) {
	desc := schema.Description{Collections: map[string]schema.Rule{"things": nil}}
	js, err := desc.JSON()
	if err != nil {
		t.Fatal(err)
	}
	out := Render(
		[]string{SchemaStatement(js), `db._create("things", {})`},
		[]string{`db._drop("things")`},
	)
	if strings.Contains(out, forwardPlaceholder) || strings.Contains(out, reversePlaceholder) {
		t.Fatalf("placeholders not replaced:\n%s", out)
	}
	fwd, ok := Extract(out, Forward)
	if !ok || !strings.Contains(fwd, "\n    db._create(\"things\", {})") {
		t.Fatalf("forward = %q", fwd)
	}
	got, err := ExtractSchema(fwd)
	if err != nil || got == nil || !got.Has("things") {
		t.Fatalf("schema round trip: %v, %v", got, err)
	}
	rev, _ := Extract(out, Reverse)
	if s, _ := ExtractSchema(rev); s != nil {
		t.Fatalf("reverse carries no schema, got %v", s)
	}

	if Render(nil, nil) != Template {
		t.Fatal("empty render should return the template")
	}
}

func TestParseErrorMessage(t *testing.T) {
	e := &ParseError{Name: "0003.js", Line: 2, Column: 5, Msg: "malformed schema literal", Err: errors.New("boom")}
	if e.Error() != "0003.js:2:5: malformed schema literal: boom" {
		t.Fatalf("got %q", e.Error())
	}
	if !errors.Is(e, e.Err) {
		t.Fatal("ParseError should unwrap")
	}
}
