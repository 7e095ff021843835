package script

import (
	"errors"

	"github.com/dop251/goja"
)

// Check compiles body as a function expression so syntax errors surface
// before the body reaches the database. Nothing is executed.
func Check(name, body string) error {
	_, err := goja.Compile(name, "("+body+")", false)
	if err == nil {
		return nil
	}
	pe := &ParseError{Name: name, Msg: "syntax error", Err: err}
	var syntaxErr *goja.CompilerSyntaxError
	if errors.As(err, &syntaxErr) {
		pe.Msg = syntaxErr.Message
		pe.Err = nil
		if syntaxErr.File != nil {
			pos := syntaxErr.File.Position(syntaxErr.Offset)
			pe.Line = pos.Line
			pe.Column = pos.Column
		}
	}
	return pe
}
