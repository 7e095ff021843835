package script

// block is a half-open byte range [start, end) of a function definition.
type block struct {
	start, end int
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// skipLiteral returns the index just past the comment, string or regular
// expression literal starting at i. ok is false when no literal starts at i or it is
// unterminated.
func skipLiteral(src string, i int) (next int, ok bool) {
	c := src[i]
	switch {
	case c == '/' && i+1 < len(src) && src[i+1] == '/':
		for j := i + 2; j < len(src); j++ {
			if src[j] == '\n' {
				return j + 1, true
			}
		}
		return len(src), true
	case c == '/' && i+1 < len(src) && src[i+1] == '*':
		for j := i + 2; j+1 < len(src); j++ {
			if src[j] == '*' && src[j+1] == '/' {
				return j + 2, true
			}
		}
		return len(src), false
	case c == '\'' || c == '"' || c == '`':
		for j := i + 1; j < len(src); j++ {
			switch src[j] {
			case '\\':
				j++
			case c:
				return j + 1, true
			case '\n':
				if c != '`' {
					return j, false
				}
			}
		}
		return len(src), false
	case c == '/':
		return skipRegex(src, i)
	}
	return i, false
}

// skipRegex returns the index just past the regular expression literal
// starting at i, flags included.
func skipRegex(src string, i int) (int, bool) {
	inClass := false
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '\n':
			return j, false
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '/':
			if inClass {
				continue
			}
			j++
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			return j, true
		}
	}
	return len(src), false
}

// regexKeywords may directly precede a regular expression literal.
var regexKeywords = map[string]bool{
	"return": true, "typeof": true, "case": true, "do": true, "else": true,
	"in": true, "of": true, "new": true, "delete": true, "void": true,
	"throw": true, "instanceof": true, "yield": true, "await": true,
}

// regexAllowed reports whether a slash at i opens a regular expression
// rather than a division, judged by the token before it.
func regexAllowed(src string, i int) bool {
	j := i - 1
	for j >= 0 && isSpace(src[j]) {
		j--
	}
	if j < 0 {
		return true
	}
	c := src[j]
	if isIdentByte(c) {
		end := j + 1
		for j >= 0 && isIdentByte(src[j]) {
			j--
		}
		return regexKeywords[src[j+1:end]]
	}
	switch c {
	case ')', ']', '"', '\'', '`':
		return false
	}
	return true
}

func isLiteralStart(src string, i int) bool {
	c := src[i]
	if c == '\'' || c == '"' || c == '`' {
		return true
	}
	if c != '/' || i+1 >= len(src) {
		return false
	}
	if src[i+1] == '/' || src[i+1] == '*' {
		return true
	}
	return regexAllowed(src, i)
}

// matchPair returns the index just past the closer that balances the
// opener at src[open], ignoring brackets inside literals and comments.
func matchPair(src string, open int, opener, closer byte) (int, bool) {
	depth := 0
	for i := open; i < len(src); {
		if isLiteralStart(src, i) {
			next, ok := skipLiteral(src, i)
			if !ok {
				return 0, false
			}
			i = next
			continue
		}
		switch src[i] {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
		i++
	}
	return 0, false
}

func skipSpace(src string, i int) int {
	for i < len(src) && isSpace(src[i]) {
		i++
	}
	return i
}

// findFunction locates `function <name>(...) {...}` at or after from,
// outside literals and comments.
func findFunction(src, name string, from int) (block, bool) {
	const keyword = "function"
	for i := from; i < len(src); {
		if isLiteralStart(src, i) {
			next, ok := skipLiteral(src, i)
			if !ok {
				return block{}, false
			}
			i = next
			continue
		}
		if !isIdentByte(src[i]) {
			i++
			continue
		}
		start := i
		for i < len(src) && isIdentByte(src[i]) {
			i++
		}
		if src[start:i] != keyword {
			continue
		}
		if end, ok := matchSignature(src, i, name); ok {
			return block{start: start, end: end}, true
		}
	}
	return block{}, false
}

// matchSignature matches ` name (params) {body}` starting right after the
// function keyword and returns the end of the body.
func matchSignature(src string, i int, name string) (int, bool) {
	j := skipSpace(src, i)
	if j == i || len(src)-j < len(name) || src[j:j+len(name)] != name {
		return 0, false
	}
	j += len(name)
	if j < len(src) && isIdentByte(src[j]) {
		return 0, false
	}
	j = skipSpace(src, j)
	if j >= len(src) || src[j] != '(' {
		return 0, false
	}
	j, ok := matchPair(src, j, '(', ')')
	if !ok {
		return 0, false
	}
	j = skipSpace(src, j)
	if j >= len(src) || src[j] != '{' {
		return 0, false
	}
	return matchPair(src, j, '{', '}')
}
