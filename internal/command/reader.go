package command

import (
	"strconv"
	"strings"
)

// reader walks a command line the way the in-game parser does: single
// spaces between tokens, strings either bare or quoted.
type reader struct {
	s   string
	pos int
}

func (r *reader) canRead() bool { return r.pos < len(r.s) }
func (r *reader) peek() byte    { return r.s[r.pos] }
func (r *reader) rest() string  { return r.s[r.pos:] }

func isUnquotedChar(c byte) bool {
	return c >= '0' && c <= '9' ||
		c >= 'A' && c <= 'Z' ||
		c >= 'a' && c <= 'z' ||
		c == '_' || c == '-' || c == '.' || c == '+'
}

func isQuote(c byte) bool { return c == '"' || c == '\'' }

func (r *reader) readUnquoted() string {
	start := r.pos
	for r.canRead() && isUnquotedChar(r.peek()) {
		r.pos++
	}
	return r.s[start:r.pos]
}

// readString reads a bare word or a quoted string with backslash escapes.
func (r *reader) readString() (string, error) {
	if !r.canRead() {
		return "", syntaxErrorf("Expected string")
	}
	if !isQuote(r.peek()) {
		return r.readUnquoted(), nil
	}
	quote := r.peek()
	r.pos++
	var b strings.Builder
	escaped := false
	for r.canRead() {
		c := r.peek()
		r.pos++
		switch {
		case escaped:
			if c != quote && c != '\\' {
				return "", syntaxErrorf("Invalid escape sequence '%c' in quoted string", c)
			}
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == quote:
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
	return "", syntaxErrorf("Unclosed quoted string")
}

func (r *reader) readDouble() (float64, error) {
	start := r.pos
	for r.canRead() && (r.peek() >= '0' && r.peek() <= '9' || r.peek() == '.' || r.peek() == '-') {
		r.pos++
	}
	num := r.s[start:r.pos]
	if num == "" {
		return 0, syntaxErrorf("Expected double")
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		r.pos = start
		return 0, syntaxErrorf("Invalid double '%s'", num)
	}
	return f, nil
}

// literal consumes name when it is the whole next token.
func (r *reader) literal(name string) bool {
	if !strings.HasPrefix(r.rest(), name) {
		return false
	}
	end := r.pos + len(name)
	if end < len(r.s) && r.s[end] != ' ' {
		return false
	}
	r.pos = end
	return true
}
