// path: fairy_chess/internal/script/reader.go
package script

import "unicode"

// sexpr is one parsed datum: either an atom or a parenthesised list.
type sexpr struct {
	pos    Pos
	atom   string
	isList bool
	list   []sexpr
}

type reader struct {
	src  []rune
	off  int
	line int
	col  int
}

func newReader(src string) *reader {
	return &reader{src: []rune(src), line: 1, col: 1}
}

// readAll parses every top-level datum in the source.
func (r *reader) readAll() ([]sexpr, error) {
	var out []sexpr
	for {
		r.skipSpace()
		if r.eof() {
			return out, nil
		}
		s, err := r.read()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

func (r *reader) read() (sexpr, error) {
	r.skipSpace()
	p := r.pos()
	if r.eof() {
		return sexpr{}, compileErrorf(p, "unexpected end of program")
	}
	switch c := r.peek(); c {
	case ')':
		return sexpr{}, compileErrorf(p, "unexpected ')'")
	case '(':
		r.next()
		var items []sexpr
		for {
			r.skipSpace()
			if r.eof() {
				return sexpr{}, compileErrorf(p, "unclosed '('")
			}
			if r.peek() == ')' {
				r.next()
				return sexpr{pos: p, isList: true, list: items}, nil
			}
			item, err := r.read()
			if err != nil {
				return sexpr{}, err
			}
			items = append(items, item)
		}
	default:
		start := r.off
		for !r.eof() && isAtomRune(r.peek()) {
			r.next()
		}
		if r.off == start {
			return sexpr{}, compileErrorf(p, "unexpected character %q", c)
		}
		return sexpr{pos: p, atom: string(r.src[start:r.off])}, nil
	}
}

func (r *reader) skipSpace() {
	for !r.eof() {
		c := r.peek()
		switch {
		case c == ';':
			for !r.eof() && r.peek() != '\n' {
				r.next()
			}
		case unicode.IsSpace(c):
			r.next()
		default:
			return
		}
	}
}

func (r *reader) eof() bool  { return r.off >= len(r.src) }
func (r *reader) peek() rune { return r.src[r.off] }
func (r *reader) pos() Pos   { return Pos{Line: r.line, Col: r.col} }

func (r *reader) next() {
	if r.src[r.off] == '\n' {
		r.line++
		r.col = 1
	} else {
		r.col++
	}
	r.off++
}

func isAtomRune(c rune) bool {
	if unicode.IsLetter(c) || unicode.IsDigit(c) {
		return true
	}
	switch c {
	case '-', '+', '?', '!', '_', '<', '>', '=', '*':
		return true
	}
	return false
}
