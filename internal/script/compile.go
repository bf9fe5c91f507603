// path: fairy_chess/internal/script/compile.go
package script

import (
	"strconv"
)

// Program is a compiled move implementation. It is immutable and safe to run
// concurrently against different hosts.
type Program struct {
	source string
	body   block
	slots  []string
}

// Source returns the text the program was compiled from.
func (p *Program) Source() string { return p.source }

var statementForms = map[string]bool{
	"teleport": true,
	"take":     true,
	"set":      true,
	"if":       true,
	"for":      true,
	"while":    true,
	"do":       true,
}

var reservedWords = map[string]bool{
	"me":     true,
	"target": true,
	"true":   true,
	"false":  true,
	"nil":    true,
	"and":    true,
	"or":     true,
}

func isReserved(name string) bool {
	return statementForms[name] || reservedWords[name]
}

type varUse struct {
	pos  Pos
	name string
}

type compiler struct {
	slots    map[string]int
	names    []string
	assigned map[string]bool
	uses     []varUse
}

// Compile parses program text into a Program. The whole text is a sequence of
// statements; an empty text compiles to a program that does nothing.
func Compile(src string) (*Program, error) {
	forms, err := newReader(src).readAll()
	if err != nil {
		return nil, err
	}

	c := &compiler{slots: make(map[string]int), assigned: make(map[string]bool)}
	body, err := c.block(forms)
	if err != nil {
		return nil, err
	}
	for _, u := range c.uses {
		if !c.assigned[u.name] {
			return nil, compileErrorf(u.pos, "undefined variable %s", u.name)
		}
	}
	return &Program{source: src, body: body, slots: c.names}, nil
}

// MustCompile is Compile for program text known at build time.
func MustCompile(src string) *Program {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

func (c *compiler) slot(name string) int {
	if i, ok := c.slots[name]; ok {
		return i
	}
	i := len(c.names)
	c.slots[name] = i
	c.names = append(c.names, name)
	return i
}

func (c *compiler) block(forms []sexpr) (block, error) {
	out := make(block, 0, len(forms))
	for _, f := range forms {
		s, err := c.stmt(f)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *compiler) stmt(s sexpr) (stmt, error) {
	if !s.isList {
		return nil, compileErrorf(s.pos, "expected a statement, got %s", s.atom)
	}
	if len(s.list) == 0 {
		return nil, compileErrorf(s.pos, "empty statement")
	}
	head := s.list[0]
	if head.isList {
		return nil, compileErrorf(head.pos, "statement head must be a name")
	}
	args := s.list[1:]

	switch head.atom {
	case "teleport":
		if err := wantArgs(s, args, 2); err != nil {
			return nil, err
		}
		unit, err := c.expr(args[0])
		if err != nil {
			return nil, err
		}
		tile, err := c.expr(args[1])
		if err != nil {
			return nil, err
		}
		return &teleportStmt{pos: s.pos, unit: unit, tile: tile}, nil

	case "take":
		if err := wantArgs(s, args, 1); err != nil {
			return nil, err
		}
		unit, err := c.expr(args[0])
		if err != nil {
			return nil, err
		}
		return &takeStmt{pos: s.pos, unit: unit}, nil

	case "set":
		if err := wantArgs(s, args, 2); err != nil {
			return nil, err
		}
		name, err := c.binding(args[0])
		if err != nil {
			return nil, err
		}
		value, err := c.expr(args[1])
		if err != nil {
			return nil, err
		}
		c.assigned[name] = true
		return &setStmt{slot: c.slot(name), value: value}, nil

	case "if":
		if len(args) != 2 && len(args) != 3 {
			return nil, compileErrorf(s.pos, "if takes a condition, a then branch and an optional else branch")
		}
		cond, err := c.expr(args[0])
		if err != nil {
			return nil, err
		}
		then, err := c.stmt(args[1])
		if err != nil {
			return nil, err
		}
		out := &ifStmt{cond: cond, then: block{then}}
		if len(args) == 3 {
			els, err := c.stmt(args[2])
			if err != nil {
				return nil, err
			}
			out.els = block{els}
		}
		return out, nil

	case "for":
		if len(args) < 2 {
			return nil, compileErrorf(s.pos, "for takes a variable, a tile list and a body")
		}
		name, err := c.binding(args[0])
		if err != nil {
			return nil, err
		}
		list, err := c.expr(args[1])
		if err != nil {
			return nil, err
		}
		c.assigned[name] = true
		slot := c.slot(name)
		body, err := c.block(args[2:])
		if err != nil {
			return nil, err
		}
		return &forStmt{slot: slot, list: list, body: body}, nil

	case "while":
		if len(args) < 1 {
			return nil, compileErrorf(s.pos, "while takes a condition and a body")
		}
		cond, err := c.expr(args[0])
		if err != nil {
			return nil, err
		}
		body, err := c.block(args[1:])
		if err != nil {
			return nil, err
		}
		return &whileStmt{cond: cond, body: body}, nil

	case "do":
		return c.block(args)
	}

	if _, ok := lookupBuiltin(head.atom); ok || reservedWords[head.atom] {
		return nil, compileErrorf(s.pos, "%s is an expression, not a statement", head.atom)
	}
	return nil, compileErrorf(head.pos, "unknown statement %s", head.atom)
}

func (c *compiler) binding(s sexpr) (string, error) {
	if s.isList {
		return "", compileErrorf(s.pos, "expected a variable name")
	}
	if !validName(s.atom) {
		return "", compileErrorf(s.pos, "%s is not a valid variable name", s.atom)
	}
	if isReserved(s.atom) {
		return "", compileErrorf(s.pos, "%s is reserved", s.atom)
	}
	if _, ok := lookupBuiltin(s.atom); ok {
		return "", compileErrorf(s.pos, "%s names a builtin", s.atom)
	}
	return s.atom, nil
}

func (c *compiler) expr(s sexpr) (expr, error) {
	if !s.isList {
		return c.atom(s)
	}
	if len(s.list) == 0 {
		return nil, compileErrorf(s.pos, "empty expression")
	}
	head := s.list[0]
	if head.isList {
		return nil, compileErrorf(head.pos, "call head must be a name")
	}
	args := s.list[1:]

	switch head.atom {
	case "and", "or":
		if len(args) == 0 {
			return nil, compileErrorf(s.pos, "%s takes at least one operand", head.atom)
		}
		out := &logicExpr{op: head.atom, stop: head.atom == "or", args: make([]expr, len(args))}
		for i, a := range args {
			e, err := c.expr(a)
			if err != nil {
				return nil, err
			}
			out.args[i] = e
		}
		return out, nil
	}

	if statementForms[head.atom] {
		return nil, compileErrorf(s.pos, "%s is a statement, not an expression", head.atom)
	}
	fn, ok := lookupBuiltin(head.atom)
	if !ok {
		return nil, compileErrorf(head.pos, "unknown function %s", head.atom)
	}
	if err := wantArgs(s, args, fn.arity); err != nil {
		return nil, err
	}
	call := &callExpr{pos: s.pos, fn: fn, args: make([]expr, len(args))}
	for i, a := range args {
		e, err := c.expr(a)
		if err != nil {
			return nil, err
		}
		call.args[i] = e
	}
	return call, nil
}

func (c *compiler) atom(s sexpr) (expr, error) {
	switch s.atom {
	case "true":
		return literal{Bool(true)}, nil
	case "false":
		return literal{Bool(false)}, nil
	case "nil":
		return literal{Nil}, nil
	case "me":
		return meExpr{}, nil
	case "target":
		return targetExpr{}, nil
	}
	if n, err := strconv.Atoi(s.atom); err == nil {
		return literal{Int(n)}, nil
	}
	if isReserved(s.atom) {
		return nil, compileErrorf(s.pos, "%s cannot be used as a value", s.atom)
	}
	if _, ok := lookupBuiltin(s.atom); ok {
		return nil, compileErrorf(s.pos, "%s must be called", s.atom)
	}
	if !validName(s.atom) {
		return nil, compileErrorf(s.pos, "unexpected token %s", s.atom)
	}
	c.uses = append(c.uses, varUse{pos: s.pos, name: s.atom})
	return varRef{slot: c.slot(s.atom), name: s.atom}, nil
}

func wantArgs(s sexpr, args []sexpr, n int) error {
	if len(args) != n {
		return compileErrorf(s.pos, "%s takes %d argument(s), got %d", s.list[0].atom, n, len(args))
	}
	return nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return true
}
