// path: fairy_chess/internal/script/builtins.go
package script

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"fairy_chess/internal/shared"
)

// BuiltinFunc evaluates a builtin over already evaluated arguments.
type BuiltinFunc func(h Host, args []Value) (Value, error)

type builtin struct {
	name  string
	arity int
	fn    BuiltinFunc
}

var (
	registryMu sync.RWMutex
	registry   map[string]*builtin

	// ErrDuplicateBuiltin indicates a name already has a builtin.
	ErrDuplicateBuiltin = errors.New("script: builtin already registered")
	// ErrInvalidBuiltin indicates a registration with an empty name, negative arity or nil func.
	ErrInvalidBuiltin = errors.New("script: invalid builtin")
)

// Register adds a builtin to the move language. Names may not shadow special
// forms or reserved words.
func Register(name string, arity int, fn BuiltinFunc) error {
	if name == "" || arity < 0 || fn == nil {
		return ErrInvalidBuiltin
	}
	if isReserved(name) {
		return errors.Wrapf(ErrInvalidBuiltin, "%s is reserved", name)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if registry == nil {
		registry = make(map[string]*builtin)
	}
	if _, exists := registry[name]; exists {
		return errors.Wrap(ErrDuplicateBuiltin, name)
	}
	registry[name] = &builtin{name: name, arity: arity, fn: fn}
	return nil
}

func lookupBuiltin(name string) (*builtin, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[name]
	return b, ok
}

// Builtins lists the registered builtin names in sorted order.
func Builtins() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func mustRegisterBuiltin(name string, arity int, fn BuiltinFunc) {
	if err := Register(name, arity, fn); err != nil {
		panic(err)
	}
}

func init() {
	mustRegisterBuiltin("unit-on", 1, builtinUnitOn)
	mustRegisterBuiltin("occupied?", 1, builtinOccupied)
	mustRegisterBuiltin("tile-of", 1, builtinTileOf)
	mustRegisterBuiltin("path", 4, builtinPath)
	mustRegisterBuiltin("tile", 2, builtinTile)
	mustRegisterBuiltin("in-bounds?", 1, builtinInBounds)
	mustRegisterBuiltin("offset", 3, builtinOffset)
	mustRegisterBuiltin("row", 1, builtinRow)
	mustRegisterBuiltin("col", 1, builtinCol)
	mustRegisterBuiltin("enemy?", 1, builtinEnemy)
	mustRegisterBuiltin("friendly?", 1, builtinFriendly)
	mustRegisterBuiltin("royal?", 1, builtinRoyal)
	mustRegisterBuiltin("nil?", 1, builtinIsNil)
	mustRegisterBuiltin("length", 1, builtinLength)
	mustRegisterBuiltin("not", 1, builtinNot)
	mustRegisterBuiltin("=", 2, builtinEqual)
	mustRegisterBuiltin("<", 2, intCompare("<", func(a, b int) bool { return a < b }))
	mustRegisterBuiltin(">", 2, intCompare(">", func(a, b int) bool { return a > b }))
	mustRegisterBuiltin("+", 2, intArith("+", func(a, b int) int { return a + b }))
	mustRegisterBuiltin("-", 2, intArith("-", func(a, b int) int { return a - b }))
}

func tileArg(op string, v Value) (shared.Location, error) {
	t, ok := v.AsTile()
	if !ok {
		return shared.Location{}, typeError(op, "tile", v)
	}
	return t, nil
}

func intArg(op string, v Value) (int, error) {
	n, ok := v.AsInt()
	if !ok {
		return 0, typeError(op, "int", v)
	}
	return n, nil
}

// unitArg accepts a unit or nil; nil comes back as a nil piece.
func unitArg(op string, v Value) (*shared.PieceInstance, error) {
	if v.Kind == KindNil {
		return nil, nil
	}
	u, ok := v.AsUnit()
	if !ok {
		return nil, typeError(op, "unit", v)
	}
	return u, nil
}

// exclusiveArg takes a bool (true means one tile) or an int trim count.
func exclusiveArg(v Value) (int, error) {
	switch v.Kind {
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case KindInt:
		return v.n, nil
	default:
		return 0, typeError("path", "bool or int", v)
	}
}

func builtinUnitOn(h Host, args []Value) (Value, error) {
	t, err := tileArg("unit-on", args[0])
	if err != nil {
		return Nil, err
	}
	pc, err := h.PieceAt(t)
	if err != nil {
		return Nil, err
	}
	return Unit(pc), nil
}

func builtinOccupied(h Host, args []Value) (Value, error) {
	t, err := tileArg("occupied?", args[0])
	if err != nil {
		return Nil, err
	}
	pc, err := h.PieceAt(t)
	if err != nil {
		return Nil, err
	}
	return Bool(pc != nil), nil
}

func builtinTileOf(h Host, args []Value) (Value, error) {
	u, err := unitArg("tile-of", args[0])
	if err != nil {
		return Nil, err
	}
	loc, err := h.TileOf(u)
	if err != nil {
		return Nil, err
	}
	return Tile(loc), nil
}

func builtinPath(h Host, args []Value) (Value, error) {
	from, err := tileArg("path", args[0])
	if err != nil {
		return Nil, err
	}
	to, err := tileArg("path", args[1])
	if err != nil {
		return Nil, err
	}
	begin, err := exclusiveArg(args[2])
	if err != nil {
		return Nil, err
	}
	end, err := exclusiveArg(args[3])
	if err != nil {
		return Nil, err
	}
	line, err := h.Path(from, to, begin, end)
	if err != nil {
		return Nil, err
	}
	return Tiles(line), nil
}

func builtinTile(_ Host, args []Value) (Value, error) {
	r, err := intArg("tile", args[0])
	if err != nil {
		return Nil, err
	}
	c, err := intArg("tile", args[1])
	if err != nil {
		return Nil, err
	}
	return Tile(shared.Loc(r, c)), nil
}

func builtinInBounds(_ Host, args []Value) (Value, error) {
	t, err := tileArg("in-bounds?", args[0])
	if err != nil {
		return Nil, err
	}
	return Bool(t.InBounds()), nil
}

func builtinOffset(_ Host, args []Value) (Value, error) {
	t, err := tileArg("offset", args[0])
	if err != nil {
		return Nil, err
	}
	dr, err := intArg("offset", args[1])
	if err != nil {
		return Nil, err
	}
	dc, err := intArg("offset", args[2])
	if err != nil {
		return Nil, err
	}
	return Tile(t.Offset(dr, dc)), nil
}

func builtinRow(_ Host, args []Value) (Value, error) {
	t, err := tileArg("row", args[0])
	if err != nil {
		return Nil, err
	}
	return Int(t.Row), nil
}

func builtinCol(_ Host, args []Value) (Value, error) {
	t, err := tileArg("col", args[0])
	if err != nil {
		return Nil, err
	}
	return Int(t.Col), nil
}

func builtinEnemy(h Host, args []Value) (Value, error) {
	u, err := unitArg("enemy?", args[0])
	if err != nil || u == nil {
		return Bool(false), err
	}
	return Bool(u.Team != h.ActingPiece().Team), nil
}

func builtinFriendly(h Host, args []Value) (Value, error) {
	u, err := unitArg("friendly?", args[0])
	if err != nil || u == nil {
		return Bool(false), err
	}
	return Bool(u.Team == h.ActingPiece().Team), nil
}

func builtinRoyal(_ Host, args []Value) (Value, error) {
	u, err := unitArg("royal?", args[0])
	if err != nil || u == nil {
		return Bool(false), err
	}
	return Bool(u.IsRoyal), nil
}

func builtinIsNil(_ Host, args []Value) (Value, error) {
	return Bool(args[0].Kind == KindNil), nil
}

func builtinLength(_ Host, args []Value) (Value, error) {
	ls, ok := args[0].AsTiles()
	if !ok {
		return Nil, typeError("length", "tile list", args[0])
	}
	return Int(len(ls)), nil
}

func builtinNot(_ Host, args []Value) (Value, error) {
	b, ok := args[0].AsBool()
	if !ok {
		return Nil, typeError("not", "bool", args[0])
	}
	return Bool(!b), nil
}

func builtinEqual(_ Host, args []Value) (Value, error) {
	eq, err := args[0].Equal(args[1])
	if err != nil {
		return Nil, err
	}
	return Bool(eq), nil
}

func intCompare(op string, cmp func(a, b int) bool) BuiltinFunc {
	return func(_ Host, args []Value) (Value, error) {
		a, err := intArg(op, args[0])
		if err != nil {
			return Nil, err
		}
		b, err := intArg(op, args[1])
		if err != nil {
			return Nil, err
		}
		return Bool(cmp(a, b)), nil
	}
}

func intArith(op string, f func(a, b int) int) BuiltinFunc {
	return func(_ Host, args []Value) (Value, error) {
		a, err := intArg(op, args[0])
		if err != nil {
			return Nil, err
		}
		b, err := intArg(op, args[1])
		if err != nil {
			return Nil, err
		}
		return Int(f(a, b)), nil
	}
}
