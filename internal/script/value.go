package script

import (
	"fmt"
	"strconv"
	"strings"

	"fairy_chess/internal/shared"
)

// Kind is the dynamic type of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindTile
	KindUnit
	KindTiles
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindTile:
		return "tile"
	case KindUnit:
		return "unit"
	case KindTiles:
		return "tile list"
	default:
		return "?"
	}
}

// Value is the only data a move program can hold. Units point into the
// private board of the running move and are compared by piece id.
type Value struct {
	Kind  Kind
	b     bool
	n     int
	tile  shared.Location
	unit  *shared.PieceInstance
	tiles []shared.Location
}

var Nil = Value{Kind: KindNil}

func Bool(b bool) Value                { return Value{Kind: KindBool, b: b} }
func Int(n int) Value                  { return Value{Kind: KindInt, n: n} }
func Tile(l shared.Location) Value     { return Value{Kind: KindTile, tile: l} }
func Tiles(ls []shared.Location) Value { return Value{Kind: KindTiles, tiles: ls} }

func Unit(p *shared.PieceInstance) Value {
	if p == nil {
		return Nil
	}
	return Value{Kind: KindUnit, unit: p}
}

func (v Value) AsBool() (bool, bool)                  { return v.b, v.Kind == KindBool }
func (v Value) AsInt() (int, bool)                    { return v.n, v.Kind == KindInt }
func (v Value) AsTile() (shared.Location, bool)       { return v.tile, v.Kind == KindTile }
func (v Value) AsTiles() ([]shared.Location, bool)    { return v.tiles, v.Kind == KindTiles }
func (v Value) AsUnit() (*shared.PieceInstance, bool) { return v.unit, v.Kind == KindUnit }

// Equal compares values of the same kind. Values of different kinds are
// never equal; kinds without equality return an error.
func (v Value) Equal(o Value) (bool, error) {
	if v.Kind != o.Kind {
		return false, nil
	}
	switch v.Kind {
	case KindNil:
		return true, nil
	case KindBool:
		return v.b == o.b, nil
	case KindInt:
		return v.n == o.n, nil
	case KindTile:
		return v.tile == o.tile, nil
	case KindUnit:
		return v.unit.PieceID == o.unit.PieceID, nil
	default:
		return false, typeError("=", "comparable value", v)
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.Itoa(v.n)
	case KindTile:
		return "(" + v.tile.String() + ")"
	case KindUnit:
		return fmt.Sprintf("<%s %s #%d>", v.unit.Team, v.unit.Name, v.unit.PieceID)
	case KindTiles:
		parts := make([]string, len(v.tiles))
		for i, l := range v.tiles {
			parts[i] = "(" + l.String() + ")"
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return "?"
	}
}
