package shared

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// BoardSize is the width and height of every board.
const BoardSize = 8

// Team is a side, white or black.
type Team uint8

const (
	White Team = iota
	Black
)

func (t Team) Opposite() Team {
	if t == White {
		return Black
	}
	return White
}

func (t Team) Index() int { return int(t) }

func (t Team) String() string {
	if t == White {
		return "white"
	}
	return "black"
}

// ParseTeam accepts "white" or "black".
func ParseTeam(s string) (Team, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	default:
		return White, false
	}
}

func (t Team) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Team) UnmarshalText(text []byte) error {
	parsed, ok := ParseTeam(string(text))
	if !ok {
		return fmt.Errorf("invalid team %q", string(text))
	}
	*t = parsed
	return nil
}

// Location addresses one tile. Row 0 is white's home row.
type Location struct {
	Row int
	Col int
}

func Loc(row, col int) Location { return Location{Row: row, Col: col} }

// InBounds reports whether l is on the board.
func (l Location) InBounds() bool {
	return l.Row >= 0 && l.Row < BoardSize && l.Col >= 0 && l.Col < BoardSize
}

func (l Location) Offset(drow, dcol int) Location {
	return Location{Row: l.Row + drow, Col: l.Col + dcol}
}

// Oriented flips the row for black so that every team moves "upward".
// The transform is its own inverse.
func (l Location) Oriented(t Team) Location {
	if t == Black {
		return Location{Row: BoardSize - 1 - l.Row, Col: l.Col}
	}
	return l
}

func (l Location) String() string {
	return strconv.Itoa(l.Row) + "," + strconv.Itoa(l.Col)
}

// ParseLocation reads the "row,col" wire form.
func ParseLocation(s string) (Location, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return Location{}, fmt.Errorf("invalid location %q", s)
	}
	row, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Location{}, fmt.Errorf("invalid location row %q", parts[0])
	}
	col, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Location{}, fmt.Errorf("invalid location col %q", parts[1])
	}
	return Location{Row: row, Col: col}, nil
}

func (l Location) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Location) UnmarshalText(text []byte) error {
	parsed, err := ParseLocation(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// PieceMove binds a relative offset to the program implementing it.
type PieceMove struct {
	RelativeRow    int             `json:"relative_row"`
	RelativeCol    int             `json:"relative_col"`
	Move           string          `json:"move"`
	Implementation json.RawMessage `json:"implementation,omitempty"`
}

// PieceInstance is one live piece of a running game.
type PieceInstance struct {
	PieceID    int         `json:"piece_id"`
	Name       string      `json:"name"`
	Team       Team        `json:"team"`
	IsRoyal    bool        `json:"is_royal"`
	PieceMoves []PieceMove `json:"piece_moves"`
}

// Clone copies p, including its move list.
func (p *PieceInstance) Clone() *PieceInstance {
	if p == nil {
		return nil
	}
	out := *p
	if len(p.PieceMoves) > 0 {
		out.PieceMoves = make([]PieceMove, len(p.PieceMoves))
		copy(out.PieceMoves, p.PieceMoves)
	}
	return &out
}

// MoveFor returns the first rule whose offset matches.
func (p *PieceInstance) MoveFor(drow, dcol int) (PieceMove, bool) {
	if p == nil {
		return PieceMove{}, false
	}
	for _, pm := range p.PieceMoves {
		if pm.RelativeRow == drow && pm.RelativeCol == dcol {
			return pm, true
		}
	}
	return PieceMove{}, false
}
