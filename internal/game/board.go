// path: fairy_chess/internal/game/board.go
package game

import (
	"encoding/json"

	"github.com/pkg/errors"

	"fairy_chess/internal/shared"
)

// Tile holds at most one piece.
type Tile struct {
	Piece *PieceInstance `json:"piece"`
}

// Board is the full 8x8 grid. Every location always has a tile.
type Board struct {
	tiles [shared.BoardSize][shared.BoardSize]Tile
}

// EmptyBoard returns a board with no pieces.
func EmptyBoard() *Board { return &Board{} }

// At returns the tile at loc for in-place reads and writes.
func (b *Board) At(loc Location) (*Tile, error) {
	if !loc.InBounds() {
		return nil, errors.WithMessage(shared.ErrOutOfBounds, loc.String())
	}
	return &b.tiles[loc.Row][loc.Col], nil
}

func (b *Board) PieceAt(loc Location) *PieceInstance {
	if !loc.InBounds() {
		return nil
	}
	return b.tiles[loc.Row][loc.Col].Piece
}

// Place puts pc on an empty tile.
func (b *Board) Place(loc Location, pc *PieceInstance) error {
	tile, err := b.At(loc)
	if err != nil {
		return err
	}
	if tile.Piece != nil {
		return errors.WithMessage(ErrTargetOccupied, loc.String())
	}
	tile.Piece = pc
	return nil
}

// Find returns the location of the live piece with the given id.
func (b *Board) Find(pieceID int) (Location, bool) {
	for row := range b.tiles {
		for col := range b.tiles[row] {
			if pc := b.tiles[row][col].Piece; pc != nil && pc.PieceID == pieceID {
				return shared.Loc(row, col), true
			}
		}
	}
	return Location{}, false
}

// Each visits occupied tiles in row-major order.
func (b *Board) Each(fn func(loc Location, pc *PieceInstance)) {
	for row := range b.tiles {
		for col := range b.tiles[row] {
			if pc := b.tiles[row][col].Piece; pc != nil {
				fn(shared.Loc(row, col), pc)
			}
		}
	}
}

// Clone deep-copies the board including every piece.
func (b *Board) Clone() *Board {
	out := &Board{}
	b.Each(func(loc Location, pc *PieceInstance) {
		out.tiles[loc.Row][loc.Col].Piece = pc.Clone()
	})
	return out
}

// Oriented returns a copy seen from team's side: rows are mirrored for black.
// Applying it twice for the same team yields the original layout.
func (b *Board) Oriented(t Team) *Board {
	out := &Board{}
	b.Each(func(loc Location, pc *PieceInstance) {
		o := loc.Oriented(t)
		out.tiles[o.Row][o.Col].Piece = pc.Clone()
	})
	return out
}

func (b *Board) MarshalJSON() ([]byte, error) {
	wire := make(map[Location]Tile, shared.BoardSize*shared.BoardSize)
	for row := range b.tiles {
		for col := range b.tiles[row] {
			wire[shared.Loc(row, col)] = b.tiles[row][col]
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON reads the "row,col" keyed form. Keys that are absent stay empty.
func (b *Board) UnmarshalJSON(data []byte) error {
	var wire map[Location]Tile
	if err := json.Unmarshal(data, &wire); err != nil {
		return errors.Wrap(err, "decode board")
	}
	*b = Board{}
	seen := make(map[int]bool)
	for loc, tile := range wire {
		if !loc.InBounds() {
			return errors.WithMessage(shared.ErrOutOfBounds, loc.String())
		}
		if tile.Piece != nil {
			if seen[tile.Piece.PieceID] {
				return errors.Errorf("piece %d appears twice", tile.Piece.PieceID)
			}
			seen[tile.Piece.PieceID] = true
		}
		b.tiles[loc.Row][loc.Col] = tile
	}
	return nil
}
