// path: fairy_chess/internal/game/piece_ops.go
package game

import (
	"github.com/pkg/errors"

	"fairy_chess/internal/shared"
)

// MoveContext is the only handle a move program gets on the game. It wraps a
// private board copy that the caller commits on success and drops otherwise.
type MoveContext struct {
	board  *Board
	actor  *PieceInstance
	target Location
	acted  bool
}

// NewMoveContext binds the piece standing on from. A missing piece is a
// caller bug, not a move outcome.
func NewMoveContext(board *Board, from, target Location) (*MoveContext, error) {
	actor := board.PieceAt(from)
	if actor == nil {
		return nil, errors.WithMessage(ErrActorMissing, from.String())
	}
	return &MoveContext{board: board, actor: actor, target: target}, nil
}

func (mc *MoveContext) ActingPiece() *PieceInstance { return mc.actor }
func (mc *MoveContext) TargetTile() Location        { return mc.target }
func (mc *MoveContext) DidAction() bool             { return mc.acted }

func (mc *MoveContext) PieceAt(loc Location) (*PieceInstance, error) {
	if !loc.InBounds() {
		return nil, errors.WithMessage(ErrTileOutOfBounds, loc.String())
	}
	return mc.board.PieceAt(loc), nil
}

// TileOf scans for pc by id. A captured piece is reported as not on board.
func (mc *MoveContext) TileOf(pc *PieceInstance) (Location, error) {
	if pc == nil {
		return Location{}, ErrNilPiece
	}
	loc, ok := mc.board.Find(pc.PieceID)
	if !ok {
		return Location{}, ErrPieceNotOnBoard
	}
	return loc, nil
}

// Teleport moves pc onto an empty in-bounds tile. It never overwrites; a
// capture must be taken first.
func (mc *MoveContext) Teleport(pc *PieceInstance, to Location) error {
	if !to.InBounds() {
		return errors.WithMessage(ErrTileOutOfBounds, to.String())
	}
	from, err := mc.TileOf(pc)
	if err != nil {
		return err
	}
	dst := &mc.board.tiles[to.Row][to.Col]
	if dst.Piece != nil {
		return errors.WithMessage(ErrTargetOccupied, to.String())
	}
	src := &mc.board.tiles[from.Row][from.Col]
	dst.Piece, src.Piece = src.Piece, nil
	mc.acted = true
	return nil
}

// Take removes pc from the board. Taking a piece that is already gone is a
// no-op and does not count as an action.
func (mc *MoveContext) Take(pc *PieceInstance) error {
	if pc == nil {
		return ErrNilPiece
	}
	loc, ok := mc.board.Find(pc.PieceID)
	if !ok {
		return nil
	}
	mc.board.tiles[loc.Row][loc.Col].Piece = nil
	mc.acted = true
	return nil
}

// Path is shared.Path with board-level errors. It fails when either end is
// off the board.
func (mc *MoveContext) Path(from, to Location, beginExclusive, endExclusive int) ([]Location, error) {
	line, err := shared.Path(from, to, beginExclusive, endExclusive)
	if err != nil {
		return nil, errors.WithMessagef(ErrTileOutOfBounds, "path %s to %s", from, to)
	}
	return line, nil
}
