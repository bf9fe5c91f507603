// path: fairy_chess/internal/game/moves.go
package game

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"fairy_chess/internal/script"
	"fairy_chess/internal/shared"
)

var _ script.Host = (*MoveContext)(nil)

// ProgramSource turns a stored move implementation into a runnable program.
type ProgramSource interface {
	Program(ctx context.Context, implementation json.RawMessage) (*script.Program, error)
}

// MoveRequest carries canonical (white-relative) coordinates.
type MoveRequest struct {
	From     Location
	To       Location
	Identity string
}

// MoveOutcome describes a committed move.
type MoveOutcome struct {
	Team     Team
	Move     string
	Result   Result
	Captured []int
}

// authorizeMove checks seat, turn and ownership of the piece on from.
func (g *Game) authorizeMove(identity string, from Location) (*PieceInstance, error) {
	seats := g.seats(identity)
	if len(seats) == 0 {
		return nil, ErrNotParticipant
	}
	holdsTurn := false
	for _, t := range seats {
		if t == g.turn {
			holdsTurn = true
		}
	}
	if !holdsTurn {
		return nil, ErrWrongTurn
	}
	pc := g.board.PieceAt(from)
	if pc == nil {
		return nil, errors.WithMessage(ErrNoPieceAtSource, from.String())
	}
	if pc.Team != g.turn {
		return nil, ErrNotYourPiece
	}
	return pc, nil
}

// MakeMove runs the rule matching req on a private, oriented board copy and
// commits it only when the program succeeds. Any error leaves the game
// untouched.
func (g *Game) MakeMove(ctx context.Context, req MoveRequest, src ProgramSource, exec *script.Executor) (MoveOutcome, error) {
	if g.result.Terminal() {
		return MoveOutcome{}, ErrGameOver
	}
	if !req.From.InBounds() || !req.To.InBounds() {
		return MoveOutcome{}, errors.WithMessagef(shared.ErrOutOfBounds, "%s to %s", req.From, req.To)
	}
	pc, err := g.authorizeMove(req.Identity, req.From)
	if err != nil {
		return MoveOutcome{}, err
	}

	mover := g.turn
	from, to := req.From.Oriented(mover), req.To.Oriented(mover)
	rule, ok := pc.MoveFor(to.Row-from.Row, to.Col-from.Col)
	if !ok {
		return MoveOutcome{}, errors.WithMessagef(ErrNoSuchMove, "%s has no move (%d,%d)", pc.Name, to.Row-from.Row, to.Col-from.Col)
	}

	prog, err := src.Program(ctx, rule.Implementation)
	if err != nil {
		return MoveOutcome{}, errors.WithMessagef(err, "move %q", rule.Move)
	}

	board := g.board.Oriented(mover)
	before := board.Census()
	mc, err := NewMoveContext(board, from, to)
	if err != nil {
		return MoveOutcome{}, err
	}
	if err := exec.Run(ctx, prog, mc); err != nil {
		return MoveOutcome{}, errors.WithMessagef(err, "move %q", rule.Move)
	}
	after := board.Census()

	committed := board.Oriented(mover)
	captured := capturedIDs(g.board, committed)
	g.board = committed
	g.result = evaluateResult(g.winWhite, g.winBlack, before, after)
	if g.drawOffer == offerBy(mover.Opposite()) {
		g.drawOffer = DrawOfferNone
	}
	g.turn = mover.Opposite()
	rec := g.history.record(mover, req.From, req.To, rule.Move, captured)
	return MoveOutcome{Team: mover, Move: rule.Move, Result: g.result, Captured: rec.Captured}, nil
}

// LegalTargets dry-runs the piece's rules on from and returns the canonical
// destinations whose program would succeed. Each offset is resolved the way
// MakeMove resolves it, so when two rules share an offset only the first one
// counts. The game is not modified. Rules whose program is broken are
// skipped; an unavailable program source aborts the preview.
func (g *Game) LegalTargets(ctx context.Context, identity string, from Location, src ProgramSource, exec *script.Executor) ([]Location, error) {
	if g.result.Terminal() {
		return nil, ErrGameOver
	}
	pc := g.board.PieceAt(from)
	if pc == nil {
		return nil, errors.WithMessage(ErrNoPieceAtSource, from.String())
	}
	owns := false
	for _, t := range g.seats(identity) {
		if t == pc.Team {
			owns = true
		}
	}
	if !owns {
		return nil, ErrNotYourPiece
	}

	team := pc.Team
	ofrom := from.Oriented(team)
	var out []Location
	seen := make(map[[2]int]bool, len(pc.PieceMoves))
	for _, pm := range pc.PieceMoves {
		offset := [2]int{pm.RelativeRow, pm.RelativeCol}
		if seen[offset] {
			continue
		}
		seen[offset] = true
		oto := ofrom.Offset(pm.RelativeRow, pm.RelativeCol)
		if !oto.InBounds() {
			continue
		}
		rule, _ := pc.MoveFor(pm.RelativeRow, pm.RelativeCol)
		prog, err := src.Program(ctx, rule.Implementation)
		if ctx.Err() != nil {
			return nil, shared.Abort(ctx.Err(), "preview aborted")
		}
		if errors.Is(err, shared.ErrDependency) {
			return nil, err
		}
		if err != nil {
			continue
		}
		mc, err := NewMoveContext(g.board.Oriented(team), ofrom, oto)
		if err != nil {
			return nil, err
		}
		if err := exec.Run(ctx, prog, mc); err != nil {
			if ctx.Err() != nil {
				return nil, shared.Abort(ctx.Err(), "preview aborted")
			}
			continue
		}
		out = append(out, oto.Oriented(team))
	}
	return out, nil
}
