// path: fairy_chess/internal/catalog/catalog_test.go
package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairy_chess/internal/compiler"
	"fairy_chess/internal/game"
	"fairy_chess/internal/shared"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Equal(t, []string{"classic", "kings", "skirmish"}, c.SetupNames())

	setup, err := c.Setup("classic")
	require.NoError(t, err)
	assert.Len(t, setup.Placements, 32)
	assert.Equal(t, game.KillAnyRoyal, setup.WinConditionWhite)

	byLoc := map[shared.Location]shared.PieceInstance{}
	for _, p := range setup.Placements {
		byLoc[p.Location] = p.Piece
	}
	king := byLoc[shared.Loc(0, 4)]
	assert.Equal(t, "king", king.Name)
	assert.Equal(t, shared.White, king.Team)
	assert.True(t, king.IsRoyal)
	assert.Len(t, king.PieceMoves, 8)

	assert.Equal(t, "queen", byLoc[shared.Loc(7, 3)].Name)
	assert.Equal(t, shared.Black, byLoc[shared.Loc(6, 0)].Team)
	assert.Equal(t, "pawn", byLoc[shared.Loc(6, 0)].Name)
	assert.Len(t, byLoc[shared.Loc(0, 3)].PieceMoves, 56, "queen rays expand to 8*7 offsets")
	assert.Len(t, byLoc[shared.Loc(0, 0)].PieceMoves, 28)

	var text string
	require.NoError(t, json.Unmarshal(king.PieceMoves[0].Implementation, &text))
	assert.Contains(t, text, "teleport me target")
}

func TestSetupReturnsFreshPieces(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	a, err := c.Setup("kings")
	require.NoError(t, err)
	a.Placements[0].Piece.PieceMoves[0].Move = "mutated"

	b, err := c.Setup("kings")
	require.NoError(t, err)
	assert.Equal(t, "strike", b.Placements[0].Piece.PieceMoves[0].Move)
}

func TestSkirmishRoyalOverride(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	setup, err := c.Setup("skirmish")
	require.NoError(t, err)
	for _, p := range setup.Placements {
		assert.False(t, p.Piece.IsRoyal, p.Piece.Name)
	}
}

func TestUnknownSetup(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	_, err = c.Setup("nope")
	assert.ErrorIs(t, err, ErrUnknownSetup)
	assert.Equal(t, shared.ClassProtocol, shared.Classify(err))
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	const bad = `
moves:
  - name: step
    program: (teleport me target)
  - name: broken
    program: (teleport me
  - name: empty
pieces:
  - name: walker
    moves:
      - {row: 0, col: 0, move: step}
      - {row: 9, col: 0, move: step}
      - {row: 1, col: 0, move: fly}
setups:
  - name: royal-less
    win_condition_white: kill_any_royal
    win_condition_black: kill_all
    placements:
      - {row: 0, col: 0, piece: walker, team: white}
      - {row: 0, col: 0, piece: walker, team: black}
      - {row: 8, col: 0, piece: walker, team: black}
      - {row: 1, col: 1, piece: ghost, team: black}
      - {row: 2, col: 2, piece: walker, team: purple}
  - name: odd
    win_condition_white: capture_the_flag
    win_condition_black: kill_all
`
	_, err := Parse([]byte(bad))
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	msg := err.Error()
	for _, want := range []string{
		"move broken",
		"move empty: needs program or blocks",
		"zero offset",
		"offset (9,0) outside [-7,7]",
		`unknown move "fly"`,
		"tile 0,0 used twice",
		"placement 8,0 off the board",
		`unknown piece "ghost"`,
		`unknown team "purple"`,
		"black has no royal pieces",
		`unknown win condition "capture_the_flag"`,
	} {
		assert.Contains(t, msg, want)
	}
}

func TestValidateFEN(t *testing.T) {
	const src = `
moves:
  - name: step
    program: (teleport me target)
pieces:
  - name: king
    royal: true
    moves: [{row: 1, col: 0, move: step}]
setups:
  - name: unmapped
    win_condition_white: kill_all
    win_condition_black: kill_all
    fen: 4k3/8/8/8/8/8/4P3/4K3 w - - 0 1
    fen_pieces: {k: king}
  - name: garbage
    win_condition_white: kill_all
    win_condition_black: kill_all
    fen: not a position
`
	_, err := Parse([]byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no piece mapped to fen letter "p"`)
	assert.Contains(t, err.Error(), "setup garbage: fen")
}

func TestBlocksImplementation(t *testing.T) {
	const src = `
moves:
  - name: jump
    blocks:
      blocks:
        - type: teleport
pieces:
  - name: frog
    moves: [{row: 2, col: 0, move: jump}]
setups:
  - name: pond
    win_condition_white: kill_all
    win_condition_black: kill_all
    placements:
      - {row: 0, col: 0, piece: frog, team: white}
      - {row: 7, col: 7, piece: frog, team: black}
`
	c, err := Parse([]byte(src))
	require.NoError(t, err)
	setup, err := c.Setup("pond")
	require.NoError(t, err)
	assert.JSONEq(t, `{"blocks":[{"type":"teleport"}]}`,
		string(setup.Placements[0].Piece.PieceMoves[0].Implementation))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, defaultCatalog, 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Pieces, 7)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// The bundled programs drive a real game through the engine.
func TestClassicOpening(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	setup, err := c.Setup("classic")
	require.NoError(t, err)

	src, err := compiler.New(compiler.Config{})
	require.NoError(t, err)
	e := game.NewEngine(src)
	snap, err := e.Create(setup, "alice", "bob")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = e.MakeMove(ctx, snap.ID, shared.Loc(0, 0), shared.Loc(3, 0), "alice")
	assert.ErrorIs(t, err, shared.ErrIllegalMove, "rook is blocked by its pawn")

	snap, err = e.MakeMove(ctx, snap.ID, shared.Loc(1, 4), shared.Loc(3, 4), "alice")
	require.NoError(t, err)
	assert.Equal(t, "pawn", snap.GameState.Board.PieceAt(shared.Loc(3, 4)).Name)

	snap, err = e.MakeMove(ctx, snap.ID, shared.Loc(6, 3), shared.Loc(4, 3), "bob")
	require.NoError(t, err)

	snap, err = e.MakeMove(ctx, snap.ID, shared.Loc(3, 4), shared.Loc(4, 3), "alice")
	require.NoError(t, err, "pawn captures diagonally")
	captured := snap.GameState.Board.PieceAt(shared.Loc(4, 3))
	require.NotNil(t, captured)
	assert.Equal(t, shared.White, captured.Team)

	snap, err = e.MakeMove(ctx, snap.ID, shared.Loc(7, 6), shared.Loc(5, 5), "bob")
	require.NoError(t, err, "knight leaps")

	_, err = e.MakeMove(ctx, snap.ID, shared.Loc(1, 0), shared.Loc(2, 1), "alice")
	assert.ErrorIs(t, err, shared.ErrIllegalMove, "pawn cannot capture an empty tile")

	targets, err := e.LegalTargets(ctx, snap.ID, shared.Loc(0, 5), "alice")
	require.NoError(t, err)
	assert.Contains(t, targets, shared.Loc(3, 2), "bishop slides through the vacated tile")
}
