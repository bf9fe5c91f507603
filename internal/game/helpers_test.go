package game

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fairy_chess/internal/script"
	"fairy_chess/internal/shared"
)

const (
	progStep   = "(teleport me target)"
	progStrike = "(if (occupied? target) (take (unit-on target))) (teleport me target)"
	progLook   = "(set here (tile-of me)) (set line (path here target false false))"
	progSpin   = "(set n 0) (while true (set n (+ n 1)))"
	progBoom   = "(take (unit-on target)) (take me)"
)

// inlinePrograms treats every implementation as a JSON string of program text.
type inlinePrograms struct {
	mu    sync.Mutex
	calls int
}

func (p *inlinePrograms) Program(_ context.Context, impl json.RawMessage) (*script.Program, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	var src string
	if err := json.Unmarshal(impl, &src); err != nil {
		return nil, shared.ClassError(shared.ErrCompile, "implementation is not program text")
	}
	return script.Compile(src)
}

type downPrograms struct{}

func (downPrograms) Program(context.Context, json.RawMessage) (*script.Program, error) {
	return nil, shared.ClassError(shared.ErrDependency, "compiler unavailable")
}

func rule(drow, dcol int, name, src string) PieceMove {
	impl, _ := json.Marshal(src)
	return PieceMove{RelativeRow: drow, RelativeCol: dcol, Move: name, Implementation: impl}
}

func piece(name string, team Team, royal bool, moves ...PieceMove) PieceInstance {
	return PieceInstance{Name: name, Team: team, IsRoyal: royal, PieceMoves: moves}
}

func place(row, col int, pc PieceInstance) Placement {
	return Placement{Location: shared.Loc(row, col), Piece: pc}
}

// kingsSetup is the two-king position used throughout the move tests.
func kingsSetup() BoardSetup {
	return BoardSetup{
		Name: "kings",
		Placements: []Placement{
			place(0, 0, piece("king", White, true, rule(1, 0, "step", progStep))),
			place(3, 0, piece("king", Black, true, rule(1, 0, "strike", progStrike))),
		},
		WinConditionWhite: KillAnyRoyal,
		WinConditionBlack: KillAnyRoyal,
	}
}

func newTestEngine(t *testing.T, src ProgramSource, opts ...Option) *Engine {
	t.Helper()
	if src == nil {
		src = &inlinePrograms{}
	}
	opts = append([]Option{WithExecutor(script.NewExecutor(200*time.Millisecond, 0))}, opts...)
	return NewEngine(src, opts...)
}

func createGame(t *testing.T, e *Engine, setup BoardSetup, white, black string) Snapshot {
	t.Helper()
	snap, err := e.Create(setup, white, black)
	require.NoError(t, err)
	return snap
}

func boardJSON(t *testing.T, snap Snapshot) string {
	t.Helper()
	data, err := json.Marshal(snap.GameState.Board)
	require.NoError(t, err)
	return string(data)
}
