// path: fairy_chess/internal/game/engine_test.go
package game

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairy_chess/internal/script"
	"fairy_chess/internal/shared"
)

func TestKingsScenario(t *testing.T) {
	e := newTestEngine(t, nil)
	snap := createGame(t, e, kingsSetup(), "alice", "bob")
	id := snap.ID
	ctx := context.Background()

	// White steps forward.
	snap, err := e.MakeMove(ctx, id, shared.Loc(0, 0), shared.Loc(1, 0), "alice")
	require.NoError(t, err)
	board := snap.GameState.Board
	assert.Nil(t, board.PieceAt(shared.Loc(0, 0)))
	require.NotNil(t, board.PieceAt(shared.Loc(1, 0)))
	assert.Equal(t, White, board.PieceAt(shared.Loc(1, 0)).Team)
	assert.Equal(t, Black, snap.GameState.TeamToMove)
	assert.Equal(t, ResultInProgress, snap.GameState.Result)

	// Black strikes onto an empty tile; the capture half does nothing.
	snap, err = e.MakeMove(ctx, id, shared.Loc(3, 0), shared.Loc(2, 0), "bob")
	require.NoError(t, err)
	board = snap.GameState.Board
	assert.Nil(t, board.PieceAt(shared.Loc(3, 0)))
	require.NotNil(t, board.PieceAt(shared.Loc(2, 0)))
	assert.Equal(t, Black, board.PieceAt(shared.Loc(2, 0)).Team)
	assert.Equal(t, White, snap.GameState.TeamToMove)

	// White's plain step cannot land on the black king.
	before := boardJSON(t, snap)
	_, err = e.MakeMove(ctx, id, shared.Loc(1, 0), shared.Loc(2, 0), "alice")
	require.ErrorIs(t, err, ErrTargetOccupied)
	assert.Equal(t, shared.ClassIllegalMove, shared.Classify(err))

	snap, err = e.State(id)
	require.NoError(t, err)
	assert.Equal(t, before, boardJSON(t, snap))
	assert.Equal(t, White, snap.GameState.TeamToMove)
	assert.Equal(t, 2, snap.GameState.MoveCount)

	require.Len(t, snap.History, 2)
	assert.Equal(t, MoveRecord{Seq: 1, Team: White, From: shared.Loc(0, 0), To: shared.Loc(1, 0), Move: "step"}, snap.History[0])
	assert.Equal(t, MoveRecord{Seq: 2, Team: Black, From: shared.Loc(3, 0), To: shared.Loc(2, 0), Move: "strike"}, snap.History[1])
}

func TestCapturingSoleRoyalWins(t *testing.T) {
	setup := BoardSetup{
		Placements: []Placement{
			place(0, 0, piece("striker", White, false, rule(1, 0, "strike", progStrike))),
			place(7, 0, piece("king", White, true)),
			place(1, 0, piece("king", Black, true)),
			place(6, 6, piece("pawn", Black, false)),
			place(6, 7, piece("pawn", Black, false)),
		},
		WinConditionWhite: KillAllRoyals,
		WinConditionBlack: KillAnyRoyal,
	}
	e := newTestEngine(t, nil)
	id := createGame(t, e, setup, "alice", "bob").ID

	snap, err := e.MakeMove(context.Background(), id, shared.Loc(0, 0), shared.Loc(1, 0), "alice")
	require.NoError(t, err)
	assert.Equal(t, ResultWhiteWin, snap.GameState.Result)
	require.Len(t, snap.History, 1)
	assert.Equal(t, []int{2}, snap.History[0].Captured)

	_, err = e.MakeMove(context.Background(), id, shared.Loc(6, 6), shared.Loc(5, 6), "bob")
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestSimultaneousRoyalLossIsDraw(t *testing.T) {
	setup := BoardSetup{
		Placements: []Placement{
			place(0, 0, piece("bomber", White, true, rule(1, 0, "boom", progBoom))),
			place(1, 0, piece("king", Black, true)),
		},
		WinConditionWhite: KillAnyRoyal,
		WinConditionBlack: KillAnyRoyal,
	}
	e := newTestEngine(t, nil)
	id := createGame(t, e, setup, "alice", "bob").ID

	snap, err := e.MakeMove(context.Background(), id, shared.Loc(0, 0), shared.Loc(1, 0), "alice")
	require.NoError(t, err)
	assert.Equal(t, ResultDraw, snap.GameState.Result)
}

func TestKillAllNeedsEveryPiece(t *testing.T) {
	setup := BoardSetup{
		Placements: []Placement{
			place(0, 0, piece("striker", White, false, rule(1, 0, "strike", progStrike))),
			place(1, 0, piece("pawn", Black, false)),
			place(7, 7, piece("pawn", Black, false)),
		},
		WinConditionWhite: KillAll,
		WinConditionBlack: KillAll,
	}
	e := newTestEngine(t, nil)
	id := createGame(t, e, setup, "alice", "bob").ID

	snap, err := e.MakeMove(context.Background(), id, shared.Loc(0, 0), shared.Loc(1, 0), "alice")
	require.NoError(t, err)
	assert.Equal(t, ResultInProgress, snap.GameState.Result)
}

func TestMoveAuthorization(t *testing.T) {
	e := newTestEngine(t, nil)
	id := createGame(t, e, kingsSetup(), "alice", "bob").ID
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to shared.Location
		player   string
		want     error
		class    string
	}{
		{name: "stranger", from: shared.Loc(0, 0), to: shared.Loc(1, 0), player: "mallory", want: ErrNotParticipant, class: shared.ClassAuthorization},
		{name: "wrong turn", from: shared.Loc(3, 0), to: shared.Loc(2, 0), player: "bob", want: ErrWrongTurn, class: shared.ClassAuthorization},
		{name: "not your piece", from: shared.Loc(3, 0), to: shared.Loc(2, 0), player: "alice", want: ErrNotYourPiece, class: shared.ClassAuthorization},
		{name: "empty source", from: shared.Loc(4, 4), to: shared.Loc(5, 4), player: "alice", want: ErrNoPieceAtSource, class: shared.ClassIllegalMove},
		{name: "no such move", from: shared.Loc(0, 0), to: shared.Loc(0, 1), player: "alice", want: ErrNoSuchMove, class: shared.ClassIllegalMove},
		{name: "off board", from: shared.Loc(0, 0), to: shared.Loc(8, 0), player: "alice", want: shared.ErrOutOfBounds, class: shared.ClassProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.MakeMove(ctx, id, tt.from, tt.to, tt.player)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.class, shared.Classify(err))
		})
	}

	snap, err := e.State(id)
	require.NoError(t, err)
	assert.Equal(t, White, snap.GameState.TeamToMove)
	assert.Zero(t, snap.GameState.MoveCount)
}

func TestRejectedProgramsLeaveBoardUnchanged(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		class string
	}{
		{name: "no-op", src: progLook, class: shared.ClassIllegalMove},
		{name: "unbounded loop", src: progSpin, class: shared.ClassTimeout},
		{name: "malformed", src: "(teleport me", class: shared.ClassCompile},
		{name: "move then fail", src: "(teleport me target) (take nil)", class: shared.ClassIllegalMove},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setup := BoardSetup{
				Placements: []Placement{
					place(0, 0, piece("odd", White, true, rule(1, 0, "odd", tt.src))),
					place(7, 0, piece("king", Black, true)),
				},
				WinConditionWhite: KillAnyRoyal,
				WinConditionBlack: KillAnyRoyal,
			}
			e := newTestEngine(t, nil, WithExecutor(script.NewExecutor(50*time.Millisecond, 0)))
			snap := createGame(t, e, setup, "alice", "bob")
			before := boardJSON(t, snap)

			start := time.Now()
			_, err := e.MakeMove(context.Background(), snap.ID, shared.Loc(0, 0), shared.Loc(1, 0), "alice")
			require.Error(t, err)
			assert.Equal(t, tt.class, shared.Classify(err))
			assert.Less(t, time.Since(start), 5*time.Second)

			after, err := e.State(snap.ID)
			require.NoError(t, err)
			assert.Equal(t, before, boardJSON(t, after))
			assert.Equal(t, White, after.GameState.TeamToMove)
		})
	}
}

func TestNoOpProgramMessage(t *testing.T) {
	setup := kingsSetup()
	setup.Placements[0].Piece.PieceMoves = []PieceMove{rule(1, 0, "look", progLook)}
	e := newTestEngine(t, nil)
	id := createGame(t, e, setup, "alice", "bob").ID

	_, err := e.MakeMove(context.Background(), id, shared.Loc(0, 0), shared.Loc(1, 0), "alice")
	require.ErrorIs(t, err, script.ErrNoAction)
	assert.Contains(t, err.Error(), "would do nothing")
}

func TestProgramSourceDown(t *testing.T) {
	e := newTestEngine(t, downPrograms{})
	snap := createGame(t, e, kingsSetup(), "alice", "bob")

	_, err := e.MakeMove(context.Background(), snap.ID, shared.Loc(0, 0), shared.Loc(1, 0), "alice")
	require.Error(t, err)
	assert.Equal(t, shared.ClassDependency, shared.Classify(err))
	assert.True(t, shared.Retryable(err))

	after, err := e.State(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, boardJSON(t, snap), boardJSON(t, after))
}

func TestDrawOfferLapsesAfterOpponentMoves(t *testing.T) {
	setup := kingsSetup()
	setup.Placements[0].Piece.PieceMoves = append(setup.Placements[0].Piece.PieceMoves, rule(-1, 0, "back", progStep))
	setup.Placements[1].Piece.PieceMoves = append(setup.Placements[1].Piece.PieceMoves, rule(-1, 0, "back", progStep))
	e := newTestEngine(t, nil)
	id := createGame(t, e, setup, "alice", "bob").ID
	ctx := context.Background()

	snap, err := e.Draw(id, "alice")
	require.NoError(t, err)
	assert.Equal(t, DrawOfferWhite, snap.GameState.DrawOffer)

	// Repeating one's own offer is a no-op.
	snap, err = e.Draw(id, "alice")
	require.NoError(t, err)
	assert.Equal(t, DrawOfferWhite, snap.GameState.DrawOffer)
	assert.Equal(t, ResultInProgress, snap.GameState.Result)

	// The offer survives its owner's move...
	snap, err = e.MakeMove(ctx, id, shared.Loc(0, 0), shared.Loc(1, 0), "alice")
	require.NoError(t, err)
	assert.Equal(t, DrawOfferWhite, snap.GameState.DrawOffer)

	// ...and lapses once the opponent replies without accepting.
	snap, err = e.MakeMove(ctx, id, shared.Loc(3, 0), shared.Loc(4, 0), "bob")
	require.NoError(t, err)
	assert.Equal(t, DrawOfferNone, snap.GameState.DrawOffer)

	_, err = e.Draw(id, "bob")
	require.NoError(t, err)
	snap, err = e.Draw(id, "alice")
	require.NoError(t, err)
	assert.Equal(t, ResultDrawByAgreement, snap.GameState.Result)
	assert.Equal(t, DrawOfferNone, snap.GameState.DrawOffer)
}

func TestResign(t *testing.T) {
	e := newTestEngine(t, nil)
	id := createGame(t, e, kingsSetup(), "alice", "bob").ID

	snap, err := e.Resign(id, "alice")
	require.NoError(t, err)
	assert.Equal(t, ResultBlackWinByResignation, snap.GameState.Result)

	_, err = e.Resign(id, "bob")
	assert.ErrorIs(t, err, ErrGameOver)
	_, err = e.Draw(id, "bob")
	assert.ErrorIs(t, err, ErrGameOver)
	_, err = e.Resign(id, "mallory")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestSelfPlay(t *testing.T) {
	e := newTestEngine(t, nil)
	id := createGame(t, e, kingsSetup(), "solo", "solo").ID
	ctx := context.Background()

	_, err := e.MakeMove(ctx, id, shared.Loc(0, 0), shared.Loc(1, 0), "solo")
	require.NoError(t, err)
	_, err = e.MakeMove(ctx, id, shared.Loc(3, 0), shared.Loc(2, 0), "solo")
	require.NoError(t, err)

	// Offers for white (to move), then accepts on black's behalf.
	snap, err := e.Draw(id, "solo")
	require.NoError(t, err)
	assert.Equal(t, DrawOfferWhite, snap.GameState.DrawOffer)
	snap, err = e.Draw(id, "solo")
	require.NoError(t, err)
	assert.Equal(t, ResultDrawByAgreement, snap.GameState.Result)
}

func TestLegalTargets(t *testing.T) {
	setup := kingsSetup()
	setup.Placements[0].Piece.PieceMoves = []PieceMove{
		rule(1, 0, "step", progStep),
		rule(3, 0, "leap", progStep),
		rule(-1, 0, "back", progStep),
		rule(1, 1, "look", progLook),
	}
	e := newTestEngine(t, nil)
	id := createGame(t, e, setup, "alice", "bob").ID
	ctx := context.Background()

	targets, err := e.LegalTargets(ctx, id, shared.Loc(0, 0), "alice")
	require.NoError(t, err)
	assert.Equal(t, []shared.Location{shared.Loc(1, 0)}, targets, "leap lands on the black king, back is off board, look is a no-op")

	targets, err = e.LegalTargets(ctx, id, shared.Loc(3, 0), "bob")
	require.NoError(t, err)
	assert.Equal(t, []shared.Location{shared.Loc(2, 0)}, targets)

	_, err = e.LegalTargets(ctx, id, shared.Loc(3, 0), "alice")
	assert.ErrorIs(t, err, ErrNotYourPiece)

	snap, err := e.State(id)
	require.NoError(t, err)
	assert.Zero(t, snap.GameState.MoveCount)
	assert.NotNil(t, snap.GameState.Board.PieceAt(shared.Loc(0, 0)))
}

func TestLegalTargetsMatchMakeMove(t *testing.T) {
	setup := kingsSetup()
	setup.Placements[0].Piece.PieceMoves = []PieceMove{
		rule(1, 1, "look", progLook),
		rule(1, 1, "step", progStep),
		rule(1, 0, "step", progStep),
		rule(1, 0, "strike", progStrike),
	}
	e := newTestEngine(t, nil)
	id := createGame(t, e, setup, "alice", "bob").ID
	ctx := context.Background()

	targets, err := e.LegalTargets(ctx, id, shared.Loc(0, 0), "alice")
	require.NoError(t, err)
	assert.Equal(t, []shared.Location{shared.Loc(1, 0)}, targets, "first rule per offset wins, no duplicates")

	_, err = e.MakeMove(ctx, id, shared.Loc(0, 0), shared.Loc(1, 1), "alice")
	assert.ErrorIs(t, err, shared.ErrIllegalMove)

	snap, err := e.MakeMove(ctx, id, shared.Loc(0, 0), shared.Loc(1, 0), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.GameState.MoveCount)
}

func TestLegalTargetsCancelled(t *testing.T) {
	e := newTestEngine(t, nil)
	id := createGame(t, e, kingsSetup(), "alice", "bob").ID
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.LegalTargets(ctx, id, shared.Loc(0, 0), "alice")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, shared.ClassAborted, shared.Classify(err))
}

func TestConcurrentMovesAreSerialized(t *testing.T) {
	e := newTestEngine(t, nil)
	id := createGame(t, e, kingsSetup(), "alice", "bob").ID

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.MakeMove(context.Background(), id, shared.Loc(0, 0), shared.Loc(1, 0), "alice")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrWrongTurn)
	}
	assert.Equal(t, 1, ok)

	snap, err := e.State(id)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.GameState.MoveCount)
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *countingObserver) ObserveMove(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func TestObserverSeesEveryAttempt(t *testing.T) {
	obs := &countingObserver{}
	e := newTestEngine(t, nil, WithObserver(obs))
	id := createGame(t, e, kingsSetup(), "alice", "bob").ID

	_, _ = e.MakeMove(context.Background(), id, shared.Loc(3, 0), shared.Loc(2, 0), "bob")
	_, _ = e.MakeMove(context.Background(), id, shared.Loc(0, 0), shared.Loc(1, 0), "alice")
	assert.Equal(t, []string{shared.ClassAuthorization, shared.ClassOK}, obs.outcomes)
}

func TestEngineLifecycle(t *testing.T) {
	n := 0
	e := newTestEngine(t, nil, WithIDGenerator(func() string { n++; return "g" + string(rune('0'+n)) }))

	snap := createGame(t, e, kingsSetup(), "alice", "bob")
	assert.Equal(t, "g1", snap.ID)
	assert.Equal(t, 1, e.Len())

	assert.True(t, e.Remove("g1"))
	assert.False(t, e.Remove("g1"))
	_, err := e.State("g1")
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.Equal(t, shared.ClassProtocol, shared.Classify(err))
}

func TestRemoveAsRequiresSeat(t *testing.T) {
	e := newTestEngine(t, nil)
	snap := createGame(t, e, kingsSetup(), "alice", "bob")

	err := e.RemoveAs(snap.ID, "mallory")
	assert.ErrorIs(t, err, ErrNotParticipant)
	assert.Equal(t, shared.ClassAuthorization, shared.Classify(err))
	assert.Equal(t, 1, e.Len())

	require.NoError(t, e.RemoveAs(snap.ID, "bob"))
	assert.Equal(t, 0, e.Len())
	assert.ErrorIs(t, e.RemoveAs(snap.ID, "bob"), ErrGameNotFound)
}

func TestSnapshotWireFormat(t *testing.T) {
	e := newTestEngine(t, nil)
	snap := createGame(t, e, kingsSetup(), "alice", "bob")

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var wire struct {
		ID        string `json:"id"`
		GameState struct {
			Board      map[string]map[string]json.RawMessage `json:"board"`
			TeamToMove string                                `json:"team_to_move"`
			Result     string                                `json:"result"`
			DrawOffer  string                                `json:"draw_offer"`
			WinWhite   string                                `json:"win_condition_white"`
		} `json:"game_state"`
	}
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, snap.ID, wire.ID)
	assert.Len(t, wire.GameState.Board, 64)
	assert.Equal(t, "null", string(wire.GameState.Board["4,4"]["piece"]))
	assert.Equal(t, "white", wire.GameState.TeamToMove)
	assert.Equal(t, "in_progress", wire.GameState.Result)
	assert.Equal(t, "none", wire.GameState.DrawOffer)
	assert.Equal(t, "kill_any_royal", wire.GameState.WinWhite)

	var king struct {
		Team       string      `json:"team"`
		Name       string      `json:"name"`
		PieceID    int         `json:"piece_id"`
		IsRoyal    bool        `json:"is_royal"`
		PieceMoves []PieceMove `json:"piece_moves"`
	}
	require.NoError(t, json.Unmarshal(wire.GameState.Board["3,0"]["piece"], &king))
	assert.Equal(t, "black", king.Team)
	assert.Equal(t, 2, king.PieceID)
	assert.True(t, king.IsRoyal)
	require.Len(t, king.PieceMoves, 1)
	assert.Equal(t, "strike", king.PieceMoves[0].Move)

	boardData, err := json.Marshal(snap.GameState.Board)
	require.NoError(t, err)
	var back Board
	require.NoError(t, json.Unmarshal(boardData, &back))
	assert.Equal(t, snap.GameState.Board.Census(), back.Census())
	assert.Equal(t, "king", back.PieceAt(shared.Loc(0, 0)).Name)
}
