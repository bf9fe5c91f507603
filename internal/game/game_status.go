// path: fairy_chess/internal/game/game_status.go
package game

type teamCount struct {
	Pieces int
	Royals int
}

// Census counts surviving pieces per team, indexed by Team.Index.
type Census [2]teamCount

// Census counts b.
func (b *Board) Census() Census {
	var c Census
	b.Each(func(_ Location, pc *PieceInstance) {
		c[pc.Team.Index()].Pieces++
		if pc.IsRoyal {
			c[pc.Team.Index()].Royals++
		}
	})
	return c
}

// conditionMet reports whether a team holding cond has won, judged only by
// what happened to its opponent across one move.
func conditionMet(cond WinCondition, before, after teamCount) bool {
	switch cond {
	case KillAll:
		return after.Pieces == 0
	case KillAllRoyals:
		return after.Royals == 0
	case KillAnyRoyal:
		return after.Royals < before.Royals
	default:
		return false
	}
}

// evaluateResult applies both teams' conditions to the same snapshot pair.
// A simultaneous trigger is a draw.
func evaluateResult(white, black WinCondition, before, after Census) Result {
	whiteWins := conditionMet(white, before[Black.Index()], after[Black.Index()])
	blackWins := conditionMet(black, before[White.Index()], after[White.Index()])
	switch {
	case whiteWins && blackWins:
		return ResultDraw
	case whiteWins:
		return ResultWhiteWin
	case blackWins:
		return ResultBlackWin
	default:
		return ResultInProgress
	}
}
