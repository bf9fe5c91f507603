// path: fairy_chess/internal/game/types.go
package game

import (
	"fmt"

	"fairy_chess/internal/shared"
)

type (
	Team          = shared.Team
	Location      = shared.Location
	PieceInstance = shared.PieceInstance
	PieceMove     = shared.PieceMove
)

const (
	White = shared.White
	Black = shared.Black
)

// Result is the lifecycle state of a game. Everything but in_progress is terminal.
type Result string

const (
	ResultInProgress            Result = "in_progress"
	ResultWhiteWin              Result = "white_win"
	ResultBlackWin              Result = "black_win"
	ResultDraw                  Result = "draw"
	ResultWhiteWinByResignation Result = "white_win_by_resignation"
	ResultBlackWinByResignation Result = "black_win_by_resignation"
	ResultDrawByAgreement       Result = "draw_by_agreement"
)

func (r Result) Terminal() bool { return r != ResultInProgress }

func winFor(t Team) Result {
	if t == White {
		return ResultWhiteWin
	}
	return ResultBlackWin
}

func resignationWinFor(t Team) Result {
	if t == White {
		return ResultWhiteWinByResignation
	}
	return ResultBlackWinByResignation
}

// DrawOffer records which team, if any, has an open draw offer.
type DrawOffer string

const (
	DrawOfferNone  DrawOffer = "none"
	DrawOfferWhite DrawOffer = "white"
	DrawOfferBlack DrawOffer = "black"
)

func offerBy(t Team) DrawOffer {
	if t == White {
		return DrawOfferWhite
	}
	return DrawOfferBlack
}

// Team reports which team made the offer.
func (d DrawOffer) Team() (Team, bool) {
	switch d {
	case DrawOfferWhite:
		return White, true
	case DrawOfferBlack:
		return Black, true
	default:
		return White, false
	}
}

// WinCondition is what a team must capture to win.
type WinCondition string

const (
	KillAll       WinCondition = "kill_all"
	KillAllRoyals WinCondition = "kill_all_royals"
	KillAnyRoyal  WinCondition = "kill_any_royal"
)

func (w WinCondition) Valid() bool {
	switch w {
	case KillAll, KillAllRoyals, KillAnyRoyal:
		return true
	}
	return false
}

// NeedsRoyals reports whether the condition can only be met by capturing royals.
func (w WinCondition) NeedsRoyals() bool {
	return w == KillAllRoyals || w == KillAnyRoyal
}

func ParseWinCondition(s string) (WinCondition, error) {
	w := WinCondition(s)
	if !w.Valid() {
		return "", fmt.Errorf("unknown win condition %q", s)
	}
	return w, nil
}
