// path: fairy_chess/internal/game/errors.go
package game

import "fairy_chess/internal/shared"

var (
	ErrGameNotFound    = shared.ClassError(shared.ErrProtocol, "game not found")
	ErrInvalidSetup    = shared.ClassError(shared.ErrProtocol, "invalid board setup")
	ErrActorMissing    = shared.ClassError(shared.ErrProtocol, "acting piece missing at source tile")
	ErrNotParticipant  = shared.ClassError(shared.ErrAuthorization, "not a participant in this game")
	ErrWrongTurn       = shared.ClassError(shared.ErrAuthorization, "not your turn")
	ErrNotYourPiece    = shared.ClassError(shared.ErrAuthorization, "not your piece")
	ErrGameOver        = shared.ClassError(shared.ErrIllegalMove, "game is over")
	ErrNoPieceAtSource = shared.ClassError(shared.ErrIllegalMove, "no piece at source tile")
	ErrNoSuchMove      = shared.ClassError(shared.ErrIllegalMove, "no such move")
	ErrTargetOccupied  = shared.ClassError(shared.ErrIllegalMove, "target tile occupied")
	ErrTileOutOfBounds = shared.ClassError(shared.ErrIllegalMove, "tile out of bounds")
	ErrPieceNotOnBoard = shared.ClassError(shared.ErrIllegalMove, "piece not on board")
	ErrNilPiece        = shared.ClassError(shared.ErrIllegalMove, "no piece given")
)
