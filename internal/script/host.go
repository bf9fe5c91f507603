package script

import "fairy_chess/internal/shared"

// Host is everything a move program can see or touch. Implementations own a
// private board; a program never receives anything else.
type Host interface {
	ActingPiece() *shared.PieceInstance
	TargetTile() shared.Location
	PieceAt(loc shared.Location) (*shared.PieceInstance, error)
	TileOf(pc *shared.PieceInstance) (shared.Location, error)
	Teleport(pc *shared.PieceInstance, to shared.Location) error
	Take(pc *shared.PieceInstance) error
	Path(from, to shared.Location, beginExclusive, endExclusive int) ([]shared.Location, error)
	DidAction() bool
}
