package game

import (
	"github.com/pkg/errors"
)

// Placement puts one piece on a starting tile.
type Placement struct {
	Location Location
	Piece    PieceInstance
}

// BoardSetup is a catalog snapshot a game starts from. Piece ids in the
// setup are ignored; games assign their own.
type BoardSetup struct {
	Name              string
	Placements        []Placement
	WinConditionWhite WinCondition
	WinConditionBlack WinCondition
}

// Game is one running match. It is not safe for concurrent use; Engine
// serializes access per game.
type Game struct {
	id        string
	whiteUser string
	blackUser string
	board     *Board
	turn      Team
	result    Result
	drawOffer DrawOffer
	winWhite  WinCondition
	winBlack  WinCondition
	history   history
}

// NewGame copies the setup's pieces onto a fresh board and numbers them
// sequentially in row-major order. White moves first.
func NewGame(id string, setup BoardSetup, whiteUser, blackUser string) (*Game, error) {
	if !setup.WinConditionWhite.Valid() || !setup.WinConditionBlack.Valid() {
		return nil, errors.WithMessage(ErrInvalidSetup, "unknown win condition")
	}
	if whiteUser == "" || blackUser == "" {
		return nil, errors.WithMessage(ErrInvalidSetup, "both seats need a player")
	}

	board := EmptyBoard()
	for _, p := range setup.Placements {
		pc := p.Piece.Clone()
		if err := board.Place(p.Location, pc); err != nil {
			return nil, errors.WithMessagef(ErrInvalidSetup, "placement %s: %v", p.Location, err)
		}
	}
	next := 1
	board.Each(func(_ Location, pc *PieceInstance) {
		pc.PieceID = next
		next++
	})

	return &Game{
		id:        id,
		whiteUser: whiteUser,
		blackUser: blackUser,
		board:     board,
		turn:      White,
		result:    ResultInProgress,
		drawOffer: DrawOfferNone,
		winWhite:  setup.WinConditionWhite,
		winBlack:  setup.WinConditionBlack,
	}, nil
}

func (g *Game) ID() string           { return g.id }
func (g *Game) TeamToMove() Team     { return g.turn }
func (g *Game) Result() Result       { return g.result }
func (g *Game) DrawOffer() DrawOffer { return g.drawOffer }

// seats lists the teams an identity plays. A self-play identity holds both.
func (g *Game) seats(identity string) []Team {
	var out []Team
	if identity != "" && identity == g.whiteUser {
		out = append(out, White)
	}
	if identity != "" && identity == g.blackUser {
		out = append(out, Black)
	}
	return out
}

func (g *Game) selfPlay() bool { return g.whiteUser == g.blackUser }

// actingTeam resolves which team identity speaks for. With both seats it is
// the team to move.
func (g *Game) actingTeam(identity string) (Team, error) {
	seats := g.seats(identity)
	switch len(seats) {
	case 0:
		return White, ErrNotParticipant
	case 1:
		return seats[0], nil
	default:
		return g.turn, nil
	}
}

// Resign ends the game in the opponent's favour.
func (g *Game) Resign(team Team) error {
	if g.result.Terminal() {
		return ErrGameOver
	}
	g.result = resignationWinFor(team.Opposite())
	g.drawOffer = DrawOfferNone
	return nil
}

// OfferOrAcceptDraw records an offer from team, or accepts the opponent's
// outstanding one. Repeating one's own offer changes nothing.
func (g *Game) OfferOrAcceptDraw(team Team) error {
	if g.result.Terminal() {
		return ErrGameOver
	}
	offerer, ok := g.drawOffer.Team()
	switch {
	case !ok:
		g.drawOffer = offerBy(team)
	case offerer != team:
		g.result = ResultDrawByAgreement
		g.drawOffer = DrawOfferNone
	}
	return nil
}

// ResignAs resigns on behalf of identity.
func (g *Game) ResignAs(identity string) error {
	team, err := g.actingTeam(identity)
	if err != nil {
		return err
	}
	return g.Resign(team)
}

// DrawAs offers or accepts a draw on behalf of identity. A self-play identity
// accepts an outstanding offer for the other color, otherwise offers for the
// team to move.
func (g *Game) DrawAs(identity string) error {
	team, err := g.actingTeam(identity)
	if err != nil {
		return err
	}
	if g.selfPlay() {
		if offerer, ok := g.drawOffer.Team(); ok {
			team = offerer.Opposite()
		}
	}
	return g.OfferOrAcceptDraw(team)
}

// GameState is the wire form of the mutable part of a game.
type GameState struct {
	Board             *Board       `json:"board"`
	TeamToMove        Team         `json:"team_to_move"`
	Result            Result       `json:"result"`
	DrawOffer         DrawOffer    `json:"draw_offer"`
	WinConditionWhite WinCondition `json:"win_condition_white"`
	WinConditionBlack WinCondition `json:"win_condition_black"`
	MoveCount         int          `json:"move_count"`
}

// Snapshot is a detached copy of a game, safe to hand to other goroutines.
type Snapshot struct {
	ID        string       `json:"id"`
	WhiteUser string       `json:"white_user"`
	BlackUser string       `json:"black_user"`
	GameState GameState    `json:"game_state"`
	History   []MoveRecord `json:"history"`
}

// Snapshot copies the game for callers outside the engine lock.
func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		ID:        g.id,
		WhiteUser: g.whiteUser,
		BlackUser: g.blackUser,
		GameState: GameState{
			Board:             g.board.Clone(),
			TeamToMove:        g.turn,
			Result:            g.result,
			DrawOffer:         g.drawOffer,
			WinConditionWhite: g.winWhite,
			WinConditionBlack: g.winBlack,
			MoveCount:         g.history.Len(),
		},
		History: g.history.snapshot(),
	}
}
