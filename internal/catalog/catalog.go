// path: fairy_chess/internal/catalog/catalog.go
// Package catalog loads move, piece and board setup definitions and turns
// setups into game snapshots.
package catalog

import (
	_ "embed"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/notnil/chess"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"fairy_chess/internal/game"
	"fairy_chess/internal/script"
	"fairy_chess/internal/shared"
)

//go:embed default.yaml
var defaultCatalog []byte

const maxOffset = shared.BoardSize - 1

// ErrUnknownSetup is returned by Setup for a name the catalog lacks.
var ErrUnknownSetup = shared.ClassError(shared.ErrProtocol, "unknown board setup")

// Move is a named move implementation: inline program text or a block
// program for the compiler service.
type Move struct {
	Name    string         `yaml:"name" json:"name"`
	Program string         `yaml:"program,omitempty" json:"program,omitempty"`
	Blocks  map[string]any `yaml:"blocks,omitempty" json:"blocks,omitempty"`
}

// Offset binds one relative offset to a move.
type Offset struct {
	Row  int    `yaml:"row" json:"row"`
	Col  int    `yaml:"col" json:"col"`
	Move string `yaml:"move" json:"move"`
}

// Ray expands to the offsets k*(row,col) for k in 1..range.
type Ray struct {
	Row   int    `yaml:"row" json:"row"`
	Col   int    `yaml:"col" json:"col"`
	Move  string `yaml:"move" json:"move"`
	Range int    `yaml:"range" json:"range"`
}

// Piece lists the offsets a piece may move to. Rays expand to one offset per
// distance along a direction.
type Piece struct {
	Name  string   `yaml:"name" json:"name"`
	Royal bool     `yaml:"royal,omitempty" json:"royal,omitempty"`
	Moves []Offset `yaml:"moves,omitempty" json:"moves,omitempty"`
	Rays  []Ray    `yaml:"rays,omitempty" json:"rays,omitempty"`
}

type Placement struct {
	Row   int    `yaml:"row" json:"row"`
	Col   int    `yaml:"col" json:"col"`
	Piece string `yaml:"piece" json:"piece"`
	Team  string `yaml:"team" json:"team"`
	Royal *bool  `yaml:"royal,omitempty" json:"royal,omitempty"`
}

// Setup is either an explicit placement list or a FEN position whose
// standard piece letters are mapped onto catalog pieces.
type Setup struct {
	Name              string            `yaml:"name" json:"name"`
	WinConditionWhite string            `yaml:"win_condition_white" json:"win_condition_white"`
	WinConditionBlack string            `yaml:"win_condition_black" json:"win_condition_black"`
	Placements        []Placement       `yaml:"placements,omitempty" json:"placements,omitempty"`
	FEN               string            `yaml:"fen,omitempty" json:"fen,omitempty"`
	FENPieces         map[string]string `yaml:"fen_pieces,omitempty" json:"fen_pieces,omitempty"`
}

// Catalog holds the named moves, pieces and setups games are built from.
type Catalog struct {
	Moves  []Move  `yaml:"moves" json:"moves"`
	Pieces []Piece `yaml:"pieces" json:"pieces"`
	Setups []Setup `yaml:"setups" json:"setups"`

	moves  map[string]*Move
	pieces map[string]*Piece
	setups map[string]*Setup
}

// Default returns the catalog bundled with the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads and validates a catalog YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() {
	c.moves = make(map[string]*Move, len(c.Moves))
	for i := range c.Moves {
		c.moves[c.Moves[i].Name] = &c.Moves[i]
	}
	c.pieces = make(map[string]*Piece, len(c.Pieces))
	for i := range c.Pieces {
		c.pieces[c.Pieces[i].Name] = &c.Pieces[i]
	}
	c.setups = make(map[string]*Setup, len(c.Setups))
	for i := range c.Setups {
		c.setups[c.Setups[i].Name] = &c.Setups[i]
	}
}

// SetupNames lists setups in sorted order.
func (c *Catalog) SetupNames() []string {
	out := make([]string, 0, len(c.Setups))
	for _, s := range c.Setups {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}

// Setup materializes a named setup. Every call returns fresh piece values.
func (c *Catalog) Setup(name string) (game.BoardSetup, error) {
	if c.setups == nil {
		c.index()
	}
	s, ok := c.setups[name]
	if !ok {
		return game.BoardSetup{}, errors.WithMessage(ErrUnknownSetup, name)
	}
	return c.materialize(s)
}

func (c *Catalog) materialize(s *Setup) (game.BoardSetup, error) {
	placements, err := c.placements(s)
	if err != nil {
		return game.BoardSetup{}, err
	}
	out := game.BoardSetup{
		Name:              s.Name,
		WinConditionWhite: game.WinCondition(s.WinConditionWhite),
		WinConditionBlack: game.WinCondition(s.WinConditionBlack),
	}
	for _, p := range placements {
		team, ok := shared.ParseTeam(p.Team)
		if !ok {
			return game.BoardSetup{}, errors.Errorf("setup %s: unknown team %q", s.Name, p.Team)
		}
		def, ok := c.pieces[p.Piece]
		if !ok {
			return game.BoardSetup{}, errors.Errorf("setup %s: unknown piece %q", s.Name, p.Piece)
		}
		moves, err := c.pieceMoves(def)
		if err != nil {
			return game.BoardSetup{}, err
		}
		royal := def.Royal
		if p.Royal != nil {
			royal = *p.Royal
		}
		out.Placements = append(out.Placements, game.Placement{
			Location: shared.Loc(p.Row, p.Col),
			Piece: shared.PieceInstance{
				Name:       def.Name,
				Team:       team,
				IsRoyal:    royal,
				PieceMoves: moves,
			},
		})
	}
	return out, nil
}

// placements expands a FEN setup into explicit placements.
func (c *Catalog) placements(s *Setup) ([]Placement, error) {
	if s.FEN == "" {
		return s.Placements, nil
	}
	opt, err := chess.FEN(s.FEN)
	if err != nil {
		return nil, errors.Wrapf(err, "setup %s: fen", s.Name)
	}
	squares := chess.NewGame(opt).Position().Board().SquareMap()

	out := make([]Placement, 0, len(squares))
	for sq, pc := range squares {
		if pc == chess.NoPiece {
			continue
		}
		name, ok := s.FENPieces[fenLetter(pc.Type())]
		if !ok {
			return nil, errors.Errorf("setup %s: no piece mapped to fen letter %q", s.Name, fenLetter(pc.Type()))
		}
		team := "white"
		if pc.Color() == chess.Black {
			team = "black"
		}
		out = append(out, Placement{Row: int(sq.Rank()), Col: int(sq.File()), Piece: name, Team: team})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out, nil
}

func fenLetter(t chess.PieceType) string {
	return strings.ToLower(t.String())
}

// pieceMoves resolves a piece's offsets and rays into rules with their
// implementations attached.
func (c *Catalog) pieceMoves(p *Piece) ([]shared.PieceMove, error) {
	var out []shared.PieceMove
	add := func(row, col int, name string) error {
		m, ok := c.moves[name]
		if !ok {
			return errors.Errorf("piece %s: unknown move %q", p.Name, name)
		}
		impl, err := m.implementation()
		if err != nil {
			return errors.WithMessagef(err, "move %s", name)
		}
		out = append(out, shared.PieceMove{RelativeRow: row, RelativeCol: col, Move: name, Implementation: impl})
		return nil
	}
	for _, o := range p.Moves {
		if err := add(o.Row, o.Col, o.Move); err != nil {
			return nil, err
		}
	}
	for _, r := range p.Rays {
		for k := 1; k <= r.Range; k++ {
			row, col := k*r.Row, k*r.Col
			if abs(row) > maxOffset || abs(col) > maxOffset {
				break
			}
			if err := add(row, col, r.Move); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// implementation is the opaque form stored on a rule: a JSON string of
// program text, or the block program as JSON.
func (m *Move) implementation() (json.RawMessage, error) {
	if m.Program != "" {
		return json.Marshal(m.Program)
	}
	data, err := json.Marshal(m.Blocks)
	if err != nil {
		return nil, errors.Wrap(err, "encode blocks")
	}
	return data, nil
}

// Validate reports every problem in the catalog at once.
func (c *Catalog) Validate() error {
	var result *multierror.Error
	c.index()

	seen := map[string]bool{}
	for _, m := range c.Moves {
		if m.Name == "" || seen["move:"+m.Name] {
			result = multierror.Append(result, errors.Errorf("move %q: missing or duplicate name", m.Name))
		}
		seen["move:"+m.Name] = true
		switch {
		case m.Program == "" && len(m.Blocks) == 0:
			result = multierror.Append(result, errors.Errorf("move %s: needs program or blocks", m.Name))
		case m.Program != "" && len(m.Blocks) > 0:
			result = multierror.Append(result, errors.Errorf("move %s: has both program and blocks", m.Name))
		case m.Program != "":
			if _, err := script.Compile(m.Program); err != nil {
				result = multierror.Append(result, errors.WithMessagef(err, "move %s", m.Name))
			}
		}
	}

	for _, p := range c.Pieces {
		if p.Name == "" || seen["piece:"+p.Name] {
			result = multierror.Append(result, errors.Errorf("piece %q: missing or duplicate name", p.Name))
		}
		seen["piece:"+p.Name] = true
		result = multierror.Append(result, c.validatePiece(p)...)
	}

	for _, s := range c.Setups {
		if s.Name == "" || seen["setup:"+s.Name] {
			result = multierror.Append(result, errors.Errorf("setup %q: missing or duplicate name", s.Name))
		}
		seen["setup:"+s.Name] = true
		result = multierror.Append(result, c.validateSetup(s)...)
	}

	return result.ErrorOrNil()
}

func (c *Catalog) validatePiece(p Piece) []error {
	var errs []error
	offsets := map[[2]int]bool{}
	check := func(row, col int, move string) {
		switch {
		case row == 0 && col == 0:
			errs = append(errs, errors.Errorf("piece %s: zero offset", p.Name))
		case abs(row) > maxOffset || abs(col) > maxOffset:
			errs = append(errs, errors.Errorf("piece %s: offset (%d,%d) outside [-7,7]", p.Name, row, col))
		case offsets[[2]int{row, col}]:
			errs = append(errs, errors.Errorf("piece %s: offset (%d,%d) bound twice", p.Name, row, col))
		}
		offsets[[2]int{row, col}] = true
		if _, ok := c.moves[move]; !ok {
			errs = append(errs, errors.Errorf("piece %s: unknown move %q", p.Name, move))
		}
	}
	for _, o := range p.Moves {
		check(o.Row, o.Col, o.Move)
	}
	for _, r := range p.Rays {
		if r.Range < 1 {
			errs = append(errs, errors.Errorf("piece %s: ray (%d,%d) needs a positive range", p.Name, r.Row, r.Col))
			continue
		}
		for k := 1; k <= r.Range; k++ {
			row, col := k*r.Row, k*r.Col
			if abs(row) > maxOffset || abs(col) > maxOffset {
				break
			}
			check(row, col, r.Move)
		}
	}
	return errs
}

func (c *Catalog) validateSetup(s Setup) []error {
	var errs []error
	white, err := game.ParseWinCondition(s.WinConditionWhite)
	if err != nil {
		errs = append(errs, errors.WithMessagef(err, "setup %s", s.Name))
	}
	black, err := game.ParseWinCondition(s.WinConditionBlack)
	if err != nil {
		errs = append(errs, errors.WithMessagef(err, "setup %s", s.Name))
	}
	if s.FEN != "" && len(s.Placements) > 0 {
		errs = append(errs, errors.Errorf("setup %s: has both fen and placements", s.Name))
	}

	placements, err := c.placements(&s)
	if err != nil {
		return append(errs, err)
	}

	var royals [2]int
	occupied := map[shared.Location]bool{}
	for _, p := range placements {
		loc := shared.Loc(p.Row, p.Col)
		if !loc.InBounds() {
			errs = append(errs, errors.Errorf("setup %s: placement %s off the board", s.Name, loc))
			continue
		}
		if occupied[loc] {
			errs = append(errs, errors.Errorf("setup %s: tile %s used twice", s.Name, loc))
		}
		occupied[loc] = true

		team, ok := shared.ParseTeam(p.Team)
		if !ok {
			errs = append(errs, errors.Errorf("setup %s: unknown team %q", s.Name, p.Team))
			continue
		}
		def, ok := c.pieces[p.Piece]
		if !ok {
			errs = append(errs, errors.Errorf("setup %s: unknown piece %q", s.Name, p.Piece))
			continue
		}
		royal := def.Royal
		if p.Royal != nil {
			royal = *p.Royal
		}
		if royal {
			royals[team.Index()]++
		}
	}

	// A royal condition against a side with no royals could never be met, or
	// would be met before anything is captured.
	if white.NeedsRoyals() && royals[shared.Black.Index()] == 0 {
		errs = append(errs, errors.Errorf("setup %s: white plays %s but black has no royal pieces", s.Name, white))
	}
	if black.NeedsRoyals() && royals[shared.White.Index()] == 0 {
		errs = append(errs, errors.Errorf("setup %s: black plays %s but white has no royal pieces", s.Name, black))
	}
	return errs
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
