// path: fairy_chess/internal/game/engine.go
// Package game implements the move-execution and game-state engine.
package game

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fairy_chess/internal/script"
	"fairy_chess/internal/shared"
)

// MoveObserver is told about every attempted move.
type MoveObserver interface {
	ObserveMove(outcome string, elapsed time.Duration)
}

// Engine owns every running game. Calls against the same game are serialized
// from validation through commit; different games proceed independently.
type Engine struct {
	mu       sync.RWMutex
	games    map[string]*gameSlot
	source   ProgramSource
	exec     *script.Executor
	log      *zap.Logger
	observer MoveObserver
	newID    func() string
}

type gameSlot struct {
	mu   sync.Mutex
	game *Game
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithExecutor(x *script.Executor) Option {
	return func(e *Engine) {
		if x != nil {
			e.exec = x
		}
	}
}

func WithObserver(o MoveObserver) Option {
	return func(e *Engine) { e.observer = o }
}

// WithIDGenerator replaces the uuid game ids, mostly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine creates an engine that obtains move programs from src.
func NewEngine(src ProgramSource, opts ...Option) *Engine {
	e := &Engine{
		games:  make(map[string]*gameSlot),
		source: src,
		exec:   script.NewExecutor(script.DefaultTimeout, script.DefaultMaxSteps),
		log:    zap.NewNop(),
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create starts a game from setup and returns its first snapshot.
func (e *Engine) Create(setup BoardSetup, whiteUser, blackUser string) (Snapshot, error) {
	id := e.newID()
	g, err := NewGame(id, setup, whiteUser, blackUser)
	if err != nil {
		return Snapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.games[id]; exists {
		return Snapshot{}, errors.Errorf("game id %s already in use", id)
	}
	e.games[id] = &gameSlot{game: g}
	e.log.Info("game created",
		zap.String("game", id),
		zap.String("setup", setup.Name),
		zap.String("white", whiteUser),
		zap.String("black", blackUser))
	return g.Snapshot(), nil
}

// withGame runs fn while holding the game's lock.
func (e *Engine) withGame(id string, fn func(g *Game) error) (Snapshot, error) {
	e.mu.RLock()
	slot, ok := e.games[id]
	e.mu.RUnlock()
	if !ok {
		return Snapshot{}, errors.WithMessage(ErrGameNotFound, id)
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	if err := fn(slot.game); err != nil {
		return Snapshot{}, err
	}
	return slot.game.Snapshot(), nil
}

// MakeMove executes a move given in canonical coordinates on behalf of identity.
func (e *Engine) MakeMove(ctx context.Context, id string, from, to Location, identity string) (Snapshot, error) {
	start := time.Now()
	var outcome MoveOutcome
	snap, err := e.withGame(id, func(g *Game) error {
		var err error
		outcome, err = g.MakeMove(ctx, MoveRequest{From: from, To: to, Identity: identity}, e.source, e.exec)
		return err
	})
	elapsed := time.Since(start)
	if e.observer != nil {
		e.observer.ObserveMove(shared.Classify(err), elapsed)
	}

	fields := []zap.Field{
		zap.String("game", id),
		zap.String("player", identity),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		fields = append(fields, zap.String("class", shared.Classify(err)), zap.Error(err))
		switch {
		case errors.Is(err, shared.ErrDependency):
			e.log.Error("move program unavailable", fields...)
		case errors.Is(err, shared.ErrExecutionTimeout):
			e.log.Warn("move program timed out", fields...)
		default:
			e.log.Info("move rejected", fields...)
		}
		return Snapshot{}, err
	}
	fields = append(fields,
		zap.Stringer("team", outcome.Team),
		zap.String("move", outcome.Move),
		zap.Ints("captured", outcome.Captured),
		zap.String("result", string(outcome.Result)))
	e.log.Info("move committed", fields...)
	return snap, nil
}

// Resign ends the game in the opponent's favour. In self-play the side to
// move resigns.
func (e *Engine) Resign(id, identity string) (Snapshot, error) {
	snap, err := e.withGame(id, func(g *Game) error { return g.ResignAs(identity) })
	if err == nil {
		e.log.Info("game resigned", zap.String("game", id), zap.String("player", identity),
			zap.String("result", string(snap.GameState.Result)))
	}
	return snap, err
}

// Draw offers a draw, or accepts the opponent's offer.
func (e *Engine) Draw(id, identity string) (Snapshot, error) {
	snap, err := e.withGame(id, func(g *Game) error { return g.DrawAs(identity) })
	if err == nil {
		e.log.Info("draw requested", zap.String("game", id), zap.String("player", identity),
			zap.String("draw_offer", string(snap.GameState.DrawOffer)),
			zap.String("result", string(snap.GameState.Result)))
	}
	return snap, err
}

// State returns a snapshot of the game.
func (e *Engine) State(id string) (Snapshot, error) {
	return e.withGame(id, func(*Game) error { return nil })
}

// LegalTargets previews where the piece on from could go, in canonical
// coordinates sorted row-major.
func (e *Engine) LegalTargets(ctx context.Context, id string, from Location, identity string) ([]Location, error) {
	var targets []Location
	_, err := e.withGame(id, func(g *Game) error {
		var err error
		targets, err = g.LegalTargets(ctx, identity, from, e.source, e.exec)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].Row != targets[j].Row {
			return targets[i].Row < targets[j].Row
		}
		return targets[i].Col < targets[j].Col
	})
	return targets, nil
}

// Remove forgets a game. It reports whether the game existed.
func (e *Engine) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.games[id]; !ok {
		return false
	}
	delete(e.games, id)
	e.log.Info("game removed", zap.String("game", id))
	return true
}

// RemoveAs ends a game on behalf of one of its players. Anyone without a
// seat gets ErrNotParticipant and the game stays live.
func (e *Engine) RemoveAs(id, identity string) error {
	if _, err := e.withGame(id, func(g *Game) error {
		if len(g.seats(identity)) == 0 {
			return ErrNotParticipant
		}
		return nil
	}); err != nil {
		return err
	}
	if !e.Remove(id) {
		return errors.WithMessage(ErrGameNotFound, id)
	}
	return nil
}

// Len reports how many games are live.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.games)
}
