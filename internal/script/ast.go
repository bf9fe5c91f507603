// path: fairy_chess/internal/script/ast.go
package script

import (
	"github.com/pkg/errors"
)

// machine is the state of one program run. It is never shared between runs.
type machine struct {
	done     <-chan struct{}
	host     Host
	vars     []Value
	bound    []bool
	steps    int
	maxSteps int
}

// tick charges one step and observes cancellation. It runs before every
// primitive call and every loop iteration.
func (m *machine) tick() error {
	m.steps++
	if m.maxSteps > 0 && m.steps > m.maxSteps {
		return ErrStepBudget
	}
	select {
	case <-m.done:
		return errCancelled
	default:
		return nil
	}
}

type stmt interface {
	exec(m *machine) error
}

type expr interface {
	eval(m *machine) (Value, error)
}

type block []stmt

func (b block) exec(m *machine) error {
	for _, s := range b {
		if err := s.exec(m); err != nil {
			return err
		}
	}
	return nil
}

type teleportStmt struct {
	pos        Pos
	unit, tile expr
}

func (s *teleportStmt) exec(m *machine) error {
	uv, err := s.unit.eval(m)
	if err != nil {
		return err
	}
	tv, err := s.tile.eval(m)
	if err != nil {
		return err
	}
	if err := m.tick(); err != nil {
		return err
	}
	u, err := unitArg("teleport", uv)
	if err != nil {
		return err
	}
	t, err := tileArg("teleport", tv)
	if err != nil {
		return err
	}
	return errors.WithMessagef(m.host.Teleport(u, t), "teleport at %s", s.pos)
}

type takeStmt struct {
	pos  Pos
	unit expr
}

func (s *takeStmt) exec(m *machine) error {
	uv, err := s.unit.eval(m)
	if err != nil {
		return err
	}
	if err := m.tick(); err != nil {
		return err
	}
	u, err := unitArg("take", uv)
	if err != nil {
		return err
	}
	return errors.WithMessagef(m.host.Take(u), "take at %s", s.pos)
}

type setStmt struct {
	slot  int
	value expr
}

func (s *setStmt) exec(m *machine) error {
	v, err := s.value.eval(m)
	if err != nil {
		return err
	}
	m.vars[s.slot] = v
	m.bound[s.slot] = true
	return nil
}

type ifStmt struct {
	cond      expr
	then, els block
}

func (s *ifStmt) exec(m *machine) error {
	ok, err := condition(m, s.cond, "if")
	if err != nil {
		return err
	}
	if ok {
		return s.then.exec(m)
	}
	return s.els.exec(m)
}

type forStmt struct {
	slot int
	list expr
	body block
}

func (s *forStmt) exec(m *machine) error {
	lv, err := s.list.eval(m)
	if err != nil {
		return err
	}
	tiles, ok := lv.AsTiles()
	if !ok {
		return typeError("for", "tile list", lv)
	}
	for _, t := range tiles {
		if err := m.tick(); err != nil {
			return err
		}
		m.vars[s.slot] = Tile(t)
		m.bound[s.slot] = true
		if err := s.body.exec(m); err != nil {
			return err
		}
	}
	return nil
}

type whileStmt struct {
	cond expr
	body block
}

func (s *whileStmt) exec(m *machine) error {
	for {
		if err := m.tick(); err != nil {
			return err
		}
		ok, err := condition(m, s.cond, "while")
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := s.body.exec(m); err != nil {
			return err
		}
	}
}

func condition(m *machine, e expr, op string) (bool, error) {
	v, err := e.eval(m)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, typeError(op, "bool", v)
	}
	return b, nil
}

type literal struct{ v Value }

func (e literal) eval(*machine) (Value, error) { return e.v, nil }

type meExpr struct{}

func (meExpr) eval(m *machine) (Value, error) { return Unit(m.host.ActingPiece()), nil }

type targetExpr struct{}

func (targetExpr) eval(m *machine) (Value, error) { return Tile(m.host.TargetTile()), nil }

type varRef struct {
	slot int
	name string
}

func (e varRef) eval(m *machine) (Value, error) {
	if !m.bound[e.slot] {
		return Nil, runtimeErrorf("variable %s used before it was set", e.name)
	}
	return m.vars[e.slot], nil
}

type callExpr struct {
	pos  Pos
	fn   *builtin
	args []expr
}

func (e *callExpr) eval(m *machine) (Value, error) {
	vals := make([]Value, len(e.args))
	for i, a := range e.args {
		v, err := a.eval(m)
		if err != nil {
			return Nil, err
		}
		vals[i] = v
	}
	if err := m.tick(); err != nil {
		return Nil, err
	}
	v, err := e.fn.fn(m.host, vals)
	if err != nil {
		return Nil, errors.WithMessagef(err, "%s at %s", e.fn.name, e.pos)
	}
	return v, nil
}

// logicExpr short-circuits: and stops at the first false, or at the first true.
type logicExpr struct {
	op   string
	stop bool
	args []expr
}

func (e *logicExpr) eval(m *machine) (Value, error) {
	for _, a := range e.args {
		b, err := condition(m, a, e.op)
		if err != nil {
			return Nil, err
		}
		if b == e.stop {
			return Bool(e.stop), nil
		}
	}
	return Bool(!e.stop), nil
}
