// path: fairy_chess/internal/script/errors.go
package script

import (
	"fmt"

	"fairy_chess/internal/shared"
)

var (
	ErrTimeout    = shared.ClassError(shared.ErrExecutionTimeout, "move program exceeded its time budget")
	ErrStepBudget = shared.ClassError(shared.ErrExecutionTimeout, "move program exceeded its step budget")
	ErrNoAction   = shared.ClassError(shared.ErrIllegalMove, "move would do nothing")
	ErrNoProgram  = shared.ClassError(shared.ErrCompile, "no move program")

	errCancelled = shared.ClassError(shared.ErrExecutionTimeout, "move program cancelled")
)

// Pos is a 1-based line/column in program text.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// CompileError reports malformed program text.
type CompileError struct {
	Pos Pos
	Msg string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error at %s: %s", e.Pos, e.Msg)
}

func (e *CompileError) Unwrap() error { return shared.ErrCompile }

func compileErrorf(p Pos, format string, args ...any) error {
	return &CompileError{Pos: p, Msg: fmt.Sprintf(format, args...)}
}

func runtimeErrorf(format string, args ...any) error {
	return shared.ClassError(shared.ErrIllegalMove, fmt.Sprintf(format, args...))
}

func typeError(op, want string, got Value) error {
	return runtimeErrorf("%s: expected %s, got %s", op, want, got.Kind)
}
