// path: fairy_chess/internal/shared/errors.go
package shared

import "github.com/pkg/errors"

// Error classes. Every error produced by the engine unwraps to exactly one of these.
var (
	ErrAuthorization    = errors.New("not authorized")
	ErrIllegalMove      = errors.New("illegal move")
	ErrExecutionTimeout = errors.New("move program timed out")
	ErrCompile          = errors.New("move program failed to compile")
	ErrDependency       = errors.New("dependency unavailable")
	ErrProtocol         = errors.New("protocol error")
	ErrAborted          = errors.New("request aborted")
)

// Class names reported to clients and metrics.
const (
	ClassOK            = "ok"
	ClassAuthorization = "authorization"
	ClassIllegalMove   = "illegal_move"
	ClassTimeout       = "timeout"
	ClassCompile       = "compile"
	ClassDependency    = "dependency"
	ClassProtocol      = "protocol"
	ClassAborted       = "aborted"
	ClassInternal      = "internal"
)

var (
	ErrOutOfBounds = ClassError(ErrProtocol, "location out of bounds")
)

type classError struct {
	class error
	msg   string
}

func (e *classError) Error() string { return e.msg }
func (e *classError) Unwrap() error { return e.class }

// ClassError builds a specific error that matches its class with errors.Is.
func ClassError(class error, msg string) error {
	return &classError{class: class, msg: msg}
}

type abortError struct {
	cause error
	msg   string
}

func (e *abortError) Error() string   { return e.msg + ": " + e.cause.Error() }
func (e *abortError) Unwrap() []error { return []error{ErrAborted, e.cause} }

// Abort marks work the caller gave up on. The result matches both ErrAborted
// and cause, normally context.Canceled or context.DeadlineExceeded.
func Abort(cause error, msg string) error {
	return &abortError{cause: cause, msg: msg}
}

// Classify names the class of err for clients and metrics.
func Classify(err error) string {
	switch {
	case err == nil:
		return ClassOK
	case errors.Is(err, ErrAuthorization):
		return ClassAuthorization
	case errors.Is(err, ErrIllegalMove):
		return ClassIllegalMove
	case errors.Is(err, ErrExecutionTimeout):
		return ClassTimeout
	case errors.Is(err, ErrCompile):
		return ClassCompile
	case errors.Is(err, ErrDependency):
		return ClassDependency
	case errors.Is(err, ErrProtocol):
		return ClassProtocol
	case errors.Is(err, ErrAborted):
		return ClassAborted
	default:
		return ClassInternal
	}
}

// Retryable reports whether resubmitting the same request later may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrDependency)
}
