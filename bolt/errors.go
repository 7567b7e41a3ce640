package bolt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rubiojr/bolt/vm"
)

// ErrUnusableCompilationUnit is returned when code generation is requested
// for a unit that has no syntax tree, usually after a parse failure.
var ErrUnusableCompilationUnit = errors.New("compilation unit has no syntax tree")

// ErrNoCompilationUnit is returned by Registry.Get when the target does not
// name a unit and there is no current unit.
var ErrNoCompilationUnit = errors.New("no compilation unit to compile")

// ImportCycleError reports a module requested again while it is executing.
type ImportCycleError struct {
	Chain []string
}

func (e *ImportCycleError) Error() string {
	return "import cycle detected: " + strings.Join(e.Chain, " -> ")
}

// ImportError reports an unknown module location or a name missing from an
// imported module.
type ImportError struct {
	Location string
	Name     string // empty when the module itself is missing
	Err      error
}

func (e *ImportError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("cannot import name %q from %q", e.Name, e.Location)
	}
	return fmt.Sprintf("module %q not found", e.Location)
}

func (e *ImportError) Unwrap() error { return e.Err }

// Pos is a user-facing source location.
type Pos struct {
	File string
	Line int
}

func (p Pos) String() string {
	if p.Line == 0 {
		return p.File
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// Error is an execution failure located in user code. Error prints the
// location and message only; Detail adds the call frames and the cause
// chain.
type Error struct {
	Pos    Pos
	Msg    string
	Cause  error
	Frames []vm.Frame
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Detail renders the error with its frames and causes.
func (e *Error) Detail() string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	for _, f := range e.Frames {
		fmt.Fprintf(&sb, "\n  at %s", f)
	}
	for cause := e.Cause; cause != nil; cause = errors.Unwrap(cause) {
		fmt.Fprintf(&sb, "\ncaused by: %T: %v", cause, cause)
	}
	return sb.String()
}

// rewrite turns a failure of m's code into an Error located in user code.
func rewrite(m *CompiledModule, err error) error {
	var re *vm.Error
	if !errors.As(err, &re) || len(re.Frames) == 0 {
		return &Error{Pos: Pos{File: m.Filename}, Msg: err.Error(), Cause: err}
	}
	top := re.Frames[0]
	return &Error{
		Pos:    Pos{File: top.File, Line: top.Line},
		Msg:    re.Msg,
		Cause:  re.Err,
		Frames: re.Frames,
	}
}
