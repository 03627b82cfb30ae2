package shell

import (
	"io"

	"github.com/confsh/confsh/pkg/scheme"
)

// Result is the tri-valued outcome of a hook invocation.
type Result int

const (
	// ResultOK lets the pipeline continue to the next step.
	ResultOK Result = iota
	// ResultFail fails the current line; the loop's stop-on-error policy
	// decides whether the run continues.
	ResultFail
	// ResultFatal aborts the whole run regardless of policy.
	ResultFatal
)

// Context is what every hook receives: the shell it runs in, the view the
// line was resolved against, and the resolved command with its bound
// arguments. Hooks may rewrite Line (the cmd-line slot does) but must not
// touch the input stack.
type Context struct {
	Shell  *Shell
	View   string
	ViewID string
	Match  *scheme.Match
	Line   string
	Out    io.Writer
}

// HookFunc is one pipeline callback.
type HookFunc func(*Context) (Result, error)

// Hooks is the fixed table of pipeline callback slots. Any slot left nil is
// treated as a hook that reports success, so lightweight configurations can
// bind only what they need.
type Hooks struct {
	// Init runs once during Startup, before any input is read.
	Init HookFunc
	// Access decides per line whether the resolved command may run.
	Access HookFunc
	// CmdLine may validate or rewrite the raw line before execution.
	CmdLine HookFunc
	// Script executes the command's action.
	Script HookFunc
	// Fini runs once at shell teardown, best-effort.
	Fini HookFunc
	// Config persists configuration-mutating commands through the daemon.
	Config HookFunc
	// RegisterBuiltins runs once during Startup, after Init.
	RegisterBuiltins HookFunc
}

// normalized returns a copy of h with every nil slot bound to an
// always-succeed hook. Chosen once at construction; the pipeline never
// checks slots for nil at runtime.
func (h Hooks) normalized() Hooks {
	fill := func(f HookFunc) HookFunc {
		if f == nil {
			return nopHook
		}
		return f
	}
	return Hooks{
		Init:             fill(h.Init),
		Access:           fill(h.Access),
		CmdLine:          fill(h.CmdLine),
		Script:           fill(h.Script),
		Fini:             fill(h.Fini),
		Config:           fill(h.Config),
		RegisterBuiltins: fill(h.RegisterBuiltins),
	}
}

func nopHook(*Context) (Result, error) { return ResultOK, nil }
