// Package shell implements the command-execution engine: a stack of input
// sources drained line by line, each line driven through an ordered hook
// pipeline (access, cmd-line, script, config), with cross-process advisory
// locking around configuration mutation and a lazily-opened session to the
// confd daemon.
//
// A Shell runs on a single control goroutine. Nothing in it is safe for
// concurrent use; cross-process exclusion is the lock file's job.
package shell

import (
	"fmt"
	"io"
	"os/user"

	"github.com/confsh/confsh/pkg/flock"
	"github.com/confsh/confsh/pkg/scheme"
	"github.com/confsh/confsh/pkg/session"
)

// DefaultLockPath is the advisory lock shared by every shell instance that
// mutates configuration, unless overridden or disabled.
const DefaultLockPath = "/tmp/confsh.lock"

// Shell is the execution context: the hook table, the bound scheme, the
// input stack, and the locking and error policy for one run.
type Shell struct {
	hooks  Hooks
	scheme *scheme.Scheme
	out    io.Writer

	interactive bool
	quiet       bool
	encoding    Encoding
	socketPath  string
	lockPath    string

	startupView   string
	startupViewID string

	view   string
	viewID string
	stack  []*inputSource
	sess   *session.Session
	lock   *flock.Lock

	started bool
	closed  bool
}

// New creates a shell with the given hook table. Nil hook slots default to
// always-succeed no-ops. sch may be nil when the caller will bind a scheme
// through LoadScheme. A nil out silences all shell output.
func New(hooks Hooks, sch *scheme.Scheme, out io.Writer) *Shell {
	if out == nil {
		out = io.Discard
	}
	return &Shell{
		hooks:       hooks.normalized(),
		scheme:      sch,
		out:         out,
		interactive: true,
		encoding:    Encoding8Bit,
		socketPath:  session.DefaultSocketPath,
		lockPath:    DefaultLockPath,
	}
}

// LoadScheme parses and binds the grammar. An empty path binds the built-in
// default scheme; the host resolves environment defaults before calling.
// A path that cannot be loaded is fatal: the run must not continue.
func (s *Shell) LoadScheme(path string) error {
	if path == "" {
		s.scheme = scheme.Default()
		return nil
	}
	sch, err := scheme.Load(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemeLoad, err)
	}
	s.scheme = sch
	return nil
}

// SetSocket records the daemon socket path. No connection is made until the
// first configuration-mutating command needs one.
func (s *Shell) SetSocket(path string) {
	if s.started {
		return
	}
	s.socketPath = path
}

// SetLockfile sets the advisory lock path. An empty path selects lockless
// mode: no cross-process exclusion at all, by explicit caller choice.
func (s *Shell) SetLockfile(path string) {
	if s.started {
		return
	}
	s.lockPath = path
}

// SetInteractive controls prompting. It affects echo behavior only.
func (s *Shell) SetInteractive(interactive bool) {
	if s.started {
		return
	}
	s.interactive = interactive
}

// SetQuiet suppresses the echo of lines executed from file sources pushed
// after the call.
func (s *Shell) SetQuiet(quiet bool) {
	if s.started {
		return
	}
	s.quiet = quiet
}

// SetStartupView names the view the shell starts in, overriding the
// scheme's own startup view.
func (s *Shell) SetStartupView(name string) {
	if s.started {
		return
	}
	s.startupView = name
}

// SetStartupViewID sets the initial view id string.
func (s *Shell) SetStartupViewID(id string) {
	if s.started {
		return
	}
	s.startupViewID = id
}

// SetEncoding fixes the encoding mode for the run.
func (s *Shell) SetEncoding(e Encoding) {
	if s.started {
		return
	}
	s.encoding = e
}

// Encoding returns the encoding mode resolved for this run.
func (s *Shell) Encoding() Encoding { return s.encoding }

// View returns the shell's current view name.
func (s *Shell) View() string { return s.view }

// Startup binds the scheme if none is bound yet, applies the startup
// view/viewid, and runs the init and builtin-registration hooks. On error
// the caller must not push input or call Loop.
func (s *Shell) Startup() error {
	if s.scheme == nil {
		if err := s.LoadScheme(""); err != nil {
			return err
		}
	}

	s.view = s.scheme.StartupView
	if s.startupView != "" {
		s.view = s.startupView
	}
	if _, ok := s.scheme.View(s.view); !ok {
		return fmt.Errorf("%w: unknown startup view %q", ErrSchemeLoad, s.view)
	}
	s.viewID = s.startupViewID

	ctx := &Context{Shell: s, View: s.view, ViewID: s.viewID, Out: s.out}
	if res, err := s.hooks.Init(ctx); res != ResultOK {
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}
	if res, err := s.hooks.RegisterBuiltins(ctx); res != ResultOK {
		return fmt.Errorf("%w: builtin registration: %v", ErrInitFailed, err)
	}

	s.started = true
	return nil
}

// Session returns the daemon session, dialing and authorizing on first use.
// The session is cached for the rest of the run. A session that has since
// disconnected is not replaced: reconnecting mid-run could silently skip
// authorization state, so a dead session fails fast instead.
func (s *Shell) Session() (*session.Session, error) {
	if s.sess != nil {
		return s.sess, nil
	}

	sess, err := session.Connect(s.socketPath)
	if err != nil {
		return nil, err
	}
	if err := sess.Authorize(session.Credentials{User: currentUser()}); err != nil {
		_ = sess.Close()
		return nil, err
	}

	s.sess = sess
	return s.sess, nil
}

// acquireLock takes the advisory lock before the first configuration
// mutation. Lockless mode and an already-held lock are both no-ops.
func (s *Shell) acquireLock() error {
	if s.lockPath == "" || s.lock != nil {
		return nil
	}
	lock, err := flock.Acquire(s.lockPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
	s.lock = lock
	return nil
}

// Close tears the shell down: the fini hook runs best-effort, remaining
// input sources are closed, the lock is released, and the session is
// closed. Loop arranges for this to run on every exit path; calling it
// again is a no-op.
func (s *Shell) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.started {
		ctx := &Context{Shell: s, View: s.view, ViewID: s.viewID, Out: s.out}
		_, _ = s.hooks.Fini(ctx)
	}

	for len(s.stack) > 0 {
		s.pop()
	}

	if s.lock != nil {
		_ = s.lock.Release()
		s.lock = nil
	}
	if s.sess != nil {
		_ = s.sess.Close()
		s.sess = nil
	}

	return nil
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}
