package shell

import "errors"

// Failure classifies why a command line failed the pipeline.
type Failure int

const (
	// FailNone means the line succeeded.
	FailNone Failure = iota
	// FailNotFound means the line resolved to no command, or failed
	// cmd-line validation.
	FailNotFound
	// FailAccessDenied means the access hook refused the command.
	FailAccessDenied
	// FailActionFailed means the script hook reported failure.
	FailActionFailed
	// FailConfigRejected means the daemon rejected the change, or the
	// config hook could not reach the daemon.
	FailConfigRejected
)

// String returns the failure name used in diagnostics.
func (f Failure) String() string {
	switch f {
	case FailNone:
		return "ok"
	case FailNotFound:
		return "not-found"
	case FailAccessDenied:
		return "access-denied"
	case FailActionFailed:
		return "action-failed"
	case FailConfigRejected:
		return "config-rejected"
	default:
		return "unknown"
	}
}

// Fatal startup errors. Any of these aborts before the loop reads input.
var (
	// ErrSchemeLoad means no scheme could be bound from the explicit path,
	// the host-provided default, or the built-in default.
	ErrSchemeLoad = errors.New("shell: no scheme could be loaded")
	// ErrInitFailed means the init hook (or builtin registration) reported
	// failure during Startup.
	ErrInitFailed = errors.New("shell: init hook failed")
	// ErrLockUnavailable means the advisory lock file could not be acquired.
	ErrLockUnavailable = errors.New("shell: cannot acquire lock file")
)
