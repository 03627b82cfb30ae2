package session

import (
	"errors"
	"fmt"
)

// Kind classifies session errors so callers can branch without string
// matching.
type Kind int

const (
	// KindUnreachable means the daemon is not listening at the socket path.
	KindUnreachable Kind = iota
	// KindPermission means the socket exists but refused us.
	KindPermission
	// KindTimeout means the connect attempt exceeded its deadline.
	KindTimeout
	// KindRejected means the daemon answered the authorization negatively.
	KindRejected
	// KindProtocol means the daemon replied with something the protocol does
	// not allow at this point. The session state is left unchanged.
	KindProtocol
	// KindIO means the transport failed mid-exchange. The session is
	// disconnected.
	KindIO
	// KindDisconnected means the operation was refused without any I/O
	// because the session state does not permit it.
	KindDisconnected
	// KindMalformed means a response frame could not be decoded. The session
	// is disconnected.
	KindMalformed
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindPermission:
		return "permission"
	case KindTimeout:
		return "timeout"
	case KindRejected:
		return "rejected"
	case KindProtocol:
		return "protocol"
	case KindIO:
		return "io"
	case KindDisconnected:
		return "disconnected"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is the error type returned by all session operations.
type Error struct {
	Kind  Kind
	Op    string
	State State
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("session: %s: %s (state %s)", e.Op, e.Kind, e.State)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a session Error of the given kind.
func IsKind(err error, k Kind) bool {
	var se *Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Kind == k
}
