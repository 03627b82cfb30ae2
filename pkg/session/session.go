// Package session implements the client side of the confd session protocol:
// one unix domain socket connection with an explicit tri-state lifecycle
// (not-authorized, authorized, disconnected). Once a session disconnects it
// never touches the socket again; every later operation fails fast.
//
// A Session is driven by the shell's single control goroutine and is not
// safe for concurrent use.
package session

import (
	"errors"
	"io/fs"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/confsh/confsh/pkg/proto"
)

// DefaultSocketPath is where confd listens unless overridden.
const DefaultSocketPath = "/var/run/confd.sock"

// connectTimeout bounds the dial attempt, not established-session I/O.
const connectTimeout = 5 * time.Second

// Credentials identify the client to the daemon.
type Credentials struct {
	User string
}

// Session is one connection to the confd daemon.
type Session struct {
	conn  net.Conn
	state State
}

// New wraps an already-connected conn in a session in the not-authorized
// state. Used by tests and by callers that dial on their own.
func New(conn net.Conn) *Session {
	return &Session{conn: conn, state: StateNotAuthorized}
}

// Connect dials the unix domain socket at path. On success the returned
// session is in the not-authorized state.
func Connect(path string) (*Session, error) {
	conn, err := net.DialTimeout("unix", path, connectTimeout)
	if err != nil {
		return nil, &Error{Kind: classifyDial(err), Op: "connect", Err: err}
	}
	return New(conn), nil
}

func classifyDial(err error) Kind {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, fs.ErrPermission) {
		return KindPermission
	}
	return KindUnreachable
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Connected reports whether the session may still be used, i.e. it has not
// reached the terminal disconnected state.
func (s *Session) Connected() bool { return s.state != StateDisconnected }

// Authorize sends the credentials and, on an affirmative reply, moves the
// session to the authorized state. Calling it on an already-authorized
// session is a no-op. A negative or out-of-protocol reply leaves the state
// unchanged; a transport failure disconnects the session.
func (s *Session) Authorize(creds Credentials) error {
	if err := s.ensure("authorize"); err != nil {
		return err
	}
	if s.state == StateAuthorized {
		return nil
	}

	req := proto.Request{ID: uuid.NewString(), Op: proto.OpAuth, User: creds.User}
	if err := proto.WriteMessage(s.conn, req); err != nil {
		s.disconnect()
		return &Error{Kind: KindIO, Op: "authorize", Err: err}
	}

	var resp proto.Response
	if err := proto.ReadMessage(s.conn, &resp); err != nil {
		s.disconnect()
		return &Error{Kind: KindIO, Op: "authorize", Err: err}
	}

	switch resp.Status {
	case proto.StatusAccepted:
		s.state = StateAuthorized
		return nil
	case proto.StatusRejected, proto.StatusDenied:
		return &Error{Kind: KindRejected, Op: "authorize", State: s.state}
	default:
		return &Error{Kind: KindProtocol, Op: "authorize", State: s.state}
	}
}

// Exchange writes one request and blocks until the matching response is
// read. It is valid only on an authorized session; any other state fails
// immediately with no I/O. A partial write, partial read, peer close or
// decode failure disconnects the session.
func (s *Session) Exchange(req proto.Request) (proto.Response, error) {
	if err := s.ensure("exchange"); err != nil {
		return proto.Response{}, err
	}

	if err := proto.WriteMessage(s.conn, req); err != nil {
		s.disconnect()
		return proto.Response{}, &Error{Kind: KindIO, Op: "exchange", Err: err}
	}

	var resp proto.Response
	if err := proto.ReadMessage(s.conn, &resp); err != nil {
		s.disconnect()
		kind := KindIO
		if errors.Is(err, proto.ErrMalformed) || errors.Is(err, proto.ErrFrameTooLarge) {
			kind = KindMalformed
		}
		return proto.Response{}, &Error{Kind: kind, Op: "exchange", Err: err}
	}

	// A reply to some other request means the stream is desynchronized.
	if resp.ID != req.ID {
		s.disconnect()
		return proto.Response{}, &Error{Kind: KindMalformed, Op: "exchange", State: s.state}
	}

	return resp, nil
}

// Close releases the socket and moves the session to the disconnected
// state. Safe to call more than once.
func (s *Session) Close() error {
	if s.state == StateDisconnected {
		return nil
	}
	s.disconnect()
	return nil
}

func (s *Session) disconnect() {
	s.state = StateDisconnected
	_ = s.conn.Close()
}
