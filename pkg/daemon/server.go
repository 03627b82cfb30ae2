// Package daemon implements confd, the process that owns persistent
// configuration state. Shell clients connect over a unix domain socket,
// authorize, stage set/unset operations, and commit them atomically.
// Staged changes are per-connection; only commit makes them visible to
// other clients.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"

	"github.com/confsh/confsh/pkg/proto"
)

// Server accepts shell sessions and serves the config protocol.
type Server struct {
	store  *Store
	logger *log.Logger

	ln net.Listener
	wg sync.WaitGroup
}

// New creates a server over the given store. A nil logger discards
// diagnostics.
func New(store *Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stderr, "confd: ", log.LstdFlags)
	}
	return &Server{store: store, logger: logger}
}

// Listen binds the unix domain socket at path, replacing a stale socket
// file from a previous run. The socket is owner-only.
func (s *Server) Listen(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("daemon: remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("daemon: listen: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		return fmt.Errorf("daemon: chmod socket: %w", err)
	}

	s.ln = ln
	return nil
}

// Addr returns the socket path the server listens on. Valid after Listen.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve accepts connections until ctx is canceled, handling each on its own
// goroutine. It returns after the listener is closed and all handlers have
// finished.
func (s *Server) Serve(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("daemon: accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

// handle runs one client session: an auth exchange first, then staged
// operations until the peer goes away.
func (s *Server) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	authorized := false
	var pending []Change

	for {
		var req proto.Request
		if err := proto.ReadMessage(conn, &req); err != nil {
			// Peer close ends the session; staged changes are dropped.
			return
		}

		resp := s.dispatch(req, &authorized, &pending)
		if err := proto.WriteMessage(conn, resp); err != nil {
			s.logger.Printf("write response: %v", err)
			return
		}
	}
}

func (s *Server) dispatch(req proto.Request, authorized *bool, pending *[]Change) proto.Response {
	resp := proto.Response{ID: req.ID}

	if !*authorized {
		if req.Op != proto.OpAuth {
			resp.Status = proto.StatusDenied
			resp.Reason = "authorization required"
			return resp
		}
		if req.User == "" {
			resp.Status = proto.StatusRejected
			resp.Reason = "missing user"
			return resp
		}
		*authorized = true
		resp.Status = proto.StatusAccepted
		s.logger.Printf("session authorized for %s", req.User)
		return resp
	}

	switch req.Op {
	case proto.OpAuth:
		// Re-authorizing an authorized session is harmless.
		resp.Status = proto.StatusAccepted

	case proto.OpSet:
		if len(req.Path) == 0 {
			resp.Status = proto.StatusMalformed
			resp.Reason = "set requires a path"
			break
		}
		*pending = append(*pending, Change{Path: req.Path, Value: req.Value})
		resp.Status = proto.StatusAccepted

	case proto.OpUnset:
		if len(req.Path) == 0 {
			resp.Status = proto.StatusMalformed
			resp.Reason = "unset requires a path"
			break
		}
		*pending = append(*pending, Change{Unset: true, Path: req.Path})
		resp.Status = proto.StatusAccepted

	case proto.OpCommit:
		if err := s.store.Apply(*pending); err != nil {
			s.logger.Printf("commit: %v", err)
			resp.Status = proto.StatusRejected
			resp.Reason = "commit failed"
			break
		}
		*pending = nil
		resp.Status = proto.StatusAccepted

	case proto.OpGet:
		if len(req.Path) == 0 {
			resp.Status = proto.StatusMalformed
			resp.Reason = "get requires a path"
			break
		}
		value, ok, err := s.store.Get(req.Path)
		if err != nil {
			s.logger.Printf("get: %v", err)
			resp.Status = proto.StatusRejected
			resp.Reason = "lookup failed"
			break
		}
		if !ok {
			resp.Status = proto.StatusRejected
			resp.Reason = "no such path"
			break
		}
		resp.Status = proto.StatusAccepted
		resp.Value = value

	default:
		resp.Status = proto.StatusMalformed
		resp.Reason = fmt.Sprintf("unknown op %q", req.Op)
	}

	return resp
}
