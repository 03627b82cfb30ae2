// Package proto defines the messages exchanged between a confsh shell and
// the confd daemon, and the framing that carries them over a unix domain
// socket. Each frame is a 4-byte big-endian length followed by a JSON body.
package proto

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Op identifies a request operation.
type Op string

const (
	// OpAuth must be the first request on a fresh connection.
	OpAuth Op = "auth"
	// OpSet stages a value at a configuration path.
	OpSet Op = "set"
	// OpUnset stages removal of a configuration path.
	OpUnset Op = "unset"
	// OpCommit flushes all staged changes atomically.
	OpCommit Op = "commit"
	// OpGet reads the committed value at a configuration path.
	OpGet Op = "get"
)

// Request is sent from the shell to the daemon.
type Request struct {
	ID    string   `json:"id"`
	Op    Op       `json:"op"`
	Path  []string `json:"path,omitempty"`
	Value string   `json:"value,omitempty"`
	User  string   `json:"user,omitempty"`
}

// NewRequest builds a request with a fresh message ID.
func NewRequest(op Op, path []string, value string) Request {
	return Request{ID: uuid.NewString(), Op: op, Path: path, Value: value}
}

// Status classifies a daemon reply.
type Status string

const (
	// StatusAccepted means the operation was applied or staged.
	StatusAccepted Status = "accepted"
	// StatusRejected means the daemon refused the operation. Reason says why.
	StatusRejected Status = "rejected"
	// StatusMalformed means the daemon could not make sense of the request.
	StatusMalformed Status = "malformed"
	// StatusDenied means the connection has not completed authorization.
	StatusDenied Status = "denied"
)

// Response is sent from the daemon back to the shell. ID echoes the
// request's message ID.
type Response struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Value  string `json:"value,omitempty"`
}

// MaxFrameSize bounds a single message body. Frames above it are treated as
// protocol violations, not honored.
const MaxFrameSize = 1 << 20

// ErrFrameTooLarge reports a frame whose declared length exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("proto: frame too large")

// ErrMalformed wraps body-level decode failures so callers can distinguish
// them from transport errors.
var ErrMalformed = errors.New("proto: malformed message")

// WriteMessage marshals v and writes it as one length-prefixed frame.
func WriteMessage(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("proto: encode: %w", err)
	}
	if len(body) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("proto: write header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("proto: write body: %w", err)
	}

	return nil
}

// ReadMessage reads one length-prefixed frame and unmarshals it into v.
// A body that fails to decode is reported via ErrMalformed; everything else
// is a transport error.
func ReadMessage(r io.Reader, v any) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("proto: read header: %w", err)
	}

	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return ErrFrameTooLarge
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("proto: read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return nil
}
