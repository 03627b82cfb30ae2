package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// sourceKind tags the two flavors of input source.
type sourceKind int

const (
	sourceFile sourceKind = iota
	sourceStream
)

// inputSource is one pushed stream of command lines. Sources live on the
// shell's LIFO stack and are consumed line by line by the single control
// goroutine; there is no concurrent access.
type inputSource struct {
	kind    sourceKind
	name    string
	rc      io.ReadCloser
	scanner *bufio.Scanner

	// stopOnError is inherited from the shell's policy at push time and
	// never changes afterwards.
	stopOnError bool
	// quiet suppresses echo of executed lines for this source.
	quiet  bool
	closed bool
}

func newInputSource(kind sourceKind, name string, rc io.ReadCloser, stopOnError, quiet bool) *inputSource {
	return &inputSource{
		kind:        kind,
		name:        name,
		rc:          rc,
		scanner:     bufio.NewScanner(rc),
		stopOnError: stopOnError,
		quiet:       quiet,
	}
}

// readLine returns the next line, or io.EOF at end of stream.
func (s *inputSource) readLine() (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", fmt.Errorf("shell: read %s: %w", s.name, err)
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

// close releases the underlying descriptor exactly once.
func (s *inputSource) close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rc.Close()
}

// PushFile opens path for reading and pushes it on top of the input stack.
// The stack is LIFO: sources pushed later are consumed first, so callers
// wanting a specific execution order push in reverse. File sources echo
// their lines to the output sink unless the shell is quiet.
func (s *Shell) PushFile(path string, stopOnError bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("shell: push file: %w", err)
	}
	s.stack = append(s.stack, newInputSource(sourceFile, path, f, stopOnError, s.quiet))
	return nil
}

// PushReader wraps an already-open stream (typically the interactive
// terminal) and pushes it on top of the input stack. Stream sources never
// echo; the terminal already shows what was typed.
func (s *Shell) PushReader(rc io.ReadCloser, stopOnError bool) {
	s.stack = append(s.stack, newInputSource(sourceStream, "stream", rc, stopOnError, true))
}

// pop closes and removes the top source.
func (s *Shell) pop() {
	if len(s.stack) == 0 {
		return
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	_ = top.close()
}
