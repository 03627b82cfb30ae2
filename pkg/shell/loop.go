package shell

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Loop drains the input stack: lines come from the top source first
// (LIFO of push, FIFO within a source), each line runs through the hook
// pipeline, and exhausted sources are popped and closed. It returns true
// iff every evaluated line succeeded. A failure on a source with
// stop-on-error set, or any fatal hook result, aborts the remaining input.
// Teardown (fini hook, lock release, session close) runs on every exit
// path.
func (s *Shell) Loop() bool {
	defer func() { _ = s.Close() }()

	ok := true
	for len(s.stack) > 0 {
		src := s.stack[len(s.stack)-1]

		if s.interactive && src.kind == sourceStream {
			s.prompt()
		}

		line, err := src.readLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Fprintf(s.out, "confsh: %v\n", err)
				ok = false
			}
			s.pop()
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !src.quiet && src.kind == sourceFile {
			fmt.Fprintln(s.out, line)
		}

		switch s.execute(line) {
		case ResultOK:
		case ResultFatal:
			return false
		case ResultFail:
			ok = false
			if src.stopOnError {
				return false
			}
		}
	}

	return ok
}

func (s *Shell) prompt() {
	if s.viewID != "" {
		fmt.Fprintf(s.out, "%s(%s)> ", s.view, s.viewID)
		return
	}
	fmt.Fprintf(s.out, "%s> ", s.view)
}

// pipelineStep pairs a hook slot with the failure class its refusal maps
// to.
type pipelineStep struct {
	hook HookFunc
	fail Failure
}

// execute drives one line through the ordered pipeline. The first step to
// refuse short-circuits the rest; its failure class is reported on the
// output sink. View navigation applies only after the whole pipeline
// succeeds.
func (s *Shell) execute(line string) Result {
	match, err := s.scheme.Resolve(s.view, line)
	if err != nil {
		s.report(FailNotFound, err)
		return ResultFail
	}

	ctx := &Context{
		Shell:  s,
		View:   s.view,
		ViewID: s.viewID,
		Match:  match,
		Line:   line,
		Out:    s.out,
	}

	steps := []pipelineStep{
		{s.hooks.Access, FailAccessDenied},
		{s.hooks.CmdLine, FailNotFound},
		{s.hooks.Script, FailActionFailed},
	}
	for _, step := range steps {
		res, err := step.hook(ctx)
		if res != ResultOK {
			s.report(step.fail, err)
			return res
		}
	}

	if match.Command.Config != nil {
		// Mutations are serialized across processes; the lock is taken once,
		// on first need, and held until teardown.
		if err := s.acquireLock(); err != nil {
			s.report(FailConfigRejected, err)
			return ResultFatal
		}
		res, err := s.hooks.Config(ctx)
		if res != ResultOK {
			s.report(FailConfigRejected, err)
			return res
		}
	}

	if nav := match.Command.NavView; nav != "" {
		s.view = nav
	}

	return ResultOK
}

func (s *Shell) report(fail Failure, err error) {
	if err != nil {
		fmt.Fprintf(s.out, "confsh: %s: %v\n", fail, err)
		return
	}
	fmt.Fprintf(s.out, "confsh: %s\n", fail)
}
