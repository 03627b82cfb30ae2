package scheme

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound reports a line that matches no command in the view.
var ErrNotFound = errors.New("scheme: command not found")

// ErrAmbiguous reports a line that matches more than one command equally
// well.
var ErrAmbiguous = errors.New("scheme: ambiguous command")

// Match is a resolved command line: the command, its bound arguments, and
// the raw line that produced it.
type Match struct {
	Command *Command
	Args    map[string]string
	Line    string
}

// Resolve matches line against the commands of the named view and binds the
// remaining words to the command's parameters positionally. The command
// whose name matches the most leading words wins; a tie is ambiguous.
func (s *Scheme) Resolve(view, line string) (*Match, error) {
	v, ok := s.byName[view]
	if !ok {
		return nil, fmt.Errorf("%w: unknown view %q", ErrNotFound, view)
	}

	words := strings.Fields(line)
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrNotFound)
	}

	var (
		best    *Command
		bestLen int
		tied    bool
	)
	for _, c := range v.Commands {
		name := strings.Fields(c.Name)
		if len(name) > len(words) || !equalPrefix(name, words) {
			continue
		}
		switch {
		case len(name) > bestLen:
			best, bestLen, tied = c, len(name), false
		case len(name) == bestLen && best != nil:
			tied = true
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %q in view %q", ErrNotFound, line, view)
	}
	if tied {
		return nil, fmt.Errorf("%w: %q in view %q", ErrAmbiguous, line, view)
	}

	args, err := bindParams(best, words[bestLen:])
	if err != nil {
		return nil, err
	}

	return &Match{Command: best, Args: args, Line: line}, nil
}

func equalPrefix(name, words []string) bool {
	for i, w := range name {
		if words[i] != w {
			return false
		}
	}
	return true
}

// bindParams assigns the words left after the command name to parameters in
// declaration order. Missing required parameters and trailing words both
// fail resolution.
func bindParams(c *Command, rest []string) (map[string]string, error) {
	args := make(map[string]string, len(c.Params))
	for i, p := range c.Params {
		if i >= len(rest) {
			if p.Optional {
				continue
			}
			return nil, fmt.Errorf("%w: %q: missing parameter %q", ErrNotFound, c.Name, p.Name)
		}
		args[p.Name] = rest[i]
	}
	if len(rest) > len(c.Params) {
		return nil, fmt.Errorf("%w: %q: unexpected argument %q", ErrNotFound, c.Name, rest[len(c.Params)])
	}
	return args, nil
}

// Expand substitutes ${name} and $name references in s with the match's
// bound arguments. Unknown references expand to the empty string.
func (m *Match) Expand(s string) string {
	return os.Expand(s, func(name string) string {
		return m.Args[name]
	})
}

// ExpandPath expands every element of a config path template.
func (m *Match) ExpandPath(path []string) []string {
	out := make([]string, len(path))
	for i, p := range path {
		out[i] = m.Expand(p)
	}
	return out
}
