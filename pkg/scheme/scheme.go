// Package scheme loads and resolves the command grammar: named views, the
// commands available in each view, and the parameter shapes those commands
// accept. The shell consumes a loaded Scheme as an opaque resolver; only
// this package knows the on-disk format.
package scheme

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scheme is the loaded command grammar.
type Scheme struct {
	StartupView string  `yaml:"startup_view"`
	Views       []*View `yaml:"views"`

	byName map[string]*View
}

// View is a named context that determines which commands are available.
type View struct {
	Name     string     `yaml:"name"`
	Commands []*Command `yaml:"commands"`
}

// Param is one positional parameter of a command.
type Param struct {
	Name     string `yaml:"name"`
	Help     string `yaml:"help"`
	Optional bool   `yaml:"optional"`
}

// ConfigSpec marks a command as configuration-mutating and describes the
// daemon operation it maps to. Path elements and Value may reference bound
// parameters as ${name}.
type ConfigSpec struct {
	Op    string   `yaml:"op"`
	Path  []string `yaml:"path"`
	Value string   `yaml:"value"`
}

// Command is one entry in a view. Name may span several words ("show
// version"). Action is a shell script template run by the script hook.
// Access names a group required to run the command; empty means everyone.
// NavView, when set, switches the shell to that view after the command
// succeeds.
type Command struct {
	Name    string      `yaml:"name"`
	Help    string      `yaml:"help"`
	Params  []Param     `yaml:"params"`
	Action  string      `yaml:"action"`
	Access  string      `yaml:"access"`
	Config  *ConfigSpec `yaml:"config"`
	NavView string      `yaml:"nav_view"`
}

// New assembles a scheme programmatically and validates it. An empty
// startupView falls back to the first view.
func New(startupView string, views ...*View) (*Scheme, error) {
	s := &Scheme{StartupView: startupView, Views: views}
	if err := s.index(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads a scheme from path. A directory loads every *.yaml file in it,
// sorted by name, merging views that share a name. A file loads just that
// file.
func Load(path string) (*Scheme, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scheme: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.yaml"))
		if err != nil {
			return nil, fmt.Errorf("scheme: %w", err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("scheme: no *.yaml files in %s", path)
		}
		sort.Strings(files)
	}

	merged := &Scheme{}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("scheme: %w", err)
		}

		var s Scheme
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("scheme: parse %s: %w", f, err)
		}
		merged.merge(&s)
	}

	if err := merged.index(); err != nil {
		return nil, err
	}
	return merged, nil
}

// merge folds other into s. Views with the same name have their command
// lists appended; a later non-empty startup view wins.
func (s *Scheme) merge(other *Scheme) {
	if other.StartupView != "" {
		s.StartupView = other.StartupView
	}
	for _, v := range other.Views {
		if existing := s.findView(v.Name); existing != nil {
			existing.Commands = append(existing.Commands, v.Commands...)
			continue
		}
		s.Views = append(s.Views, v)
	}
}

func (s *Scheme) findView(name string) *View {
	for _, v := range s.Views {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// index builds the view lookup table and validates the grammar.
func (s *Scheme) index() error {
	s.byName = make(map[string]*View, len(s.Views))
	for _, v := range s.Views {
		if v.Name == "" {
			return fmt.Errorf("scheme: view without a name")
		}
		if _, dup := s.byName[v.Name]; dup {
			return fmt.Errorf("scheme: duplicate view %q", v.Name)
		}
		s.byName[v.Name] = v

		for _, c := range v.Commands {
			if c.Name == "" {
				return fmt.Errorf("scheme: view %q: command without a name", v.Name)
			}
			if c.Config != nil {
				if c.Config.Op == "" {
					return fmt.Errorf("scheme: view %q: command %q: config without an op", v.Name, c.Name)
				}
				if c.Config.Op != "commit" && len(c.Config.Path) == 0 {
					return fmt.Errorf("scheme: view %q: command %q: config without a path", v.Name, c.Name)
				}
			}
		}
	}

	if s.StartupView == "" && len(s.Views) > 0 {
		s.StartupView = s.Views[0].Name
	}
	if _, ok := s.byName[s.StartupView]; !ok {
		return fmt.Errorf("scheme: startup view %q not defined", s.StartupView)
	}

	for _, v := range s.Views {
		for _, c := range v.Commands {
			if c.NavView != "" {
				if _, ok := s.byName[c.NavView]; !ok {
					return fmt.Errorf("scheme: view %q: command %q: unknown nav view %q", v.Name, c.Name, c.NavView)
				}
			}
		}
	}

	return nil
}

// View returns the named view.
func (s *Scheme) View(name string) (*View, bool) {
	v, ok := s.byName[name]
	return v, ok
}

// Default returns the built-in scheme used when no scheme file is found:
// an operational view with navigation into a configure view that maps
// set/delete/commit onto the daemon operations.
func Default() *Scheme {
	s := &Scheme{
		StartupView: "operational",
		Views: []*View{
			{
				Name: "operational",
				Commands: []*Command{
					{
						Name:    "configure",
						Help:    "Enter configuration mode",
						NavView: "configure",
					},
					{
						Name:   "show version",
						Help:   "Show software version",
						Action: "echo confsh",
					},
				},
			},
			{
				Name: "configure",
				Commands: []*Command{
					{
						Name:   "set",
						Help:   "Stage a configuration value",
						Params: []Param{{Name: "path"}, {Name: "value"}},
						Config: &ConfigSpec{Op: "set", Path: []string{"${path}"}, Value: "${value}"},
					},
					{
						Name:   "delete",
						Help:   "Stage removal of a configuration value",
						Params: []Param{{Name: "path"}},
						Config: &ConfigSpec{Op: "unset", Path: []string{"${path}"}},
					},
					{
						Name:   "commit",
						Help:   "Apply staged configuration changes",
						Config: &ConfigSpec{Op: "commit"},
					},
					{
						Name:    "exit",
						Help:    "Leave configuration mode",
						NavView: "operational",
					},
				},
			},
		},
	}

	// The built-in grammar always indexes cleanly.
	if err := s.index(); err != nil {
		panic(err)
	}
	return s
}
