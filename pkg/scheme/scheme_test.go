package scheme

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScheme = `
startup_view: operational
views:
  - name: operational
    commands:
      - name: show version
        action: "echo 1.0"
      - name: show interfaces
        action: "ip link"
      - name: show
        help: Ambiguity probe
      - name: ping
        params:
          - name: host
          - name: count
            optional: true
        action: "ping -c ${count} ${host}"
      - name: configure
        nav_view: configure
  - name: configure
    commands:
      - name: set hostname
        params:
          - name: value
        config:
          op: set
          path: [system, hostname]
          value: "${value}"
      - name: exit
        nav_view: operational
`

func writeScheme(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scheme.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadTestScheme(t *testing.T) *Scheme {
	t.Helper()

	s, err := Load(writeScheme(t, testScheme))
	require.NoError(t, err)
	return s
}

func TestLoadFile(t *testing.T) {
	s := loadTestScheme(t)

	assert.Equal(t, "operational", s.StartupView)

	v, ok := s.View("configure")
	require.True(t, ok)
	assert.Len(t, v.Commands, 2)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadDirectoryMergesViews(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "10-base.yaml"), []byte(`
startup_view: main
views:
  - name: main
    commands:
      - name: alpha
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20-extra.yaml"), []byte(`
views:
  - name: main
    commands:
      - name: beta
`), 0o644))

	s, err := Load(dir)
	require.NoError(t, err)

	v, ok := s.View("main")
	require.True(t, ok)
	assert.Len(t, v.Commands, 2)
}

func TestLoadRejectsUnknownStartupView(t *testing.T) {
	path := writeScheme(t, `
startup_view: missing
views:
  - name: main
    commands:
      - name: alpha
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "startup view")
}

func TestLoadRejectsUnknownNavView(t *testing.T) {
	path := writeScheme(t, `
views:
  - name: main
    commands:
      - name: go
        nav_view: nowhere
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "nav view")
}

func TestResolveLongestPrefixWins(t *testing.T) {
	s := loadTestScheme(t)

	m, err := s.Resolve("operational", "show version")
	require.NoError(t, err)
	assert.Equal(t, "show version", m.Command.Name)
}

func TestResolveSingleWordCommand(t *testing.T) {
	s := loadTestScheme(t)

	m, err := s.Resolve("operational", "show")
	require.NoError(t, err)
	assert.Equal(t, "show", m.Command.Name)
}

func TestResolveNotFound(t *testing.T) {
	s := loadTestScheme(t)

	_, err := s.Resolve("operational", "reboot now")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveUnknownView(t *testing.T) {
	s := loadTestScheme(t)

	_, err := s.Resolve("no-such-view", "show version")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveAmbiguous(t *testing.T) {
	path := writeScheme(t, `
views:
  - name: main
    commands:
      - name: show
        params:
          - name: what
      - name: show
        params:
          - name: thing
`)
	s, err := Load(path)
	require.NoError(t, err)

	_, err = s.Resolve("main", "show stuff")
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestResolveBindsParams(t *testing.T) {
	s := loadTestScheme(t)

	m, err := s.Resolve("operational", "ping 10.0.0.1 3")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", m.Args["host"])
	assert.Equal(t, "3", m.Args["count"])
}

func TestResolveOptionalParamOmitted(t *testing.T) {
	s := loadTestScheme(t)

	m, err := s.Resolve("operational", "ping 10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", m.Args["host"])
	_, bound := m.Args["count"]
	assert.False(t, bound)
}

func TestResolveMissingRequiredParam(t *testing.T) {
	s := loadTestScheme(t)

	_, err := s.Resolve("operational", "ping")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveTrailingArguments(t *testing.T) {
	s := loadTestScheme(t)

	_, err := s.Resolve("operational", "show version please")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpand(t *testing.T) {
	s := loadTestScheme(t)

	m, err := s.Resolve("configure", "set hostname router1")
	require.NoError(t, err)

	assert.Equal(t, "router1", m.Expand("${value}"))
	assert.Equal(t, []string{"system", "hostname"}, m.ExpandPath(m.Command.Config.Path))
	assert.Equal(t, "", m.Expand("${unknown}"))
}

func TestDefaultScheme(t *testing.T) {
	s := Default()

	assert.Equal(t, "operational", s.StartupView)

	m, err := s.Resolve("configure", "set system.hostname router1")
	require.NoError(t, err)
	require.NotNil(t, m.Command.Config)
	assert.Equal(t, "set", m.Command.Config.Op)
	assert.Equal(t, []string{"system.hostname"}, m.ExpandPath(m.Command.Config.Path))
	assert.Equal(t, "router1", m.Expand(m.Command.Config.Value))
}
