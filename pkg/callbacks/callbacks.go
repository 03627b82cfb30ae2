// Package callbacks provides the hook implementations the confsh host binds
// into the shell pipeline: group-based access control, action execution
// through the system shell, and configuration persistence through a confd
// session.
package callbacks

import (
	"context"
	"fmt"
	"os/exec"
	"os/user"
	"slices"
	"strings"

	"github.com/confsh/confsh/pkg/proto"
	"github.com/confsh/confsh/pkg/shell"
)

// Groups reports the group names the invoking user belongs to. Injectable
// so tests do not depend on the host's /etc/group.
type Groups func() ([]string, error)

// CurrentGroups resolves the invoking user's group memberships from the OS.
func CurrentGroups() ([]string, error) {
	u, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("callbacks: current user: %w", err)
	}
	ids, err := u.GroupIds()
	if err != nil {
		return nil, fmt.Errorf("callbacks: group ids: %w", err)
	}

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		g, err := user.LookupGroupId(id)
		if err != nil {
			continue
		}
		names = append(names, g.Name)
	}
	return names, nil
}

// Access returns an access hook that denies commands whose Access tag names
// a group the user is not a member of. Commands without an Access tag are
// always allowed, so group lookup only happens when a command is actually
// restricted.
func Access(groups Groups) shell.HookFunc {
	return func(c *shell.Context) (shell.Result, error) {
		tag := c.Match.Command.Access
		if tag == "" {
			return shell.ResultOK, nil
		}

		names, err := groups()
		if err != nil {
			return shell.ResultFail, fmt.Errorf("callbacks: access: %w", err)
		}
		if slices.Contains(names, tag) {
			return shell.ResultOK, nil
		}
		return shell.ResultFail, fmt.Errorf("callbacks: access: %q requires group %q", c.Match.Command.Name, tag)
	}
}

// Script returns a script hook that runs the matched command's action with
// /bin/sh, after expanding ${param} references from the bound arguments.
// Output goes to the shell's output sink. A command without an action
// succeeds trivially.
func Script(ctx context.Context) shell.HookFunc {
	return func(c *shell.Context) (shell.Result, error) {
		action := strings.TrimSpace(c.Match.Command.Action)
		if action == "" {
			return shell.ResultOK, nil
		}

		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", c.Match.Expand(action))
		cmd.Stdout = c.Out
		cmd.Stderr = c.Out
		if err := cmd.Run(); err != nil {
			return shell.ResultFail, fmt.Errorf("callbacks: action: %w", err)
		}
		return shell.ResultOK, nil
	}
}

// DryRun reports success without running the action. The host swaps it into
// the Script slot when --dry-run is set; the rest of the pipeline,
// including the config step, is unchanged.
func DryRun(*shell.Context) (shell.Result, error) {
	return shell.ResultOK, nil
}

// Config returns a config hook that persists configuration-mutating
// commands through the shell's daemon session. A daemon rejection fails
// only the current line; failure to reach the daemon, or a transport error
// mid-exchange, is fatal to the whole run.
func Config() shell.HookFunc {
	return func(c *shell.Context) (shell.Result, error) {
		cfg := c.Match.Command.Config
		if cfg == nil {
			return shell.ResultOK, nil
		}

		sess, err := c.Shell.Session()
		if err != nil {
			return shell.ResultFatal, fmt.Errorf("callbacks: config: %w", err)
		}

		req := proto.NewRequest(proto.Op(cfg.Op), c.Match.ExpandPath(cfg.Path), c.Match.Expand(cfg.Value))
		resp, err := sess.Exchange(req)
		if err != nil {
			return shell.ResultFatal, fmt.Errorf("callbacks: config: %w", err)
		}

		if resp.Status != proto.StatusAccepted {
			reason := resp.Reason
			if reason == "" {
				reason = string(resp.Status)
			}
			return shell.ResultFail, fmt.Errorf("callbacks: config: daemon refused: %s", reason)
		}

		if resp.Value != "" {
			fmt.Fprintln(c.Out, resp.Value)
		}
		return shell.ResultOK, nil
	}
}
