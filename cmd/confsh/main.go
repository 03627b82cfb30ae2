// Command confsh is the interactive and batch shell client. It reads
// command lines from files or the terminal, evaluates each through the hook
// pipeline, and persists configuration changes through the confd daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/confsh/confsh/pkg/callbacks"
	"github.com/confsh/confsh/pkg/session"
	"github.com/confsh/confsh/pkg/shell"
)

var errRunFailed = errors.New("confsh: command execution failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// A peer closing the daemon socket must surface as an I/O error on the
	// next read or write, not kill the process.
	signal.Ignore(syscall.SIGPIPE)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

type options struct {
	socket      string
	lockFile    string
	lockless    bool
	stopOnError bool
	dryRun      bool
	schemePath  string
	view        string
	viewID      string
	background  bool
	quiet       bool
	utf8        bool
	bit8        bool
	envFile     string
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "confsh [file ...]",
		Short: "Network-device-style configuration shell",
		Long: "confsh reads command lines interactively or from files, runs them\n" +
			"through the command grammar, and persists configuration changes\n" +
			"through the confd daemon.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.socket, "socket", "s", "", "confd socket path (default $CONFSH_SOCKET or "+session.DefaultSocketPath+")")
	f.StringVar(&opts.lockFile, "lock-file", shell.DefaultLockPath, "advisory lock file serializing config mutation")
	f.BoolVarP(&opts.lockless, "lockless", "l", false, "don't use the locking mechanism")
	f.BoolVarP(&opts.stopOnError, "stop-on-error", "e", false, "stop execution on the first failed command")
	f.BoolVarP(&opts.dryRun, "dry-run", "d", false, "don't actually execute command actions")
	f.StringVarP(&opts.schemePath, "scheme-path", "x", "", "path to the scheme file or directory (default $CONFSH_PATH)")
	f.StringVarP(&opts.view, "view", "w", "", "startup view (default $CONFSH_VIEW)")
	f.StringVarP(&opts.viewID, "viewid", "i", "", "startup view id (default $CONFSH_VIEWID)")
	f.BoolVarP(&opts.background, "background", "b", false, "run in non-interactive mode")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "disable echo while executing commands from files")
	f.BoolVarP(&opts.utf8, "utf8", "u", false, "force UTF-8 encoding")
	f.BoolVar(&opts.bit8, "8bit", false, "force 8-bit encoding")
	f.StringVar(&opts.envFile, "env", ".env", "path to .env file (ignored if missing)")

	return cmd
}

func run(ctx context.Context, opts options, files []string) error {
	if opts.utf8 && opts.bit8 {
		return errors.New("the --utf8 and --8bit options can't be used together")
	}

	if err := loadDotEnv(opts.envFile); err != nil {
		return err
	}

	// Environment defaults are read here at the boundary and threaded into
	// the engine through its setters; the engine never reads the
	// environment itself.
	if opts.socket == "" {
		opts.socket = os.Getenv("CONFSH_SOCKET")
	}
	if opts.socket == "" {
		opts.socket = session.DefaultSocketPath
	}
	if opts.schemePath == "" {
		opts.schemePath = os.Getenv("CONFSH_PATH")
	}
	if opts.view == "" {
		opts.view = os.Getenv("CONFSH_VIEW")
	}
	if opts.viewID == "" {
		opts.viewID = os.Getenv("CONFSH_VIEWID")
	}

	var out io.Writer = os.Stdout

	hooks := shell.Hooks{
		Access: callbacks.Access(callbacks.CurrentGroups),
		Script: callbacks.Script(ctx),
		Config: callbacks.Config(),
	}
	if opts.dryRun {
		hooks.Script = callbacks.DryRun
	}

	sh := shell.New(hooks, nil, out)
	defer func() { _ = sh.Close() }()

	if err := sh.LoadScheme(opts.schemePath); err != nil {
		return err
	}

	sh.SetSocket(opts.socket)
	if opts.lockless {
		sh.SetLockfile("")
	} else {
		sh.SetLockfile(opts.lockFile)
	}

	interactive := len(files) == 0 && !opts.background && isatty.IsTerminal(os.Stdin.Fd())
	sh.SetInteractive(interactive)
	sh.SetQuiet(opts.quiet)

	if opts.view != "" {
		sh.SetStartupView(opts.view)
	}
	if opts.viewID != "" {
		sh.SetStartupViewID(opts.viewID)
	}

	switch {
	case opts.utf8:
		sh.SetEncoding(shell.EncodingUTF8)
	case opts.bit8:
		sh.SetEncoding(shell.Encoding8Bit)
	default:
		sh.SetEncoding(shell.DetectEncoding(os.Getenv))
	}

	if err := sh.Startup(); err != nil {
		return err
	}

	if len(files) > 0 {
		// The input stack is LIFO, so push in reverse to run the files in
		// the order given.
		for i := len(files) - 1; i >= 0; i-- {
			if err := sh.PushFile(files[i], opts.stopOnError); err != nil {
				return err
			}
		}
	} else {
		sh.PushReader(os.Stdin, opts.stopOnError)
	}

	if !sh.Loop() {
		return errRunFailed
	}
	return nil
}

// loadDotEnv loads the given .env file, tolerating a missing one.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
