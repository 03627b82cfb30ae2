// Command confd is the configuration daemon. It owns the persistent
// configuration store and serves the session protocol to confsh clients
// over a unix domain socket.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/confsh/confsh/pkg/daemon"
	"github.com/confsh/confsh/pkg/session"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		socketPath string
		dbPath     string
	)

	cmd := &cobra.Command{
		Use:           "confd",
		Short:         "Configuration daemon for confsh",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), socketPath, dbPath)
		},
	}

	cmd.Flags().StringVarP(&socketPath, "socket", "s", session.DefaultSocketPath, "unix socket to listen on")
	cmd.Flags().StringVar(&dbPath, "db", "/var/lib/confd/config.db", "path to the configuration database")

	return cmd
}

func run(ctx context.Context, socketPath, dbPath string) error {
	logger := log.New(os.Stderr, "confd: ", log.LstdFlags)

	store, err := daemon.OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	srv := daemon.New(store, logger)
	if err := srv.Listen(socketPath); err != nil {
		return err
	}

	logger.Printf("listening on %s", socketPath)
	return srv.Serve(ctx)
}
