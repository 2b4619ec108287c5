package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Strob0t/sketchforge/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "sketchforge",
		Short: "Transpile sketch files into source code with a remote assistant",
		Long: `sketchforge watches sketch files inside a project's sketch folder, sends their
content to a pre-configured remote assistant and writes the generated code next
to the project root.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", config.DefaultConfigFile, "daemon config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newWatchCmd(opts),
		newMCPCmd(opts),
		newRootPathCmd(),
		newTranspileCmd(opts),
		newProvisionCmd(opts),
		newResyncCmd(opts),
		newScaffoldCmd(),
	)
	return cmd
}
