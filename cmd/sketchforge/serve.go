package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Strob0t/sketchforge/internal/adapter/fswatch"
	sfhttp "github.com/Strob0t/sketchforge/internal/adapter/http"
	sfmcp "github.com/Strob0t/sketchforge/internal/adapter/mcp"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr    string
		watches []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control API and websocket for editor integrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			for _, dir := range watches {
				stop, err := startWatcher(ctx, a, dir)
				if err != nil {
					return err
				}
				defer stop()
			}
			return serveHTTP(ctx, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringSliceVarP(&watches, "watch", "w", nil, "also watch these directories for sketch saves")
	return cmd
}

func serveHTTP(ctx context.Context, a *app) error {
	h := &sfhttp.Handlers{
		Orchestrator: a.orch,
		Provisioner:  a.provisioner,
		Scaffolder:   a.scaffolder,
	}
	r := sfhttp.NewRouter(h, a.hub, a.cfg.Telemetry.ServiceName, a.cfg.Server.CORSOrigin)
	a.hub.SetInbound(sfhttp.WSInbound(a.orch))

	if a.cfg.MCP.HTTPEnabled {
		r.Handle("/mcp", sfmcp.AuthMiddleware(a.cfg.MCP.APIKey, newMCPServer(a).HTTPHandler()))
		slog.Info("mcp tools mounted", "path", "/mcp", "auth", a.cfg.MCP.APIKey != "")
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: synchronous saves wait for the remote run.
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func startWatcher(ctx context.Context, a *app, dir string) (func(), error) {
	w, err := fswatch.New(dir, a.cfg.Watch.Debounce, a.orch)
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return w.Stop, nil
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Transpile sketch files whenever they are written below dir",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			stop, err := startWatcher(ctx, a, dir)
			if err != nil {
				return err
			}
			defer stop()

			<-ctx.Done()
			return nil
		},
	}
}

func newMCPServer(a *app) *sfmcp.Server {
	return sfmcp.NewServer(
		sfmcp.ServerConfig{Name: "sketchforge", Version: Version},
		sfmcp.ServerDeps{
			Orchestrator: a.orch,
			Provisioner:  a.provisioner,
			Scaffolder:   a.scaffolder,
		},
	)
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the sketch tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return newMCPServer(a).ServeStdio(ctx, os.Stdin, os.Stdout)
		},
	}
}
