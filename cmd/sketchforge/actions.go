package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Strob0t/sketchforge/internal/domain"
	"github.com/Strob0t/sketchforge/internal/domain/sketch"
	"github.com/Strob0t/sketchforge/internal/service"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "root <file>",
		Short: "Print the sketch project root of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, ok := service.ResolveRoot(args[0])
			if !ok {
				return fmt.Errorf("%w for %s", domain.ErrRootNotFound, args[0])
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), root)
			return err
		},
	}
}

func newTranspileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transpile <file>",
		Short: "Transpile one sketch file and write the generated code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.orch.HandleSave(ctx, sketch.SaveEvent{Path: args[0], Modified: true})
			if res.Outcome != "" {
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}

func newProvisionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provision <file>",
		Short: "Create the remote assistant and vector store of a file's project when missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.provisioner.Provision(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newResyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resync <file>",
		Short: "Replace the project's source files in its vector store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.provisioner.Resync(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newScaffoldCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scaffold [dir]",
		Short: "Create a sketch folder with a starter config in dir",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			created, err := service.NewScaffolder(nil).Scaffold(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if !created {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s already has project files\n", dir)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created sketch folder in %s\n", dir)
			return err
		},
	}
}
