package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/migrado"
	"github.com/loykin/migrado/cmd/migrado/config"
	"github.com/loykin/migrado/internal/migration"
	"github.com/loykin/migrado/internal/schema"
	"github.com/spf13/cobra"
)

// usageArgs turns argument validation failures into usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &migration.UsageError{Err: err}
		}
		return nil
	}
}

// connect opens an engine for fn once the options are valid and the
// password is known.
func connect(ctx context.Context, a *app, fn func(e *migrado.Engine) error) error {
	e, err := a.engine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()
	return fn(e)
}

func newInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the migrations directory and the initial migration",
		Long: "Create the migrations directory and 0001_initial.js. With --schema the migration creates\n" +
			"the collections of a YAML schema; with --infer it describes the live database and\n" +
			"marks the migration as applied.",
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			level, err := config.ParseLevel(a.v.GetString("validation"))
			if err != nil {
				return err
			}
			schemaFile := a.v.GetString("schema")
			infer := a.v.GetBool("infer")
			created := func(m migrado.Migration, err error) error {
				out := cmd.OutOrStdout()
				switch {
				case errors.Is(err, migrado.ErrInitialExists):
					_, _ = fmt.Fprintln(out, "Initial migration already exists.")
					return nil
				case err != nil:
					return err
				}
				_, _ = fmt.Fprintf(out, "Created migration %s.\n", m.Path)
				return nil
			}
			if !infer {
				return created(migration.Init(ctx, migration.InitOptions{Dir: a.opts.Path, SchemaFile: schemaFile, Level: level}))
			}
			return connect(ctx, a, func(e *migrado.Engine) error {
				return created(e.Init(ctx, schemaFile, true, level))
			})
		},
	}
	cmd.Flags().StringP("schema", "s", "", "YAML schema describing the initial collections")
	cmd.Flags().BoolP("infer", "i", false, "infer the schema from the database and mark it as applied")
	cmd.Flags().StringP("validation", "v", "", "validation level for generated collections: none, new, moderate or strict")
	return cmd
}

func newMakeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "make",
		Short: "Create the next migration",
		Long: "Create the next numbered migration from the template, or with --schema a migration\n" +
			"moving the stored (or inferred) schema to the given YAML schema.",
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			level, err := config.ParseLevel(a.v.GetString("validation"))
			if err != nil {
				return err
			}
			name := strings.TrimSpace(a.v.GetString("name"))
			schemaFile := a.v.GetString("schema")
			created := func(m migrado.Migration, err error) error {
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created migration %s.\n", m.Path)
				return nil
			}
			if schemaFile == "" {
				return created(migration.Make(ctx, migration.MakeOptions{Dir: a.opts.Path, Name: name}))
			}
			return connect(ctx, a, func(e *migrado.Engine) error {
				return created(e.Make(ctx, name, schemaFile, level))
			})
		},
	}
	cmd.Flags().StringP("name", "n", "", "optional name appended to the migration id")
	cmd.Flags().StringP("schema", "s", "", "YAML schema to generate the migration from")
	cmd.Flags().StringP("validation", "v", "", "validation level for generated collections: none, new, moderate or strict")
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the database state and the latest migration on disk",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return connect(ctx, a, func(e *migrado.Engine) error {
				in, err := e.Inspect(ctx)
				if err != nil {
					return err
				}
				latest := in.Latest
				if latest == "" {
					latest = "none"
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "Database migration state is at %s.\n", in.State)
				_, _ = fmt.Fprintf(out, "Latest migration on disk is %s.\n", latest)
				if a.v.GetBool("history") {
					_, _ = fmt.Fprint(out, formatHistory(in.Runs, a.v.GetInt("history_limit")))
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("history", false, "show the run history (sqlite and postgres stores)")
	cmd.Flags().Int("history-limit", defaultHistoryLimit, "number of history entries to show, newest first (0 = all)")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the stored or inferred schema as YAML",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			level, err := config.ParseLevel(a.v.GetString("validation"))
			if err != nil {
				return err
			}
			return connect(ctx, a, func(e *migrado.Engine) error {
				desc, err := e.Schema(ctx, level)
				if err != nil {
					return err
				}
				if len(args) == 0 || args[0] == "-" {
					return schema.Dump(cmd.OutOrStdout(), desc)
				}
				path := filepath.Clean(args[0])
				// #nosec G304 -- the operator chooses the export file
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create %s: %w", path, err)
				}
				if err := schema.Dump(f, desc); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Schema written to %s.\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringP("validation", "v", "", "include live validation rules when inferring (any level but empty)")
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Apply migrations up or down to a target",
		Long: "Apply forward or reverse migrations until the database is at the target id (default:\n" +
			"the latest migration). Each migration is tried as a transaction first and run through\n" +
			"arangosh when the transaction is rejected.",
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target := strings.TrimSpace(a.v.GetString("target"))
			state := strings.TrimSpace(a.v.GetString("state"))
			return connect(ctx, a, func(e *migrado.Engine) error {
				rep, err := e.Run(ctx, target, state)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(rep.Applied) == 0 {
					_, _ = fmt.Fprintf(out, "Nothing to do, state is at %s.\n", rep.State)
					return nil
				}
				_, _ = fmt.Fprintf(out, "State is now at %s.\nDone.\n", rep.State)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringP("target", "t", "", "target migration id (default: latest)")
	f.StringP("state", "s", "", "assume this state instead of the stored one")
	f.Int64("max-transaction-size", 0, "transaction size limit in bytes")
	f.Int64("intermediate-commit-size", 0, "bytes after which a transaction commits intermediately")
	f.Int64("intermediate-commit-count", 0, "operations after which a transaction commits intermediately")
	f.Int("timeout", 0, "request timeout in seconds (default 1200)")
	f.Bool("async", false, "do not wait for the commit to sync to disk")
	f.StringP("arangosh", "a", "", "arangosh binary used for schema migrations (default \"arangosh\")")
	return cmd
}
