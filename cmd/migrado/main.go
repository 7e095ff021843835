package main

import (
	"context"
	"io"
	"os"

	"github.com/loykin/migrado"
	"github.com/loykin/migrado/cmd/migrado/config"
	"github.com/loykin/migrado/internal/common"
	"github.com/loykin/migrado/internal/migration"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state of one invocation.
type app struct {
	v      *viper.Viper
	opts   config.Options
	logger *common.Logger
	// prompt asks for the password when one is needed and not given.
	prompt func(label string) (string, error)
	// open connects the engine; replaced in tests.
	open func(ctx context.Context, cfg migrado.Config) (*migrado.Engine, error)
}

func newApp() *app {
	return &app{
		v:      config.NewViper(),
		prompt: promptPassword,
		open:   migrado.Open,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "migrado",
		Short:         "ArangoDB migrations and batch processing",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &migration.UsageError{Err: err}
	})

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML file with default option values")
	pf.StringP("path", "p", "", "directory holding the migrations (default \"migrations\")")
	pf.StringP("db", "d", "", "database name")
	pf.StringP("state-coll", "c", "", "collection holding the migration state (default \"migrado\")")
	pf.BoolP("tls", "T", false, "connect over TLS")
	pf.Bool("tls-insecure", false, "skip TLS certificate verification")
	pf.StringP("host", "H", "", "database host (default \"localhost\")")
	pf.IntP("port", "P", 0, "database port (default 8529)")
	pf.StringP("username", "U", "", "database user")
	pf.StringP("password", "W", "", "database password, prompted for when a user is set")
	pf.String("jwt-secret-file", "", "file holding the server JWT secret, used instead of a password")
	pf.BoolP("no-interaction", "y", false, "never prompt")
	pf.String("store", "", "state store: arango, sqlite or postgres (default \"arango\")")
	pf.String("store-path", "", "sqlite state file (default <path>/migrado.db)")
	pf.String("store-dsn", "", "postgres state store DSN")
	pf.String("log-level", "", "error, warn, info or debug (default \"info\")")
	pf.String("log-format", "", "text, json or color (default \"text\")")

	root.AddCommand(
		newInitCmd(a),
		newMakeCmd(a),
		newInspectCmd(a),
		newExportCmd(a),
		newRunCmd(a),
	)
	return root
}

// setup binds the flags of the running command and builds the options.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}
	opts, err := config.Load(a.v)
	if err != nil {
		return err
	}
	logger, err := opts.Logger()
	if err != nil {
		return err
	}
	common.SetDefaultLogger(logger)
	a.opts = opts
	a.logger = logger.WithComponent("cli")
	a.logger.Debug("options", "options", opts.String())
	return nil
}

// engine validates the connection options, asks for a missing password and
// connects.
func (a *app) engine(ctx context.Context) (*migrado.Engine, error) {
	if err := a.opts.Validate(); err != nil {
		return nil, err
	}
	if a.opts.NeedsPassword() {
		pw, err := a.prompt("Password: ")
		if err != nil {
			return nil, &migration.UsageError{Msg: "read password", Err: err}
		}
		a.opts.Password = pw
	}
	return a.open(ctx, a.opts.Engine(a.logger))
}

func run(args []string, stdout, stderr io.Writer) error {
	a := newApp()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(context.Background())
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		exitHandler.LogFatalError(err, "command failed")
	}
}
