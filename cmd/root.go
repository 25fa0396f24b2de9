// Package cmd provides the stencil command-line interface.
//
// Configuration is read with the following precedence, highest first:
//
//  1. Command-line flags (--root, --log-level, ...)
//  2. STENCIL_<SECTION>_<OPTION> environment variables
//  3. The config file: --config, then STENCIL_CONFIG_FILE, then .stencil.yml
//     in the working directory
//  4. Built-in defaults
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/stencil/internal/config"
	"github.com/conneroisu/stencil/internal/di"
	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/prompt"
)

// cli holds the state shared by every command of one invocation.
type cli struct {
	v          *viper.Viper
	cfgFile    string
	configUsed string

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// logger overrides the configured logger, for tests.
	logger logging.Logger
	// nonInteractive replaces the terminal collaborators with refusals.
	nonInteractive bool
	// dialog overrides the confirmation dialog, for tests.
	dialog prompt.Dialog
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&cli{v: viper.New(), in: os.Stdin, out: os.Stdout, errOut: os.Stderr})
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "stencil",
		Short: "Render templates into files as the assets they depend on change",
		Long: `Stencil keeps generated files in sync with their inputs and templates.

Entries pair an input asset and a template with an output file and are
re-rendered whenever either changes. Scaffolds describe whole directory trees
whose names and contents are templates.

Quick Start:
  stencil entry add --template templates/readme.tmpl --input inputs/readme.yml --output docs/README.md
  stencil watch                   Re-render entries as files change
  stencil scaffold list           List configured scaffolds
  stencil scaffold generate api services/billing`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			used, err := config.Init(c.v, c.cfgFile, os.LookupEnv)
			if err != nil {
				return err
			}
			c.configUsed = used
			return nil
		},
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default is .stencil.yml, can also use STENCIL_CONFIG_FILE env var)")
	flags.String("root", "", "project root (default is the working directory)")
	flags.StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")
	flags.BoolVar(&c.nonInteractive, "no-input", false, "never prompt; refuse anything needing an answer")
	_ = c.v.BindPFlag("project.root", flags.Lookup("root"))
	_ = c.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = c.v.BindPFlag("log.format", flags.Lookup("log-format"))

	root.AddCommand(
		newWatchCommand(c),
		newRenderCommand(c),
		newEntryCommand(c),
		newScaffoldCommand(c),
		newDeleteCommand(c),
		newVersionCommand(c),
	)
	return root
}

// Execute runs the CLI and reports a failure on stderr.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err))
		return err
	}
	return nil
}

// open loads the configuration and wires the application.
func (c *cli) open(ctx context.Context) (*di.App, error) {
	cfg, err := config.LoadFrom(c.v)
	if err != nil {
		return nil, err
	}

	opts := di.Options{Logger: c.logger}
	if c.nonInteractive {
		opts.Dialog = prompt.StaticDialog(false)
	} else {
		opts.Dialog = prompt.NewConfirmDialog(c.in, c.errOut)
		opts.Progress = prompt.NewBarProgress(c.errOut)
		opts.Collector = prompt.NewFormCollector(nil, nil)
		opts.Resolver = prompt.NewOverwriteMenu(nil, nil)
	}
	if c.dialog != nil {
		opts.Dialog = c.dialog
	}

	app, err := di.New(ctx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open project: %w", err)
	}
	if c.configUsed != "" {
		app.Logger.Debug(ctx, "Using config file", "path", c.configUsed)
	}
	return app, nil
}
