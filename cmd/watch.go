package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/stencil/internal/asset"
	"github.com/conneroisu/stencil/internal/config"
	"github.com/conneroisu/stencil/internal/di"
	stencilerrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/conneroisu/stencil/internal/repository"
)

func newWatchCommand(c *cli) *cobra.Command {
	var renderFirst bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-render entries as project files change",
		Long: `Watch the project and keep every entry's output up to date.

Moves and renames are followed, so entries keep pointing at their assets.
Send SIGHUP, or edit the config file, to reload configuration and settings;
deferred entries render at that point.

Examples:
  stencil watch                  Watch the configured paths
  stencil watch --render         Render every entry before watching`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.runWatch(ctx, cmd, renderFirst)
		},
	}
	cmd.Flags().BoolVar(&renderFirst, "render", false, "render every entry before watching")
	return cmd
}

func (c *cli) runWatch(ctx context.Context, cmd *cobra.Command, renderFirst bool) error {
	app, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if renderFirst {
		n := app.Entries.RenderAll(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "%s rendered %d %s\n", successMark, n, plural(n, "entry", "entries"))
	}

	fw, err := app.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	reloads := make(chan string, 1)
	requestReload := func(reason string) {
		select {
		case reloads <- reason:
		default:
		}
	}

	if c.configUsed != "" {
		abs, _ := filepath.Abs(c.configUsed)
		rel := repository.Relative(app.Config.Project.Root, abs)
		if filepath.IsAbs(rel) {
			app.Logger.Debug(ctx, "Config file is outside the project, reload with SIGHUP", "path", abs)
		} else {
			fw.AddHandler(func(_ context.Context, batch asset.ChangeBatch) error {
				if batch.Touches(rel) {
					requestReload("config file changed")
				}
				return nil
			})
		}
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	fw.Start(ctx)
	defer fw.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s %s\n", app.Config.Project.Root, dimText("(Ctrl+C to stop)"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				requestReload("SIGHUP")
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case reason := <-reloads:
				c.reload(gctx, app, reason)
			}
		}
	})

	err = g.Wait()
	fmt.Fprintln(cmd.OutOrStdout(), "Stopped watching")
	return err
}

// reload re-reads configuration and settings, then renders deferred
// entries. Failures are logged and the previous state is kept.
func (c *cli) reload(ctx context.Context, app *di.App, reason string) {
	app.Logger.Info(ctx, "Reloading", "reason", reason)
	handler := stencilerrors.NewErrorHandler(app.Logger)

	if c.configUsed != "" {
		if err := c.v.ReadInConfig(); err != nil {
			handler.Handle(ctx, stencilerrors.NewConfigError("cannot re-read "+c.configUsed).WithCause(err))
		} else if cfg, err := config.LoadFrom(c.v); err != nil {
			handler.Handle(ctx, stencilerrors.NewConfigError("config rejected, keeping the previous one").WithCause(err))
		} else {
			app.Reconfigure(ctx, cfg)
		}
	}

	if err := app.Reload(ctx); err != nil {
		handler.Handle(ctx, err)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
