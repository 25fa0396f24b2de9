package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	stencilerrors "github.com/conneroisu/stencil/internal/errors"
)

func newRenderCommand(c *cli) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "render [id...]",
		Short: "Render entries now",
		Long: `Render the named entries, or every valid entry with --all.

Ids may be shortened to any unique prefix of at least four characters.

Examples:
  stencil render --all
  stencil render 3f2a9c1e`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return stencilerrors.IllegalArgument("give entry ids or --all, not both or neither")
			}

			ctx := cmd.Context()
			app, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			if all {
				total := len(app.Entries.List())
				n := app.Entries.RenderAll(ctx)
				fmt.Fprintf(out, "%s rendered %d of %d %s\n", successMark, n, total, plural(total, "entry", "entries"))
				return nil
			}

			failed := 0
			for _, id := range args {
				e, err := app.Entries.Get(id)
				if err != nil {
					return err
				}
				ok, err := app.Entries.Render(ctx, e.ID)
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintf(out, "%s %s\n", successMark, app.Entries.OutputPath(e))
				} else {
					failed++
					fmt.Fprintf(out, "%s %s %s\n", failMark, shortID(e.ID), dimText("not rendered, see log"))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d entries failed to render", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "render every valid entry")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
