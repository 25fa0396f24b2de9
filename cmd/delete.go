package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stencil/internal/asset"
	"github.com/conneroisu/stencil/internal/entry"
	stencilerrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/conneroisu/stencil/internal/repository"
	"github.com/conneroisu/stencil/internal/validation"
)

func newDeleteCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <path>",
		Aliases: []string{"rm"},
		Short:   "Delete a project file or directory",
		Long: `Delete a project file or directory and drop it from the asset index.

When entries use the path as input, template or output directory, the
deletion needs confirmation. Confirming removes those entries first;
declining, or running with --no-input, leaves everything in place.

Examples:
  stencil delete inputs/old.yml
  stencil rm templates/legacy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			rel := projectPath(app, args[0])
			if rel == "." || filepath.IsAbs(rel) {
				return stencilerrors.IllegalArgument("%s is not inside the project", args[0])
			}
			if err := validation.ValidatePath(rel); err != nil {
				return stencilerrors.IllegalArgument("cannot delete %s", args[0]).WithCause(err)
			}
			abs := repository.Resolve(app.Config.Project.Root, rel)
			if _, err := os.Lstat(abs); err != nil {
				return stencilerrors.NotFound("path", rel)
			}

			if app.Entries.OnWillDeleteAsset(ctx, rel) == entry.DeleteBlocked {
				return stencilerrors.InvalidOperation("deletion of %s was declined, entries still use it", rel)
			}
			if err := os.RemoveAll(abs); err != nil {
				return fmt.Errorf("failed to delete %s: %w", rel, err)
			}
			if err := app.HandleBatch(ctx, asset.ChangeBatch{Deleted: []string{rel}}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %s\n", successMark, rel)
			return nil
		},
	}
}
