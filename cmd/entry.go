package cmd

import (
	"context"
	"fmt"
	"path"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stencil/internal/asset"
	"github.com/conneroisu/stencil/internal/di"
	"github.com/conneroisu/stencil/internal/entry"
	stencilerrors "github.com/conneroisu/stencil/internal/errors"
)

// entryFlags are the fields add and update accept.
type entryFlags struct {
	template string
	input    string
	variant  string
	output   string
	deferred bool
	changes  changesFlag
}

func (f *entryFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.template, "template", "t", "", "template file")
	flags.StringVarP(&f.input, "input", "i", "", "input file")
	flags.StringVar(&f.variant, "variant", "text", "input variant ("+strings.Join(entry.Variants(), ", ")+")")
	flags.StringVarP(&f.output, "output", "o", "", "output file; its directory must exist")
	flags.BoolVar(&f.deferred, "deferred", false, "render only when settings are reloaded")
	flags.Var(&f.changes, "changes", "input changes to react to (import, move, delete, all)")
}

// splitOutput resolves the directory of an output path to a reference and
// returns it with the file name.
func splitOutput(ctx context.Context, app *di.App, output string) (string, string, error) {
	rel := projectPath(app, output)
	dir, name := path.Split(rel)
	if name == "" {
		return "", "", stencilerrors.IllegalArgument("output %s names a directory, not a file", output)
	}
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" || !app.Repository.IsValidDirectory(dir) {
		return "", "", stencilerrors.DirectoryNotFound(output)
	}
	ref, err := indexRef(ctx, app, dir)
	if err != nil {
		return "", "", err
	}
	return ref, name, nil
}

func newEntryCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Manage render entries",
		Long: `Entries render one template with one input into one output file.

Examples:
  stencil entry add -t templates/readme.tmpl -i inputs/readme.yml --variant data -o docs/README.md
  stencil entry list --format yaml
  stencil entry update 3f2a --deferred
  stencil entry remove 3f2a`,
	}
	cmd.AddCommand(
		newEntryAddCommand(c),
		newEntryUpdateCommand(c),
		newEntryRemoveCommand(c),
		newEntryListCommand(c),
		newEntryFlagCommand(c),
	)
	return cmd
}

func newEntryAddCommand(c *cli) *cobra.Command {
	var f entryFlags
	var render bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if f.template == "" {
				return stencilerrors.NullArgument("--template")
			}
			if f.input == "" {
				return stencilerrors.NullArgument("--input")
			}
			if f.output == "" {
				return stencilerrors.NullArgument("--output")
			}

			tmplRef, err := refOf(ctx, app, f.template)
			if err != nil {
				return err
			}
			inputRef, err := refOf(ctx, app, f.input)
			if err != nil {
				return err
			}
			dirRef, filename, err := splitOutput(ctx, app, f.output)
			if err != nil {
				return err
			}

			e := entry.New(tmplRef, dirRef, filename, entry.Input{Variant: f.variant, Ref: inputRef})
			e.Deferred = f.deferred
			if f.changes.set {
				e.Changes = f.changes.mask
			}
			added, err := app.Entries.Add(ctx, e)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s added entry %s -> %s\n", successMark, boldText(shortID(added.ID)), app.Entries.OutputPath(added))
			if render {
				if ok, _ := app.Entries.Render(ctx, added.ID); !ok {
					fmt.Fprintf(out, "%s not rendered, see log\n", failMark)
				}
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&render, "render", false, "render the entry once added")
	return cmd
}

func newEntryUpdateCommand(c *cli) *cobra.Command {
	var f entryFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an entry; only the given flags are applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			e, err := app.Entries.Get(args[0])
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("template") {
				if e.Template, err = refOf(ctx, app, f.template); err != nil {
					return err
				}
			}
			if flags.Changed("input") {
				if e.Input.Ref, err = refOf(ctx, app, f.input); err != nil {
					return err
				}
			}
			if flags.Changed("variant") {
				e.Input.Variant = f.variant
			}
			if flags.Changed("output") {
				if e.OutputDir, e.Filename, err = splitOutput(ctx, app, f.output); err != nil {
					return err
				}
			}
			if flags.Changed("deferred") {
				e.Deferred = f.deferred
			}
			if f.changes.set {
				e.Changes = f.changes.mask
			}

			if err := app.Entries.Update(ctx, e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated entry %s\n", successMark, boldText(shortID(e.ID)))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newEntryRemoveCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove an entry; its output file is left in place",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Entries.Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed entry %s\n", successMark, args[0])
			return nil
		},
	}
}

func newEntryFlagCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "flag <id>...",
		Short: "Re-render entries through the settings catch-up",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			for _, id := range args {
				if err := app.Entries.FlagChanged(id); err != nil {
					return err
				}
			}
			// Flags live in the session store, so save the settings and run
			// the catch-up before this process ends.
			if err := app.Repository.Persist(ctx); err != nil {
				return err
			}
			app.Entries.OnAssetsChanged(ctx, asset.ChangeBatch{Imported: []string{app.Settings.Path()}})
			fmt.Fprintf(cmd.OutOrStdout(), "%s flagged %d %s\n", successMark, len(args), plural(len(args), "entry", "entries"))
			return nil
		},
	}
}

// entryView is the listing form of an entry, with references resolved.
type entryView struct {
	ID       string   `json:"id" yaml:"id"`
	Template string   `json:"template" yaml:"template"`
	Input    string   `json:"input" yaml:"input"`
	Variant  string   `json:"variant" yaml:"variant"`
	Output   string   `json:"output" yaml:"output"`
	Changes  []string `json:"changes" yaml:"changes"`
	Deferred bool     `json:"deferred" yaml:"deferred"`
}

func newEntryListCommand(c *cli) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List entries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			entries := app.Entries.List()
			views := make([]entryView, len(entries))
			for i, e := range entries {
				output := app.Entries.OutputPath(e)
				if output == "" {
					output = pathOf(app, e.OutputDir) + "/" + e.Filename
				}
				views[i] = entryView{
					ID:       e.ID,
					Template: pathOf(app, e.Template),
					Input:    pathOf(app, e.Input.Ref),
					Variant:  e.Input.Variant,
					Output:   output,
					Changes:  e.Changes.Names(),
					Deferred: e.Deferred,
				}
			}

			out := cmd.OutOrStdout()
			if format != "table" {
				return writeStructured(out, format, views)
			}
			if len(views) == 0 {
				fmt.Fprintln(out, "No entries configured.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTEMPLATE\tINPUT\tOUTPUT\tCHANGES")
			for _, v := range views {
				changes := strings.Join(v.Changes, ",")
				if v.Deferred {
					changes += " (deferred)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", shortID(v.ID), v.Template, v.Input, v.Output, changes)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json, yaml)")
	return cmd
}
