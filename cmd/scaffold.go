package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ddddddO/gtree"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/stencil/internal/di"
	stencilerrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/conneroisu/stencil/internal/scaffold"
)

func newScaffoldCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scaffold",
		Aliases: []string{"sc"},
		Short:   "Generate directory trees from scaffolds",
		Long: `Scaffolds are trees of directories and files whose names and contents
are templates, rendered with an input value and the target selection.

Examples:
  stencil scaffold add service --from scaffolds/service.yml
  stencil scaffold tree service services/billing --set name=billing
  stencil scaffold generate service services/billing --set name=billing
  stencil scaffold disable service vendor`,
	}
	cmd.AddCommand(
		newScaffoldGenerateCommand(c),
		newScaffoldValidateCommand(c),
		newScaffoldTreeCommand(c),
		newScaffoldListCommand(c),
		newScaffoldAddCommand(c),
		newScaffoldRemoveCommand(c),
		newScaffoldEnableCommand(c, true),
		newScaffoldEnableCommand(c, false),
	)
	return cmd
}

// inputFlags carry the input value of a generation.
type inputFlags struct {
	file string
	set  []string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "input", "", "YAML file with the input values")
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "input value as key=value, repeatable")
}

// request builds a generation request. Input stays nil when no values were
// given, so a scaffold with a schema asks for them.
func (f *inputFlags) request(app *di.App, name, target string) (scaffold.GenerateRequest, error) {
	s, ok := app.Scaffolds.Scaffolds().Get(name)
	if !ok {
		return scaffold.GenerateRequest{}, stencilerrors.NotFound("scaffold", name)
	}
	req := scaffold.GenerateRequest{Scaffold: s, TargetPath: projectPath(app, target)}

	values, err := readValues(f.file, f.set)
	if err != nil {
		return req, err
	}
	if values != nil {
		req.Input = values
	}
	return req, nil
}

func newScaffoldGenerateCommand(c *cli) *cobra.Command {
	var in inputFlags
	var policy policyFlag

	cmd := &cobra.Command{
		Use:   "generate <scaffold> <target-dir>",
		Short: "Generate a scaffold into an existing directory",
		Long: `Generate a scaffold into an existing directory.

Without --input or --set, a scaffold with an input schema opens a form.
Existing files are handled by --overwrite: prompt asks for each one,
overwrite replaces them all and skip leaves them all in place.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			req, err := in.request(app, args[0], args[1])
			if err != nil {
				return err
			}
			req.Policy = policy.or(app.OverwritePolicy())

			out := cmd.OutOrStdout()
			if req.Input != nil || !req.Scaffold.HasSchema() {
				errs, err := app.Scaffolds.Validate(ctx, req)
				if err != nil {
					return err
				}
				if blocking := errs.Blocking(); len(blocking) > 0 {
					printProblems(out, blocking)
					return fmt.Errorf("scaffold %s is invalid for %s", req.Scaffold.Name, req.TargetPath)
				}
			}

			paths, err := app.Scaffolds.Generate(ctx, req)
			if err != nil {
				if errors.Is(err, scaffold.ErrCancelled) {
					fmt.Fprintln(out, dimText("cancelled"))
					return nil
				}
				return err
			}
			if paths == nil {
				return fmt.Errorf("scaffold %s was not generated, see log", req.Scaffold.Name)
			}
			for _, p := range paths {
				fmt.Fprintf(out, "%s %s\n", successMark, p)
			}
			fmt.Fprintf(out, "generated %d %s\n", len(paths), plural(len(paths), "path", "paths"))
			return nil
		},
	}
	in.register(cmd)
	cmd.Flags().Var(&policy, "overwrite", "existing files: prompt, overwrite or skip (default from config)")
	return cmd
}

func newScaffoldValidateCommand(c *cli) *cobra.Command {
	var in inputFlags

	cmd := &cobra.Command{
		Use:   "validate <scaffold> <target-dir>",
		Short: "Check a scaffold against a target without writing anything",
		Long: `Check a scaffold against a target without writing anything.

Without --input or --set, the schema defaults are used as input. Files that
already exist are listed but do not make the scaffold invalid.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			req, err := in.request(app, args[0], args[1])
			if err != nil {
				return err
			}
			errs, err := app.Scaffolds.Validate(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range errs.OfKind(scaffold.ErrOverwrite) {
				fmt.Fprintf(out, "%s exists: %s\n", skipMark, p.Path)
			}
			if blocking := errs.Blocking(); len(blocking) > 0 {
				printProblems(out, blocking)
				return fmt.Errorf("scaffold %s is invalid for %s", req.Scaffold.Name, req.TargetPath)
			}
			fmt.Fprintf(out, "%s scaffold %s is valid for %s\n", successMark, req.Scaffold.Name, req.TargetPath)
			return nil
		},
	}
	in.register(cmd)
	return cmd
}

func printProblems(w io.Writer, errs scaffold.ValidationErrors) {
	for _, e := range errs {
		fmt.Fprintf(w, "%s %s\n", failMark, e.Error())
	}
}

func newScaffoldTreeCommand(c *cli) *cobra.Command {
	var in inputFlags

	cmd := &cobra.Command{
		Use:   "tree <scaffold> [target-dir]",
		Short: "Print a scaffold's tree",
		Long: `Print a scaffold's tree. With a target directory the names are rendered
as they would be generated there.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if len(args) == 1 {
				s, ok := app.Scaffolds.Scaffolds().Get(args[0])
				if !ok {
					return stencilerrors.NotFound("scaffold", args[0])
				}
				return writeTree(cmd.OutOrStdout(), s.Name, s.Root, false)
			}

			req, err := in.request(app, args[0], args[1])
			if err != nil {
				return err
			}
			errs, err := app.Scaffolds.Validate(ctx, req)
			if err != nil {
				return err
			}
			if blocking := errs.Blocking(); len(blocking) > 0 {
				printProblems(cmd.OutOrStdout(), blocking)
				return fmt.Errorf("scaffold %s is invalid for %s", req.Scaffold.Name, req.TargetPath)
			}
			return writeTree(cmd.OutOrStdout(), req.TargetPath, req.Scaffold.Root, true)
		},
	}
	in.register(cmd)
	return cmd
}

// writeTree prints the tree below root as ASCII art. Directories end in a
// slash.
func writeTree(w io.Writer, title string, root *scaffold.Node, rendered bool) error {
	top := gtree.NewRoot(title)
	var add func(parent *gtree.Node, n *scaffold.Node)
	add = func(parent *gtree.Node, n *scaffold.Node) {
		for _, child := range n.Children() {
			name := child.Name()
			if rendered {
				name = child.RenderedName()
			}
			if child.IsDirectory() {
				add(parent.Add(name+"/"), child)
				continue
			}
			parent.Add(name)
		}
	}
	add(top, root)
	return gtree.OutputFromRoot(w, top)
}

// scaffoldView is the listing form of a scaffold.
type scaffoldView struct {
	Name        string   `json:"name" yaml:"name"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Dynamic     bool     `json:"dynamic" yaml:"dynamic"`
	Nodes       int      `json:"nodes" yaml:"nodes"`
	Inputs      []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	DisabledFor []string `json:"disabled_for,omitempty" yaml:"disabled_for,omitempty"`
}

func newScaffoldListCommand(c *cli) *cobra.Command {
	var format, selection string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List scaffolds",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			var views []scaffoldView
			for _, s := range app.Scaffolds.Scaffolds().All() {
				if selection != "" && !s.EnabledFor(projectPath(app, selection)) {
					continue
				}
				v := scaffoldView{
					Name:        s.Name,
					Enabled:     s.Enabled,
					Dynamic:     s.Dynamic,
					DisabledFor: s.DisabledFor(),
				}
				_ = s.Root.Walk(func(n *scaffold.Node) error {
					if !n.IsRoot() {
						v.Nodes++
					}
					return nil
				})
				for _, f := range s.Schema {
					v.Inputs = append(v.Inputs, f.Name)
				}
				views = append(views, v)
			}

			out := cmd.OutOrStdout()
			if format != "table" {
				if views == nil {
					views = []scaffoldView{}
				}
				return writeStructured(out, format, views)
			}
			if len(views) == 0 {
				fmt.Fprintln(out, "No scaffolds available.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTATUS\tNODES\tINPUTS")
			for _, v := range views {
				status := "enabled"
				switch {
				case !v.Enabled:
					status = "disabled"
				case len(v.DisabledFor) > 0:
					status = "disabled for " + strings.Join(v.DisabledFor, ",")
				}
				nodes := fmt.Sprint(v.Nodes)
				if v.Dynamic {
					nodes = "dynamic"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Name, status, nodes, strings.Join(v.Inputs, ","))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json, yaml)")
	cmd.Flags().StringVar(&selection, "selection", "", "only scaffolds enabled for this directory")
	return cmd
}

func newScaffoldAddCommand(c *cli) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a scaffold from a YAML definition",
		Long: `Add a scaffold from a YAML definition holding its schema and tree.
Template and input paths in the definition are project paths; they are
stored as references so the scaffold survives moves.

  schema:
    - {name: name, required: true}
  tree:
    - directory: "{{Input.name}}"
      children:
        - file: main.go
          template: templates/main.go.tmpl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if from == "" {
				return stencilerrors.NullArgument("--from")
			}
			app, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			data, err := os.ReadFile(from)
			if err != nil {
				return fmt.Errorf("failed to read scaffold definition: %w", err)
			}
			s := scaffold.New(args[0])
			if err := yaml.Unmarshal(data, s); err != nil {
				return fmt.Errorf("failed to parse scaffold definition: %w", err)
			}
			s.Name = args[0]
			if err := resolveScaffoldRefs(ctx, app, s); err != nil {
				return err
			}

			if err := app.Scaffolds.Add(ctx, s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s added scaffold %s\n", successMark, boldText(s.Name))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "YAML definition file")
	return cmd
}

// resolveScaffoldRefs replaces the project paths of a fresh definition with
// asset references.
func resolveScaffoldRefs(ctx context.Context, app *di.App, s *scaffold.Scaffold) error {
	if s.StructureTemplate != "" {
		ref, err := indexRef(ctx, app, s.StructureTemplate)
		if err != nil {
			return err
		}
		s.StructureTemplate = ref
	}
	return s.Root.Walk(func(n *scaffold.Node) error {
		if !n.IsFile() {
			return nil
		}
		if n.Template() != "" {
			ref, err := indexRef(ctx, app, n.Template())
			if err != nil {
				return err
			}
			n.SetTemplate(ref)
		}
		for name, p := range n.Inputs() {
			ref, err := indexRef(ctx, app, p)
			if err != nil {
				return err
			}
			n.SetInput(name, ref)
		}
		return nil
	})
}

func newScaffoldRemoveCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a scaffold",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Scaffolds.Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed scaffold %s\n", successMark, args[0])
			return nil
		},
	}
}

func newScaffoldEnableCommand(c *cli, enable bool) *cobra.Command {
	use, short := "disable", "Hide a scaffold everywhere or for one directory"
	if enable {
		use, short = "enable", "Offer a scaffold again everywhere or for one directory"
	}

	return &cobra.Command{
		Use:   use + " <scaffold> [directory]",
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			selection, where := "", "everywhere"
			if len(args) == 2 {
				selection = projectPath(app, args[1])
				where = "for " + selection
			}
			if enable {
				err = app.Scaffolds.EnableForSelection(ctx, args[0], selection)
			} else {
				err = app.Scaffolds.DisableForSelection(ctx, args[0], selection)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %sd %s %s\n", successMark, use, args[0], where)
			return nil
		},
	}
}
