package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stencil/internal/version"
)

func newVersionCommand(_ *cli) *cobra.Command {
	var format string
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Show the version, commit, build time, Go version and platform.

Examples:
  stencil version
  stencil version --short
  stencil version --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()
			switch format {
			case "text":
				if short {
					fmt.Fprintln(out, info.Short())
					return nil
				}
				fmt.Fprintf(out, "%s %s\n%s\n", boldText("stencil"), info.Short(), info.Detailed())
				return nil
			default:
				return writeStructured(out, format, info)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json, yaml)")
	cmd.Flags().BoolVar(&short, "short", false, "print the version only")
	return cmd
}
