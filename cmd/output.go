package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	stencilerrors "github.com/conneroisu/stencil/internal/errors"
)

var (
	successMark = color.New(color.FgGreen).Sprint("✓")
	skipMark    = color.New(color.FgYellow).Sprint("-")
	failMark    = color.New(color.FgRed).Sprint("✗")
	dimText     = color.New(color.Faint).SprintFunc()
	boldText    = color.New(color.Bold).SprintFunc()
)

// errorText formats an error for the terminal, with hints for contract
// violations.
func errorText(err error) string {
	prefix := "error:"
	if stencilerrors.IsContractError(err) {
		prefix = "invalid request:"
	}
	title := color.New(color.FgRed).Sprint(prefix) + " " + err.Error()
	return stencilerrors.FormatSuggestions(title, stencilerrors.Suggest(err))
}

// writeStructured writes v as json or yaml.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", format)
	}
}
