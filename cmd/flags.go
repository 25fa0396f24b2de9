package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/stencil/internal/asset"
	"github.com/conneroisu/stencil/internal/di"
	"github.com/conneroisu/stencil/internal/repository"
	"github.com/conneroisu/stencil/internal/scaffold"
)

// policyFlag is an OverwritePolicy usable as a flag. Unset means "use the
// configured default".
type policyFlag struct {
	policy scaffold.OverwritePolicy
	set    bool
}

var _ pflag.Value = (*policyFlag)(nil)

func (f *policyFlag) String() string {
	if !f.set {
		return ""
	}
	return f.policy.String()
}

func (f *policyFlag) Set(s string) error {
	policy, err := scaffold.ParseOverwritePolicy(s)
	if err != nil {
		return err
	}
	f.policy = policy
	f.set = true
	return nil
}

func (f *policyFlag) Type() string { return "policy" }

// or returns the flag value, or fallback when the flag was not given.
func (f *policyFlag) or(fallback scaffold.OverwritePolicy) scaffold.OverwritePolicy {
	if f.set {
		return f.policy
	}
	return fallback
}

// changesFlag is an asset.ChangeType mask given as a comma-separated list.
type changesFlag struct {
	mask asset.ChangeType
	set  bool
}

var _ pflag.Value = (*changesFlag)(nil)

func (f *changesFlag) String() string {
	if !f.set {
		return ""
	}
	return f.mask.String()
}

func (f *changesFlag) Set(s string) error {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	mask, ok := asset.ParseChangeTypes(names)
	if !ok {
		return fmt.Errorf("unknown change type in %q (use import, move, delete)", s)
	}
	f.mask = mask
	f.set = true
	return nil
}

func (f *changesFlag) Type() string { return "changes" }

// refOf returns the stable reference of a command-line path, importing it
// first when it exists but is not indexed yet. An empty path yields "".
func refOf(ctx context.Context, app *di.App, p string) (string, error) {
	if p == "" {
		return "", nil
	}
	return indexRef(ctx, app, projectPath(app, p))
}

func indexRef(ctx context.Context, app *di.App, rel string) (string, error) {
	if ref, ok := app.Repository.RefOf(rel); ok {
		return ref, nil
	}
	ref, err := app.Repository.Import(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("cannot use %s: %w", rel, err)
	}
	return ref, nil
}

// projectPath converts a path given on the command line to project-relative
// form.
func projectPath(app *di.App, p string) string {
	return repository.Relative(app.Config.Project.Root, absFromWorkdir(p))
}

// pathOf renders a reference for display.
func pathOf(app *di.App, ref string) string {
	if p, ok := app.Repository.PathOf(ref); ok {
		return p
	}
	return dimText("<missing " + ref + ">")
}

func absFromWorkdir(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	return repository.Resolve(wd, p)
}

// readValues loads a YAML mapping from file and applies key=value pairs on
// top. It returns nil when neither is given.
func readValues(file string, pairs []string) (map[string]interface{}, error) {
	if file == "" && len(pairs) == 0 {
		return nil, nil
	}

	values := map[string]interface{}{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse input file: %w", err)
		}
		if values == nil {
			values = map[string]interface{}{}
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", pair)
		}
		values[strings.TrimSpace(key)] = value
	}
	return values, nil
}
