package scaffold

import (
	"fmt"
	"math/rand"
	"strings"
)

// ErrorKind classifies a validation finding.
type ErrorKind int

const (
	// ErrFilename: an illegal, empty or duplicate rendered name.
	ErrFilename ErrorKind = iota
	// ErrTemplate: a missing, invalid or failing template.
	ErrTemplate
	// ErrOverwrite: the target already exists. Advisory only.
	ErrOverwrite
	// ErrUndefined: empty tree or directory, function conflicts, context
	// preparation failures.
	ErrUndefined
)

func (k ErrorKind) String() string {
	switch k {
	case ErrFilename:
		return "filename"
	case ErrTemplate:
		return "template"
	case ErrOverwrite:
		return "overwrite"
	case ErrUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// ScaffoldError is one finding of a validation run.
type ScaffoldError struct {
	Kind    ErrorKind
	Message string
	Path    string
	Cause   error

	// NodeKind is set on Overwrite errors to tell existing files from
	// existing directories.
	NodeKind NodeKind
}

func (e *ScaffoldError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ScaffoldError) Unwrap() error { return e.Cause }

// Blocking reports whether the error prevents generation.
func (e *ScaffoldError) Blocking() bool { return e.Kind != ErrOverwrite }

// ValidationErrors is the flat result of a validation run.
type ValidationErrors []*ScaffoldError

// Blocking returns the errors that prevent generation.
func (v ValidationErrors) Blocking() ValidationErrors {
	var out ValidationErrors
	for _, e := range v {
		if e.Blocking() {
			out = append(out, e)
		}
	}
	return out
}

// OverwritePaths returns the paths of the advisory Overwrite errors in
// discovery order.
func (v ValidationErrors) OverwritePaths() []string {
	var out []string
	for _, e := range v {
		if e.Kind == ErrOverwrite {
			out = append(out, e.Path)
		}
	}
	return out
}

// OverwriteFiles returns the Overwrite paths that belong to file nodes.
// Existing directories are merged and never need a decision.
func (v ValidationErrors) OverwriteFiles() []string {
	var out []string
	for _, e := range v {
		if e.Kind == ErrOverwrite && e.NodeKind == KindFile {
			out = append(out, e.Path)
		}
	}
	return out
}

// OfKind filters by kind.
func (v ValidationErrors) OfKind(kind ErrorKind) ValidationErrors {
	var out ValidationErrors
	for _, e := range v {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// ValidationContext is the state shared by the phases of one validate or
// generate call.
type ValidationContext struct {
	RootPath  string
	Seed      int64
	Input     interface{}
	Selection interface{}

	path   []string
	errors ValidationErrors
}

// NewValidationContext creates a context with a fresh random seed.
func NewValidationContext(rootPath string, input, selection interface{}) *ValidationContext {
	return &ValidationContext{
		RootPath:  rootPath,
		Seed:      rand.Int63(),
		Input:     input,
		Selection: selection,
	}
}

// CurrentPath joins the root path with the names pushed so far.
func (c *ValidationContext) CurrentPath() string {
	if len(c.path) == 0 {
		return c.RootPath
	}
	parts := append([]string{c.RootPath}, c.path...)
	return joinPath(parts...)
}

func (c *ValidationContext) push(name string) { c.path = append(c.path, name) }
func (c *ValidationContext) pop()             { c.path = c.path[:len(c.path)-1] }

func (c *ValidationContext) add(kind ErrorKind, path, message string, cause error) {
	c.errors = append(c.errors, &ScaffoldError{Kind: kind, Message: message, Path: path, Cause: cause})
}

// Errors returns the accumulated findings.
func (c *ValidationContext) Errors() ValidationErrors {
	return c.errors
}
