// Package prompt holds the interactive collaborators of the engines and
// their terminal implementations: a yes/no confirmation dialog, a progress
// reporter, an input form and an overwrite menu.
package prompt

import (
	"context"
	"errors"
)

// ErrCancelled is returned when the user aborts an interactive step.
var ErrCancelled = errors.New("cancelled")

// Progress reports the advance of a batch operation.
type Progress interface {
	Show(title, label string, fraction float64)
	Clear()
}

// Dialog asks a yes/no question.
type Dialog interface {
	Prompt(title, message string) bool
}

// Field describes one value an input form collects.
type Field struct {
	Name        string
	Label       string
	Default     string
	Description string
	Required    bool
}

// InputCollector gathers a set of named values. It returns ErrCancelled when
// the user aborts or ctx is done.
type InputCollector interface {
	Collect(ctx context.Context, title string, fields []Field) (map[string]interface{}, error)
}

// Decision is the answer to one overwrite question.
type Decision int

const (
	DecisionOverwrite Decision = iota
	DecisionSkip
	DecisionOverwriteAll
	DecisionSkipAll
)

// OverwriteResolver asks what to do with a path that already exists.
type OverwriteResolver interface {
	Resolve(ctx context.Context, path string) (Decision, error)
}

// NopProgress discards progress updates.
type NopProgress struct{}

func (NopProgress) Show(string, string, float64) {}
func (NopProgress) Clear()                       {}

// StaticDialog answers every question with the same value.
type StaticDialog bool

// Prompt implements Dialog.
func (d StaticDialog) Prompt(string, string) bool { return bool(d) }
