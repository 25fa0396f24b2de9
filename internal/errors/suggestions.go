package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorSuggestion is one hint for fixing an error.
type ErrorSuggestion struct {
	Title   string
	Command string
}

// Suggest returns hints for the contract error in err's chain, keyed by its
// code. Other errors get none.
func Suggest(err error) []ErrorSuggestion {
	var se *StencilError
	if !errors.As(err, &se) || se.Type != ErrorTypeContract {
		return nil
	}

	switch se.Code {
	case ErrCodeNullArgument:
		return []ErrorSuggestion{{Title: "Pass the missing value; --help lists the required flags"}}
	case ErrCodeNotFound:
		return []ErrorSuggestion{
			{Title: "Check the id or name", Command: "stencil entry list"},
			{Title: "Scaffold names are listed by", Command: "stencil scaffold list"},
		}
	case ErrCodeDirectoryNotFound:
		return []ErrorSuggestion{{Title: "Create the directory inside the project root first"}}
	case ErrCodeInvalidOperation:
		return []ErrorSuggestion{
			{Title: "Run without --no-input to answer prompts"},
			{Title: "Re-enable a hidden scaffold", Command: "stencil scaffold enable <name> [directory]"},
		}
	}
	return nil
}

// FormatSuggestions renders suggestions below title.
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\nSuggestions:\n")
	for i, s := range suggestions {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s.Title)
		if s.Command != "" {
			fmt.Fprintf(&b, "     Run: %s\n", s.Command)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
