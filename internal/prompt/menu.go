package prompt

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// OverwriteMenu asks about existing files with a keyboard-driven menu.
type OverwriteMenu struct {
	in  io.Reader
	out io.Writer
}

// NewOverwriteMenu runs the menu on the given streams. Nil streams mean the
// program's terminal.
func NewOverwriteMenu(in io.Reader, out io.Writer) *OverwriteMenu {
	return &OverwriteMenu{in: in, out: out}
}

// Resolve implements OverwriteResolver.
func (r *OverwriteMenu) Resolve(ctx context.Context, path string) (Decision, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if r.in != nil {
		opts = append(opts, tea.WithInput(r.in))
	}
	if r.out != nil {
		opts = append(opts, tea.WithOutput(r.out))
	}

	final, err := tea.NewProgram(newMenuModel(path), opts...).Run()
	if err != nil {
		if ctx.Err() != nil {
			return DecisionSkip, ErrCancelled
		}
		return DecisionSkip, fmt.Errorf("failed to show overwrite menu: %w", err)
	}

	result := final.(menuModel)
	if result.selected == nil {
		return DecisionSkip, ErrCancelled
	}
	return *result.selected, nil
}

type menuChoice struct {
	label    string
	decision Decision
}

var menuChoices = []menuChoice{
	{"Overwrite this file", DecisionOverwrite},
	{"Skip this file", DecisionSkip},
	{"Overwrite all existing files", DecisionOverwriteAll},
	{"Skip all existing files", DecisionSkipAll},
}

type menuModel struct {
	path     string
	cursor   int
	selected *Decision
}

func newMenuModel(path string) menuModel {
	return menuModel{path: path}
}

func (m menuModel) Init() tea.Cmd {
	return nil
}

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(menuChoices)-1 {
			m.cursor++
		}
	case "enter", " ":
		d := menuChoices[m.cursor].decision
		m.selected = &d
		return m, tea.Quit
	case "o":
		return m.pick(DecisionOverwrite)
	case "s":
		return m.pick(DecisionSkip)
	case "a":
		return m.pick(DecisionOverwriteAll)
	case "n":
		return m.pick(DecisionSkipAll)
	}
	return m, nil
}

func (m menuModel) pick(d Decision) (tea.Model, tea.Cmd) {
	m.selected = &d
	return m, tea.Quit
}

func (m menuModel) View() string {
	if m.selected != nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(warningStyle.Render("File already exists: ") + m.path + "\n\n")
	for i, c := range menuChoices {
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> "+c.label) + "\n")
		} else {
			b.WriteString("  " + c.label + "\n")
		}
	}
	b.WriteString("\n" + hintStyle.Render("up/down move, enter select, q cancel"))
	return b.String()
}

// String names the decision.
func (d Decision) String() string {
	switch d {
	case DecisionOverwrite:
		return "overwrite"
	case DecisionSkip:
		return "skip"
	case DecisionOverwriteAll:
		return "overwrite-all"
	case DecisionSkipAll:
		return "skip-all"
	default:
		return "unknown"
	}
}
