package prompt

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// FormCollector collects field values with a bubbletea text-input form.
type FormCollector struct {
	in  io.Reader
	out io.Writer
}

// NewFormCollector runs forms on the given streams. Nil streams mean the
// program's terminal.
func NewFormCollector(in io.Reader, out io.Writer) *FormCollector {
	return &FormCollector{in: in, out: out}
}

// Collect implements InputCollector.
func (c *FormCollector) Collect(ctx context.Context, title string, fields []Field) (map[string]interface{}, error) {
	if len(fields) == 0 {
		return map[string]interface{}{}, nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if c.in != nil {
		opts = append(opts, tea.WithInput(c.in))
	}
	if c.out != nil {
		opts = append(opts, tea.WithOutput(c.out))
	}

	final, err := tea.NewProgram(newFormModel(title, fields), opts...).Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("failed to run input form: %w", err)
	}

	result := final.(formModel)
	if result.cancelled {
		return nil, ErrCancelled
	}
	return result.values(), nil
}

type formModel struct {
	title     string
	fields    []Field
	inputs    []textinput.Model
	focus     int
	problem   string
	done      bool
	cancelled bool
}

func newFormModel(title string, fields []Field) formModel {
	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Placeholder = f.Default
		ti.SetValue(f.Default)
		ti.Prompt = "> "
		ti.CharLimit = 256
		if i == 0 {
			ti.Focus()
		}
		inputs[i] = ti
	}
	return formModel{title: title, fields: fields, inputs: inputs}
}

func (m formModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		case "tab", "down":
			return m.moveFocus(1), nil
		case "shift+tab", "up":
			return m.moveFocus(-1), nil
		case "enter":
			if m.focus < len(m.inputs)-1 {
				return m.moveFocus(1), nil
			}
			if missing := m.missing(); missing != "" {
				m.problem = missing + " is required"
				return m, nil
			}
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m formModel) moveFocus(delta int) formModel {
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.inputs)) % len(m.inputs)
	m.inputs[m.focus].Focus()
	m.problem = ""
	return m
}

func (m formModel) missing() string {
	for i, f := range m.fields {
		if f.Required && strings.TrimSpace(m.inputs[i].Value()) == "" {
			return labelOf(f)
		}
	}
	return ""
}

func (m formModel) values() map[string]interface{} {
	out := make(map[string]interface{}, len(m.fields))
	for i, f := range m.fields {
		out[f.Name] = m.inputs[i].Value()
	}
	return out
}

func (m formModel) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title) + "\n\n")
	for i, f := range m.fields {
		label := labelOf(f)
		if f.Required {
			label += "*"
		}
		if i == m.focus {
			label = selectedStyle.Render(label)
		}
		b.WriteString(label + "\n")
		if f.Description != "" {
			b.WriteString(hintStyle.Render(f.Description) + "\n")
		}
		b.WriteString(m.inputs[i].View() + "\n\n")
	}
	if m.problem != "" {
		b.WriteString(errorStyle.Render(m.problem) + "\n")
	}
	b.WriteString(hintStyle.Render("tab/shift+tab move, enter submit, esc cancel"))
	return b.String()
}

func labelOf(f Field) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}
