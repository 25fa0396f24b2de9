package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("white")).Bold(true)
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")).Bold(true)
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("red"))
)

// ConfirmDialog asks yes/no questions on a terminal. Anything but y or yes
// counts as no, including EOF.
type ConfirmDialog struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConfirmDialog reads answers from in and writes questions to out. Nil
// arguments default to stdin and stderr.
func NewConfirmDialog(in io.Reader, out io.Writer) *ConfirmDialog {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	return &ConfirmDialog{in: bufio.NewReader(in), out: out}
}

// Prompt implements Dialog.
func (d *ConfirmDialog) Prompt(title, message string) bool {
	fmt.Fprintln(d.out, titleStyle.Render(title))
	if message != "" {
		fmt.Fprintln(d.out, message)
	}
	fmt.Fprint(d.out, promptStyle.Render("Continue?")+" "+hintStyle.Render("[y/N]")+": ")

	answer, err := d.in.ReadString('\n')
	if err != nil && answer == "" {
		fmt.Fprintln(d.out)
		return false
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
