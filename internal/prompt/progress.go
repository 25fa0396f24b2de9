package prompt

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
)

// BarProgress draws a single-line progress bar, redrawn in place.
type BarProgress struct {
	mu      sync.Mutex
	out     io.Writer
	bar     progress.Model
	visible bool
}

// NewBarProgress writes to out, or stderr when out is nil.
func NewBarProgress(out io.Writer) *BarProgress {
	if out == nil {
		out = os.Stderr
	}
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 30
	return &BarProgress{out: out, bar: bar}
}

// Show implements Progress. fraction is clamped to [0, 1].
func (p *BarProgress) Show(title, label string, fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\r\033[K%s %s %3.0f%% %s",
		titleStyle.Render(title), p.bar.ViewAs(fraction), fraction*100, hintStyle.Render(label))
	p.visible = true
}

// Clear implements Progress.
func (p *BarProgress) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.visible {
		return
	}
	fmt.Fprint(p.out, "\r\033[K")
	p.visible = false
}
