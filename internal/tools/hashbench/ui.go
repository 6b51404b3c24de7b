package hashbench

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sandeepkv93/credential-session-core/internal/security"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	rowStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	overStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	verdictStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114"))
	errStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
)

type sampleMsg sample

type errMsg struct{ err error }

type doneMsg struct{}

type model struct {
	opts        *options
	samples     []sample
	recommended int
	next        int
	done        bool
	err         error
}

func newModel(opts *options) model {
	start := opts.start
	if start < security.MinIterations {
		start = security.MinIterations
	}
	return model{opts: opts, next: start, recommended: start}
}

func (m model) Init() tea.Cmd {
	return measureCmd(m.next)
}

func measureCmd(iterations int) tea.Cmd {
	return func() tea.Msg {
		s, err := measure(iterations)
		if err != nil {
			return errMsg{err: err}
		}
		return sampleMsg(s)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case errMsg:
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case sampleMsg:
		s := sample(msg)
		m.samples = append(m.samples, s)
		if s.duration >= m.opts.target || s.iterations >= security.MaxIterations/2 {
			m.done = true
			return m, func() tea.Msg { return doneMsg{} }
		}
		m.recommended = s.iterations
		m.next = s.iterations * 2
		return m, measureCmd(m.next)
	case doneMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("hashbench"))
	b.WriteString(fmt.Sprintf("  target %s\n\n", m.opts.target))

	for _, s := range m.samples {
		line := fmt.Sprintf("%9d iterations  %8s", s.iterations, s.duration.Round(time.Millisecond))
		if s.duration >= m.opts.target {
			b.WriteString(overStyle.Render(line))
		} else {
			b.WriteString(rowStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(fmt.Sprintf("benchmark failed: %v", m.err)))
		b.WriteString("\n")
		return b.String()
	}
	if m.done {
		b.WriteString("\n")
		b.WriteString(verdictStyle.Render(fmt.Sprintf("recommended KDF_ITERATIONS=%d", m.recommended)))
		b.WriteString("\n")
	} else {
		b.WriteString(rowStyle.Render(fmt.Sprintf("\nprobing %d iterations... (q to quit)\n", m.next)))
	}
	return b.String()
}
