package cli

import (
	"fmt"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) failedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

// phaseMsg updates the displayed phase of a long-running run.
type phaseMsg string

// finishedMsg carries the final outcome of the run.
type finishedMsg struct {
	summary string
	err     error
}

// runnerModel is the bubbletea model for a spinner-backed run. The
// work happens in a goroutine that feeds updates through a channel.
type runnerModel struct {
	spinner  spinner.Model
	theme    Theme
	phase    string
	updates  <-chan tea.Msg
	summary  string
	done     bool
	quitting bool
	err      error
}

func newRunnerModel(initialPhase string, updates <-chan tea.Msg) runnerModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return runnerModel{
		spinner: sp,
		theme:   defaultTheme,
		phase:   initialPhase,
		updates: updates,
	}
}

// waitForUpdate relays the next message from the worker goroutine.
func (m runnerModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m runnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForUpdate())
}

func (m runnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case phaseMsg:
		m.phase = string(msg)
		return m, m.waitForUpdate()

	case finishedMsg:
		m.done = true
		m.summary = msg.summary
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m runnerModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m runnerModel) renderContent() string {
	if m.done {
		return m.finalView()
	}
	status := m.theme.statusStyle().Render(m.phase)
	return fmt.Sprintf("%s %s\n", m.spinner.View(), status)
}

func (m runnerModel) finalView() string {
	if m.err != nil {
		return m.theme.failedStyle().Render(fmt.Sprintf("✗ %s\n", m.err))
	}
	return m.theme.completedStyle().Render("✓ "+m.summary) + "\n"
}

// RunWithProgress displays a spinner while work runs in the
// background. The worker sends phaseMsg updates and exactly one
// finishedMsg through updates. Returns the worker's error, or nil if
// the user cancelled.
func RunWithProgress(initialPhase string, updates <-chan tea.Msg) error {
	p := tea.NewProgram(newRunnerModel(initialPhase, updates))

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(runnerModel); ok {
		if m.quitting {
			return nil
		}
		return m.err
	}

	return nil
}
