// Package tui provides a compact terminal monitor for a running plan,
// rendering live step progress from engine events.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agentide/conductor/internal/engine"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC857"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#96E6A1"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
)

// stepState is the display state of one step.
type stepState string

const (
	stepPending   stepState = "pending"
	stepRunning   stepState = "running"
	stepRetrying  stepState = "retrying"
	stepCompleted stepState = "completed"
	stepFailed    stepState = "failed"
	stepCancelled stepState = "cancelled"
)

// stepRow is one rendered step.
type stepRow struct {
	id      string
	state   stepState
	message string
}

// eventMsg wraps an engine event for the update loop.
type eventMsg engine.Event

// streamClosedMsg signals that the event stream has ended.
type streamClosedMsg struct{}

// Monitor is a bubbletea model rendering live plan progress.
type Monitor struct {
	events  <-chan engine.Event
	spinner spinner.Model

	planID    string
	steps     []*stepRow
	byID      map[string]*stepRow
	startedAt time.Time

	// final is the plan's terminal event type, empty while running.
	final    engine.EventType
	quitting bool
	width    int
}

// NewMonitor creates a Monitor over an engine event stream.
func NewMonitor(events <-chan engine.Event) *Monitor {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = runningStyle
	return &Monitor{
		events:    events,
		spinner:   s,
		byID:      make(map[string]*stepRow),
		startedAt: time.Now(),
		width:     80,
	}
}

// Run drives the monitor until the plan finishes or the user quits.
func Run(events <-chan engine.Event) error {
	_, err := tea.NewProgram(NewMonitor(events)).Run()
	return err
}

// Init implements tea.Model.
func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

// waitForEvent reads the next engine event off the stream.
func (m *Monitor) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Update implements tea.Model.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(engine.Event(msg))
		if m.final != "" {
			return m, tea.Quit
		}
		return m, m.waitForEvent()

	case streamClosedMsg:
		return m, tea.Quit
	}

	return m, nil
}

// apply folds one engine event into the display state.
func (m *Monitor) apply(ev engine.Event) {
	switch ev.Type {
	case engine.EventPlanStarted:
		m.planID = ev.PlanID
	case engine.EventPlanCompleted, engine.EventPlanFailed, engine.EventPlanCancelled:
		m.final = ev.Type
	case engine.EventStepStarted:
		m.step(ev.StepID).state = stepRunning
	case engine.EventStepCompleted:
		m.step(ev.StepID).state = stepCompleted
	case engine.EventStepRetrying:
		row := m.step(ev.StepID)
		row.state = stepRetrying
		row.message = ev.Message
	case engine.EventStepFailed:
		row := m.step(ev.StepID)
		row.state = stepFailed
		row.message = ev.Message
	case engine.EventStepCancelled:
		m.step(ev.StepID).state = stepCancelled
	}
}

// step returns the row for a step ID, creating it in arrival order.
func (m *Monitor) step(id string) *stepRow {
	if row, ok := m.byID[id]; ok {
		return row
	}
	row := &stepRow{id: id, state: stepPending}
	m.byID[id] = row
	m.steps = append(m.steps, row)
	return row
}

// View implements tea.Model.
func (m *Monitor) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := "conductor"
	if m.planID != "" {
		title = fmt.Sprintf("conductor  plan %s", shortID(m.planID))
	}
	b.WriteString(titleStyle.Render(title))
	if m.final == "" {
		b.WriteString("  " + m.spinner.View())
	}
	b.WriteString("\n\n")

	for _, row := range m.steps {
		b.WriteString("  " + m.renderStep(row) + "\n")
	}
	if len(m.steps) == 0 {
		b.WriteString(pendingStyle.Render("  waiting for steps...") + "\n")
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render(m.footer()))
	b.WriteString("\n")
	return b.String()
}

func (m *Monitor) renderStep(row *stepRow) string {
	line := fmt.Sprintf("%s %s", m.glyph(row.state), shortID(row.id))
	if row.message != "" {
		line += "  " + row.message
	}
	switch row.state {
	case stepRunning, stepRetrying:
		return runningStyle.Render(line)
	case stepCompleted:
		return completedStyle.Render(line)
	case stepFailed, stepCancelled:
		return failedStyle.Render(line)
	default:
		return pendingStyle.Render(line)
	}
}

func (m *Monitor) glyph(state stepState) string {
	switch state {
	case stepCompleted:
		return "✓"
	case stepFailed:
		return "✗"
	case stepCancelled:
		return "−"
	case stepRunning:
		return "▶"
	case stepRetrying:
		return "↻"
	default:
		return "·"
	}
}

func (m *Monitor) footer() string {
	elapsed := time.Since(m.startedAt).Round(time.Second)
	switch m.final {
	case engine.EventPlanCompleted:
		return fmt.Sprintf("completed in %s", elapsed)
	case engine.EventPlanFailed:
		return fmt.Sprintf("failed after %s", elapsed)
	case engine.EventPlanCancelled:
		return fmt.Sprintf("cancelled after %s", elapsed)
	default:
		return fmt.Sprintf("running %s  (q to quit)", elapsed)
	}
}

// shortID trims a UUID to its leading segment for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Done reports whether the plan reached a terminal state.
func (m *Monitor) Done() bool {
	return m.final != ""
}
