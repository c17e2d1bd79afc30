package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	tierStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var tableColumns = []table.Column{
	{Title: "SERVICE", Width: 18},
	{Title: "STATUS", Width: 10},
	{Title: "PID", Width: 8},
	{Title: "CPU%", Width: 7},
	{Title: "MEM(MB)", Width: 9},
}

type tickMsg time.Time

type pollMsg struct {
	result pollResult
	err    error
}

// Model is the bubbletea model driving mgmtctl's single screen: a
// service table plus the current energy tier, refreshed every
// pollInterval from a live mgmtd instance.
type Model struct {
	addr   string
	client *client
	table  table.Model

	idle idleView

	lastErr    error
	lastPolled time.Time
}

// NewModel constructs a Model that will poll mgmtd at addr.
//
// Params:
//   - addr: the daemon's host:port.
//
// Returns:
//   - Model: the constructed model, ready for tea.NewProgram.
func NewModel(addr string) Model {
	t := table.New(
		table.WithColumns(tableColumns),
		table.WithFocused(false),
		table.WithHeight(12),
	)
	return Model{addr: addr, client: newClient(addr), table: t}
}

// Init implements tea.Model, kicking off the first poll and the
// recurring tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.poll(), tickEvery())
}

// tickEvery returns a command that delivers a tickMsg every
// pollInterval.
//
// Returns:
//   - tea.Cmd: the recurring tick command.
func tickEvery() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// poll returns a command that polls mgmtd once and delivers the result
// as a pollMsg.
//
// Returns:
//   - tea.Cmd: the one-shot poll command.
func (m Model) poll() tea.Cmd {
	return func() tea.Msg {
		result, err := m.client.poll(context.Background())
		return pollMsg{result: result, err: err}
	}
}

// Update implements tea.Model, handling key presses, the poll tick, and
// poll results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.poll(), tickEvery())
	case pollMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.lastErr = nil
		m.idle = msg.result.idle
		m.table.SetRows(rowsFor(msg.result))
		m.lastPolled = time.Now()
		return m, nil
	}
	return m, nil
}

// rowsFor renders one table.Row per supervised service, joining its
// supervisor status with the monitor's latest per-service sample.
//
// Params:
//   - result: the latest poll result.
//
// Returns:
//   - []table.Row: one row per supervised service.
func rowsFor(result pollResult) []table.Row {
	rows := make([]table.Row, 0, len(result.services))
	for _, svc := range result.services {
		pid := "-"
		if svc.Runtime.PID != nil {
			pid = fmt.Sprintf("%d", *svc.Runtime.PID)
		}
		sample := result.power.Snapshot.Services[svc.Spec.ID]
		rows = append(rows, table.Row{
			svc.Spec.ID,
			svc.Runtime.Status,
			pid,
			fmt.Sprintf("%.1f", sample.CPUPct),
			fmt.Sprintf("%.1f", sample.MemoryMB),
		})
	}
	return rows
}

// View implements tea.Model, rendering the header, energy tier, any
// last poll error, and the service table.
func (m Model) View() string {
	var lines []string

	lines = append(lines, headerStyle.Render(fmt.Sprintf("mgmtd @ %s", m.addr)))
	lines = append(lines, fmt.Sprintf(
		"energy tier: %s   idle: %.0fs   polled: %s",
		tierStyle.Render(m.idle.Tier),
		m.idle.IdleSeconds,
		m.lastPolled.Format("15:04:05"),
	))
	lines = append(lines, "")

	if m.lastErr != nil {
		lines = append(lines, errStyle.Render(fmt.Sprintf("poll failed: %v", m.lastErr)), "")
	}

	lines = append(lines, m.table.View())
	lines = append(lines, "", dimStyle.Render("q / ctrl+c to quit"))

	return strings.Join(lines, "\n")
}
