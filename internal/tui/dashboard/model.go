// Package dashboard is the terminal dashboard for a running gateway,
// polled over its HTTP API.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zapgate-ai/zapgate/internal/tui"
)

// ClientStatus is one tenant's session state as reported by the gateway.
type ClientStatus struct {
	TenantID string
	Status   string
}

// refreshMsg carries a fresh poll result.
type refreshMsg struct {
	clients []ClientStatus
	uptime  string
}

// errMsg reports a failed poll. The dashboard keeps the last good data.
type errMsg struct {
	err error
}

// tickMsg schedules the next poll.
type tickMsg time.Time

// Model is the root dashboard TUI model.
type Model struct {
	baseURL string
	fetch   func() (refreshMsg, error)

	clients   []ClientStatus
	uptime    string
	cursor    int
	lastErr   error
	refreshed time.Time

	width    int
	height   int
	quitting bool
}

// NewModel creates a dashboard model. fetch performs one poll round.
func NewModel(baseURL string, fetch func() (refreshMsg, error)) Model {
	return Model{baseURL: baseURL, fetch: fetch}
}

func (m Model) Init() tea.Cmd {
	return m.poll()
}

func (m Model) poll() tea.Cmd {
	return func() tea.Msg {
		res, err := m.fetch()
		if err != nil {
			return errMsg{err: err}
		}
		return res
	}
}

func tick() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("ctrl+c", "q"))):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, key.NewBinding(key.WithKeys("j", "down"))):
			if m.cursor < len(m.clients)-1 {
				m.cursor++
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("k", "up"))):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("g"))):
			m.cursor = 0
		case key.Matches(msg, key.NewBinding(key.WithKeys("G"))):
			m.cursor = max(0, len(m.clients)-1)
		case key.Matches(msg, key.NewBinding(key.WithKeys("r"))):
			return m, m.poll()
		}
		return m, nil

	case refreshMsg:
		m.clients = msg.clients
		m.uptime = msg.uptime
		m.lastErr = nil
		m.refreshed = time.Now()
		if m.cursor >= len(m.clients) {
			m.cursor = max(0, len(m.clients)-1)
		}
		return m, tick()

	case errMsg:
		m.lastErr = msg.err
		return m, tick()

	case tickMsg:
		return m, m.poll()
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(tui.Title.Render("zapgate") + "  " +
		tui.Dimmed.Render(m.baseURL) + "\n")

	if m.uptime != "" {
		b.WriteString(tui.Subtitle.Render("uptime") + " " + m.uptime + "\n")
	}
	if m.lastErr != nil {
		b.WriteString(tui.ErrorStyle.Render("poll failed: "+m.lastErr.Error()) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderClients())
	b.WriteString("\n" + tui.Help.Render("j/k move · r refresh · q quit"))
	return b.String()
}

func (m Model) renderClients() string {
	if len(m.clients) == 0 {
		return tui.Dimmed.Render("  No active sessions")
	}

	headerStyle := lipgloss.NewStyle().Foreground(tui.ColorSubtle).Bold(true)
	rows := fmt.Sprintf("  %-24s %s\n",
		headerStyle.Render("TENANT"),
		headerStyle.Render("STATE"),
	)

	for i, c := range m.clients {
		cursor := "  "
		if i == m.cursor {
			cursor = tui.Selected.Render("> ")
		}
		rows += fmt.Sprintf("%s%-24s %s\n", cursor, c.TenantID, stateColor(c.Status).Render(c.Status))
	}
	return rows
}

func stateColor(state string) lipgloss.Style {
	switch state {
	case "CONNECTED", "READY":
		return tui.Success
	case "ERROR", "AUTH_FAILED", "UNPAIRED":
		return tui.ErrorStyle
	default:
		return lipgloss.NewStyle().Foreground(tui.ColorWarning)
	}
}
