package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nohands.dev/go/nohands/internal/logging"
)

// logsViewMax bounds the entries kept by the viewer
const logsViewMax = 2000

var logsLevels = map[string]string{
	"1": "",
	"2": "debug",
	"3": "info",
	"4": "warn",
	"5": "error",
}

type logsModel struct {
	fetch fetchLogs
	query logging.Query

	entries []logging.Entry
	last    time.Time
	gen     int
	err     error

	viewport viewport.Model
	width    int
	ready    bool
	tail     bool
}

type logsLoadedMsg struct {
	gen     int
	reset   bool
	entries []logging.Entry
	err     error
}

type logsTickMsg time.Time

func newLogsModel(fetch fetchLogs, q logging.Query) logsModel {
	return logsModel{fetch: fetch, query: q, tail: true}
}

func (m logsModel) Init() tea.Cmd {
	return tea.Batch(m.load(true), logsTick())
}

// load queries the instance; a non-reset load only asks for entries after
// the newest one shown
func (m logsModel) load(reset bool) tea.Cmd {
	q := m.query
	if !reset && !m.last.IsZero() {
		q.Since = m.last
		q.Limit = 0
	}
	fetch, gen := m.fetch, m.gen
	return func() tea.Msg {
		entries, err := fetch(context.Background(), q)
		return logsLoadedMsg{gen: gen, reset: reset, entries: entries, err: err}
	}
}

func logsTick() tea.Cmd {
	return tea.Tick(logsPollInterval, func(t time.Time) tea.Msg { return logsTickMsg(t) })
}

func (m logsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight, footerHeight := 2, 2
		m.width = msg.Width
		m.viewport = viewport.New(msg.Width, max(msg.Height-headerHeight-footerHeight, 1))
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.gen++
			return m, m.load(true)
		case "1", "2", "3", "4", "5":
			m.query.Level = logsLevels[key]
			m.gen++
			return m, m.load(true)
		case "G", "end":
			m.tail = true
			m.viewport.GotoBottom()
			return m, nil
		case "g", "home":
			m.tail = false
			m.viewport.GotoTop()
			return m, nil
		}

	case logsTickMsg:
		return m, tea.Batch(m.load(false), logsTick())

	case logsLoadedMsg:
		if msg.gen == m.gen {
			m.merge(msg)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.tail = m.viewport.AtBottom()
	return m, cmd
}

func (m *logsModel) merge(msg logsLoadedMsg) {
	m.err = msg.err
	if msg.err != nil {
		return
	}

	if msg.reset {
		m.entries = nil
		m.last = time.Time{}
	}
	for _, e := range msg.entries {
		if !msg.reset && !e.Timestamp.After(m.last) {
			continue
		}
		m.entries = append(m.entries, e)
		if e.Timestamp.After(m.last) {
			m.last = e.Timestamp
		}
	}
	if n := len(m.entries); n > logsViewMax {
		m.entries = m.entries[n-logsViewMax:]
	}
	m.refresh()
}

func (m *logsModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderEntries())
	if m.tail {
		m.viewport.GotoBottom()
	}
}

func (m logsModel) renderEntries() string {
	if len(m.entries) == 0 {
		return dimStyle.Render("No log entries")
	}
	lines := make([]string, len(m.entries))
	for i, e := range m.entries {
		lines[i] = formatEntry(e)
	}
	return strings.Join(lines, "\n")
}

func (m logsModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("[↑↓] Scroll  [1-5] Level  [g/G] Top/Tail  [r] Reload  [q] Quit"))
	return b.String()
}

func (m logsModel) renderHeader() string {
	level := "ALL"
	if m.query.Level != "" {
		level = strings.ToUpper(m.query.Level)
	}

	header := lipgloss.NewStyle().Bold(true).Render("nohands logs") + "  "
	header += lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Render(fmt.Sprintf("Level: [%s]", level))
	header += "  " + warnStyle.Render(fmt.Sprintf("(%d entries)", len(m.entries)))
	if m.tail {
		header += "  " + okStyle.Render("following")
	}
	if m.err != nil {
		header += "  " + errStyle.Render(m.err.Error())
	}
	return header
}

func runLogsViewer(fetch fetchLogs, q logging.Query) error {
	p := tea.NewProgram(newLogsModel(fetch, q), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
