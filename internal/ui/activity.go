package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/perkdesk/perkdesk/internal/logtail"
)

type activityMsg struct {
	entries []logtail.Entry
	err     error
}

// activityCmd reads the tail of the proxy log.
func (m Model) activityCmd() tea.Cmd {
	path := m.logPath
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		lines, err := logtail.Read(path, ActivityLineLimit)
		if err != nil {
			return activityMsg{err: err}
		}
		return activityMsg{entries: logtail.ParseLines(lines)}
	}
}

func (m *Model) handleActivity(msg activityMsg) {
	if msg.err != nil {
		m.activityErr = msg.err.Error()
		return
	}
	m.activityErr = ""
	rendered := make([]string, 0, len(msg.entries))
	for _, e := range msg.entries {
		rendered = append(rendered, m.renderEntry(e))
	}
	m.activity.SetContent(strings.Join(rendered, "\n"))
	if m.activityFollow {
		m.activity.GotoBottom()
	}
}

func (m Model) handleActivityKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.activityFollow = !m.activityFollow
		if m.activityFollow {
			m.activity.GotoBottom()
		}
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.activityFollow = false
		m.activity.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.activity.GotoBottom()
		return m, nil
	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.PageUp):
		m.activityFollow = false
	}
	var cmd tea.Cmd
	m.activity, cmd = m.activity.Update(msg)
	return m, cmd
}

func (m Model) renderActivity() string {
	styles := m.theme.Styles()
	switch {
	case m.logPath == "":
		return styles.FaintText.Render("No proxy log configured (log_file)")
	case m.activityErr != "":
		return styles.DangerText.Render(m.activityErr)
	}
	return m.activity.View()
}

// renderEntry formats one proxy log record as a single line.
func (m Model) renderEntry(e logtail.Entry) string {
	styles := m.theme.Styles()
	if e.Level == "" {
		return styles.FaintText.Render(e.Message)
	}

	var parts []string
	if !e.Time.IsZero() {
		parts = append(parts, styles.FaintText.Render(e.Time.Local().Format("15:04:05")))
	}
	parts = append(parts, levelStyle(styles, e.Level).Render(padRight(e.Level, 5)))
	parts = append(parts, styles.Text.Render(e.Message))
	for _, f := range e.Fields {
		value := f.Value
		if strings.ContainsAny(value, " \t") {
			value = `"` + value + `"`
		}
		parts = append(parts, styles.MutedText.Render(f.Key+"=")+styles.InfoText.Render(value))
	}
	return strings.Join(parts, " ")
}

func levelStyle(styles Styles, level string) lipgloss.Style {
	switch level {
	case "ERROR":
		return styles.DangerText
	case "WARN":
		return styles.WarningText
	case "DEBUG":
		return styles.FaintText
	default:
		return styles.SuccessText
	}
}
