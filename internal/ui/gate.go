package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/perkdesk/perkdesk/internal/loyalty"
	"github.com/perkdesk/perkdesk/internal/prefs"
)

const msgPasswordRequired = "Password is required"

type authResultMsg struct {
	password  string
	customers []loyalty.Customer
	err       error
}

func (m Model) handleGateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.gateBusy {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Confirm):
		// Sent verbatim: the backend compares the credential byte for byte.
		password := m.gate.Value()
		if password == "" {
			password = m.defaultPassword
		}
		if password == "" {
			m.gateErr = msgPasswordRequired
			return m, nil
		}
		m.gateBusy = true
		m.gateErr = ""
		return m, m.authCmd(password)
	case key.Matches(msg, m.keys.Escape):
		m.gate.SetValue("")
		m.gateErr = ""
		return m, nil
	}
	var cmd tea.Cmd
	m.gate, cmd = m.gate.Update(msg)
	return m, cmd
}

// authCmd validates password with an unfiltered listing, which doubles as
// the initial load.
func (m Model) authCmd(password string) tea.Cmd {
	ctx, service := m.ctx, m.service
	return func() tea.Msg {
		if service == nil {
			return authResultMsg{password: password, err: errNoService}
		}
		reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
		customers, err := service.ListCustomers(reqCtx, "", password)
		return authResultMsg{password: password, customers: customers, err: err}
	}
}

func (m Model) handleAuthResult(msg authResultMsg) (tea.Model, tea.Cmd) {
	m.gateBusy = false
	if msg.err != nil {
		m.gateErr = errorText(msg.err, "Login failed")
		return m, nil
	}
	prefs.SaveCredential(m.prefsPath, msg.password)
	m.store.SetCredential(msg.password)
	m.store.SetQuery("")
	m.store.Update("", msg.customers, nil)
	m.snapshot = m.store.Snapshot()
	m.authed = true
	m.gateErr = ""
	m.gate.SetValue("")
	m.gate.Blur()
	m.selected = 0
	return m, nil
}

func (m Model) renderGate() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Logo.Render("perkdesk"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("Loyalty console"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render("Store Password"))
	b.WriteString("\n")
	b.WriteString(m.gate.View())
	b.WriteString("\n")
	if m.gateBusy {
		b.WriteString("\n")
		b.WriteString(styles.MutedText.Render(m.spinner.View() + " Checking…"))
	}
	if m.gateErr != "" {
		b.WriteString("\n")
		b.WriteString(styles.DangerText.Render(m.gateErr))
	}
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("All actions require a valid password."))

	box := styles.Modal.Width(44).Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
