package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/perkdesk/perkdesk/internal/loyalty"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
	// WithError shows message inside the modal after a failed submit.
	WithError(message string) Modal
}

// Requests emitted by modals; the model turns them into backend calls.
type (
	upsertRequestMsg struct{ input loyalty.CustomerInput }
	spendRequestMsg  struct {
		id     string
		amount float64
	}
	resetRequestMsg struct{ id string }
)

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// customerForm adds a customer or edits an existing one.
type customerForm struct {
	title  string
	inputs [3]textinput.Model // name, email, phone
	focus  int
	err    string
}

func newCustomerForm(existing *loyalty.Customer) customerForm {
	f := customerForm{title: "Add customer"}
	placeholders := [3]string{"Name", "Email (optional)", "Phone (optional)"}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 120
		ti.Width = 36
		f.inputs[i] = ti
	}
	if existing != nil {
		f.title = "Edit customer"
		f.inputs[0].SetValue(existing.Name)
		f.inputs[1].SetValue(existing.Email)
		f.inputs[2].SetValue(existing.Phone)
	}
	f.inputs[0].Focus()
	return f
}

func (f customerForm) input() loyalty.CustomerInput {
	return loyalty.CustomerInput{
		Name:  f.inputs[0].Value(),
		Email: f.inputs[1].Value(),
		Phone: f.inputs[2].Value(),
	}
}

func (f customerForm) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(k, keys.Escape):
			return f, nil, true
		case key.Matches(k, keys.Submit):
			return f, emit(upsertRequestMsg{input: f.input()}), false
		case key.Matches(k, keys.Confirm):
			if f.focus == len(f.inputs)-1 {
				return f, emit(upsertRequestMsg{input: f.input()}), false
			}
			f.setFocus(f.focus + 1)
			return f, nil, false
		case key.Matches(k, keys.NextField):
			f.setFocus(f.focus + 1)
			return f, nil, false
		case key.Matches(k, keys.PrevField):
			f.setFocus(f.focus - 1)
			return f, nil, false
		}
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd, false
}

func (f *customerForm) setFocus(idx int) {
	n := len(f.inputs)
	idx = ((idx % n) + n) % n
	f.inputs[f.focus].Blur()
	f.focus = idx
	f.inputs[f.focus].Focus()
}

func (f customerForm) WithError(message string) Modal {
	f.err = message
	return f
}

func (f customerForm) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	labels := [3]string{"Name", "Email", "Phone"}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(f.title))
	b.WriteString("\n\n")
	for i, in := range f.inputs {
		label := styles.MutedText.Render(padRight(labels[i], 7))
		if i == f.focus {
			label = styles.AccentText.Render(padRight(labels[i], 7))
		}
		b.WriteString(label)
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	b.WriteString(renderModalError(styles, f.err))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("enter next/save · ctrl+s save · esc cancel"))
	return placeModal(theme, width, height, b.String())
}

// spendForm records a purchase amount for one customer.
type spendForm struct {
	customer loyalty.Customer
	amount   textinput.Model
	err      string
}

func newSpendForm(c loyalty.Customer) spendForm {
	ti := textinput.New()
	ti.Placeholder = "0.00"
	ti.Prompt = "$ "
	ti.CharLimit = 16
	ti.Width = 16
	ti.Focus()
	return spendForm{customer: c, amount: ti}
}

func (f spendForm) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(k, keys.Escape):
			return f, nil, true
		case key.Matches(k, keys.Confirm), key.Matches(k, keys.Submit):
			return f, emit(spendRequestMsg{id: f.customer.ID, amount: parseAmount(f.amount.Value())}), false
		}
	}
	var cmd tea.Cmd
	f.amount, cmd = f.amount.Update(msg)
	return f, cmd, false
}

func (f spendForm) WithError(message string) Modal {
	f.err = message
	return f
}

func (f spendForm) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	c := f.customer

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Apply spend"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render(c.Name))
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render(formatCurrency(c.Spend) + " / " + formatCurrency(c.Goal)))
	b.WriteString("\n")
	b.WriteString(f.amount.View())
	b.WriteString("\n")
	b.WriteString(renderModalError(styles, f.err))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("enter apply · esc cancel"))
	return placeModal(theme, width, height, b.String())
}

// resetConfirm asks before resetting a customer's reward progress.
type resetConfirm struct {
	customer loyalty.Customer
	err      string
}

func (r resetConfirm) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return r, nil, false
	}
	switch {
	case key.Matches(k, keys.Yes), key.Matches(k, keys.Confirm):
		return r, emit(resetRequestMsg{id: r.customer.ID}), false
	case key.Matches(k, keys.No), key.Matches(k, keys.Escape):
		return r, nil, true
	}
	return r, nil, false
}

func (r resetConfirm) WithError(message string) Modal {
	r.err = message
	return r
}

func (r resetConfirm) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(styles.WarningText.Bold(true).Render("Reset reward?"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(r.customer.Name))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render(formatCurrency(r.customer.Spend) + " / " + formatCurrency(r.customer.Goal)))
	b.WriteString("\n")
	b.WriteString(renderModalError(styles, r.err))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("y confirm · n cancel"))
	return placeModal(theme, width, height, b.String())
}

func renderModalError(styles Styles, message string) string {
	if message == "" {
		return ""
	}
	return "\n" + styles.DangerText.Render(message)
}

func placeModal(theme Theme, width, height int, content string) string {
	box := theme.Styles().Modal.Width(48).Render(content)
	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}
