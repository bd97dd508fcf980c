package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/perkdesk/perkdesk/internal/loyalty"
)

var errNoService = errors.New("no backend client configured")

type mutation int

const (
	mutationUpsert mutation = iota
	mutationSpend
	mutationReset
)

// fallback is the toast shown when a failure carries no message.
func (k mutation) fallback() string {
	switch k {
	case mutationSpend:
		return "Failed to apply"
	case mutationReset:
		return "Failed to reset"
	default:
		return "Failed to add customer"
	}
}

type mutationResultMsg struct {
	kind     mutation
	amount   float64
	customer loyalty.Customer
	err      error
}

type toastKind int

const (
	toastSuccess toastKind = iota
	toastError
)

type toast struct {
	text string
	kind toastKind
}

type toastExpiredMsg struct{ seq int }

// startMutation runs call in the background with the session credential.
func (m Model) startMutation(kind mutation, call func(context.Context, string) (loyalty.Customer, error), amount float64) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	if m.service == nil {
		return m.showToast(toastError, errNoService.Error())
	}
	m.busy = true
	ctx, credential := m.ctx, m.store.Credential()
	return m, func() tea.Msg {
		reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
		customer, err := call(reqCtx, credential)
		return mutationResultMsg{kind: kind, amount: amount, customer: customer, err: err}
	}
}

func (m Model) handleMutationResult(msg mutationResultMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		if isAuthError(msg.err) {
			return m.logout(msg.err.Error())
		}
		text := errorText(msg.err, msg.kind.fallback())
		var verr *loyalty.ValidationError
		if m.modal != nil && errors.As(msg.err, &verr) {
			m.modal = m.modal.WithError(text)
			return m, nil
		}
		if m.modal != nil {
			m.modal = m.modal.WithError(text)
		}
		return m.showToast(toastError, text)
	}

	m.modal = nil
	m.store.Upsert(msg.customer)
	m.snapshot = m.store.Snapshot()
	m.selectID(msg.customer.ID)

	switch msg.kind {
	case mutationSpend:
		return m.showToast(toastSuccess, "Applied "+formatCurrency(msg.amount))
	case mutationReset:
		return m.showToast(toastSuccess, "Reward reset")
	default:
		return m.showToast(toastSuccess, "Customer added/updated")
	}
}

func (m Model) showToast(kind toastKind, text string) (tea.Model, tea.Cmd) {
	m.toastSeq++
	m.toast = toast{text: text, kind: kind}
	seq := m.toastSeq
	return m, tea.Tick(ToastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}

func (m Model) renderToast() string {
	if m.toast.text == "" {
		return ""
	}
	styles := m.theme.Styles()
	if m.toast.kind == toastError {
		return styles.DangerText.Render("✗ " + m.toast.text)
	}
	return styles.SuccessText.Render("✓ " + m.toast.text)
}

// errorText returns the message to show staff for err.
func errorText(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, loyalty.ErrNoData) {
		return fallback
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return fallback
	}
	return msg
}
