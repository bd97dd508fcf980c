package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/perkdesk/perkdesk/internal/loyalty"
)

// handleCustomersKey processes keyboard input for the customer list.
func (m Model) handleCustomersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	count := len(m.snapshot.Customers)
	page := maxInt(m.listHeight()-1, 1)

	switch {
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		cmd := m.search.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Add):
		m.modal = newCustomerForm(nil)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.selected < count-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Top):
		m.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selected = maxInt(count-1, 0)
	case key.Matches(msg, m.keys.PageDown):
		m.selected = minInt(m.selected+page, maxInt(count-1, 0))
	case key.Matches(msg, m.keys.PageUp):
		m.selected = maxInt(m.selected-page, 0)
	}

	c, ok := m.selectedCustomer()
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Edit):
		m.modal = newCustomerForm(&c)
	case key.Matches(msg, m.keys.Spend):
		m.modal = newSpendForm(c)
	case key.Matches(msg, m.keys.Reset):
		m.modal = resetConfirm{customer: c}
	case key.Matches(msg, m.keys.QuickSpend):
		amount, _ := quickAmount(msg.String())
		return m.Update(spendRequestMsg{id: c.ID, amount: amount})
	}
	return m, nil
}

// handleSearchKey edits the search box. Every change restarts the debounce
// timer; only the last one fires a request.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Confirm):
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() == before {
		return m, cmd
	}
	m.searchSeq++
	seq := m.searchSeq
	debounce := tea.Tick(SearchDebounce, func(time.Time) tea.Msg {
		return searchDebounceMsg{seq: seq}
	})
	return m, tea.Batch(cmd, debounce)
}

func (m Model) selectedCustomer() (loyalty.Customer, bool) {
	if m.selected < 0 || m.selected >= len(m.snapshot.Customers) {
		return loyalty.Customer{}, false
	}
	return m.snapshot.Customers[m.selected], true
}

func (m *Model) selectID(id string) {
	for i, c := range m.snapshot.Customers {
		if c.ID == id {
			m.selected = i
			return
		}
	}
}

func (m *Model) clampSelection() {
	if m.selected >= len(m.snapshot.Customers) {
		m.selected = len(m.snapshot.Customers) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// listHeight is the number of table rows that fit above the detail panel.
func (m Model) listHeight() int {
	return maxInt(m.contentHeight()-detailHeight-2, 3)
}

const detailHeight = 8

// renderMain renders header, active view and footer.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderSearchBar())
	b.WriteString("\n")
	switch m.currentView {
	case ViewActivity:
		b.WriteString(m.renderActivity())
	default:
		b.WriteString(m.renderCustomers())
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	snap := m.snapshot

	left := styles.Logo.Render("perkdesk")
	if m.endpoint != "" {
		left += " " + styles.FaintText.Render(m.endpoint)
	}

	var status string
	switch {
	case m.listBusy || m.busy:
		status = styles.InfoText.Render(m.spinner.View() + " working")
	case snap.IsOffline():
		status = styles.DangerText.Render("offline: " + errorText(snap.LastError, "unreachable"))
	case snap.LastError != nil:
		status = styles.WarningText.Render(errorText(snap.LastError, "refresh failed"))
	default:
		status = styles.MutedText.Render(fmt.Sprintf("%d customers · updated %s", len(snap.Customers), formatAgo(snap.LastUpdated, m.now())))
	}

	gap := maxInt(m.width-lipgloss.Width(left)-lipgloss.Width(status)-2, 1)
	return styles.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + status)
}

func (m Model) renderSearchBar() string {
	styles := m.theme.Styles()
	if m.currentView == ViewActivity {
		follow := "paused"
		if m.activityFollow {
			follow = "following"
		}
		return styles.AccentText.Render("Activity") + " " + styles.FaintText.Render(follow)
	}
	view := m.search.View()
	if !m.searching && m.search.Value() == "" {
		view = styles.FaintText.Render("/ search")
	}
	if toastText := m.renderToast(); toastText != "" {
		view += "   " + toastText
	}
	return view
}

func (m Model) renderFooter() string {
	return m.theme.Styles().Footer.Width(m.width).Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}

// customerColumns returns the visible columns for the terminal width.
func (m Model) customerColumns() []column {
	cols := []column{
		{title: "Name", width: 22},
	}
	if m.width >= LayoutCompactWidth {
		cols = append(cols,
			column{title: "Email", width: 26},
			column{title: "Phone", width: 14},
		)
	}
	cols = append(cols,
		column{title: "Spend", width: 11, right: true},
		column{title: "Progress", width: 18},
		column{title: "Visits", width: 6, right: true},
		column{title: "Rewards", width: 7, right: true},
	)
	if m.width >= LayoutLastVisitWidth {
		cols = append(cols, column{title: "Last visit", width: 22})
	}
	return cols
}

type column struct {
	title string
	width int
	right bool
}

func (c column) render(value string) string {
	if c.right {
		return padLeft(truncate(value, c.width), c.width)
	}
	return cell(value, c.width)
}

func (m Model) renderCustomers() string {
	styles := m.theme.Styles()
	snap := m.snapshot
	cols := m.customerColumns()

	var b strings.Builder
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.render(c.title)
	}
	b.WriteString(styles.MutedText.Bold(true).Render(strings.Join(headers, " ")))
	b.WriteString("\n")

	rows := m.listHeight()
	if len(snap.Customers) == 0 {
		msg := "No customers"
		if !snap.HasData {
			msg = "Loading customers…"
		} else if q := m.store.Query(); q != "" {
			msg = fmt.Sprintf("No customers match %q", q)
		}
		b.WriteString(styles.FaintText.Render(msg))
		b.WriteString(strings.Repeat("\n", rows))
		return b.String()
	}

	start := 0
	if m.selected >= rows {
		start = m.selected - rows + 1
	}
	end := minInt(start+rows, len(snap.Customers))
	for i := start; i < end; i++ {
		b.WriteString(m.renderCustomerRow(snap.Customers[i], cols, i == m.selected))
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat("\n", rows-(end-start)))

	if c, ok := m.selectedCustomer(); ok {
		b.WriteString(m.renderDetail(c))
	}
	return b.String()
}

func (m Model) renderCustomerRow(c loyalty.Customer, cols []column, selected bool) string {
	styles := m.theme.Styles()
	pct := c.Progress()
	values := make([]string, len(cols))
	for i, col := range cols {
		switch col.title {
		case "Name":
			values[i] = col.render(c.Name)
		case "Email":
			values[i] = col.render(orDash(c.Email))
		case "Phone":
			values[i] = col.render(orDash(c.Phone))
		case "Spend":
			values[i] = col.render(formatCurrency(c.Spend))
		case "Progress":
			values[i] = col.render(fmt.Sprintf("%s %3d%%", progressBar(pct, 12), pct))
		case "Visits":
			values[i] = col.render(fmt.Sprint(c.Visits))
		case "Rewards":
			values[i] = col.render(fmt.Sprint(c.TimesHit200))
		case "Last visit":
			values[i] = col.render(formatDate(c.ParsedLastVisit()))
		}
	}
	line := strings.Join(values, " ")
	if selected {
		return styles.Selected.Render(line)
	}
	if idx := progressColumn(cols); idx >= 0 {
		values[idx] = lipgloss.NewStyle().Foreground(styles.TierColor(progressTier(pct))).Render(values[idx])
		line = strings.Join(values, " ")
	}
	return styles.Text.Render(line)
}

func progressColumn(cols []column) int {
	for i, c := range cols {
		if c.title == "Progress" {
			return i
		}
	}
	return -1
}

func (m Model) renderDetail(c loyalty.Customer) string {
	styles := m.theme.Styles()
	pct := c.Progress()
	tier := progressTier(pct)

	title := styles.Text.Bold(true).Render(c.Name) + " " + styles.FaintText.Render("ID: "+c.ID)
	if c.GoalReached() {
		title += " " + styles.TierBadge(tierReached).Render("goal reached")
	}

	label := func(s string) string { return styles.MutedText.Render(padRight(s, 11)) }
	lines := []string{
		title,
		label("Progress") + lipgloss.NewStyle().Foreground(styles.TierColor(tier)).Render(progressBar(pct, 24)) +
			fmt.Sprintf(" %d%%  %s / %s", pct, formatCurrency(c.Spend), formatCurrency(c.Goal)),
		label("Contact") + orDash(c.Email) + "  " + orDash(c.Phone),
		label("Last visit") + formatDate(c.ParsedLastVisit()) + fmt.Sprintf("  (%d visits, %d rewards)", c.Visits, c.TimesHit200),
		label("Created") + formatDate(c.ParsedCreatedAt()) + "  " + styles.MutedText.Render("updated ") + formatDate(c.ParsedUpdatedAt()),
	}
	if c.Notes != "" {
		lines = append(lines, label("Notes")+truncate(c.Notes, maxInt(m.width-16, 10)))
	}
	return styles.Panel.Width(maxInt(m.width-2, 20)).Render(strings.Join(lines, "\n"))
}

// minInt returns the smaller of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
