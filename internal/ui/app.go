package ui

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/perkdesk/perkdesk/internal/loyalty"
	"github.com/perkdesk/perkdesk/internal/prefs"
	"github.com/perkdesk/perkdesk/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewCustomers View = iota
	ViewActivity
)

// Options configures the UI.
type Options struct {
	Context   context.Context
	Service   loyalty.Service
	Store     *state.Store
	PollTick  time.Duration
	ThemeName string
	PrefsPath string
	// LogPath is the proxy log shown in the activity view. Empty hides it.
	LogPath string
	// DefaultPassword is tried when the gate is submitted empty.
	DefaultPassword string
	// Endpoint is shown in the header.
	Endpoint string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx             context.Context
	service         loyalty.Service
	store           *state.Store
	prefsPath       string
	logPath         string
	endpoint        string
	defaultPassword string
	pollTick        time.Duration
	keys            keyMap

	// UI state
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool
	help        help.Model
	spinner     spinner.Model

	// Password gate
	authed   bool
	gate     textinput.Model
	gateBusy bool
	gateErr  string

	// Customers
	snapshot  state.Snapshot
	selected  int
	search    textinput.Model
	searching bool
	searchSeq int
	listBusy  bool

	// Mutations
	modal Modal
	busy  bool

	// Activity
	activity       viewport.Model
	activityFollow bool
	activityErr    string

	toast    toast
	toastSeq int
	now      func() time.Time
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = DefaultUIInterval
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = prefs.DefaultTheme()
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	store := opts.Store
	if store == nil {
		store = &state.Store{}
	}

	gate := textinput.New()
	gate.Placeholder = "Enter password"
	gate.EchoMode = textinput.EchoPassword
	gate.EchoCharacter = '•'
	gate.Width = 32
	gate.Focus()

	search := textinput.New()
	search.Placeholder = "Search by name, email or phone"
	search.Prompt = "/ "
	search.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:             ctx,
		service:         opts.Service,
		store:           store,
		prefsPath:       prefsPath,
		logPath:         opts.LogPath,
		endpoint:        opts.Endpoint,
		defaultPassword: strings.TrimSpace(opts.DefaultPassword),
		pollTick:        pollTick,
		keys:            DefaultKeyMap(),
		theme:           GetTheme(themeName),
		currentView:     ViewCustomers,
		help:            help.New(),
		spinner:         sp,
		gate:            gate,
		search:          search,
		activityFollow:  true,
		now:             time.Now,
	}

	if cached := store.Credential(); cached != "" {
		m.authed = true
	} else if cached := prefs.CachedCredential(prefsPath); cached != "" {
		store.SetCredential(cached)
		m.authed = true
	}
	m.snapshot = store.Snapshot()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.pollTick),
		m.spinner.Tick,
		textinput.Blink,
	}
	if m.authed {
		cmds = append(cmds, m.listCmd(m.store.Query(), m.store.Credential()))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.activity = viewport.New(msg.Width, m.contentHeight())
		}
		m.ready = true
		m.help.Width = msg.Width
		m.activity.Width = msg.Width
		m.activity.Height = m.contentHeight()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.clampSelection()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case authResultMsg:
		return m.handleAuthResult(msg)

	case searchDebounceMsg:
		if msg.seq != m.searchSeq {
			return m, nil
		}
		query := strings.TrimSpace(m.search.Value())
		m.store.SetQuery(query)
		m.selected = 0
		cmd := m.listCmd(query, m.store.Credential())
		return m, cmd

	case listResultMsg:
		m.listBusy = false
		if msg.err != nil && isAuthError(msg.err) {
			return m.logout(msg.err.Error())
		}
		m.store.Update(msg.query, msg.customers, msg.err)
		m.snapshot = m.store.Snapshot()
		m.clampSelection()
		return m, nil

	case upsertRequestMsg:
		return m.startMutation(mutationUpsert, func(ctx context.Context, cred string) (loyalty.Customer, error) {
			return m.service.AddOrUpdate(ctx, msg.input, cred)
		}, 0)

	case spendRequestMsg:
		return m.startMutation(mutationSpend, func(ctx context.Context, cred string) (loyalty.Customer, error) {
			return m.service.ApplySpend(ctx, msg.id, msg.amount, cred)
		}, msg.amount)

	case resetRequestMsg:
		return m.startMutation(mutationReset, func(ctx context.Context, cred string) (loyalty.Customer, error) {
			return m.service.ResetReward(ctx, msg.id, cred)
		}, 0)

	case mutationResultMsg:
		return m.handleMutationResult(msg)

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = toast{}
		}
		return m, nil

	case activityMsg:
		m.handleActivity(msg)
		return m, nil
	}

	cmd := m.forwardToInput(msg)
	return m, cmd
}

// forwardToInput passes non-key messages (cursor blink) to the focused input.
func (m *Model) forwardToInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case !m.authed:
		m.gate, cmd = m.gate.Update(msg)
	case m.modal != nil:
		var done bool
		m.modal, cmd, done = m.modal.Update(msg, m.keys)
		if done {
			m.modal = nil
		}
	case m.searching:
		m.search, cmd = m.search.Update(msg)
	}
	return cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if !m.authed {
		return m.renderGate()
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if !m.authed {
		return m.handleGateKey(msg)
	}

	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if m.modal != nil {
		if m.busy {
			return m, nil
		}
		modal, cmd, done := m.modal.Update(msg, m.keys)
		m.modal = modal
		if done {
			m.modal = nil
		}
		return m, cmd
	}

	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		if m.prefsPath != "" {
			p, _ := prefs.Load(m.prefsPath)
			p.Theme = m.theme.Name
			_ = prefs.Save(m.prefsPath, p)
		}
		return m, nil

	case key.Matches(msg, m.keys.Logout):
		return m.logout("")

	case key.Matches(msg, m.keys.Tab):
		if m.currentView == ViewCustomers {
			m.currentView = ViewActivity
			return m, m.activityCmd()
		}
		m.currentView = ViewCustomers
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.currentView = ViewCustomers
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		cmd := m.listCmd(m.store.Query(), m.store.Credential())
		return m, cmd
	}

	switch m.currentView {
	case ViewCustomers:
		return m.handleCustomersKey(msg)
	case ViewActivity:
		return m.handleActivityKey(msg)
	}
	return m, nil
}

// handleTick processes the refresh tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{fetchSnapshotCmd(m.store)}
	if m.currentView == ViewActivity && m.activityFollow {
		if cmd := m.activityCmd(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	cmds = append(cmds, tickCmd(m.pollTick))
	return m, tea.Batch(cmds...)
}

// logout forgets the credential and returns to the gate. reason, when set, is
// shown under the password field.
func (m Model) logout(reason string) (tea.Model, tea.Cmd) {
	prefs.ClearCredential(m.prefsPath)
	m.store.Reset()
	m.snapshot = m.store.Snapshot()
	m.authed = false
	m.gateBusy = false
	m.gateErr = reason
	m.modal = nil
	m.busy = false
	m.searching = false
	m.search.SetValue("")
	m.search.Blur()
	m.selected = 0
	m.currentView = ViewCustomers
	m.gate.SetValue("")
	m.gate.Focus()
	return m, textinput.Blink
}

// contentHeight is the space left below the header and above the footer.
func (m Model) contentHeight() int {
	return maxInt(m.height-4, 1)
}

// isAuthError reports whether err means the password was rejected.
func isAuthError(err error) bool {
	var apiErr *loyalty.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type searchDebounceMsg struct{ seq int }

type listResultMsg struct {
	query     string
	customers []loyalty.Customer
	err       error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func (m *Model) listCmd(query, credential string) tea.Cmd {
	if m.service == nil || credential == "" {
		return nil
	}
	m.listBusy = true
	ctx, service := m.ctx, m.service
	return func() tea.Msg {
		reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
		customers, err := service.ListCustomers(reqCtx, query, credential)
		return listResultMsg{query: query, customers: customers, err: err}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
