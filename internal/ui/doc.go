// Package ui implements the perkdesk terminal console using Bubble Tea.
//
// # Overview
//
// The console is what shop staff use at the counter: look a customer up,
// record a purchase, reset a reward once the goal is reached. It talks only to
// the perkdesk proxy, through loyalty.Service, and never stores customer data
// beyond the in-memory list held by state.Store.
//
// # Screens
//
//   - Password gate: shown until a password is accepted. A password is checked
//     by listing all customers with it; success caches it in the prefs file so
//     the next start skips the gate. An empty submission falls back to the
//     configured default password.
//   - Customers: searchable table with goal progress and a detail panel for
//     the selected row. Typing in the search box waits for a 300ms pause
//     before querying.
//   - Activity: the tail of the proxy log, re-read on every tick while
//     following.
//   - Modals: add/edit customer, apply spend, confirm reward reset.
//
// # Keyboard Shortcuts
//
//	/          Search            a   Add customer
//	e          Edit customer     s   Apply spend
//	1-5        Quick spend       r   Reset reward
//	tab        Customers/activity
//	T          Cycle theme       L   Log out
//	?          Help              q   Quit
//
// # Data Flow
//
// Backend calls run as tea.Cmds and report back as messages. Results from
// add/update, spend and reset are folded into the store with Upsert, which
// replaces the matching customer or prepends a new one. The background poller
// in package app keeps the list for the active query fresh; the model picks up
// the store snapshot on every tick.
//
// A 401 or 403 from any call drops the cached password and returns to the gate
// with the backend's message.
//
// # Themes
//
// Three themes are available and cycled with T; the choice is saved to the
// prefs file next to the cached password.
package ui
