// Package app is the composition root for perkdesk's two processes.
//
// # Console
//
// Run wires the staff console:
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.Load()        proxy_url, log_file, app_password
//	       ├─────> prefs.Load()         theme and cached password
//	       ├─────> loyalty.NewClient()  typed client for the proxy
//	       ├─────> state.Store{}        shared by poller and UI
//	       ├─────> StartPoller()        background re-list of the active query
//	       └─────> ui.Run()             TUI (blocks)
//
// The poller does nothing until the store holds a credential. After a failed
// refresh it doubles its wait, capped at 30 seconds, and records the error in
// the store so the header can show it. It never writes to the terminal.
//
// # Proxy
//
// Serve runs the backend proxy behind an http.Server. Log output goes to
// stderr and to the configured log file, which the console's activity view
// tails. Cancelling the context shuts the server down gracefully with a
// 10 second deadline.
package app
