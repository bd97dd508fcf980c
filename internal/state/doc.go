// Package state holds the console's view of the customer list.
//
// # Overview
//
// The background poller and the bubbletea model both touch the same data: the
// poller refreshes the list for the active search query, and the model applies
// the customer records returned by add-or-update, spend and reset calls. Store
// is the single point where the two meet.
//
//	Poller:                       UI:
//	┌──────────────────┐          ┌──────────────────┐
//	│ ListCustomers()  │          │ ApplySpend()     │
//	│       ↓          │          │       ↓          │
//	│ store.Update()   │─────────→│ store.Upsert()   │
//	│       ↓          │ (mutex)  │ store.Snapshot() │
//	│   repeat...      │          │   render         │
//	└──────────────────┘          └──────────────────┘
//
// # Update Semantics
//
// Update is keyed by the query the list was fetched for. A result for a query
// that is no longer active is discarded, so a slow refresh never replaces the
// results of a newer search. On error the previous list is kept and the
// failure is recorded in LastError and ConsecutiveFailures.
//
// Upsert replaces the customer with the same ID in place, or prepends it when
// the list does not contain it yet. The next successful refresh replaces the
// whole list with whatever the backend returns.
//
// # Credential
//
// The session password lives here rather than in the model so the poller can
// read it without a channel round trip. An empty credential means the password
// gate has not been passed and the poller stays idle.
//
// # Copying
//
// Update and Snapshot copy the customer slice. Customer.Extra maps are shared
// between copies; nothing in the console mutates them.
//
// The zero Store is ready to use.
package state
