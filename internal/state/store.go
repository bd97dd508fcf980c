package state

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/perkdesk/perkdesk/internal/loyalty"
)

// Snapshot represents the latest customer list available to the console.
type Snapshot struct {
	Query               string
	Customers           []loyalty.Customer
	HasData             bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive refresh failures
}

// IsOffline returns true when the proxy has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot, the active search
// query and the session credential.
type Store struct {
	mu         sync.RWMutex
	snapshot   Snapshot
	query      string
	credential string
}

// Update replaces the customer list fetched for query. When err is non-nil
// the previous list is kept but the error is recorded for visibility. Results
// for a query other than the active one are dropped so a slow response cannot
// overwrite a newer search.
func (s *Store) Update(query string, customers []loyalty.Customer, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if query != s.query {
		return false
	}

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return true
	}

	s.snapshot.Query = query
	s.snapshot.Customers = cloneCustomers(customers)
	s.snapshot.HasData = true
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
	return true
}

// Upsert reconciles a customer returned by a mutation: it replaces the entry
// with the same ID, or is prepended when the list has none.
func (s *Store) Upsert(c loyalty.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.snapshot.Customers {
		if s.snapshot.Customers[i].ID == c.ID {
			s.snapshot.Customers[i] = c
			return
		}
	}
	list := make([]loyalty.Customer, 0, len(s.snapshot.Customers)+1)
	list = append(list, c)
	list = append(list, s.snapshot.Customers...)
	s.snapshot.Customers = list
}

// SetQuery changes the active search query.
func (s *Store) SetQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = strings.TrimSpace(query)
}

// Query returns the active search query.
func (s *Store) Query() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// SetCredential records the password the session authenticates with.
func (s *Store) SetCredential(credential string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
}

// Credential returns the session password, or "" before the gate is passed.
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// Reset forgets the credential and every fetched customer.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = Snapshot{}
	s.query = ""
	s.credential = ""
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Customers = cloneCustomers(s.snapshot.Customers)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneCustomers(items []loyalty.Customer) []loyalty.Customer {
	if len(items) == 0 {
		return nil
	}
	dup := make([]loyalty.Customer, len(items))
	copy(dup, items)
	return dup
}
