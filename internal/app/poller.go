package app

import (
	"context"
	"errors"
	"time"

	"github.com/perkdesk/perkdesk/internal/loyalty"
	"github.com/perkdesk/perkdesk/internal/state"
)

const (
	defaultPollInterval = 15 * time.Second
	maxBackoff          = 30 * time.Second
)

// errSignedOut means the store has no credential yet, so the poll was skipped.
var errSignedOut = errors.New("no credential")

// StartPoller launches a background goroutine that re-lists the active query
// at a fixed cadence, backing off after consecutive failures. It returns
// immediately. Errors are recorded in the store; the console owns the
// terminal, so nothing is printed.
func StartPoller(ctx context.Context, store *state.Store, service loyalty.Service, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go func() {
		failures := 0
		for {
			wait := interval
			switch err := refresh(ctx, store, service); {
			case err == nil, errors.Is(err, errSignedOut):
				failures = 0
			default:
				failures++
				wait = calculateBackoff(failures, interval)
			}

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

// calculateBackoff doubles base once per failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}

func refresh(ctx context.Context, store *state.Store, service loyalty.Service) error {
	credential := store.Credential()
	if credential == "" {
		return errSignedOut
	}
	query := store.Query()
	customers, err := service.ListCustomers(ctx, query, credential)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	store.Update(query, customers, err)
	return err
}
