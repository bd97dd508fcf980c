package app

import (
	"context"
	"fmt"
	"time"

	"github.com/perkdesk/perkdesk/internal/config"
	"github.com/perkdesk/perkdesk/internal/loyalty"
	"github.com/perkdesk/perkdesk/internal/prefs"
	"github.com/perkdesk/perkdesk/internal/state"
	"github.com/perkdesk/perkdesk/internal/ui"
)

// Options configure the staff console.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/perkdesk/prefs.toml
	PollEvery  int    // seconds; zero uses default
}

// Run boots the console TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	client, err := loyalty.NewClient(cfg.ProxyURL)
	if err != nil {
		return fmt.Errorf("init loyalty client: %w", err)
	}

	store := &state.Store{}
	if userPrefs.Password != "" {
		store.SetCredential(userPrefs.Password)
	}

	interval := defaultPollInterval
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}

	StartPoller(ctx, store, client, interval)

	return ui.Run(ui.Options{
		Context:         ctx,
		Service:         client,
		Store:           store,
		ThemeName:       userPrefs.Theme,
		PrefsPath:       opts.PrefsPath,
		LogPath:         cfg.LogFile,
		DefaultPassword: cfg.AppPassword,
		Endpoint:        client.Endpoint(),
	})
}
