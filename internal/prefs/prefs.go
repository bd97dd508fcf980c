// Package prefs handles perkdesk console preferences persistence.
// Preferences are stored in ~/.config/perkdesk/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds user preferences for the perkdesk console.
type Prefs struct {
	Theme string `toml:"theme"`
	// Password is the cached store password. Empty means the console shows
	// the password gate on start.
	Password string `toml:"app_password,omitempty"`
}

const (
	defaultPrefsPath = "~/.config/perkdesk/prefs.toml"
	defaultTheme     = "Nightshift"
)

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// DefaultTheme returns the theme used when none is stored.
func DefaultTheme() string {
	return defaultTheme
}

// Load reads preferences from the given path, falling back to defaults if missing.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Prefs{Theme: defaultTheme}, nil
	}

	prefs := Prefs{Theme: defaultTheme}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefs, nil
		}
		return prefs, nil // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return prefs, nil
	}

	if err := toml.Unmarshal(data, &prefs); err != nil {
		return Prefs{Theme: defaultTheme}, nil
	}

	if strings.TrimSpace(prefs.Theme) == "" {
		prefs.Theme = defaultTheme
	}
	// Only newlines from multi-line TOML strings are stripped, as in config.
	prefs.Password = strings.Trim(prefs.Password, "\r\n")

	return prefs, nil
}

// Save writes preferences to the given path, creating directories as needed.
// The file holds the cached password, so it is written owner-only.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, data, 0o600); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}

// CachedCredential returns the stored password, or "" when none is cached or
// the file cannot be read.
func CachedCredential(path string) string {
	p, _ := Load(path)
	return p.Password
}

// SaveCredential stores password alongside the other preferences. Failures
// are ignored: the cache is a convenience and the console keeps the password
// in memory either way.
func SaveCredential(path, password string) {
	p, _ := Load(path)
	p.Password = password
	_ = Save(path, p)
}

// ClearCredential removes the cached password, keeping other preferences.
func ClearCredential(path string) {
	p, _ := Load(path)
	if p.Password == "" {
		return
	}
	p.Password = ""
	_ = Save(path, p)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
