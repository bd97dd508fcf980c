package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures everything the proxy and the console need at startup.
type Config struct {
	Listen      string
	BackendURL  string
	AppPassword string
	ProxyURL    string
	LogLevel    string
	LogFormat   string
	LogFile     string
}

const (
	defaultConfigPath = "~/.config/perkdesk/config.toml"
	defaultListen     = "127.0.0.1:7490"
	defaultProxyURL   = "http://127.0.0.1:7490/proxy"
	defaultLogLevel   = "info"
	defaultLogFormat  = "text"
	defaultLogFile    = "~/.local/share/perkdesk/proxy.log"
)

// Environment variables consulted after the file is parsed. The first
// non-empty variable in each list wins.
var (
	envBackendURL  = []string{"PERKDESK_BACKEND_URL", "BACKEND_URL"}
	envAppPassword = []string{"APP_PASSWORD"}
	envListen      = []string{"PERKDESK_LISTEN"}
	envProxyURL    = []string{"PERKDESK_PROXY_URL"}
	envLogLevel    = []string{"PERKDESK_LOG_LEVEL"}
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Listen:    defaultListen,
		ProxyURL:  defaultProxyURL,
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
		LogFile:   mustExpand(defaultLogFile),
	}
}

// Load locates and parses the perkdesk config, falling back to defaults when
// missing, then applies environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.applyEnv()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		Listen      string  `toml:"listen"`
		BackendURL  string  `toml:"backend_url"`
		AppPassword string  `toml:"app_password"`
		ProxyURL    string  `toml:"proxy_url"`
		LogLevel    string  `toml:"log_level"`
		LogFormat   string  `toml:"log_format"`
		LogFile     *string `toml:"log_file"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.Listen = orDefault(raw.Listen, defaultListen)
	cfg.BackendURL = strings.TrimSpace(raw.BackendURL)
	// Secrets are compared verbatim by the backend, so only surrounding
	// newlines from multi-line TOML strings are stripped.
	cfg.AppPassword = strings.Trim(raw.AppPassword, "\r\n")
	cfg.ProxyURL = orDefault(raw.ProxyURL, defaultProxyURL)
	cfg.LogLevel = orDefault(raw.LogLevel, defaultLogLevel)
	cfg.LogFormat = orDefault(raw.LogFormat, defaultLogFormat)
	// An explicit empty log_file turns file logging off.
	if raw.LogFile != nil {
		cfg.LogFile = ""
		if v := strings.TrimSpace(*raw.LogFile); v != "" {
			cfg.LogFile = mustExpand(v)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// HasBackend reports whether a backend target is configured.
func (c Config) HasBackend() bool {
	return strings.TrimSpace(c.BackendURL) != ""
}

func (c *Config) applyEnv() {
	if v, ok := lookupEnv(envBackendURL); ok {
		c.BackendURL = strings.TrimSpace(v)
	}
	if v, ok := lookupEnv(envAppPassword); ok {
		c.AppPassword = v
	}
	if v, ok := lookupEnv(envListen); ok {
		c.Listen = strings.TrimSpace(v)
	}
	if v, ok := lookupEnv(envProxyURL); ok {
		c.ProxyURL = strings.TrimSpace(v)
	}
	if v, ok := lookupEnv(envLogLevel); ok {
		c.LogLevel = strings.TrimSpace(v)
	}
}

func lookupEnv(names []string) (string, bool) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v, true
		}
	}
	return "", false
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return ExpandPath(defaultConfigPath)
	}
	return ExpandPath(path)
}

func mustExpand(path string) string {
	expanded, err := ExpandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading tilde to the home directory and returns an
// absolute path.
func ExpandPath(path string) (string, error) {
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
