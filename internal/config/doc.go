// Package config handles loading perkdesk configuration files.
//
// # Overview
//
// A single TOML file configures both halves of perkdesk: the backend proxy
// (`perkdesk serve`) and the terminal console (`perkdesk console`). The proxy
// needs the remote script service URL and the fallback secret; the console
// only needs to know where the proxy listens.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/perkdesk/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing/empty, use defaults
//  5. Apply environment overrides
//
// # TOML Format
//
//	listen = "127.0.0.1:7490"
//	backend_url = "https://script.google.com/macros/s/<id>/exec"
//	app_password = "store secret"
//	proxy_url = "http://127.0.0.1:7490/proxy"
//	log_level = "info"
//	log_format = "text"
//	log_file = "~/.local/share/perkdesk/proxy.log"
//
// # Environment
//
//   - PERKDESK_BACKEND_URL, then BACKEND_URL: backend_url
//   - APP_PASSWORD: app_password (the proxy's fallback secret)
//   - PERKDESK_LISTEN: listen
//   - PERKDESK_PROXY_URL: proxy_url
//   - PERKDESK_LOG_LEVEL: log_level
//
// An empty backend_url is not a load error. The proxy starts and answers
// every forwarded call with a configuration error instead.
package config
