package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/perkdesk/perkdesk/internal/config"
	"github.com/perkdesk/perkdesk/internal/logging"
	"github.com/perkdesk/perkdesk/internal/proxy"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions configure the backend proxy. Non-empty fields override the
// config file.
type ServeOptions struct {
	ConfigPath string
	Listen     string
	BackendURL string

	// Listener, when set, is used instead of binding Listen.
	Listener net.Listener
	// Stderr receives log output alongside the log file. Defaults to os.Stderr.
	Stderr io.Writer
}

// Serve runs the backend proxy until ctx is cancelled, then shuts it down
// gracefully.
func Serve(ctx context.Context, opts ServeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(opts.Listen); v != "" {
		cfg.Listen = v
	}
	if v := strings.TrimSpace(opts.BackendURL); v != "" {
		cfg.BackendURL = v
	}

	var out io.Writer = os.Stderr
	if opts.Stderr != nil {
		out = opts.Stderr
	}
	if cfg.LogFile != "" {
		file, err := logging.OpenFile(cfg.LogFile)
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		out = io.MultiWriter(out, file)
	}
	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
		Output: out,
	})

	if !cfg.HasBackend() {
		logger.Warn("backend_url is not set; proxied calls will fail")
	}

	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", cfg.Listen)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
		}
	}

	p := proxy.New(proxy.Options{
		BackendURL:     cfg.BackendURL,
		FallbackSecret: cfg.AppPassword,
		Logger:         logger,
	})
	return serve(ctx, ln, p.Handler(), logger)
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Script backends are slow to cold start.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("proxy listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down proxy")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
