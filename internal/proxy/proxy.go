package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/perkdesk/perkdesk/internal/logging"
)

const (
	// AuthHeader carries the shared secret on both the inbound and the
	// outbound leg.
	AuthHeader = "X-Auth"

	// RequestIDHeader correlates the initial call and its redirect hop.
	RequestIDHeader = "X-Request-Id"

	// MaxBodySize caps the POST body read from the inbound request (10MB).
	// Larger bodies are rejected with 413, never forwarded truncated.
	MaxBodySize = 10 * 1024 * 1024

	defaultContentType = "application/json"

	errBackendNotConfigured = "Backend URL not configured"
)

// Options configure a Proxy.
type Options struct {
	// BackendURL is the remote script service endpoint. Empty means every
	// forwarded call fails locally with a configuration error.
	BackendURL string

	// FallbackSecret is used when the inbound request carries no X-Auth value.
	FallbackSecret string

	// HTTPClient performs outbound calls. Its CheckRedirect is overridden so
	// redirects are always handled by the proxy itself.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Proxy forwards console requests to the remote script service, injecting the
// resolved credential and resolving at most one redirect hop.
type Proxy struct {
	backend        string
	fallbackSecret string
	client         *http.Client
	logger         *slog.Logger
}

// New builds a Proxy from opts.
func New(opts Options) *Proxy {
	client := &http.Client{}
	if opts.HTTPClient != nil {
		clone := *opts.HTTPClient
		client = &clone
	}
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Proxy{
		backend:        strings.TrimSpace(opts.BackendURL),
		fallbackSecret: opts.FallbackSecret,
		client:         client,
		logger:         logger,
	}
}

// Handler returns a router serving /proxy and /healthz with the common
// middleware stack.
func (p *Proxy) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(p.requestLog)

	r.Get("/healthz", p.health)
	p.Routes(r)
	return r
}

// Routes mounts the forwarding endpoints.
func (p *Proxy) Routes(r chi.Router) {
	r.Get("/proxy", p.Forward)
	r.Post("/proxy", p.Forward)
}

// outbound is one upstream request shape, replayed verbatim on the redirect hop.
type outbound struct {
	method string
	target string
	header http.Header
	body   []byte
}

// Forward relays the inbound request to the backend and writes the final
// upstream response back unchanged.
func (p *Proxy) Forward(w http.ResponseWriter, r *http.Request) {
	if p.backend == "" {
		writeEnvelopeError(w, http.StatusInternalServerError, errBackendNotConfigured)
		return
	}

	var body []byte
	if r.Method == http.MethodPost && r.Body != nil {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeEnvelopeError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body exceeds %d bytes", MaxBodySize))
				return
			}
			writeEnvelopeError(w, http.StatusBadRequest, "read request body: "+err.Error())
			return
		}
	}

	out := outbound{
		method: r.Method,
		target: p.target(r.URL.RawQuery),
		header: p.outboundHeader(r),
		body:   body,
	}

	start := time.Now()
	resp, redirected, err := p.roundTrip(r.Context(), out)
	if err != nil {
		p.logger.Warn("upstream call failed",
			"method", out.method,
			"action", r.URL.Query().Get("action"),
			"upstream_id", out.header.Get(RequestIDHeader),
			"error", err,
		)
		writeEnvelopeError(w, http.StatusBadGateway, err.Error())
		return
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		writeEnvelopeError(w, http.StatusBadGateway, "read upstream body: "+err.Error())
		return
	}

	p.logger.Info("forwarded",
		"method", out.method,
		"action", r.URL.Query().Get("action"),
		"status", resp.StatusCode,
		"redirected", redirected,
		"duration", time.Since(start),
		"upstream_id", out.header.Get(RequestIDHeader),
	)

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(data)
}

// roundTrip issues the initial request and, when the upstream answers 3xx
// with a Location, exactly one follow-up to that location. The follow-up
// response is final whatever its status.
func (p *Proxy) roundTrip(ctx context.Context, out outbound) (*http.Response, bool, error) {
	resp, err := p.send(ctx, out.target, out)
	if err != nil {
		return nil, false, err
	}
	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return resp, false, nil
	}

	loc, err := resp.Location()
	if err != nil {
		return resp, false, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	next, err := p.send(ctx, loc.String(), out)
	if err != nil {
		return nil, true, fmt.Errorf("follow redirect: %w", err)
	}
	return next, true, nil
}

func (p *Proxy) send(ctx context.Context, target string, out outbound) (*http.Response, error) {
	var body io.Reader = http.NoBody
	if out.body != nil {
		body = bytes.NewReader(out.body)
	}
	req, err := http.NewRequestWithContext(ctx, out.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}
	req.Header = out.header.Clone()

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	return resp, nil
}

// target appends the inbound raw query to the backend URL verbatim.
func (p *Proxy) target(rawQuery string) string {
	if rawQuery == "" {
		return p.backend
	}
	sep := "?"
	if strings.Contains(p.backend, "?") {
		sep = "&"
	}
	return p.backend + sep + rawQuery
}

func (p *Proxy) outboundHeader(r *http.Request) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", defaultContentType)
	h.Set("Cache-Control", "no-store")
	h.Set(AuthHeader, p.resolveCredential(r))
	h.Set(RequestIDHeader, uuid.NewString())
	return h
}

// resolveCredential picks the inbound X-Auth value, then the fallback secret,
// then the empty string.
func (p *Proxy) resolveCredential(r *http.Request) string {
	if v := r.Header.Get(AuthHeader); v != "" {
		return v
	}
	return p.fallbackSecret
}

// envelope is the response shape the proxy emits for its own answers.
type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (p *Proxy) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope{OK: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", defaultContentType)
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeEnvelopeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{OK: false, Error: message})
}
