package app

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a bytes.Buffer written by the server goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func clearProxyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"PERKDESK_BACKEND_URL", "BACKEND_URL", "APP_PASSWORD", "PERKDESK_LISTEN", "PERKDESK_PROXY_URL", "PERKDESK_LOG_LEVEL"} {
		t.Setenv(name, "")
	}
}

func TestServeForwardsAndShutsDown(t *testing.T) {
	clearProxyEnv(t)

	authCh := make(chan string, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCh <- r.Header.Get("X-Auth")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"data":[]}`)
	}))
	defer upstream.Close()

	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "proxy.log")
	configPath := filepath.Join(dir, "config.toml")
	content := "app_password = \"house-secret\"\nlog_format = \"json\"\nlog_file = \"" + logPath + "\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	stderr := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ServeOptions{
			ConfigPath: configPath,
			BackendURL: upstream.URL,
			Listener:   ln,
			Stderr:     stderr,
		})
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/proxy?action=list&query=")
	if err != nil {
		t.Fatalf("GET /proxy: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if string(body) != `{"ok":true,"data":[]}` {
		t.Fatalf("body = %q, want upstream body", body)
	}
	if gotAuth := <-authCh; gotAuth != "house-secret" {
		t.Fatalf("upstream X-Auth = %q, want fallback secret", gotAuth)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if !strings.Contains(stderr.String(), `"msg":"forwarded"`) {
		t.Fatalf("stderr log missing forwarded entry:\n%s", stderr.String())
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"forwarded"`) {
		t.Fatalf("log file missing forwarded entry:\n%s", data)
	}
}

func TestServeWarnsWithoutBackend(t *testing.T) {
	clearProxyEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := "log_file = \"" + filepath.Join(dir, "proxy.log") + "\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	stderr := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ServeOptions{ConfigPath: configPath, Listener: ln, Stderr: stderr})
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/proxy?action=list")
	if err != nil {
		cancel()
		t.Fatalf("GET /proxy: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	cancel()
	<-done

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Backend URL not configured") {
		t.Fatalf("body = %q, want configuration error", body)
	}
	if !strings.Contains(stderr.String(), "backend_url is not set") {
		t.Fatalf("stderr = %q, want missing backend warning", stderr.String())
	}
}

func TestServeRejectsBadConfig(t *testing.T) {
	clearProxyEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("listen = ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	err := Serve(context.Background(), ServeOptions{ConfigPath: configPath, Stderr: io.Discard})
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("Serve error = %v, want load config failure", err)
	}
}
