package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clover-storm/unit-simulator/internal/config"
)

// lockedBuffer is shared by several sink goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testSettings(t *testing.T) config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	settings, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	settings.ListenAddr = "127.0.0.1:0"
	settings.Sim.Towers = false
	settings.Sim.Waves = false
	return settings
}

func TestAppServesSessionsAndRoutesEvents(t *testing.T) {
	settings := testSettings(t)
	settings.Storage.Enabled = true
	settings.Storage.Path = ""
	settings.Logging.Sinks = []string{"console", "json"}

	var out lockedBuffer
	a, err := New(Config{Settings: settings, Stdout: &out})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ctx := context.Background()
	s, err := a.Sessions().CreateWithID(ctx, "s1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := s.Step(ctx, 20); err != nil {
		t.Fatalf("step: %v", err)
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"sessions":1`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}

	if err := a.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	logs := out.String()
	if !strings.Contains(logs, "lifecycle.session_created") || !strings.Contains(logs, "session=s1") {
		t.Fatalf("expected session events on the console sink, got:\n%s", logs)
	}
	if !strings.Contains(logs, `"type":"lifecycle.session_closed"`) {
		t.Fatalf("expected the json sink to record the close")
	}
}

func TestNewRejectsMissingUnitsFile(t *testing.T) {
	settings := testSettings(t)
	settings.UnitsFile = "/nonexistent/units.yaml"
	if _, err := New(Config{Settings: settings, Stdout: &bytes.Buffer{}}); err == nil {
		t.Fatalf("expected a missing units file to fail")
	}
}

func TestServeStopsWhenContextEnds(t *testing.T) {
	a, err := New(Config{Settings: testSettings(t), Stdout: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
}
