//go:build !windows

package supervisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secfunded/stackd/internal/probe"
	"github.com/secfunded/stackd/internal/service"
)

// End-to-end with real child processes: both services are sleep commands,
// the backend's "health endpoint" is an httptest server. An interrupt must
// remove both pid files and return nil.
func TestRunRealProcessesGracefulShutdown(t *testing.T) {
	health := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer health.Close()

	dir := t.TempDir()
	bePID := filepath.Join(dir, "backend.pid")
	fePID := filepath.Join(dir, "frontend.pid")

	be := service.New(service.Spec{Name: "backend", Command: "sleep 30", PIDFile: bePID})
	fe := service.New(service.Spec{Name: "frontend", Command: "sleep 30", PIDFile: fePID})

	s := New(Config{
		Backend: Slot{
			Runner:      be,
			Probe:       probe.Probe{URL: health.URL, MaxAttempts: 30, Interval: 10 * time.Millisecond},
			MaxRestarts: 3,
		},
		Frontend: Slot{
			Runner: fe,
			// Nothing listens here; frontend readiness failure is non-fatal.
			Probe:       probe.Probe{URL: "http://127.0.0.1:1/", MaxAttempts: 2, Interval: 10 * time.Millisecond, Timeout: 200 * time.Millisecond},
			MaxRestarts: 3,
		},
		Tick:     20 * time.Millisecond,
		StopWait: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.State() == StateMonitoring }, 5*time.Second, 10*time.Millisecond)
	require.True(t, be.Alive())
	require.True(t, fe.Alive())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no graceful shutdown")
	}

	_, err := os.Stat(bePID)
	assert.True(t, os.IsNotExist(err), "backend pidfile must be removed")
	_, err = os.Stat(fePID)
	assert.True(t, os.IsNotExist(err), "frontend pidfile must be removed")
}

// A backend that dies instantly can never answer its probe; the supervisor
// must fail startup without ever launching the frontend.
func TestRunRealBackendNeverReady(t *testing.T) {
	dir := t.TempDir()
	fePID := filepath.Join(dir, "frontend.pid")

	be := service.New(service.Spec{Name: "backend", Command: "true", PIDFile: filepath.Join(dir, "backend.pid")})
	fe := service.New(service.Spec{Name: "frontend", Command: "sleep 30", PIDFile: fePID})

	s := New(Config{
		Backend: Slot{
			Runner:      be,
			Probe:       probe.Probe{URL: "http://127.0.0.1:1/api/health", MaxAttempts: 3, Interval: 10 * time.Millisecond, Timeout: 200 * time.Millisecond},
			MaxRestarts: 1,
		},
		Frontend: Slot{Runner: fe, Probe: probe.Probe{}, MaxRestarts: 1},
		Tick:     20 * time.Millisecond,
		StopWait: time.Second,
	})

	err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrBackendUnready)
	_, statErr := os.Stat(fePID)
	assert.True(t, os.IsNotExist(statErr), "frontend must never have been launched")
	assert.Equal(t, StateStopped, s.State())
}
