package companion

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestMonitorFiresOnOfflineToOnlineTransition(t *testing.T) {
	var healthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	var fired atomic.Int32
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	monitor := NewMonitor(NewClient(server.URL, ""), 10*time.Millisecond, func(context.Context) {
		fired.Add(1)
	}, logger)

	monitor.Start(context.Background())
	defer monitor.Stop()

	waitFor(t, func() bool { return !monitor.Online() && fired.Load() == 0 })

	healthy.Store(true)
	waitFor(t, func() bool { return monitor.Online() })
	waitFor(t, func() bool { return fired.Load() == 1 })

	// Staying online must not re-fire the callback.
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("callback fired %d times, want 1", fired.Load())
	}
}

func TestMonitorDetectsOutage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	monitor := NewMonitor(NewClient(server.URL, ""), 10*time.Millisecond, nil, logger)

	monitor.Start(context.Background())
	defer monitor.Stop()

	waitFor(t, func() bool { return monitor.Online() })

	server.Close()
	waitFor(t, func() bool { return !monitor.Online() })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
