package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	// idempotent: calling again should be no-op
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	// Exercise helpers; they should work only after Register
	IncLaunch("backend")
	IncLaunch("backend")
	IncRestart("backend")
	IncUnexpectedExit("frontend")
	AddProbeAttempts("backend", 3)
	IncProbeFailure("frontend")
	SetServiceUp("backend", true)
	SetSupervisorState("monitoring", true)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantNames := map[string]bool{
		"stackd_service_launches_total":         false,
		"stackd_service_restarts_total":         false,
		"stackd_service_unexpected_exits_total": false,
		"stackd_probe_attempts_total":           false,
		"stackd_probe_failures_total":           false,
		"stackd_service_up":                     false,
		"stackd_supervisor_state":               false,
	}
	for _, mf := range mfs {
		n := mf.GetName()
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
			if len(mf.GetMetric()) == 0 {
				t.Fatalf("metric %s has no samples", n)
			}
		}
	}
	for n, ok := range wantNames {
		if !ok {
			t.Fatalf("expected to find metric %s", n)
		}
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	_ = Register(prometheus.DefaultRegisterer)
	IncLaunch("backend")

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "stackd_service_launches_total") {
		t.Fatalf("expected stackd metrics in output")
	}
}
