package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistry_HandlerExposesRegisteredMetrics(t *testing.T) {
	r := New()
	r.WireConnected.Set(1)
	r.WireReconnects.Inc()
	r.BusDepth.WithLabelValues("reconciler").Set(3)
	r.ExecOutcomesTotal.WithLabelValues("AL30", "a2u", "filled").Inc()

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	body := sb.String()

	for _, want := range []string{
		"mesita_wire_connected 1",
		"mesita_wire_reconnects_total 1",
		`mesita_erbus_depth{subscription="reconciler"} 3`,
		`mesita_execcoord_outcomes_total{direction="a2u",pair="AL30",result="filled"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q, got:\n%s", want, body)
		}
	}
}

func TestNew_RegistrationIsIsolatedPerInstance(t *testing.T) {
	// A second Registry must not panic from "duplicate metrics collector
	// registration", since each uses its own prometheus.Registry.
	_ = New()
	_ = New()
}
