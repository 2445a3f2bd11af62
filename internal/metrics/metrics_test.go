package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordLogin(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(true)
	c.RecordLogin(true)
	c.RecordLogin(false)

	if got := testutil.ToFloat64(c.loginSuccess); got != 2 {
		t.Errorf("login success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.loginFail); got != 1 {
		t.Errorf("login fail = %v, want 1", got)
	}
}

func TestRecordSync(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSync(true)
	c.RecordSync(false)
	c.RecordSync(false)

	if got := testutil.ToFloat64(c.syncPerformed); got != 1 {
		t.Errorf("sync performed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.syncSkipped); got != 2 {
		t.Errorf("sync skipped = %v, want 2", got)
	}
}

func TestRecordRegistryRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRegistryRequest("/auth/login", 200)
	c.RecordRegistryRequest("/auth/login", 200)
	c.RecordRegistryRequest("/auth/login", 401)
	c.RecordRegistryRequest("/account/me", 0)

	if got := testutil.ToFloat64(c.registryStatus.WithLabelValues("/auth/login", "200")); got != 2 {
		t.Errorf("login 200 count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.registryStatus.WithLabelValues("/auth/login", "401")); got != 1 {
		t.Errorf("login 401 count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.registryStatus.WithLabelValues("/account/me", "0")); got != 1 {
		t.Errorf("network failure count = %v, want 1", got)
	}
}

func TestRecordRegistryLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRegistryLatency("/auth/login", 150*time.Millisecond)

	count := testutil.CollectAndCount(c.registryLatency, "unilib_registry_latency_seconds")
	if count != 1 {
		t.Errorf("latency series count = %d, want 1", count)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordLogin(true)

	handler := SetupMetricsRoute(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "unilib_login_success_total 1") {
		t.Errorf("metrics output missing login counter:\n%s", body)
	}
}
