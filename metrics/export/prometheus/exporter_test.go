package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MrEthical07/staysafe"
	"github.com/MrEthical07/staysafe/accounts"
)

type fakeSource struct {
	snapshot staysafe.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() staysafe.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestCollectEmptyWhenMetricsDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: staysafe.MetricsSnapshot{
			Counters:   map[staysafe.MetricID]uint64{},
			Histograms: map[staysafe.MetricID][]uint64{},
		},
	})

	if n := testutil.CollectAndCount(c); n != 0 {
		t.Fatalf("expected no metrics for a disabled engine, got %d", n)
	}
}

func TestCollectCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: staysafe.MetricsSnapshot{
			Counters: map[staysafe.MetricID]uint64{
				staysafe.MetricLoginChallengeIssued: 7,
			},
			Histograms: map[staysafe.MetricID][]uint64{
				staysafe.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	expected := `
# HELP staysafe_login_challenge_issued_total Password checks that issued a verification code.
# TYPE staysafe_login_challenge_issued_total counter
staysafe_login_challenge_issued_total 7
# HELP staysafe_audit_dropped_total Dropped audit events due to dispatcher backpressure.
# TYPE staysafe_audit_dropped_total counter
staysafe_audit_dropped_total 2
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"staysafe_login_challenge_issued_total", "staysafe_audit_dropped_total"); err != nil {
		t.Fatalf("unexpected counters: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "staysafe_authenticate_latency_seconds" {
			continue
		}
		h := mf.GetMetric()[0].GetHistogram()
		if h.GetSampleCount() != 36 {
			t.Fatalf("expected 36 samples, got %d", h.GetSampleCount())
		}
		if got := h.GetBucket()[0].GetCumulativeCount(); got != 1 {
			t.Fatalf("expected first bucket 1, got %d", got)
		}
		return
	}
	t.Fatal("latency histogram missing")
}

func TestCollectorAgainstEngine(t *testing.T) {
	cfg := staysafe.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-access-secret-0123456789")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-refresh-secret-0123456789")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	engine, err := staysafe.New().WithConfig(cfg).WithAccountStore(accounts.NewMemoryStore()).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	problems, err := testutil.CollectAndLint(NewCollector(engine))
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("lint problems: %+v", problems)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: staysafe.MetricsSnapshot{
			Counters:   map[staysafe.MetricID]uint64{staysafe.MetricLogout: 1},
			Histograms: map[staysafe.MetricID][]uint64{},
		},
	})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "staysafe_logout_total 1") {
		t.Fatalf("expected logout counter, got:\n%s", body)
	}
}
