package assets

import (
	"context"
	"net/http"
	"testing"

	"github.com/aluiziolira/go-bookshare/client"
	"github.com/aluiziolira/go-bookshare/config"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestProber(t *testing.T, transport http.RoundTripper) *Prober {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ProbeParallelism = 2

	p, err := NewProber(cfg, NewMetrics(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("new prober: %v", err)
	}
	p.WithTransport(transport)
	return p
}

func TestProberReportsBrokenCovers(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodHead, "http://img.test/uploads/dune.jpg",
		httpmock.NewStringResponder(http.StatusOK, ""))
	transport.RegisterResponder(http.MethodHead, "http://img.test/uploads/missing.jpg",
		httpmock.NewStringResponder(http.StatusNotFound, ""))
	transport.RegisterResponder(http.MethodHead, "http://img.test/uploads/private.jpg",
		httpmock.NewStringResponder(http.StatusForbidden, ""))

	p := newTestProber(t, transport)
	urls := []string{
		"http://img.test/uploads/dune.jpg",
		"http://img.test/uploads/missing.jpg",
		"",
		"http://img.test/uploads/dune.jpg",
		"http://img.test/uploads/private.jpg",
	}

	report, err := p.Check(context.Background(), urls)
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	if len(report.Results) != 3 {
		t.Fatalf("results = %d, want 3 distinct urls", len(report.Results))
	}
	if report.Results[0].URL != "http://img.test/uploads/dune.jpg" || !report.Results[0].OK() {
		t.Fatalf("first result = %+v, want reachable dune cover", report.Results[0])
	}
	if got := report.OKCount(); got != 1 {
		t.Fatalf("ok count = %d, want 1", got)
	}

	broken := report.Broken()
	if len(broken) != 2 {
		t.Fatalf("broken = %d, want 2", len(broken))
	}
	if broken[0].Kind != client.KindNotFound || broken[0].StatusCode != http.StatusNotFound {
		t.Fatalf("missing cover = %+v, want not_found", broken[0])
	}
	if broken[1].Kind != client.KindForbidden {
		t.Fatalf("private cover kind = %q, want forbidden", broken[1].Kind)
	}

	if got := transport.GetCallCountInfo()["HEAD http://img.test/uploads/dune.jpg"]; got != 1 {
		t.Fatalf("dune probed %d times, want 1", got)
	}
	if got := testutil.ToFloat64(p.Metrics.ProbesTotal.WithLabelValues("broken")); got != 2 {
		t.Fatalf("broken probes metric = %v, want 2", got)
	}
}

func TestProberCanceledContext(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodHead, "http://img.test/a.jpg",
		httpmock.NewStringResponder(http.StatusOK, ""))

	p := newTestProber(t, transport)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := p.Check(ctx, []string{"http://img.test/a.jpg"})
	if err == nil {
		t.Fatalf("expected context error")
	}
	if len(report.Results) != 1 || report.Results[0].OK() {
		t.Fatalf("canceled probe should be reported broken: %+v", report.Results)
	}
	if report.Results[0].Kind != client.KindCanceled {
		t.Fatalf("kind = %q, want canceled", report.Results[0].Kind)
	}
	if got := transport.GetTotalCallCount(); got != 0 {
		t.Fatalf("transport called %d times after cancel", got)
	}
}

func TestProberReusable(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodHead, "http://img.test/a.jpg",
		httpmock.NewStringResponder(http.StatusOK, ""))

	p := newTestProber(t, transport)
	for i := 0; i < 2; i++ {
		report, err := p.Check(context.Background(), []string{"http://img.test/a.jpg"})
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if report.OKCount() != 1 {
			t.Fatalf("check %d: ok count = %d", i, report.OKCount())
		}
	}
	if got := transport.GetTotalCallCount(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestProberAcceptsAnySuccessStatus(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodHead, "http://img.test/empty.jpg",
		httpmock.NewStringResponder(http.StatusNoContent, ""))
	transport.RegisterResponder(http.MethodHead, "http://img.test/partial.jpg",
		httpmock.NewStringResponder(http.StatusPartialContent, ""))

	p := newTestProber(t, transport)
	report, err := p.Check(context.Background(), []string{"http://img.test/empty.jpg", "http://img.test/partial.jpg"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	for _, res := range report.Results {
		if !res.OK() || res.Err != nil {
			t.Fatalf("%s = %+v, want reachable", res.URL, res)
		}
	}
	if report.Results[0].StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", report.Results[0].StatusCode)
	}
	if got := testutil.ToFloat64(p.Metrics.ProbesTotal.WithLabelValues("broken")); got != 0 {
		t.Fatalf("broken metric = %v, want 0", got)
	}
}
