// Package assets checks that cover and avatar image URLs are reachable.
package assets

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/aluiziolira/go-bookshare/client"
	"github.com/aluiziolira/go-bookshare/config"
	"github.com/gocolly/colly/v2"
)

// Result is the outcome of probing one URL.
type Result struct {
	URL        string        `json:"url"`
	StatusCode int           `json:"status"`
	Kind       client.Kind   `json:"kind,omitempty"`
	Err        error         `json:"-"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// OK reports whether the URL answered with a success status.
func (r Result) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// CSVHeader lists the columns written by CSVRecord.
func (Result) CSVHeader() []string {
	return []string{"url", "ok", "status", "kind", "error", "elapsed_ms"}
}

// CSVRecord flattens the result into one CSV row.
func (r Result) CSVRecord() []string {
	errText := ""
	if r.Err != nil {
		errText = r.Err.Error()
	}
	return []string{
		r.URL,
		strconv.FormatBool(r.OK()),
		strconv.Itoa(r.StatusCode),
		string(r.Kind),
		errText,
		strconv.FormatInt(r.Elapsed.Milliseconds(), 10),
	}
}

// Report holds one Result per distinct probed URL, in input order.
type Report struct {
	Results []Result
}

// Broken returns the results that did not succeed.
func (r *Report) Broken() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// OKCount returns how many URLs answered successfully.
func (r *Report) OKCount() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Prober issues HEAD requests for image URLs through a shared collector.
type Prober struct {
	collector *colly.Collector
	Metrics   *Metrics
}

// NewProber builds a prober configured from cfg. metrics may be nil.
func NewProber(cfg *config.Config, metrics *Metrics) (*Prober, error) {
	parallelism := cfg.ProbeParallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: parallelism,
	}); err != nil {
		return nil, fmt.Errorf("configure probe limits: %w", err)
	}

	return &Prober{collector: collector, Metrics: metrics}, nil
}

// WithTransport replaces the collector's HTTP transport.
func (p *Prober) WithTransport(rt http.RoundTripper) {
	p.collector.WithTransport(rt)
}

// Check probes every distinct non-empty URL and waits for all of them.
// URLs not yet requested when ctx is done are reported with ctx's error.
func (p *Prober) Check(ctx context.Context, urls []string) (*Report, error) {
	order := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		order = append(order, u)
	}

	var (
		mu      sync.Mutex
		results = make(map[string]Result, len(order))
	)
	record := func(res Result) {
		mu.Lock()
		results[res.URL] = res
		mu.Unlock()
	}

	c := p.collector.Clone()
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Ctx.Put("start", time.Now())
	})

	reachable := func(r *colly.Response) {
		res := Result{URL: r.Ctx.Get(probeKey), StatusCode: r.StatusCode, Elapsed: elapsed(r.Request)}
		p.Metrics.IncProbe(true)
		p.Metrics.ObserveDuration(res.Elapsed)
		record(res)
	}
	c.OnResponse(reachable)

	c.OnError(func(r *colly.Response, err error) {
		// colly only hands 200-202 to OnResponse.
		if r != nil && r.StatusCode >= 200 && r.StatusCode < 300 {
			reachable(r)
			return
		}
		res := Result{Err: err}
		if r != nil {
			res.StatusCode = r.StatusCode
			res.URL = r.Ctx.Get(probeKey)
			if r.Request != nil {
				res.Elapsed = elapsed(r.Request)
			}
		}
		res.Kind = client.Classify(err, res.StatusCode)
		p.Metrics.IncProbe(false)
		slog.Debug("image probe failed",
			slog.String("url", res.URL),
			slog.Int("status", res.StatusCode),
			slog.String("kind", string(res.Kind)),
			slog.Any("error", err),
		)
		record(res)
	})

	for _, u := range order {
		reqCtx := colly.NewContext()
		reqCtx.Put(probeKey, u)
		if err := c.Request(http.MethodHead, u, nil, reqCtx, nil); err != nil {
			record(Result{URL: u, Kind: client.Classify(err, 0), Err: err})
		}
	}
	c.Wait()

	report := &Report{Results: make([]Result, 0, len(order))}
	for _, u := range order {
		res, ok := results[u]
		if !ok {
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("no response")
			}
			res = Result{URL: u, Kind: client.Classify(err, 0), Err: err}
		}
		report.Results = append(report.Results, res)
	}

	slog.Info("image probe finished",
		slog.Int("urls", len(order)),
		slog.Int("ok", report.OKCount()),
		slog.Int("broken", len(order)-report.OKCount()),
	)
	return report, ctx.Err()
}

// probeKey stores the URL as given, which may differ from the request URL
// after normalization or redirects.
const probeKey = "probe_url"

func elapsed(r *colly.Request) time.Duration {
	if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
		return time.Since(start)
	}
	return 0
}
