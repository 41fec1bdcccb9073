// Package client talks to the BookShare REST backend: one typed resource per
// entity, each exposing list, get, create, update and delete.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/go-bookshare/config"
	"github.com/aluiziolira/go-bookshare/models"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Client issues requests against a fixed backend origin.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	Metrics    *Metrics

	Books      *Resource[models.Book, models.BookInput]
	Authors    *Resource[models.Author, models.AuthorInput]
	Categories *Resource[models.Category, models.CategoryInput]
}

// New builds a client configured from cfg. metrics may be nil.
func New(cfg *config.Config, metrics *Metrics) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   cfg.Timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: cfg.UserAgent,
		limiter:   rate.NewLimiter(limit, 1),
		Metrics:   metrics,
	}
	c.Books = &Resource[models.Book, models.BookInput]{client: c, name: "books"}
	c.Authors = &Resource[models.Author, models.AuthorInput]{client: c, name: "authors"}
	c.Categories = &Resource[models.Category, models.CategoryInput]{client: c, name: "categories"}
	return c, nil
}

// WithTransport replaces the underlying HTTP transport.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

func (c *Client) do(ctx context.Context, resource, method, path string, payload, out any) error {
	endpoint := c.baseURL + path

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", resource, err)
		}
		body = bytes.NewReader(buf)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return c.fail(resource, method, endpoint, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.Metrics.IncRequest(resource, method)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.Metrics.ObserveDuration(resource, time.Since(start))
	if err != nil {
		return c.fail(resource, method, endpoint, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		statusErr := fmt.Errorf("http status %d", resp.StatusCode)
		if msg := strings.TrimSpace(string(snippet)); msg != "" {
			statusErr = fmt.Errorf("http status %d: %s", resp.StatusCode, msg)
		}
		return c.fail(resource, method, endpoint, resp.StatusCode, statusErr)
	}

	// An empty success body leaves out at its zero value.
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
	} else if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		c.Metrics.IncError(resource, KindDecode)
		return &TransportError{Kind: KindDecode, Method: method, URL: endpoint, StatusCode: resp.StatusCode, Err: err}
	}

	slog.Debug("request completed",
		slog.String("method", method),
		slog.String("url", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", requestID),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (c *Client) fail(resource, method, endpoint string, statusCode int, err error) error {
	kind := Classify(err, statusCode)
	c.Metrics.IncError(resource, kind)
	slog.Debug("request error",
		slog.String("method", method),
		slog.String("url", endpoint),
		slog.String("kind", string(kind)),
		slog.Any("error", err),
	)
	return &TransportError{Kind: kind, Method: method, URL: endpoint, StatusCode: statusCode, Err: err}
}
