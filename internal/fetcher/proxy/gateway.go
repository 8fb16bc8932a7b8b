// Package proxy implements the fetch gateway: every page is requested through a
// scraping proxy that renders it and returns the raw body.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
	"github.com/JakeFAU/jobboard-harvester/internal/metrics"
)

// DefaultTimeout bounds a single proxied request.
const DefaultTimeout = 60 * time.Second

// Config controls where and how the gateway reaches the proxy.
type Config struct {
	Endpoint  string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
}

// Waiter paces requests per target host.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithLimiter throttles fetches per target host.
func WithLimiter(w Waiter) Option {
	return func(g *Gateway) { g.limiter = w }
}

// WithLogger sets the gateway logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithTransport replaces the HTTP transport (tests, custom dialers).
func WithTransport(rt http.RoundTripper) Option {
	return func(g *Gateway) { g.transport = rt }
}

// Gateway implements board.Fetcher on top of a Colly collector.
type Gateway struct {
	cfg           Config
	endpoint      *url.URL
	transport     http.RoundTripper
	limiter       Waiter
	logger        *zap.Logger
	baseCollector *colly.Collector
}

var _ board.Fetcher = (*Gateway)(nil)

// New builds a Gateway. A missing API key or endpoint is a configuration error.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("proxy api key is required: %w", board.ErrConfig)
	}
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil || endpoint.Host == "" {
		return nil, fmt.Errorf("proxy endpoint %q is invalid: %w", cfg.Endpoint, board.ErrConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	g := &Gateway{
		cfg:       cfg,
		endpoint:  endpoint,
		transport: newHTTPTransport(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.Named("gateway")

	c := colly.NewCollector(colly.Async(false))
	// Each run may legitimately re-fetch the same search page.
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.WithTransport(g.transport)
	g.baseCollector = c
	return g, nil
}

// ProxyURL builds the proxied request URL for target.
func (g *Gateway) ProxyURL(target string) string {
	u := *g.endpoint
	q := u.Query()
	q.Set("api_key", g.cfg.APIKey)
	q.Set("url", target)
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch returns the body the proxy delivered for target. Any error wraps board.ErrTransport.
func (g *Gateway) Fetch(ctx context.Context, target string) ([]byte, error) {
	site := metrics.SanitizeSite(target)
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, target); err != nil {
			metrics.ObserveFetch(site, "canceled", 0)
			return nil, fmt.Errorf("fetch %s: %w: %w", target, board.ErrTransport, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	collector := g.baseCollector.Clone()
	collector.Context = ctx
	collector.SetRequestTimeout(g.cfg.Timeout)
	if g.cfg.UserAgent != "" {
		collector.UserAgent = g.cfg.UserAgent
	}

	res, err := g.visit(ctx, collector, g.ProxyURL(target))
	if err == nil && (res.status < http.StatusOK || res.status >= http.StatusMultipleChoices) {
		err = fmt.Errorf("unexpected status %d", res.status)
	}
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			outcome = "timeout"
		}
		metrics.ObserveFetch(site, outcome, 0)
		g.logger.Warn("fetch failed",
			zap.String("url", target),
			zap.Int("status", res.status),
			zap.Error(err),
		)
		return nil, fmt.Errorf("fetch %s: %w: %w", target, board.ErrTransport, err)
	}

	metrics.ObserveFetch(site, "ok", len(res.body))
	return res.body, nil
}

type visitResult struct {
	status int
	body   []byte
}

// visit runs the collector in the background so ctx cancellation returns promptly.
// The callbacks only touch state owned by the goroutine.
func (g *Gateway) visit(ctx context.Context, collector *colly.Collector, proxied string) (visitResult, error) {
	type outcome struct {
		res visitResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		var (
			res      visitResult
			fetchErr error
		)
		collector.OnResponse(func(r *colly.Response) {
			res.status = r.StatusCode
			res.body = append([]byte(nil), r.Body...)
		})
		collector.OnError(func(r *colly.Response, err error) {
			if r != nil {
				res.status = r.StatusCode
			}
			fetchErr = err
		})
		if err := collector.Visit(proxied); err != nil {
			fetchErr = fmt.Errorf("visit: %w", err)
		}
		done <- outcome{res: res, err: fetchErr}
	}()

	select {
	case <-ctx.Done():
		return visitResult{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case o := <-done:
		return o.res, o.err
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
