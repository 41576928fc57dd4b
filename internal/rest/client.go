package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIVersion int
	Token      string
	Timeout    time.Duration
	MaxRetries int
	// GlobalRate is the request budget per second shared by every route.
	GlobalRate int
	HTTPClient *http.Client
	UserAgent  string
}

// Client is a rate-limited HTTP API client. It is safe for concurrent use;
// bucket locks cover accounting only, never a request in flight.
type Client struct {
	baseURL    string
	token      string
	maxRetries int
	userAgent  string
	http       *http.Client
	global     *rate.Limiter
	logger     *zap.Logger

	mu          sync.Mutex
	buckets     map[string]*bucket
	globalUntil time.Time
}

// NewClient creates a Client.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://discord.com/api"
	}
	if opts.APIVersion == 0 {
		opts.APIVersion = 10
	}
	if opts.GlobalRate <= 0 {
		opts.GlobalRate = 50
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "DiscordBot (https://github.com/ziadkadry99/shardgate, 1.0)"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    fmt.Sprintf("%s/v%d", strings.TrimRight(opts.BaseURL, "/"), opts.APIVersion),
		token:      opts.Token,
		maxRetries: opts.MaxRetries,
		userAgent:  opts.UserAgent,
		http:       opts.HTTPClient,
		global:     rate.NewLimiter(rate.Limit(opts.GlobalRate), opts.GlobalRate),
		logger:     logger.Named("rest"),
		buckets:    make(map[string]*bucket),
	}
}

// bucket tracks one route's remaining budget from the rate-limit headers.
type bucket struct {
	mu        sync.Mutex
	known     bool
	remaining int
	resetAt   time.Time
}

// reserve takes one request from the bucket and returns how long to wait
// before sending it.
func (b *bucket) reserve(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.known {
		return 0
	}
	if now.After(b.resetAt) {
		b.known = false
		return 0
	}
	if b.remaining > 0 {
		b.remaining--
		return 0
	}
	return b.resetAt.Sub(now)
}

func (b *bucket) update(h http.Header, now time.Time) {
	remaining, err := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	if err != nil {
		return
	}
	resetAfter, err := strconv.ParseFloat(h.Get("X-RateLimit-Reset-After"), 64)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.known = true
	b.remaining = remaining
	b.resetAt = now.Add(seconds(resetAfter))
}

// maxBuckets bounds the bucket map; per-interaction webhook buckets are
// pruned once they have reset.
const maxBuckets = 1024

func (c *Client) bucketFor(key string) *bucket {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buckets) >= maxBuckets {
		now := time.Now()
		for k, b := range c.buckets {
			b.mu.Lock()
			stale := !b.known || now.After(b.resetAt)
			b.mu.Unlock()
			if stale {
				delete(c.buckets, k)
			}
		}
	}
	b, ok := c.buckets[key]
	if !ok {
		b = &bucket{}
		c.buckets[key] = b
	}
	return b
}

func (c *Client) globalWait(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Before(c.globalUntil) {
		return c.globalUntil.Sub(now)
	}
	return 0
}

func (c *Client) pauseGlobal(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if until := time.Now().Add(d); until.After(c.globalUntil) {
		c.globalUntil = until
	}
}

// request is one API call. route is the path template used in errors;
// major is the top-level resource the rate limit is scoped to.
type request struct {
	method string
	route  string
	major  string
	path   string
	body   any
	// exempt skips the global limit; interaction callbacks are not bound by it.
	exempt bool
	// noRetry returns a 429 to the caller at once. Interaction replies are
	// not safe to resend and must not outlive the ack deadline.
	noRetry bool
}

type apiError struct {
	Code       int     `json:"code"`
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return fmt.Errorf("encoding %s %s body: %w", req.method, req.route, err)
		}
	}
	b := c.bucketFor(req.method + " " + req.route + " " + req.major)

	for attempt := 0; ; attempt++ {
		if !req.exempt {
			if err := sleep(ctx, c.globalWait(time.Now())); err != nil {
				return err
			}
			if err := c.global.Wait(ctx); err != nil {
				return err
			}
		}
		if err := sleep(ctx, b.reserve(time.Now())); err != nil {
			return err
		}

		resp, err := c.send(ctx, req, payload)
		if err != nil {
			// url.Error carries the full URL, token included.
			var uerr *url.Error
			if errors.As(err, &uerr) {
				err = uerr.Err
			}
			return fmt.Errorf("%s %s: %w", req.method, req.route, err)
		}
		b.update(resp.Header, time.Now())

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("reading %s %s response: %w", req.method, req.route, err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil || resp.StatusCode == http.StatusNoContent || len(data) == 0 {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decoding %s %s response: %w", req.method, req.route, err)
			}
			return nil
		}

		herr := c.httpError(req, resp, data)
		if !herr.IsRateLimited() {
			return herr
		}
		if herr.Global {
			c.pauseGlobal(herr.RetryAfter)
		}
		if req.noRetry || attempt >= c.maxRetries {
			return herr
		}
		c.logger.Warn("rate limited",
			zap.String("route", req.method+" "+req.route),
			zap.Duration("retry_after", herr.RetryAfter),
			zap.Bool("global", herr.Global),
			zap.Int("attempt", attempt+1),
		)
		if err := sleep(ctx, herr.RetryAfter); err != nil {
			return err
		}
	}
}

func (c *Client) send(ctx context.Context, req request, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Authorization", "Bot "+c.token)
	hreq.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(hreq)
}

func (c *Client) httpError(req request, resp *http.Response, data []byte) *HTTPError {
	herr := &HTTPError{Method: req.method, Path: req.route, Status: resp.StatusCode}
	var ae apiError
	if json.Unmarshal(data, &ae) == nil {
		herr.Code = ae.Code
		herr.Message = ae.Message
		herr.Global = ae.Global
		herr.RetryAfter = seconds(ae.RetryAfter)
	}
	if herr.RetryAfter == 0 {
		if v, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil {
			herr.RetryAfter = seconds(v)
		}
	}
	if resp.Header.Get("X-RateLimit-Global") == "true" {
		herr.Global = true
	}
	return herr
}

func seconds(v float64) time.Duration {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
