package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/CacheOnHover/internal/infrastructure/resilience"
)

// ErrBodyTooLarge is returned when a response exceeds Options.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// Options configures a Client.
type Options struct {
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64 // <= 0 means unlimited
	MaxBodyBytes      int64
	RetryMax          int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	Breaker           resilience.Settings
	Logger            *zap.Logger
}

// DefaultOptions returns options suitable for fetching documents.
func DefaultOptions() Options {
	return Options{
		Timeout:      30 * time.Second,
		UserAgent:    "CacheOnHover/1.0",
		MaxBodyBytes: 10 << 20,
		RetryMax:     2,
		RetryWaitMin: 250 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		Breaker: resilience.Settings{
			MaxRequests: 2,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 5 ||
					(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
			},
		},
	}
}

// Client wraps resty with per-origin circuit breakers, rate limiting, and
// content decoding. Retries happen in the retryablehttp transport.
type Client struct {
	Resty    *resty.Client
	Breakers *resilience.Group

	mu           sync.RWMutex
	limiter      *rate.Limiter
	maxBodyBytes int64
}

// Response is a fully read and decoded response.
type Response struct {
	URL    *url.URL
	Status int
	Header http.Header
	Body   []byte
}

// ContentType returns the Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// NewClient creates a client from opts.
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = leveledLogger{log.Sugar()}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Encoding", acceptEncoding)

	c := &Client{
		Resty:        restyClient,
		Breakers:     resilience.NewGroup(opts.Breaker),
		maxBodyBytes: opts.MaxBodyBytes,
	}
	c.SetRateLimit(opts.RequestsPerSecond)
	return c
}

// SetRateLimit configures rate limiting in requests per second.
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Get fetches rawURL. The request is refused without touching the network
// when the origin's breaker is open. Server errors count against the
// breaker and are returned as a Response, not an error.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	done, err := c.Breakers.Get(u.Scheme + "://" + u.Host).Allow()
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, rawURL, header)
	done(err == nil && resp.Status < http.StatusInternalServerError)
	return resp, err
}

func (c *Client) do(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	req := c.Resty.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := req.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	body, err := c.readBody(raw, resp.Header().Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}

	final := resp.Request.RawRequest.URL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		final = resp.RawResponse.Request.URL
	}

	return &Response{
		URL:    final,
		Status: resp.StatusCode(),
		Header: resp.Header(),
		Body:   body,
	}, nil
}

func (c *Client) readBody(raw io.Reader, encoding string) ([]byte, error) {
	r, closeFn, err := decodeContent(raw, encoding)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	limit := c.maxBodyBytes
	if limit <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

// BreakerStates reports the breaker state per origin.
func (c *Client) BreakerStates() map[string]resilience.State {
	return c.Breakers.States()
}

type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
