package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/retry"
)

const (
	defaultTimeout               = 30 * time.Second
	defaultMaxIdleConns          = 100
	defaultMaxIdleConnsPerHost   = 10
	defaultIdleConnTimeout       = 90 * time.Second
	defaultResponseHeaderTimeout = 30 * time.Second
	defaultTLSHandshakeTimeout   = 10 * time.Second

	// maxResponseBodyBytes limits the size of fetched page responses.
	maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB
)

// Config configures the HTTP fetch service.
type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	// HostInterval is the minimum spacing between requests to one host.
	HostInterval time.Duration
}

// HTTPService fetches pages over HTTP with per-host politeness and retry on
// transient transport failures.
type HTTPService struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	hostInterval time.Duration
	logger       logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPService creates the production fetch implementation.
func NewHTTPService(cfg Config, log logger.Logger) *HTTPService {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody == 0 {
		maxBody = maxResponseBodyBytes
	}

	transport := &http.Transport{
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
	}

	return &HTTPService{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: maxBody,
		hostInterval: cfg.HostInterval,
		logger:       log,
		limiters:     make(map[string]*rate.Limiter),
	}
}

// hostLimiter returns the rate limiter for a host, creating it on first use.
func (s *HTTPService) hostLimiter(host string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[host]
	if !ok {
		interval := s.hostInterval
		if interval <= 0 {
			limiter = rate.NewLimiter(rate.Inf, 1)
		} else {
			limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
		s.limiters[host] = limiter
	}
	return limiter
}

// Fetch retrieves a page. Transport failures are retried with backoff; an
// HTTP error status is returned as data on the Result.
func (s *HTTPService) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	if waitErr := s.hostLimiter(parsed.Host).Wait(ctx); waitErr != nil {
		return nil, fmt.Errorf("rate limit wait: %w", waitErr)
	}

	var result *Result
	err = retry.RetryWithDefaults(ctx, func() error {
		var fetchErr error
		result, fetchErr = s.fetchOnce(ctx, rawURL)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *HTTPService) fetchOnce(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		Body:        body,
		HTTPStatus:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    finalURL,
	}, nil
}
