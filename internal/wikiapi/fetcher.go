package wikiapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lueurxax/wikirender/internal/core/errors"
)

const (
	defaultFetchTimeoutSeconds = 30
	maxRedirects               = 5
	globalLimiterBurst         = 5
	maxBodySizeMB              = 5
	maxBodySizeBytes           = maxBodySizeMB * 1024 * 1024
	hostLimiterRate            = 1
	hostLimiterBurst           = 2
	defaultUserAgent           = "wikirender/1.0 (MediaWiki renderer)"
)

// Fetcher performs rate limited GET requests: one global limiter plus one
// limiter per host.
type Fetcher struct {
	client        *http.Client
	globalLimiter *rate.Limiter
	hostLimiters  map[string]*rate.Limiter
	mu            sync.RWMutex
	userAgent     string
}

// NewFetcher creates a fetcher allowing rps requests per second overall.
func NewFetcher(rps float64, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeoutSeconds * time.Second
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.ErrTooManyRedirects
				}

				return nil
			},
		},
		globalLimiter: rate.NewLimiter(rate.Limit(rps), globalLimiterBurst),
		hostLimiters:  make(map[string]*rate.Limiter),
		userAgent:     defaultUserAgent,
	}
}

// Get fetches rawURL and returns at most 5 MB of the body.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.globalLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("global rate limiter wait: %w", err)
	}

	hostLimiter := f.getHostLimiter(extractHost(rawURL))
	if err := hostLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("host rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errors.ErrHTTPStatusNotOK, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}

func (f *Fetcher) getHostLimiter(host string) *rate.Limiter {
	f.mu.RLock()
	limiter, exists := f.hostLimiters[host]
	f.mu.RUnlock()

	if exists {
		return limiter
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if limiter, exists := f.hostLimiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(hostLimiterRate, hostLimiterBurst)
	f.hostLimiters[host] = limiter

	return limiter
}

func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Host)
}
