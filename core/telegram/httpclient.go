package telegram

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/botmesero/mesero/core/telegram/netutil"
)

// HTTPOptions tunes the client used for Bot API calls. Zero values fall back
// to the defaults below; a negative RetryAttempts disables retries.
type HTTPOptions struct {
	ClientTimeout time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

const (
	defaultClientTimeout = 30 * time.Second
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 2 * time.Second
)

func (o HTTPOptions) withDefaults() HTTPOptions {
	if o.ClientTimeout <= 0 {
		o.ClientTimeout = defaultClientTimeout
	}
	switch {
	case o.RetryAttempts < 0:
		o.RetryAttempts = 0
	case o.RetryAttempts == 0:
		o.RetryAttempts = defaultRetryAttempts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	return o
}

// BuildHTTPClient returns the client for Bot API calls. Long polling keeps
// a request open for the poll timeout, so only the overall client timeout
// bounds a response.
func BuildHTTPClient(opts HTTPOptions) *http.Client {
	opts = opts.withDefaults()
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: opts.ClientTimeout,
		Transport: &retryTransport{
			base: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       30 * time.Second,
				TLSHandshakeTimeout:   5 * time.Second,
				ExpectContinueTimeout: time.Second,
			},
			maxRetries: opts.RetryAttempts,
			backoff:    opts.RetryBackoff,
		},
	}
}

// retryTransport repeats a request that failed below HTTP, waiting
// backoff×attempt in between. Bot API error responses are returned as is.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.maxRetries && netutil.ShouldRetry(err); attempt++ {
		if !pause(req.Context(), t.backoff*time.Duration(attempt)) {
			return nil, req.Context().Err()
		}
		retry, ok := rewind(req)
		if !ok {
			break
		}
		resp, err = base.RoundTrip(retry)
	}
	return resp, err
}

// rewind returns a copy of req with a fresh body. Requests whose body
// cannot be replayed are not retried.
func rewind(req *http.Request) (*http.Request, bool) {
	if req.Body == nil || req.Body == http.NoBody {
		return req.Clone(req.Context()), true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	retry := req.Clone(req.Context())
	retry.Body = body
	return retry, true
}

func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
