// Package fetcher is the rate-limited, retrying JSON transport shared by the
// Census statistics, geocoder and TIGERweb clients.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quietcreep/citysdk/internal/resilience"
)

// maxBody bounds how much of an upstream response is read into memory.
const maxBody = 64 << 20

// Observer is told about every upstream response or transport failure.
// status is 0 when no response was received.
type Observer func(host string, status int)

// Options configures a Client.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Policy    resilience.Policy
	// Limits overrides the per-host request rates. Hosts not listed get
	// DefaultRate.
	Limits    map[string]rate.Limit
	Transport http.RoundTripper
	Observer  Observer
}

// DefaultRate applies to hosts without an explicit limit.
const DefaultRate rate.Limit = 20

// DefaultLimits returns the request rates for the Census hosts.
func DefaultLimits() map[string]rate.Limit {
	return map[string]rate.Limit{
		"api.census.gov":           25,
		"geocoding.geo.census.gov": 50,
		"tigerweb.geo.census.gov":  10,
		"maps.googleapis.com":      25,
	}
}

// Client performs JSON requests against upstream services.
type Client struct {
	http   *http.Client
	opts   Options
	mu     sync.Mutex
	limits map[string]*throttle
}

// New creates a Client with the given options.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "citysdk/1.0"
	}
	if opts.Policy.Attempts == 0 {
		opts.Policy = resilience.DefaultPolicy()
	}
	if opts.Limits == nil {
		opts.Limits = DefaultLimits()
	}
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConnsPerHost: 10,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	return &Client{
		http:   &http.Client{Timeout: opts.Timeout, Transport: transport},
		opts:   opts,
		limits: make(map[string]*throttle),
	}
}

func (c *Client) throttleFor(host string) *throttle {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.limits[host]
	if !ok {
		r, ok := c.opts.Limits[host]
		if !ok {
			r = DefaultRate
		}
		t = newThrottle(r, max(1, int(r)))
		c.limits[host] = t
	}
	return t
}

// GetJSON issues a GET to rawURL with query appended and decodes the JSON
// (or JSONP) body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, v any) error {
	u := rawURL
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return c.doJSON(ctx, http.MethodGet, u, nil, v)
}

// GetRawQueryJSON is GetJSON for a pre-encoded query string. The Census
// statistics API needs literal '*' and '+' in its for/in predicates, which
// url.Values would escape.
func (c *Client) GetRawQueryJSON(ctx context.Context, rawURL, rawQuery string, v any) error {
	u := rawURL
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return c.doJSON(ctx, http.MethodGet, u, nil, v)
}

// PostFormJSON posts form url-encoded and decodes the JSON body into v.
func (c *Client) PostFormJSON(ctx context.Context, rawURL string, form url.Values, v any) error {
	return c.doJSON(ctx, http.MethodPost, rawURL, []byte(form.Encode()), v)
}

// response is one successful upstream reply.
type response struct {
	status int
	body   []byte
}

func (c *Client) doJSON(ctx context.Context, method, rawURL string, body []byte, v any) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	host := parsed.Host
	safe := redact(parsed)
	lim := c.throttleFor(host)

	policy := c.opts.Policy
	if policy.Notify == nil {
		policy.Notify = resilience.LogRetries(host)
	}

	res, err := resilience.Call(ctx, policy, func(ctx context.Context) (response, error) {
		if err := lim.Wait(ctx); err != nil {
			return response{}, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, rdr)
		if err != nil {
			return response{}, eris.Wrap(err, "fetcher: create request")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.observe(host, 0)
			if ctx.Err() != nil {
				return response{}, eris.Wrap(err, "fetcher: request cancelled")
			}
			return response{}, resilience.Transient(&UpstreamError{URL: safe, Err: err}, 0)
		}
		defer resp.Body.Close() //nolint:errcheck
		c.observe(host, resp.StatusCode)

		if resp.StatusCode == http.StatusTooManyRequests {
			lim.slowDown()
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			uerr := &UpstreamError{
				URL:        safe,
				StatusCode: resp.StatusCode,
				Err:        eris.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
			}
			if resilience.IsTransientStatus(resp.StatusCode) {
				return response{}, resilience.Transient(uerr, resp.StatusCode)
			}
			return response{}, uerr
		}

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return response{}, resilience.Transient(&UpstreamError{URL: safe, StatusCode: resp.StatusCode, Err: err}, resp.StatusCode)
		}
		lim.relax()
		return response{status: resp.StatusCode, body: b}, nil
	})
	if err != nil {
		return eris.Wrapf(err, "fetcher: %s %s", method, safe)
	}

	// 204 or a blank body means no content; v is left as is.
	if res.status == http.StatusNoContent || len(bytes.TrimSpace(res.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(StripJSONP(res.body), v); err != nil {
		zap.L().Debug("upstream returned malformed payload",
			zap.String("host", host),
			zap.Int("status", res.status),
			zap.Int("bytes", len(res.body)),
		)
		return &UpstreamError{URL: safe, StatusCode: res.status, Err: eris.Wrap(err, "malformed payload")}
	}
	return nil
}

func (c *Client) observe(host string, status int) {
	if c.opts.Observer != nil {
		c.opts.Observer(host, status)
	}
}

// redact drops API keys from URLs that end up in errors and logs.
func redact(u *url.URL) string {
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		cp := *u
		cp.RawQuery = q.Encode()
		return cp.String()
	}
	return u.String()
}

// StripJSONP unwraps a JSONP body such as `cb({...});` to its JSON payload.
// Plain JSON is returned unchanged.
func StripJSONP(b []byte) []byte {
	t := bytes.TrimSpace(b)
	if len(t) == 0 || t[0] == '{' || t[0] == '[' {
		return t
	}
	open := bytes.IndexByte(t, '(')
	if open <= 0 {
		return t
	}
	for _, r := range string(t[:open]) {
		if !(r == '_' || r == '$' || r == '.' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return t
		}
	}
	end := bytes.TrimRight(t, "; \n\r\t")
	if len(end) == 0 || end[len(end)-1] != ')' {
		return t
	}
	return end[open+1 : len(end)-1]
}
