package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/junpoanalyze/chips"
	"golang.org/x/net/publicsuffix"
)

const (
	SignInPath  = "/users/sign_in"
	HistoryPath = "/players/chip_histories"

	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	maxBodyBytes   = 4 << 20
	defaultTimeout = 30 * time.Second
)

type StatusError struct {
	StatusCode int
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned HTTP %d", e.Path, e.StatusCode)
}

// IsTimeout reports whether err was caused by a deadline or a network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Client talks to the upstream site and keeps its cookies. It is safe for
// concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

var _ chips.Upstream = (*Client)(nil)

type Option func(*Client)

// WithTimeout bounds every request regardless of the caller's context.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.http.Timeout = timeout }
}

// WithTransport replaces the HTTP transport. Clients built by one Factory
// share it, so their connections to the upstream are pooled together.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = transport }
}

// NewTransport clones the default transport and keeps up to idlePerHost idle
// connections to the upstream host.
func NewTransport(idlePerHost int) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if idlePerHost > t.MaxIdleConnsPerHost {
		t.MaxIdleConnsPerHost = idlePerHost
	}
	if t.MaxIdleConns < idlePerHost {
		t.MaxIdleConns = idlePerHost
	}
	return t
}

func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", baseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	c := &Client{
		baseURL: base,
		http:    &http.Client{Jar: jar, Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Factory returns a constructor of independent clients, each with its own
// cookie jar.
func Factory(baseURL string, opts ...Option) func() (chips.Upstream, error) {
	return func() (chips.Upstream, error) {
		return New(baseURL, opts...)
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) SignInPage(ctx context.Context) ([]byte, error) {
	return c.get(ctx, SignInPath, nil)
}

// SignIn posts the login form and follows the redirect chain to its end.
func (c *Client) SignIn(ctx context.Context, form url.Values) (chips.Landing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(SignInPath, nil),
		strings.NewReader(form.Encode()))
	if err != nil {
		return chips.Landing{}, fmt.Errorf("build sign in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", c.endpoint(SignInPath, nil))

	res, err := c.http.Do(req)
	if err != nil {
		return chips.Landing{}, fmt.Errorf("post %s: %w", SignInPath, err)
	}
	defer func() { _ = res.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyBytes))

	return chips.Landing{URL: res.Request.URL, StatusCode: res.StatusCode}, nil
}

func (c *Client) ChipHistories(ctx context.Context, storeId chips.StoreId, period chips.PeriodKey) ([]byte, error) {
	query := url.Values{}
	if period != "" {
		query.Set("month", string(period))
	}
	query.Set("store_id", string(storeId))
	return c.get(ctx, HistoryPath, query)
}

// StoresPage is the history page without parameters; it carries the store
// selector.
func (c *Client) StoresPage(ctx context.Context) ([]byte, error) {
	return c.get(ctx, HistoryPath, nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer func() { _ = res.Body.Close() }()

	// The upstream answers pages of a stale session with a redirect to the
	// sign in form, which itself is a 200.
	if path != SignInPath && c.signInLanding(res.Request.URL) {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyBytes))
		return nil, fmt.Errorf("get %s: %w", path, chips.ErrSignedOut)
	}
	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyBytes))
		return nil, &StatusError{StatusCode: res.StatusCode, Path: path}
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return body, nil
}

func (c *Client) signInLanding(u *url.URL) bool {
	return u != nil && u.Path == c.baseURL.Path+SignInPath
}
