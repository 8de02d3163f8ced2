// Package scraper turns a URL into readable page text, through Firecrawl
// when configured and a local collector otherwise.
package scraper

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"apply-codes/internal/infrastructure/vendor"
	"apply-codes/internal/logger"

	"go.uber.org/zap"
)

var ErrInvalidURL = errors.New("invalid url")

const (
	SourceFirecrawl = "firecrawl"
	SourceColly     = "colly"
	SourceChromedp  = "chromedp"

	defaultTimeout = 30 * time.Second
	maxTimeout     = 120 * time.Second
	maxLinks       = 200
)

type Options struct {
	URL          string
	FullPage     bool
	ExtractLinks bool
	WaitForJS    bool
	Timeout      time.Duration
}

// Page is the readable form of one fetched URL.
type Page struct {
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Content     string         `json:"content"`
	Links       []string       `json:"links"`
	Metadata    map[string]any `json:"metadata"`
	Source      string         `json:"source"`
}

type Fetcher interface {
	Fetch(ctx context.Context, opts Options) (Page, error)
}

// Client fetches through Primary and falls back to the local collectors
// when Primary is missing, unreachable or failing on its side (5xx).
// Client-side vendor errors (bad key, quota) are returned as is.
type Client struct {
	Primary  Fetcher
	Static   Fetcher
	Headless Fetcher
	logger   *zap.Logger
}

func NewClient(primary, static, headless Fetcher, log *zap.Logger) *Client {
	return &Client{Primary: primary, Static: static, Headless: headless, logger: logger.OrNop(log)}
}

func (c *Client) Fetch(ctx context.Context, opts Options) (Page, error) {
	u, err := NormalizeURL(opts.URL)
	if err != nil {
		return Page{}, err
	}
	opts.URL = u
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Timeout > maxTimeout {
		opts.Timeout = maxTimeout
	}

	if c.Primary != nil {
		page, err := c.Primary.Fetch(ctx, opts)
		if err == nil || !fallbackWorthy(err) {
			return page, err
		}
		c.logger.Warn("primary scrape failed, using fallback", zap.String("url", u), zap.Error(err))
	}

	if opts.WaitForJS && c.Headless != nil {
		page, err := c.Headless.Fetch(ctx, opts)
		if err == nil {
			return page, nil
		}
		c.logger.Warn("headless scrape failed", zap.String("url", u), zap.Error(err))
	}
	if c.Static == nil {
		return Page{}, vendor.NotConfigured("scraper")
	}
	return c.Static.Fetch(ctx, opts)
}

func fallbackWorthy(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *vendor.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true
}

// NormalizeURL accepts bare hosts ("acme.io/careers") and rejects anything
// that is not http(s) with a host.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidURL
	}
	u.Fragment = ""
	return u.String(), nil
}

func hostFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(u.Host); err == nil {
		return h
	}
	return u.Host
}

func httpHeaders(userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = "ApplyScraper/1.0"
	}
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept-Language": "en-US,en;q=0.9",
	}
}

func dedupeLinks(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "javascript:") || strings.HasPrefix(l, "mailto:") {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
		if len(out) == maxLinks {
			break
		}
	}
	return out
}
