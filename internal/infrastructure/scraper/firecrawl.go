package scraper

import (
	"context"
	"net/http"
	"strings"

	"apply-codes/internal/infrastructure/vendor"

	"go.uber.org/zap"
)

const VendorFirecrawl = "firecrawl"

type Firecrawl struct {
	client *vendor.Client
}

func NewFirecrawl(apiKey, baseURL string, logger *zap.Logger, opts ...vendor.Option) *Firecrawl {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	opts = append([]vendor.Option{vendor.WithBearer(apiKey), vendor.WithTimeout(maxTimeout)}, opts...)
	return &Firecrawl{client: vendor.New(VendorFirecrawl, baseURL, logger, opts...)}
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string         `json:"markdown"`
		Links    []string       `json:"links"`
		Metadata map[string]any `json:"metadata"`
	} `json:"data"`
}

func (f *Firecrawl) Fetch(ctx context.Context, opts Options) (Page, error) {
	if f == nil {
		return Page{}, vendor.NotConfigured(VendorFirecrawl)
	}
	formats := []string{"markdown"}
	if opts.ExtractLinks {
		formats = append(formats, "links")
	}
	body := map[string]any{
		"url":             opts.URL,
		"formats":         formats,
		"onlyMainContent": !opts.FullPage,
		"timeout":         opts.Timeout.Milliseconds(),
	}
	if opts.WaitForJS {
		body["waitFor"] = 2000
	}

	var resp firecrawlResponse
	if err := f.client.Do(ctx, vendor.Request{Method: http.MethodPost, Path: "/v1/scrape", JSON: body}, &resp); err != nil {
		return Page{}, err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "scrape unsuccessful"
		}
		return Page{}, &vendor.APIError{Vendor: VendorFirecrawl, StatusCode: http.StatusBadGateway, Message: msg}
	}

	meta := resp.Data.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	title, _ := meta["title"].(string)
	desc, _ := meta["description"].(string)
	links := []string{}
	if opts.ExtractLinks {
		links = dedupeLinks(resp.Data.Links)
	}
	return Page{
		URL:         opts.URL,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(desc),
		Content:     strings.TrimSpace(resp.Data.Markdown),
		Links:       links,
		Metadata:    meta,
		Source:      SourceFirecrawl,
	}, nil
}
