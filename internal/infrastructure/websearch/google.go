// Package websearch wraps the web search, answer and geocoding vendors.
package websearch

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"apply-codes/internal/infrastructure/vendor"
	"apply-codes/internal/search"

	"go.uber.org/zap"
)

const (
	VendorGoogleCSE  = "google_cse"
	VendorGoogleMaps = "google_maps"
)

type Google struct {
	client   *vendor.Client
	apiKey   string
	engineID string
}

func NewGoogle(apiKey, engineID, baseURL string, logger *zap.Logger, opts ...vendor.Option) *Google {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(engineID) == "" {
		return nil
	}
	return &Google{client: vendor.New(VendorGoogleCSE, baseURL, logger, opts...), apiKey: apiKey, engineID: engineID}
}

type SearchPage struct {
	Results      []search.Result
	TotalResults int64
}

type cseResponse struct {
	Items             []search.Result `json:"items"`
	SearchInformation struct {
		TotalResults string `json:"totalResults"`
	} `json:"searchInformation"`
}

// Search runs one Custom Search page. num is clamped to 1..10 and start to
// 1..91, the window the API accepts.
func (g *Google) Search(ctx context.Context, query string, num, start int) (SearchPage, error) {
	if g == nil {
		return SearchPage{}, vendor.NotConfigured(VendorGoogleCSE)
	}
	num = clamp(num, 1, 10, 10)
	start = clamp(start, 1, 91, 1)

	q := url.Values{
		"key":   {g.apiKey},
		"cx":    {g.engineID},
		"q":     {query},
		"num":   {strconv.Itoa(num)},
		"start": {strconv.Itoa(start)},
	}
	var resp cseResponse
	if err := g.client.Do(ctx, vendor.Request{Method: http.MethodGet, Path: "/customsearch/v1", Query: q}, &resp); err != nil {
		return SearchPage{}, err
	}
	total, _ := strconv.ParseInt(resp.SearchInformation.TotalResults, 10, 64)
	if resp.Items == nil {
		resp.Items = []search.Result{}
	}
	return SearchPage{Results: resp.Items, TotalResults: total}, nil
}

func clamp(v, lo, hi, def int) int {
	if v == 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
