package enrichment

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"apply-codes/internal/infrastructure/vendor"

	"go.uber.org/zap"
)

const VendorHunter = "hunter"

var (
	hunterDomainShape = MustShape(`{
		domain: data.domain,
		organization: data.organization,
		pattern: data.pattern,
		disposable: data.disposable,
		webmail: data.webmail,
		emails: data.emails[].{value: value, type: type, confidence: confidence, firstName: first_name, lastName: last_name, position: position, department: department, linkedin: linkedin}
	}`)

	hunterFinderShape = MustShape(`{
		email: data.email,
		score: data.score,
		domain: data.domain,
		firstName: data.first_name,
		lastName: data.last_name,
		position: data.position,
		company: data.company,
		verification: data.verification.status
	}`)
)

type Hunter struct {
	client *vendor.Client
}

func NewHunter(apiKey, baseURL string, logger *zap.Logger, opts ...vendor.Option) *Hunter {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	opts = append([]vendor.Option{vendor.WithHeader("X-API-KEY", apiKey)}, opts...)
	return &Hunter{client: vendor.New(VendorHunter, baseURL, logger, opts...)}
}

// DomainSearch lists the addresses Hunter knows for domain.
func (h *Hunter) DomainSearch(ctx context.Context, domain string, limit int) (map[string]any, error) {
	if h == nil {
		return nil, vendor.NotConfigured(VendorHunter)
	}
	q := url.Values{"domain": {NormalizeDomain(domain)}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var raw map[string]any
	if err := h.client.Do(ctx, vendor.Request{Method: http.MethodGet, Path: "/v2/domain-search", Query: q}, &raw); err != nil {
		return nil, err
	}
	out, err := hunterDomainShape.Object(raw)
	if out != nil {
		if emails, _ := out["emails"].([]any); len(emails) == 0 {
			return nil, err
		}
	}
	return out, err
}

// FindEmail guesses the address of one person at domain.
func (h *Hunter) FindEmail(ctx context.Context, domain, firstName, lastName string) (map[string]any, error) {
	if h == nil {
		return nil, vendor.NotConfigured(VendorHunter)
	}
	q := url.Values{
		"domain":     {NormalizeDomain(domain)},
		"first_name": {strings.TrimSpace(firstName)},
		"last_name":  {strings.TrimSpace(lastName)},
	}
	var raw map[string]any
	if err := h.client.Do(ctx, vendor.Request{Method: http.MethodGet, Path: "/v2/email-finder", Query: q}, &raw); err != nil {
		return nil, err
	}
	out, err := hunterFinderShape.Object(raw)
	if out != nil && out["email"] == nil {
		return nil, err
	}
	return out, err
}
