package enrichment

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"apply-codes/internal/infrastructure/vendor"

	"go.uber.org/zap"
)

const VendorClearbit = "clearbit"

var (
	clearbitPersonShape = MustShape(`{
		fullName: name.fullName,
		email: email,
		location: location,
		bio: bio,
		avatar: avatar,
		title: employment.title,
		seniority: employment.seniority,
		company: employment.name,
		companyDomain: employment.domain,
		linkedin: linkedin.handle,
		twitter: twitter.handle,
		github: github.handle
	}`)

	clearbitCompanyShape = MustShape(`{
		name: name,
		legalName: legalName,
		domain: domain,
		description: description,
		industry: category.industry,
		sector: category.sector,
		foundedYear: foundedYear,
		employees: metrics.employees,
		employeesRange: metrics.employeesRange,
		location: location,
		linkedin: linkedin.handle,
		twitter: twitter.handle,
		logo: logo,
		tech: tech,
		tags: tags
	}`)
)

type Clearbit struct {
	person  *vendor.Client
	company *vendor.Client
}

func NewClearbit(apiKey, personBaseURL, companyBaseURL string, logger *zap.Logger, opts ...vendor.Option) *Clearbit {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	opts = append([]vendor.Option{vendor.WithBearer(apiKey)}, opts...)
	return &Clearbit{
		person:  vendor.New(VendorClearbit, personBaseURL, logger, opts...),
		company: vendor.New(VendorClearbit, companyBaseURL, logger, opts...),
	}
}

// Person looks a person up by email. Clearbit answers 202 while a lookup is
// still queued; that and an empty body both come back as nil.
func (c *Clearbit) Person(ctx context.Context, email string) (map[string]any, error) {
	if c == nil {
		return nil, vendor.NotConfigured(VendorClearbit)
	}
	var raw map[string]any
	q := url.Values{"email": {strings.ToLower(strings.TrimSpace(email))}}
	if err := c.person.Do(ctx, vendor.Request{Method: http.MethodGet, Path: "/v2/people/find", Query: q}, &raw); err != nil {
		return nil, err
	}
	return clearbitPersonShape.Object(raw)
}

func (c *Clearbit) Company(ctx context.Context, domain string) (map[string]any, error) {
	if c == nil {
		return nil, vendor.NotConfigured(VendorClearbit)
	}
	var raw map[string]any
	q := url.Values{"domain": {NormalizeDomain(domain)}}
	if err := c.company.Do(ctx, vendor.Request{Method: http.MethodGet, Path: "/v2/companies/find", Query: q}, &raw); err != nil {
		return nil, err
	}
	return clearbitCompanyShape.Object(raw)
}

// NormalizeDomain strips scheme, "www." and any path from a domain or URL.
func NormalizeDomain(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			s = u.Host
		}
	}
	if i := strings.IndexAny(s, "/?#"); i != -1 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, "www.")
}
