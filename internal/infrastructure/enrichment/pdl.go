package enrichment

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"apply-codes/internal/infrastructure/vendor"

	"go.uber.org/zap"
)

const VendorPDL = "peopledatalabs"

var (
	pdlProfileShape = MustShape(`{
		fullName: full_name,
		firstName: first_name,
		lastName: last_name,
		jobTitle: job_title,
		company: job_company_name,
		companyDomain: job_company_website,
		industry: industry,
		location: location_name,
		linkedinUrl: linkedin_url,
		githubUrl: github_url,
		twitterUrl: twitter_url,
		summary: summary,
		skills: skills,
		experience: experience[].{company: company.name, title: title.name, startDate: start_date, endDate: end_date, isPrimary: is_primary},
		education: education[].{school: school.name, degrees: degrees, majors: majors, endDate: end_date}
	}`)

	pdlContactShape = MustShape(`{
		fullName: full_name,
		workEmail: work_email,
		emails: emails[].address,
		personalEmails: personal_emails,
		phoneNumbers: phone_numbers,
		mobilePhone: mobile_phone,
		linkedinUrl: linkedin_url,
		company: job_company_name,
		jobTitle: job_title
	}`)
)

// PersonQuery identifies one person. At least one of Email, LinkedInURL or
// Name plus Company must be set.
type PersonQuery struct {
	Email       string
	LinkedInURL string
	Name        string
	Company     string
}

func (q PersonQuery) Valid() bool {
	return strings.TrimSpace(q.Email) != "" || strings.TrimSpace(q.LinkedInURL) != "" ||
		(strings.TrimSpace(q.Name) != "" && strings.TrimSpace(q.Company) != "")
}

func (q PersonQuery) values() url.Values {
	v := url.Values{}
	if s := strings.TrimSpace(q.Email); s != "" {
		v.Set("email", strings.ToLower(s))
	}
	if s := strings.TrimSpace(q.LinkedInURL); s != "" {
		v.Set("profile", s)
	}
	if s := strings.TrimSpace(q.Name); s != "" {
		v.Set("name", s)
	}
	if s := strings.TrimSpace(q.Company); s != "" {
		v.Set("company", s)
	}
	return v
}

// SearchQuery is a person search. Query is either a PDL SQL statement or
// free text matched against job titles and skills.
type SearchQuery struct {
	Query   string
	Filters map[string]string
	Size    int
}

type PDL struct {
	client *vendor.Client
}

func NewPDL(apiKey, baseURL string, logger *zap.Logger, opts ...vendor.Option) *PDL {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	opts = append([]vendor.Option{vendor.WithHeader("X-Api-Key", apiKey)}, opts...)
	return &PDL{client: vendor.New(VendorPDL, baseURL, logger, opts...)}
}

type pdlEnrichResponse struct {
	Status     int            `json:"status"`
	Likelihood int            `json:"likelihood"`
	Data       map[string]any `json:"data"`
}

func (p *PDL) enrich(ctx context.Context, q PersonQuery) (pdlEnrichResponse, error) {
	var resp pdlEnrichResponse
	if p == nil {
		return resp, vendor.NotConfigured(VendorPDL)
	}
	v := q.values()
	v.Set("min_likelihood", "2")
	err := p.client.Do(ctx, vendor.Request{Method: http.MethodGet, Path: "/v5/person/enrich", Query: v}, &resp)
	return resp, err
}

// Enrich returns the reshaped profile, or nil when PDL has no match.
func (p *PDL) Enrich(ctx context.Context, q PersonQuery) (map[string]any, error) {
	resp, err := p.enrich(ctx, q)
	if err != nil {
		return nil, err
	}
	out, err := pdlProfileShape.Object(resp.Data)
	if out != nil {
		out["likelihood"] = resp.Likelihood
	}
	return out, err
}

// Contact returns only the reachability fields of a match.
func (p *PDL) Contact(ctx context.Context, q PersonQuery) (map[string]any, error) {
	resp, err := p.enrich(ctx, q)
	if err != nil {
		return nil, err
	}
	return pdlContactShape.Object(resp.Data)
}

type pdlSearchResponse struct {
	Status int   `json:"status"`
	Total  int   `json:"total"`
	Data   []any `json:"data"`
}

// Search returns reshaped profiles and the vendor's total match count.
func (p *PDL) Search(ctx context.Context, q SearchQuery) ([]map[string]any, int, error) {
	if p == nil {
		return nil, 0, vendor.NotConfigured(VendorPDL)
	}
	size := q.Size
	if size <= 0 {
		size = 10
	}
	if size > 100 {
		size = 100
	}

	body := map[string]any{"size": size, "pretty": false}
	text := strings.TrimSpace(q.Query)
	if strings.HasPrefix(strings.ToUpper(text), "SELECT ") {
		body["sql"] = text
	} else {
		body["query"] = esQuery(text, q.Filters)
	}

	var resp pdlSearchResponse
	if err := p.client.Do(ctx, vendor.Request{Method: http.MethodPost, Path: "/v5/person/search", JSON: body}, &resp); err != nil {
		return nil, 0, err
	}
	people, err := pdlProfileShape.List(resp.Data)
	if err != nil {
		return nil, 0, err
	}
	return people, resp.Total, nil
}

func esQuery(text string, filters map[string]string) map[string]any {
	var must []any
	if text != "" {
		must = append(must, map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{"match": map[string]any{"job_title": text}},
					map[string]any{"match": map[string]any{"skills": text}},
				},
			},
		})
	}
	for field, val := range filters {
		field, val = strings.TrimSpace(field), strings.TrimSpace(val)
		if field == "" || val == "" {
			continue
		}
		must = append(must, map[string]any{"match": map[string]any{field: val}})
	}
	if len(must) == 0 {
		must = append(must, map[string]any{"exists": map[string]any{"field": "linkedin_url"}})
	}
	return map[string]any{"bool": map[string]any{"must": must}}
}
