package usecase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"apply-codes/internal/infrastructure/enrichment"
	"apply-codes/internal/infrastructure/vendor"
	"apply-codes/internal/logger"
	"apply-codes/internal/store"

	"go.uber.org/zap"
)

const EnrichmentTTL = 24 * time.Hour

type PeopleSource interface {
	Enrich(ctx context.Context, q enrichment.PersonQuery) (map[string]any, error)
	Contact(ctx context.Context, q enrichment.PersonQuery) (map[string]any, error)
	Search(ctx context.Context, q enrichment.SearchQuery) ([]map[string]any, int, error)
}

type CompanySource interface {
	Person(ctx context.Context, email string) (map[string]any, error)
	Company(ctx context.Context, domain string) (map[string]any, error)
}

type EmailFinder interface {
	DomainSearch(ctx context.Context, domain string, limit int) (map[string]any, error)
	FindEmail(ctx context.Context, domain, firstName, lastName string) (map[string]any, error)
}

type CodeProfileSource interface {
	Profile(ctx context.Context, username string) (map[string]any, error)
	LoginForEmail(ctx context.Context, email string) (string, error)
}

// EnrichmentResult is the shape every enrichment route answers with. A
// vendor miss is Found=false with a nil Data, never an error.
type EnrichmentResult struct {
	Found  bool   `json:"found"`
	Data   any    `json:"data"`
	Source string `json:"source"`
}

type PeopleSearchInput struct {
	Query      string
	Filters    map[string]string
	MaxResults int
}

type HunterInput struct {
	Domain    string
	FirstName string
	LastName  string
	Limit     int
}

type EnrichmentUsecase interface {
	EnrichProfile(ctx context.Context, userID string, q enrichment.PersonQuery) (EnrichmentResult, error)
	ContactInfo(ctx context.Context, userID string, q enrichment.PersonQuery) (EnrichmentResult, error)
	SearchPeople(ctx context.Context, userID, kind string, in PeopleSearchInput) (EnrichmentResult, error)
	Clearbit(ctx context.Context, userID, email, domain string) (EnrichmentResult, error)
	Hunter(ctx context.Context, userID string, in HunterInput) (EnrichmentResult, error)
	GitHub(ctx context.Context, userID, username, email string) (EnrichmentResult, error)
}

type Enrichment struct {
	people  PeopleSource
	company CompanySource
	emails  EmailFinder
	code    CodeProfileSource
	cache   Cache
	audit   *Recorder
	logger  *zap.Logger
}

func NewEnrichmentUsecase(people PeopleSource, company CompanySource, emails EmailFinder, code CodeProfileSource, cache Cache, audit *Recorder, log *zap.Logger) *Enrichment {
	return &Enrichment{
		people:  people,
		company: company,
		emails:  emails,
		code:    code,
		cache:   cache,
		audit:   audit,
		logger:  logger.OrNop(log),
	}
}

func personFields(q enrichment.PersonQuery) map[string]string {
	return map[string]string{"email": q.Email, "linkedinUrl": q.LinkedInURL, "name": q.Name, "company": q.Company}
}

func (u *Enrichment) EnrichProfile(ctx context.Context, userID string, q enrichment.PersonQuery) (EnrichmentResult, error) {
	if !q.Valid() {
		return EnrichmentResult{}, invalid("email, linkedinUrl, or name and company are required")
	}
	return u.lookup(ctx, userID, "enrichProfile", enrichment.VendorPDL, personFields(q), func(ctx context.Context) (any, bool, error) {
		data, err := u.people.Enrich(ctx, q)
		return data, data != nil, err
	})
}

func (u *Enrichment) ContactInfo(ctx context.Context, userID string, q enrichment.PersonQuery) (EnrichmentResult, error) {
	if !q.Valid() {
		return EnrichmentResult{}, invalid("email, linkedinUrl, or name and company are required")
	}
	return u.lookup(ctx, userID, "getContactInfo", enrichment.VendorPDL, personFields(q), func(ctx context.Context) (any, bool, error) {
		data, err := u.people.Contact(ctx, q)
		return data, data != nil, err
	})
}

// SearchPeople backs both pdlSearch and searchContacts; kind names the route.
func (u *Enrichment) SearchPeople(ctx context.Context, userID, kind string, in PeopleSearchInput) (EnrichmentResult, error) {
	if strings.TrimSpace(in.Query) == "" && len(in.Filters) == 0 {
		return EnrichmentResult{}, invalid("query or filters are required")
	}
	if in.MaxResults < 0 || in.MaxResults > 100 {
		return EnrichmentResult{}, invalid("maxResults must be between 1 and 100")
	}
	fields := map[string]string{"query": in.Query, "size": strconv.Itoa(in.MaxResults)}
	for k, v := range in.Filters {
		fields["filter."+k] = v
	}
	return u.lookup(ctx, userID, kind, enrichment.VendorPDL, fields, func(ctx context.Context) (any, bool, error) {
		people, total, err := u.people.Search(ctx, enrichment.SearchQuery{Query: in.Query, Filters: in.Filters, Size: in.MaxResults})
		if err != nil {
			return nil, false, err
		}
		if people == nil {
			people = []map[string]any{}
		}
		return map[string]any{"people": people, "total": total}, len(people) > 0, nil
	})
}

func (u *Enrichment) Clearbit(ctx context.Context, userID, email, domain string) (EnrichmentResult, error) {
	email, domain = strings.TrimSpace(email), enrichment.NormalizeDomain(domain)
	switch {
	case email != "":
		return u.lookup(ctx, userID, "clearbitPerson", enrichment.VendorClearbit, map[string]string{"email": email}, func(ctx context.Context) (any, bool, error) {
			data, err := u.company.Person(ctx, email)
			return data, data != nil, err
		})
	case domain != "":
		return u.lookup(ctx, userID, "clearbitCompany", enrichment.VendorClearbit, map[string]string{"domain": domain}, func(ctx context.Context) (any, bool, error) {
			data, err := u.company.Company(ctx, domain)
			return data, data != nil, err
		})
	default:
		return EnrichmentResult{}, invalid("email or domain is required")
	}
}

func (u *Enrichment) Hunter(ctx context.Context, userID string, in HunterInput) (EnrichmentResult, error) {
	domain := enrichment.NormalizeDomain(in.Domain)
	if domain == "" {
		return EnrichmentResult{}, invalid("domain is required")
	}
	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if first != "" && last != "" {
		fields := map[string]string{"domain": domain, "firstName": first, "lastName": last}
		return u.lookup(ctx, userID, "hunterFinder", enrichment.VendorHunter, fields, func(ctx context.Context) (any, bool, error) {
			data, err := u.emails.FindEmail(ctx, domain, first, last)
			return data, data != nil, err
		})
	}
	fields := map[string]string{"domain": domain, "limit": strconv.Itoa(in.Limit)}
	return u.lookup(ctx, userID, "hunterDomain", enrichment.VendorHunter, fields, func(ctx context.Context) (any, bool, error) {
		data, err := u.emails.DomainSearch(ctx, domain, in.Limit)
		return data, data != nil, err
	})
}

func (u *Enrichment) GitHub(ctx context.Context, userID, username, email string) (EnrichmentResult, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	email = strings.TrimSpace(email)
	if username == "" && email == "" {
		return EnrichmentResult{}, invalid("username or email is required")
	}
	fields := map[string]string{"username": username, "email": email}
	return u.lookup(ctx, userID, "githubProfile", enrichment.VendorGitHub, fields, func(ctx context.Context) (any, bool, error) {
		login := username
		if login == "" {
			found, err := u.code.LoginForEmail(ctx, email)
			if err != nil || found == "" {
				return nil, false, err
			}
			login = found
		}
		data, err := u.code.Profile(ctx, login)
		return data, data != nil, err
	})
}

type fetchFunc func(ctx context.Context) (data any, found bool, err error)

// lookup serves a vendor call through the cache and maps a vendor 404 to
// a miss. Only hits are cached.
func (u *Enrichment) lookup(ctx context.Context, userID, kind, source string, fields map[string]string, fetch fetchFunc) (EnrichmentResult, error) {
	key := EnrichmentCacheKey(source, kind, fields)
	if u.cache != nil {
		var cached EnrichmentResult
		if hit, err := u.cache.GetJSON(ctx, key, &cached); err == nil && hit {
			u.logger.Debug("enrichment cache hit", zap.String("kind", kind))
			return cached, nil
		}
	}

	data, found, err := fetch(ctx)
	if err != nil && !vendor.IsNotFound(err) {
		return EnrichmentResult{}, err
	}
	res := EnrichmentResult{Source: source}
	if err == nil && found {
		res.Found = true
		res.Data = data
	}

	if res.Found && u.cache != nil {
		if err := u.cache.SetJSON(ctx, key, res, EnrichmentTTL); err != nil {
			u.logger.Debug("enrichment cache write skipped", zap.Error(err))
		}
	}

	u.audit.Record(ctx, store.CollectionSearchLogs, Entry{
		UserID:   userID,
		Kind:     kind,
		Request:  redact(fields),
		Response: map[string]any{"found": res.Found, "source": source},
	})
	return res, nil
}

// redact drops empty fields so the log shows what was actually asked.
func redact(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if v = strings.TrimSpace(v); v != "" && v != "0" {
			out[k] = v
		}
	}
	return out
}
