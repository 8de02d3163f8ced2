package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"apply-codes/internal/infrastructure/scraper"
	"apply-codes/internal/infrastructure/websearch"
	"apply-codes/internal/logger"
	"apply-codes/internal/search"
	"apply-codes/internal/store"

	"go.uber.org/zap"
)

type WebSearcher interface {
	Search(ctx context.Context, query string, num, start int) (websearch.SearchPage, error)
}

type AnswerEngine interface {
	Ask(ctx context.Context, query, focus string) (websearch.Answer, error)
}

type PlaceFinder interface {
	Search(ctx context.Context, query string) ([]websearch.Location, error)
}

type PageFetcher interface {
	Fetch(ctx context.Context, opts scraper.Options) (scraper.Page, error)
}

type RankedResult struct {
	Rank int `json:"rank"`
	search.Result
}

type GoogleSearchInput struct {
	Query string
	Num   int
	Start int
}

type GoogleSearchResult struct {
	Results      []RankedResult `json:"results"`
	TotalResults int64          `json:"totalResults"`
	Query        string         `json:"query"`
}

type LocationResult struct {
	Success   bool                 `json:"success"`
	Locations []websearch.Location `json:"locations"`
}

type ScrapeInput struct {
	URL            string
	FullPage       bool
	ExtractLinks   bool
	WaitForJS      bool
	TimeoutSeconds int
}

type LinkedInSearchInput struct {
	Keywords       string
	Title          string
	Location       string
	CurrentCompany string
	PastCompany    string
	School         string
	Industry       string
	Num            int
	Start          int
}

type LinkedInProfile struct {
	Rank     int    `json:"rank"`
	Name     string `json:"name"`
	Headline string `json:"headline"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
}

type LinkedInSearchResult struct {
	Profiles   []LinkedInProfile `json:"profiles"`
	TotalCount int64             `json:"totalCount"`
	Query      string            `json:"query"`
}

type SearchUsecase interface {
	GoogleSearch(ctx context.Context, userID string, in GoogleSearchInput) (GoogleSearchResult, error)
	LinkedInSearch(ctx context.Context, userID string, in LinkedInSearchInput) (LinkedInSearchResult, error)
	PerplexitySearch(ctx context.Context, userID, query, focus string) (websearch.Answer, error)
	LocationSearch(ctx context.Context, query string) (LocationResult, error)
	Scrape(ctx context.Context, userID string, in ScrapeInput) (scraper.Page, error)
}

type Search struct {
	web     WebSearcher
	answers AnswerEngine
	places  PlaceFinder
	pages   PageFetcher
	audit   *Recorder
	logger  *zap.Logger
}

func NewSearchUsecase(web WebSearcher, answers AnswerEngine, places PlaceFinder, pages PageFetcher, audit *Recorder, log *zap.Logger) *Search {
	return &Search{web: web, answers: answers, places: places, pages: pages, audit: audit, logger: logger.OrNop(log)}
}

// GoogleSearch re-ranks the vendor page against the expanded query so
// profile-like results from good sources come first.
func (u *Search) GoogleSearch(ctx context.Context, userID string, in GoogleSearchInput) (GoogleSearchResult, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return GoogleSearchResult{}, invalid("query is required")
	}
	if in.Num < 0 || in.Start < 0 {
		return GoogleSearchResult{}, invalid("num and start must be positive")
	}

	page, err := u.web.Search(ctx, query, in.Num, in.Start)
	if err != nil {
		return GoogleSearchResult{}, err
	}

	qc := search.ProcessQuery(query)
	ranked := search.RankResults(page.Results, qc.Variants)
	offset := max(in.Start, 1)
	out := GoogleSearchResult{Results: make([]RankedResult, 0, len(ranked)), TotalResults: page.TotalResults, Query: query}
	for i, r := range ranked {
		out.Results = append(out.Results, RankedResult{Rank: offset + i, Result: r})
	}

	u.audit.Record(ctx, store.CollectionSearchLogs, Entry{
		UserID:   userID,
		Kind:     "googleSearch",
		Request:  map[string]any{"query": query, "num": in.Num, "start": in.Start},
		Response: map[string]any{"count": len(out.Results), "totalResults": out.TotalResults},
	})
	return out, nil
}

// LinkedInSearch runs a site-restricted web search for public LinkedIn
// profiles. Company, school and industry filters become quoted phrases, so
// they match anywhere on the profile page rather than a specific field.
func (u *Search) LinkedInSearch(ctx context.Context, userID string, in LinkedInSearchInput) (LinkedInSearchResult, error) {
	keywords := strings.TrimSpace(in.Keywords)
	if keywords == "" {
		return LinkedInSearchResult{}, invalid("keywords is required")
	}
	if in.Num < 0 || in.Start < 0 {
		return LinkedInSearchResult{}, invalid("num and start must be positive")
	}

	query := linkedInQuery(in)
	page, err := u.web.Search(ctx, query, in.Num, in.Start)
	if err != nil {
		return LinkedInSearchResult{}, err
	}

	variants := search.ProcessQuery(strings.TrimSpace(keywords + " " + in.Title)).Variants
	offset := max(in.Start, 1)
	out := LinkedInSearchResult{Profiles: []LinkedInProfile{}, TotalCount: page.TotalResults, Query: query}
	for _, r := range search.RankResults(page.Results, variants) {
		if !isProfileURL(r.Link) {
			continue
		}
		name, headline := splitProfileTitle(r.Title)
		out.Profiles = append(out.Profiles, LinkedInProfile{
			Rank:     offset + len(out.Profiles),
			Name:     name,
			Headline: headline,
			URL:      r.Link,
			Snippet:  r.Snippet,
		})
	}

	u.audit.Record(ctx, store.CollectionSearchLogs, Entry{
		UserID: userID,
		Kind:   "linkedinSearch",
		Request: map[string]any{
			"keywords": keywords, "title": in.Title, "location": in.Location,
			"currentCompany": in.CurrentCompany, "pastCompany": in.PastCompany,
			"school": in.School, "industry": in.Industry,
		},
		Response: map[string]any{"count": len(out.Profiles), "totalCount": out.TotalCount, "query": query},
	})
	return out, nil
}

func linkedInQuery(in LinkedInSearchInput) string {
	parts := []string{"site:linkedin.com/in", strings.TrimSpace(in.Keywords)}
	for _, f := range []string{in.Title, in.CurrentCompany, in.PastCompany, in.School, in.Industry, in.Location} {
		if p := quotePhrase(f); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func quotePhrase(s string) string {
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, `"`, "")), " ")
	if s == "" || !strings.Contains(s, " ") {
		return s
	}
	return `"` + s + `"`
}

func isProfileURL(link string) bool {
	return strings.Contains(strings.ToLower(link), "linkedin.com/in/")
}

// splitProfileTitle reads "Ada Lovelace - Staff Engineer - Acme | LinkedIn".
func splitProfileTitle(title string) (string, string) {
	title = strings.TrimSpace(title)
	if i := strings.LastIndex(title, "|"); i > 0 && strings.Contains(strings.ToLower(title[i:]), "linkedin") {
		title = strings.TrimSpace(title[:i])
	}
	for _, sep := range []string{" - ", " \u2013 ", " \u2014 "} {
		if name, rest, ok := strings.Cut(title, sep); ok {
			return strings.TrimSpace(name), strings.TrimSpace(rest)
		}
	}
	return title, ""
}

func (u *Search) PerplexitySearch(ctx context.Context, userID, query, focus string) (websearch.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return websearch.Answer{}, invalid("query is required")
	}
	answer, err := u.answers.Ask(ctx, query, focus)
	if err != nil {
		return websearch.Answer{}, err
	}
	if answer.Sources == nil {
		answer.Sources = []websearch.Source{}
	}
	if answer.FollowupQuestions == nil {
		answer.FollowupQuestions = []string{}
	}

	u.audit.Record(ctx, store.CollectionSearchLogs, Entry{
		UserID:   userID,
		Kind:     "perplexitySearch",
		Request:  map[string]any{"query": query, "focus": focus},
		Response: map[string]any{"answer": logger.TruncateForLog(answer.Answer, 500), "sources": len(answer.Sources), "model": answer.Model},
	})
	return answer, nil
}

// LocationSearch is public; nothing is logged because there is no caller.
func (u *Search) LocationSearch(ctx context.Context, query string) (LocationResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return LocationResult{}, invalid("query is required")
	}
	locs, err := u.places.Search(ctx, query)
	if err != nil {
		return LocationResult{}, err
	}
	if locs == nil {
		locs = []websearch.Location{}
	}
	return LocationResult{Success: true, Locations: locs}, nil
}

func (u *Search) Scrape(ctx context.Context, userID string, in ScrapeInput) (scraper.Page, error) {
	if strings.TrimSpace(in.URL) == "" {
		return scraper.Page{}, invalid("url is required")
	}
	if in.TimeoutSeconds < 0 {
		return scraper.Page{}, invalid("timeoutSeconds must be positive")
	}
	page, err := u.pages.Fetch(ctx, scraper.Options{
		URL:          in.URL,
		FullPage:     in.FullPage,
		ExtractLinks: in.ExtractLinks,
		WaitForJS:    in.WaitForJS,
		Timeout:      time.Duration(in.TimeoutSeconds) * time.Second,
	})
	if errors.Is(err, scraper.ErrInvalidURL) {
		return scraper.Page{}, invalid("url must be an http(s) address")
	}
	if err != nil {
		return scraper.Page{}, err
	}
	if page.Links == nil {
		page.Links = []string{}
	}
	if page.Metadata == nil {
		page.Metadata = map[string]any{}
	}

	u.audit.Record(ctx, store.CollectionSearchLogs, Entry{
		UserID:   userID,
		Kind:     "firecrawlUrl",
		Request:  map[string]any{"url": page.URL, "scrapeFullPage": in.FullPage, "waitForJs": in.WaitForJS},
		Response: map[string]any{"title": page.Title, "length": len(page.Content), "source": page.Source},
	})
	return page, nil
}
