package usecase

import (
	"context"
	"errors"
	"testing"

	"apply-codes/internal/infrastructure/llm"
	"apply-codes/internal/infrastructure/scraper"
	"apply-codes/internal/infrastructure/websearch"
	"apply-codes/internal/search"
	"apply-codes/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWeb struct {
	page websearch.SearchPage
}

func (f fakeWeb) Search(context.Context, string, int, int) (websearch.SearchPage, error) {
	return f.page, nil
}

type fakeAnswers struct{}

func (fakeAnswers) Ask(_ context.Context, query, _ string) (websearch.Answer, error) {
	return websearch.Answer{Answer: "About " + query, Model: "sonar"}, nil
}

type fakePages struct {
	page scraper.Page
	err  error
}

func (f fakePages) Fetch(context.Context, scraper.Options) (scraper.Page, error) {
	return f.page, f.err
}

func TestGoogleSearch_RanksProfilesFirst(t *testing.T) {
	web := fakeWeb{page: websearch.SearchPage{TotalResults: 2, Results: []search.Result{
		{Title: "Ten pasta recipes", Link: "https://cooking.example.com/pasta", Snippet: "Dinner ideas"},
		{Title: "Ada Lovelace - Golang Engineer", Link: "https://www.linkedin.com/in/ada", Snippet: "Golang engineer in Berlin"},
	}}}
	s := store.NewMemory()
	uc := NewSearchUsecase(web, nil, nil, nil, NewRecorder(s, nil), nil)

	res, err := uc.GoogleSearch(context.Background(), "u1", GoogleSearchInput{Query: "golang engineer", Start: 11})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "https://www.linkedin.com/in/ada", res.Results[0].Link)
	assert.Equal(t, 11, res.Results[0].Rank)
	assert.Equal(t, 12, res.Results[1].Rank)
	assert.EqualValues(t, 2, res.TotalResults)
	assert.EqualValues(t, 1, countDocs(t, s, store.CollectionSearchLogs, map[string]any{"kind": "googleSearch"}))

	_, err = uc.GoogleSearch(context.Background(), "u1", GoogleSearchInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPerplexitySearch_EmptyListsNotNull(t *testing.T) {
	uc := NewSearchUsecase(nil, fakeAnswers{}, nil, nil, nil, nil)
	res, err := uc.PerplexitySearch(context.Background(), "u1", "go salaries berlin", "")
	require.NoError(t, err)
	assert.Equal(t, "About go salaries berlin", res.Answer)
	assert.NotNil(t, res.Sources)
	assert.NotNil(t, res.FollowupQuestions)
}

func TestScrape(t *testing.T) {
	uc := NewSearchUsecase(nil, nil, nil, fakePages{err: scraper.ErrInvalidURL}, nil, nil)
	_, err := uc.Scrape(context.Background(), "u1", ScrapeInput{URL: "ftp://example.com"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = uc.Scrape(context.Background(), "u1", ScrapeInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	uc = NewSearchUsecase(nil, nil, nil, fakePages{page: scraper.Page{URL: "https://example.com", Title: "Example"}}, nil, nil)
	page, err := uc.Scrape(context.Background(), "u1", ScrapeInput{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Example", page.Title)
	assert.NotNil(t, page.Links)
	assert.NotNil(t, page.Metadata)
}

func TestGenerate_Validation(t *testing.T) {
	uc := NewGenerationUsecase(loadCatalog(t), llm.NewScripted("flash"), nil, nil)

	_, err := uc.Generate(context.Background(), "u1", "generateEmailTemplates", map[string]any{"templatePurpose": "outreach", "jobTitle": "SRE"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "companyName is required")

	_, err = uc.Generate(context.Background(), "u1", "analyzeCandidate", map[string]any{"jobRequirements": "Go"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = uc.Generate(context.Background(), "u1", "writePoem", map[string]any{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenerate_TextAndJSON(t *testing.T) {
	gen := llm.NewScripted("flash", "  A post about hiring.  ", "```json\n{\"skills\":[\"Go\"]}\n```", "not json at all")
	s := store.NewMemory()
	uc := NewGenerationUsecase(loadCatalog(t), gen, NewRecorder(s, nil), nil)
	ctx := context.Background()

	res, err := uc.Generate(ctx, "u1", "generateContent", map[string]any{"prompt": "a post about hiring"})
	require.NoError(t, err)
	assert.Equal(t, "A post about hiring.", res.Text)
	assert.Nil(t, res.Data)

	res, err = uc.Generate(ctx, "u1", "extractNlpTerms", map[string]any{"text": "Go developer"})
	require.NoError(t, err)
	assert.Equal(t, []any{"Go"}, res.Data["skills"])
	assert.True(t, gen.Last().JSON)

	_, err = uc.Generate(ctx, "u1", "extractNlpTerms", map[string]any{"text": "Go developer"})
	var outErr *ModelOutputError
	require.True(t, errors.As(err, &outErr))
	assert.Equal(t, "not json at all", outErr.Raw)

	assert.EqualValues(t, 2, countDocs(t, s, store.CollectionAnalysisLogs, nil))
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 3, WordCount(" one  two\nthree "))
	assert.Equal(t, 0, WordCount(""))
}

type queryWeb struct {
	page  websearch.SearchPage
	query string
}

func (f *queryWeb) Search(_ context.Context, query string, _, _ int) (websearch.SearchPage, error) {
	f.query = query
	return f.page, nil
}

func TestLinkedInSearch(t *testing.T) {
	web := &queryWeb{page: websearch.SearchPage{TotalResults: 3, Results: []search.Result{
		{Title: "Acme careers", Link: "https://acme.example.com/jobs", Snippet: "machine learning engineer"},
		{Title: "Grace Hopper - Machine Learning Engineer - Meta | LinkedIn", Link: "https://www.linkedin.com/in/grace", Snippet: "San Francisco"},
		{Title: "Meta | LinkedIn", Link: "https://www.linkedin.com/company/meta", Snippet: "company page"},
	}}}
	s := store.NewMemory()
	uc := NewSearchUsecase(web, nil, nil, nil, NewRecorder(s, nil), nil)

	res, err := uc.LinkedInSearch(context.Background(), "u1", LinkedInSearchInput{
		Keywords:       "machine learning engineer",
		Location:       "San Francisco",
		CurrentCompany: "Meta",
	})
	require.NoError(t, err)
	assert.Equal(t, `site:linkedin.com/in machine learning engineer Meta "San Francisco"`, web.query)
	assert.Equal(t, web.query, res.Query)
	require.Len(t, res.Profiles, 1)
	assert.Equal(t, "Grace Hopper", res.Profiles[0].Name)
	assert.Equal(t, "Machine Learning Engineer - Meta", res.Profiles[0].Headline)
	assert.Equal(t, 1, res.Profiles[0].Rank)
	assert.EqualValues(t, 1, countDocs(t, s, store.CollectionSearchLogs, map[string]any{"kind": "linkedinSearch"}))

	_, err = uc.LinkedInSearch(context.Background(), "u1", LinkedInSearchInput{Title: "Engineer"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
