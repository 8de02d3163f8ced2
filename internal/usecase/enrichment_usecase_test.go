package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"apply-codes/internal/infrastructure/enrichment"
	"apply-codes/internal/infrastructure/vendor"
	"apply-codes/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePeople struct {
	calls  int
	person map[string]any
	people []map[string]any
	err    error
}

func (f *fakePeople) Enrich(context.Context, enrichment.PersonQuery) (map[string]any, error) {
	f.calls++
	return f.person, f.err
}

func (f *fakePeople) Contact(context.Context, enrichment.PersonQuery) (map[string]any, error) {
	f.calls++
	return f.person, f.err
}

func (f *fakePeople) Search(context.Context, enrichment.SearchQuery) ([]map[string]any, int, error) {
	f.calls++
	return f.people, len(f.people), f.err
}

type fakeCode struct {
	login   string
	profile map[string]any
	asked   []string
}

func (f *fakeCode) Profile(_ context.Context, username string) (map[string]any, error) {
	f.asked = append(f.asked, username)
	return f.profile, nil
}

func (f *fakeCode) LoginForEmail(context.Context, string) (string, error) {
	return f.login, nil
}

func TestEnrichProfile_VendorNotFoundIsAMiss(t *testing.T) {
	people := &fakePeople{err: &vendor.APIError{Vendor: enrichment.VendorPDL, StatusCode: http.StatusNotFound, Message: "no match"}}
	s := store.NewMemory()
	uc := NewEnrichmentUsecase(people, nil, nil, nil, newMemCache(), NewRecorder(s, nil), nil)

	res, err := uc.EnrichProfile(context.Background(), "u1", enrichment.PersonQuery{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Nil(t, res.Data)
	assert.Equal(t, enrichment.VendorPDL, res.Source)
	assert.EqualValues(t, 1, countDocs(t, s, store.CollectionSearchLogs, map[string]any{"kind": "enrichProfile"}))
}

func TestEnrichProfile_VendorErrorsPassThrough(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusTooManyRequests} {
		people := &fakePeople{err: &vendor.APIError{Vendor: enrichment.VendorPDL, StatusCode: code, Message: "nope"}}
		uc := NewEnrichmentUsecase(people, nil, nil, nil, nil, nil, nil)

		_, err := uc.EnrichProfile(context.Background(), "u1", enrichment.PersonQuery{Email: "ada@example.com"})
		var apiErr *vendor.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, code, apiErr.StatusCode)
	}
}

func TestEnrichProfile_CachesHitsOnly(t *testing.T) {
	cache := newMemCache()
	people := &fakePeople{}
	uc := NewEnrichmentUsecase(people, nil, nil, nil, cache, nil, nil)
	q := enrichment.PersonQuery{Email: "ada@example.com"}

	res, err := uc.EnrichProfile(context.Background(), "u1", q)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, cache.keys("enrich:"))

	people.person = map[string]any{"fullName": "Ada Lovelace"}
	res, err = uc.EnrichProfile(context.Background(), "u1", q)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Len(t, cache.keys("enrich:"+enrichment.VendorPDL+":"), 1)

	// differently cased input hits the same entry
	res, err = uc.EnrichProfile(context.Background(), "u2", enrichment.PersonQuery{Email: " ADA@example.com"})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 2, people.calls)
}

func TestEnrichProfile_RequiresInput(t *testing.T) {
	uc := NewEnrichmentUsecase(&fakePeople{}, nil, nil, nil, nil, nil, nil)
	_, err := uc.EnrichProfile(context.Background(), "u1", enrichment.PersonQuery{Name: "Ada"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSearchPeople_Limits(t *testing.T) {
	people := &fakePeople{people: []map[string]any{{"fullName": "Ada"}}}
	uc := NewEnrichmentUsecase(people, nil, nil, nil, nil, nil, nil)

	_, err := uc.SearchPeople(context.Background(), "u1", "pdlSearch", PeopleSearchInput{Query: "go", MaxResults: 101})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = uc.SearchPeople(context.Background(), "u1", "pdlSearch", PeopleSearchInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	res, err := uc.SearchPeople(context.Background(), "u1", "searchContacts", PeopleSearchInput{Filters: map[string]string{"location": "berlin"}})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 1, res.Data.(map[string]any)["total"])
}

func TestGitHub_ResolvesLoginFromEmail(t *testing.T) {
	code := &fakeCode{login: "ada", profile: map[string]any{"login": "ada"}}
	uc := NewEnrichmentUsecase(nil, nil, nil, code, nil, nil, nil)

	res, err := uc.GitHub(context.Background(), "u1", "", "ada@example.com")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, []string{"ada"}, code.asked)

	code.login = ""
	res, err = uc.GitHub(context.Background(), "u1", "", "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, res.Found)

	_, err = uc.GitHub(context.Background(), "u1", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHunter_RequiresDomain(t *testing.T) {
	uc := NewEnrichmentUsecase(nil, nil, nil, nil, nil, nil, nil)
	_, err := uc.Hunter(context.Background(), "u1", HunterInput{FirstName: "Ada"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
