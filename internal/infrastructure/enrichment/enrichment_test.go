package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"apply-codes/internal/infrastructure/vendor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveJSON(t *testing.T, h func(r *http.Request) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, body := h(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPDL_EnrichReshapes(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		assert.Equal(t, "/v5/person/enrich", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "jane@acme.io", r.URL.Query().Get("email"))
		return http.StatusOK, map[string]any{
			"status":     200,
			"likelihood": 8,
			"data": map[string]any{
				"full_name":        "jane doe",
				"job_title":        "staff engineer",
				"job_company_name": "acme",
				"linkedin_url":     "linkedin.com/in/janedoe",
				"skills":           []any{"go", "kubernetes"},
				"emails":           []any{map[string]any{"address": "jane@acme.io"}},
				"experience": []any{
					map[string]any{"company": map[string]any{"name": "acme"}, "title": map[string]any{"name": "staff engineer"}, "start_date": "2020-01"},
				},
			},
		}
	})

	p := NewPDL("key", srv.URL, nil)
	out, err := p.Enrich(context.Background(), PersonQuery{Email: " Jane@Acme.io "})
	require.NoError(t, err)

	assert.Equal(t, "jane doe", out["fullName"])
	assert.Equal(t, "acme", out["company"])
	assert.Equal(t, []any{"go", "kubernetes"}, out["skills"])
	assert.Equal(t, 8, out["likelihood"])
	assert.NotContains(t, out, "githubUrl")
	exp := out["experience"].([]any)
	require.Len(t, exp, 1)
	assert.Equal(t, "staff engineer", exp[0].(map[string]any)["title"])

	contact, err := p.Contact(context.Background(), PersonQuery{Email: "jane@acme.io"})
	require.NoError(t, err)
	assert.Equal(t, []any{"jane@acme.io"}, contact["emails"])
}

func TestPDL_NotFound(t *testing.T) {
	srv := serveJSON(t, func(*http.Request) (int, any) {
		return http.StatusNotFound, map[string]any{"status": 404, "error": map[string]any{"type": "not_found", "message": "No records were found matching your request"}}
	})

	_, err := NewPDL("key", srv.URL, nil).Enrich(context.Background(), PersonQuery{Email: "x@y.z"})
	require.Error(t, err)
	assert.True(t, vendor.IsNotFound(err))
}

func TestPDL_SearchBuildsQuery(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(100), body["size"])
		assert.NotNil(t, body["query"])
		return http.StatusOK, map[string]any{
			"status": 200,
			"total":  42,
			"data":   []any{map[string]any{"full_name": "a"}, map[string]any{"full_name": "b"}},
		}
	})

	people, total, err := NewPDL("key", srv.URL, nil).Search(context.Background(), SearchQuery{Query: "golang", Size: 500, Filters: map[string]string{"location_country": "germany"}})
	require.NoError(t, err)
	assert.Equal(t, 42, total)
	require.Len(t, people, 2)
	assert.Equal(t, "b", people[1]["fullName"])
}

func TestPDL_SQLPassthrough(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SELECT * FROM person WHERE job_title='cto'", body["sql"])
		assert.Nil(t, body["query"])
		return http.StatusOK, map[string]any{"total": 0, "data": []any{}}
	})

	people, _, err := NewPDL("key", srv.URL, nil).Search(context.Background(), SearchQuery{Query: "SELECT * FROM person WHERE job_title='cto'"})
	require.NoError(t, err)
	assert.Empty(t, people)
}

func TestNilClientsAreNotConfigured(t *testing.T) {
	assert.Nil(t, NewPDL(" ", "http://x", nil))
	assert.Nil(t, NewClearbit("", "http://x", "http://y", nil))
	assert.Nil(t, NewHunter("", "http://x", nil))

	var p *PDL
	_, err := p.Enrich(context.Background(), PersonQuery{Email: "a@b.c"})
	assert.True(t, errors.Is(err, vendor.ErrNotConfigured))
}

func TestClearbit_Company(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		assert.Equal(t, "Bearer ck", r.Header.Get("Authorization"))
		assert.Equal(t, "acme.io", r.URL.Query().Get("domain"))
		return http.StatusOK, map[string]any{
			"name":     "Acme",
			"domain":   "acme.io",
			"category": map[string]any{"industry": "Software"},
			"metrics":  map[string]any{"employees": 120},
		}
	})

	out, err := NewClearbit("ck", srv.URL, srv.URL, nil).Company(context.Background(), "https://www.Acme.io/about")
	require.NoError(t, err)
	assert.Equal(t, "Software", out["industry"])
	assert.Equal(t, float64(120), out["employees"])
}

func TestClearbit_QueuedLookupIsEmpty(t *testing.T) {
	srv := serveJSON(t, func(*http.Request) (int, any) {
		return http.StatusAccepted, map[string]any{}
	})

	out, err := NewClearbit("ck", srv.URL, srv.URL, nil).Person(context.Background(), "jane@acme.io")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestHunter_DomainSearch(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		assert.Equal(t, "hk", r.Header.Get("X-API-KEY"))
		assert.Empty(t, r.URL.Query().Get("api_key"))
		if r.URL.Query().Get("domain") == "empty.io" {
			return http.StatusOK, map[string]any{"data": map[string]any{"domain": "empty.io", "emails": []any{}}}
		}
		return http.StatusOK, map[string]any{"data": map[string]any{
			"domain":  "acme.io",
			"pattern": "{first}",
			"emails":  []any{map[string]any{"value": "jane@acme.io", "confidence": 91, "first_name": "Jane"}},
		}}
	})
	h := NewHunter("hk", srv.URL, nil)

	out, err := h.DomainSearch(context.Background(), "acme.io", 10)
	require.NoError(t, err)
	assert.Equal(t, "{first}", out["pattern"])
	emails := out["emails"].([]any)
	assert.Equal(t, "Jane", emails[0].(map[string]any)["firstName"])

	out, err = h.DomainSearch(context.Background(), "empty.io", 0)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGitHub_ProfileWithRepos(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		switch r.URL.Path {
		case "/users/octo":
			return http.StatusOK, map[string]any{"login": "octo", "name": "Octo Cat", "public_repos": 2, "html_url": "https://github.com/octo"}
		case "/users/octo/repos":
			return http.StatusOK, []any{
				map[string]any{"name": "a", "language": "Go", "stargazers_count": 5},
				map[string]any{"name": "b", "language": "Go"},
				map[string]any{"name": "c", "language": "Rust"},
			}
		}
		return http.StatusNotFound, map[string]any{"message": "Not Found"}
	})
	g := NewGitHub("", srv.URL, nil)

	out, err := g.Profile(context.Background(), "@octo")
	require.NoError(t, err)
	assert.Equal(t, "Octo Cat", out["name"])
	assert.Equal(t, []string{"Go", "Rust"}, out["languages"])
	assert.Len(t, out["repositories"], 3)

	_, err = g.Profile(context.Background(), "ghost")
	assert.True(t, vendor.IsNotFound(err))
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "acme.io", NormalizeDomain("https://www.acme.io/careers?x=1"))
	assert.Equal(t, "acme.io", NormalizeDomain(" ACME.io "))
	assert.Equal(t, "", NormalizeDomain(""))
}
