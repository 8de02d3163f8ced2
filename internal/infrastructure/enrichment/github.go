package enrichment

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"apply-codes/internal/infrastructure/vendor"

	"go.uber.org/zap"
)

const VendorGitHub = "github"

var (
	githubUserShape = MustShape(`{
		login: login,
		name: name,
		company: company,
		blog: blog,
		location: location,
		email: email,
		bio: bio,
		hireable: hireable,
		publicRepos: public_repos,
		followers: followers,
		following: following,
		htmlUrl: html_url,
		avatarUrl: avatar_url,
		createdAt: created_at
	}`)

	githubRepoShape = MustShape(`{
		name: name,
		description: description,
		language: language,
		stars: stargazers_count,
		forks: forks_count,
		url: html_url,
		updatedAt: pushed_at
	}`)
)

type GitHub struct {
	client *vendor.Client
}

// NewGitHub works without a token at the anonymous rate limit.
func NewGitHub(token, baseURL string, logger *zap.Logger, opts ...vendor.Option) *GitHub {
	base := []vendor.Option{vendor.WithHeader("X-GitHub-Api-Version", "2022-11-28")}
	if strings.TrimSpace(token) != "" {
		base = append(base, vendor.WithBearer(token))
	}
	return &GitHub{client: vendor.New(VendorGitHub, baseURL, logger, append(base, opts...)...)}
}

// Profile returns the user with their most recently pushed repositories and
// the languages they use, or nil when the user does not exist.
func (g *GitHub) Profile(ctx context.Context, username string) (map[string]any, error) {
	if g == nil {
		return nil, vendor.NotConfigured(VendorGitHub)
	}
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")

	var user map[string]any
	if err := g.client.Do(ctx, vendor.Request{Path: "/users/" + url.PathEscape(username)}, &user); err != nil {
		return nil, err
	}
	out, err := githubUserShape.Object(user)
	if err != nil || out == nil {
		return out, err
	}

	var repos []any
	q := url.Values{"sort": {"pushed"}, "per_page": {"10"}, "type": {"owner"}}
	if err := g.client.Do(ctx, vendor.Request{Method: http.MethodGet, Path: "/users/" + url.PathEscape(username) + "/repos", Query: q}, &repos); err != nil {
		// the profile alone is still useful
		out["repositories"] = []map[string]any{}
		return out, nil
	}
	shaped, err := githubRepoShape.List(repos)
	if err != nil {
		return nil, err
	}
	out["repositories"] = shaped
	out["languages"] = languages(shaped)
	return out, nil
}

type githubSearchResponse struct {
	TotalCount int `json:"total_count"`
	Items      []struct {
		Login string `json:"login"`
	} `json:"items"`
}

// LoginForEmail finds the account whose public email is email. An empty
// login with a nil error means no match.
func (g *GitHub) LoginForEmail(ctx context.Context, email string) (string, error) {
	if g == nil {
		return "", vendor.NotConfigured(VendorGitHub)
	}
	var resp githubSearchResponse
	q := url.Values{"q": {strings.TrimSpace(email) + " in:email"}, "per_page": {"1"}}
	if err := g.client.Do(ctx, vendor.Request{Path: "/search/users", Query: q}, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", nil
	}
	return resp.Items[0].Login, nil
}

func languages(repos []map[string]any) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, r := range repos {
		lang, _ := r["language"].(string)
		if lang == "" {
			continue
		}
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		out = append(out, lang)
	}
	return out
}
