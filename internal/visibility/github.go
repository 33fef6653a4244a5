package visibility

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultGitHubAPIBase = "https://api.github.com"

// GitHubEnumerator implements RepoEnumerator against the GitHub REST
// API's paginated org-repos listing, mapping repository name -> private
// flag (§4.7's "enumeration of remote repository records").
type GitHubEnumerator struct {
	Org   string
	Token string

	// APIBase defaults to api.github.com; overridable in tests.
	APIBase string

	client *http.Client
}

// NewGitHubEnumerator returns an enumerator for org, authenticated with
// token (a personal access token or installation token; empty is
// permitted against a public-only org but will undercount private
// repos visible to the caller).
func NewGitHubEnumerator(org, token string) *GitHubEnumerator {
	return &GitHubEnumerator{Org: org, Token: token, APIBase: defaultGitHubAPIBase, client: &http.Client{}}
}

type githubRepo struct {
	Name    string `json:"name"`
	Private bool   `json:"private"`
}

// EnumerateRepos pages through https://api.github.com/orgs/{org}/repos
// once and returns the full name -> is-private map.
func (g *GitHubEnumerator) EnumerateRepos(ctx context.Context) (map[string]bool, error) {
	out := map[string]bool{}
	base := g.APIBase
	if base == "" {
		base = defaultGitHubAPIBase
	}
	page := 1
	for {
		url := fmt.Sprintf("%s/orgs/%s/repos?per_page=100&page=%d", base, g.Org, page)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		if g.Token != "" {
			req.Header.Set("Authorization", "Bearer "+g.Token)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, err
		}

		var repos []githubRepo
		decErr := json.NewDecoder(resp.Body).Decode(&repos)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("github repos list: status %d", resp.StatusCode)
		}
		if decErr != nil {
			return nil, fmt.Errorf("github repos list: decoding response: %w", decErr)
		}

		for _, r := range repos {
			out[r.Name] = r.Private
		}
		if len(repos) < 100 {
			break
		}
		page++
	}
	return out, nil
}
