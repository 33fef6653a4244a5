package visibility_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhofwell/claude-dashboard/internal/visibility"
)

type fakeGitHubRepo struct {
	Name    string `json:"name"`
	Private bool   `json:"private"`
}

func TestGitHubEnumerator_PagesUntilShortPage(t *testing.T) {
	// Page one is a full 100-repo page, so the enumerator must request a
	// second page; page two is short, which is the stop condition.
	full := make([]fakeGitHubRepo, 100)
	for i := range full {
		full[i] = fakeGitHubRepo{Name: "repo", Private: false}
	}
	short := []fakeGitHubRepo{{Name: "tail-repo", Private: true}}

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		page := r.URL.Query().Get("page")
		if page == "2" {
			json.NewEncoder(w).Encode(short)
			return
		}
		json.NewEncoder(w).Encode(full)
	}))
	defer srv.Close()

	enum := visibility.NewGitHubEnumerator("acme", "")
	enum.APIBase = srv.URL

	repos, err := enum.EnumerateRepos(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, repos["tail-repo"])
	assert.False(t, repos["repo"])
}

func TestGitHubEnumerator_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	enum := visibility.NewGitHubEnumerator("acme", "bad-token")
	enum.APIBase = srv.URL

	_, err := enum.EnumerateRepos(context.Background())
	require.Error(t, err)
}
