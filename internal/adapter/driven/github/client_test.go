package github_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/ericfisherdev/prpilot/internal/adapter/driven/github"
	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) (*ghAdapter.Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL)
	require.NoError(t, err)

	return client, server
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestFetchPullRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/repo/pulls/7", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{
			"number":                7,
			"title":                 "Add rebase",
			"body":                  "details",
			"state":                 "open",
			"draft":                 true,
			"locked":                false,
			"html_url":              "https://github.com/octo/repo/pull/7",
			"maintainer_can_modify": true,
			"mergeable_state":       "behind",
			"user":                  map[string]any{"login": "octocat"},
			"labels":                []map[string]any{{"name": "autorebase"}},
			"assignees":             []map[string]any{{"login": "hubot"}},
			"requested_reviewers":   []map[string]any{{"login": "monalisa"}},
			"milestone":             map[string]any{"title": "v1"},
			"head": map[string]any{
				"ref": "feature", "sha": "head1",
				"repo": map[string]any{"id": 2, "full_name": "fork/repo"},
			},
			"base": map[string]any{
				"ref": "main", "sha": "base1",
				"repo": map[string]any{"id": 1, "full_name": "octo/repo"},
			},
			"created_at": "2026-01-02T03:04:05Z",
			"updated_at": "2026-01-03T03:04:05Z",
		})
	})
	client, _ := newTestClient(t, mux)

	pr, err := client.FetchPullRequest(context.Background(), "octo/repo", 7)
	require.NoError(t, err)

	assert.Equal(t, 7, pr.Number)
	assert.Equal(t, "octo/repo", pr.RepoFullName)
	assert.Equal(t, int64(1), pr.RepoID)
	assert.Equal(t, "octocat", pr.Author)
	assert.Equal(t, model.PRStatusOpen, pr.Status)
	assert.True(t, pr.IsDraft)
	assert.Equal(t, "feature", pr.Branch)
	assert.Equal(t, "main", pr.BaseBranch)
	assert.Equal(t, "head1", pr.HeadSHA)
	assert.Equal(t, "base1", pr.BaseSHA)
	assert.Equal(t, "fork/repo", pr.HeadRepoFullName)
	assert.True(t, pr.FromFork())
	assert.True(t, pr.MaintainerCanModify)
	assert.Equal(t, "behind", pr.MergeableState)
	assert.Equal(t, "v1", pr.Milestone)
	assert.Equal(t, []string{"autorebase"}, pr.Labels)
	assert.Equal(t, []string{"hubot"}, pr.Assignees)
	assert.Equal(t, []string{"monalisa"}, pr.RequestedReviewers)
	assert.Equal(t, 2026, pr.OpenedAt.Year())
}

func TestFetchPullRequest_DeletedHeadRepoAndMerged(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/repo/pulls/8", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{
			"number":    8,
			"state":     "closed",
			"merged":    true,
			"merged_by": map[string]any{"login": "hubot"},
			"head":      map[string]any{"ref": "gone", "sha": "h"},
			"base":      map[string]any{"ref": "main", "repo": map[string]any{"id": 1}},
		})
	})
	client, _ := newTestClient(t, mux)

	pr, err := client.FetchPullRequest(context.Background(), "octo/repo", 8)
	require.NoError(t, err)

	assert.True(t, pr.HeadRepoDeleted())
	assert.Equal(t, model.PRStatusMerged, pr.Status)
	assert.Equal(t, "hubot", pr.MergedBy)
}

func TestFetchPullRequest_NotFound(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	_, err := client.FetchPullRequest(context.Background(), "octo/repo", 404)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestFetchBranchHeadSHA(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/repo/branches/main", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"name": "main", "commit": map[string]any{"sha": "base1"}})
	})
	client, _ := newTestClient(t, mux)

	sha, err := client.FetchBranchHeadSHA(context.Background(), "octo/repo", "main")
	require.NoError(t, err)
	assert.Equal(t, "base1", sha)
}

func TestFetchPullCommits_Paginated(t *testing.T) {
	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/repo/pulls/7/commits", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			writeJSON(t, w, []map[string]any{
				{"sha": "c2", "parents": []map[string]any{{"sha": "c1"}}},
			})
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/octo/repo/pulls/7/commits?page=2>; rel="next"`, serverURL))
		writeJSON(t, w, []map[string]any{
			{"sha": "c1", "parents": []map[string]any{{"sha": "base0"}}},
		})
	})
	client, server := newTestClient(t, mux)
	serverURL = server.URL

	commits, err := client.FetchPullCommits(context.Background(), "octo/repo", 7)
	require.NoError(t, err)

	assert.Equal(t, []model.Commit{
		{SHA: "c1", ParentSHAs: []string{"base0"}},
		{SHA: "c2", ParentSHAs: []string{"c1"}},
	}, commits)
}

func TestFetchPullFiles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/repo/pulls/7/files", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, []map[string]any{
			{"filename": "main.go"},
			{"filename": ".github/workflows/ci.yml"},
		})
	})
	client, _ := newTestClient(t, mux)

	files, err := client.FetchPullFiles(context.Background(), "octo/repo", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go", ".github/workflows/ci.yml"}, files)
}

func TestFetchCollaboratorPermission(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/repo/collaborators/octocat/permission", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"permission": "maintain", "user": map[string]any{"login": "octocat"}})
	})
	client, _ := newTestClient(t, mux)

	perm, err := client.FetchCollaboratorPermission(context.Background(), "octo/repo", "octocat")
	require.NoError(t, err)
	assert.Equal(t, model.PermissionMaintain, perm)

	perm, err = client.FetchCollaboratorPermission(context.Background(), "octo/repo", "stranger")
	require.NoError(t, err)
	assert.Equal(t, model.PermissionNone, perm)
}

func TestFetchFileContent(t *testing.T) {
	rules := "pull_request_rules: []\n"
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/repo/contents/.prpilot.yml", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		writeJSON(t, w, map[string]any{
			"type":     "file",
			"name":     ".prpilot.yml",
			"path":     ".prpilot.yml",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte(rules)),
		})
	})
	client, _ := newTestClient(t, mux)

	data, err := client.FetchFileContent(context.Background(), "octo/repo", ".prpilot.yml", "main")
	require.NoError(t, err)
	assert.Equal(t, rules, string(data))

	_, err = client.FetchFileContent(context.Background(), "octo/repo", "missing.yml", "main")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestInvalidRepoName(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	_, err := client.FetchPullFiles(context.Background(), "no-slash", 1)
	assert.ErrorContains(t, err, "expected owner/repo")
}
