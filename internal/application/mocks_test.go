package application_test

import (
	"context"
	"sync"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

// --- Mock implementations ---

type mockGitHubClient struct {
	pull        model.PullRequest
	pullErr     error
	baseHead    string
	commits     []model.Commit
	files       []string
	filesErr    error
	permission  model.Permission
	permCalls   int
	rules       []byte
	rulesErr    error
	branchCalls int
	commitCalls int
	filesCalls  int
}

func (m *mockGitHubClient) FetchPullRequest(_ context.Context, _ string, _ int) (*model.PullRequest, error) {
	if m.pullErr != nil {
		return nil, m.pullErr
	}
	pr := m.pull
	return &pr, nil
}

func (m *mockGitHubClient) FetchBranchHeadSHA(_ context.Context, _ string, _ string) (string, error) {
	m.branchCalls++
	return m.baseHead, nil
}

func (m *mockGitHubClient) FetchPullCommits(_ context.Context, _ string, _ int) ([]model.Commit, error) {
	m.commitCalls++
	return m.commits, nil
}

func (m *mockGitHubClient) FetchPullFiles(_ context.Context, _ string, _ int) ([]string, error) {
	m.filesCalls++
	return m.files, m.filesErr
}

func (m *mockGitHubClient) FetchCollaboratorPermission(_ context.Context, _ string, _ string) (model.Permission, error) {
	m.permCalls++
	return m.permission, nil
}

func (m *mockGitHubClient) FetchFileContent(_ context.Context, _ string, _ string, _ string) ([]byte, error) {
	if m.rulesErr != nil {
		return nil, m.rulesErr
	}
	return m.rules, nil
}

type checkRunCall struct {
	HeadSHA string
	Name    string
	Result  model.Result
}

type commentCall struct {
	Number int
	Body   string
}

type mockWriter struct {
	checks   []checkRunCall
	comments []commentCall
}

func (m *mockWriter) CreateCheckRun(_ context.Context, _ string, headSHA string, name string, result model.Result) error {
	m.checks = append(m.checks, checkRunCall{HeadSHA: headSHA, Name: name, Result: result})
	return nil
}

func (m *mockWriter) CreateIssueComment(_ context.Context, _ string, prNumber int, body string) error {
	m.comments = append(m.comments, commentCall{Number: prNumber, Body: body})
	return nil
}

type mockResultStore struct {
	mu      sync.Mutex
	records []model.ActionRecord
	ran     map[string]bool
}

func (m *mockResultStore) Record(_ context.Context, rec model.ActionRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return int64(len(m.records)), nil
}

func (m *mockResultStore) ListByPR(_ context.Context, _ string, _ int) ([]model.ActionRecord, error) {
	return m.records, nil
}

func (m *mockResultStore) HasRun(_ context.Context, _ string, _ int, rule, action, headSHA string) (bool, error) {
	return m.ran[rule+"/"+action+"/"+headSHA], nil
}

type mockPermissionCache struct {
	perms map[string]model.Permission
	sets  int
}

func (m *mockPermissionCache) Get(_ context.Context, repo, login string) (model.Permission, bool, error) {
	p, ok := m.perms[repo+"/"+login]
	return p, ok, nil
}

func (m *mockPermissionCache) Set(_ context.Context, repo, login string, perm model.Permission) error {
	if m.perms == nil {
		m.perms = map[string]model.Permission{}
	}
	m.perms[repo+"/"+login] = perm
	m.sets++
	return nil
}

func (m *mockPermissionCache) Invalidate(_ context.Context, _ string) error {
	m.perms = nil
	return nil
}
