// Package gitupdater implements the BranchUpdater port: it clones the head
// repository of a pull request with go-git, rebases with the git CLI and
// pushes back with a force-with-lease.
package gitupdater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
	"github.com/ericfisherdev/prpilot/internal/logging"
)

// Compile-time interface satisfaction check.
var _ driven.BranchUpdater = (*Updater)(nil)

const (
	upstreamRemote = "upstream"
	defaultName    = "prpilot"
)

// TitleCannotUpdate is the pre-check failure title.
const TitleCannotUpdate = "Pull request can't be updated with latest base branch changes"

// Options configures an Updater.
type Options struct {
	// Credentials holds bot account tokens. May be nil when bot accounts
	// are not supported.
	Credentials driven.CredentialStore
	// MainToken authenticates the default identity. Empty means anonymous,
	// which only works for local or public mirrors.
	MainToken string
	// GitURL is the base URL repositories are cloned from, e.g.
	// https://github.com.
	GitURL string
	// GitEmail is the committer email used for rebased commits.
	GitEmail string
	// WorkDir hosts temporary clones. Empty means os.TempDir.
	WorkDir string
}

// Updater implements driven.BranchUpdater.
type Updater struct {
	opts   Options
	logger *slog.Logger

	beforePush func() // Runs between the rebase and the push when set.
}

// New creates an Updater.
func New(opts Options) *Updater {
	opts.GitURL = strings.TrimRight(opts.GitURL, "/")
	return &Updater{opts: opts, logger: logging.Named("gitupdater")}
}

// PreRebaseCheck rejects pull requests whose head branch cannot be pushed to.
func (u *Updater) PreRebaseCheck(pctx driven.PullContext) *model.Result {
	pull := pctx.Pull()

	if pull.HeadRepoDeleted() {
		res := model.NewResult(model.ConclusionFailure, TitleCannotUpdate, "The head repository does not exist anymore.")
		return &res
	}

	if pull.FromFork() && !pull.MaintainerCanModify {
		owner, _, _ := strings.Cut(pull.HeadRepoFullName, "/")
		res := model.NewResult(model.ConclusionFailure, TitleCannotUpdate, fmt.Sprintf(
			"prpilot needs the permission to update the head branch of the pull request.\n"+
				"%s needs to [allow edits from maintainers]"+
				"(https://docs.github.com/en/pull-requests/collaborating-with-pull-requests/working-with-forks/allowing-changes-to-a-pull-request-branch-created-from-a-fork).",
			owner))
		return &res
	}

	return nil
}

// RebaseWithGit rebases the head branch onto the base branch and pushes it.
func (u *Updater) RebaseWithGit(ctx context.Context, pctx driven.PullContext, botAccount string) (model.BranchUpdateOutcome, error) {
	pull := pctx.Pull()
	log := u.logger.With("repo", pull.RepoFullName, "pr_number", pull.Number, "head", pull.HeadRepoFullName+":"+pull.Branch)

	token, outcome, err := u.resolveToken(ctx, botAccount)
	if err != nil || outcome != nil {
		return derefOutcome(outcome), err
	}

	var auth transport.AuthMethod
	if token != "" {
		auth = &githttp.BasicAuth{Username: "x-access-token", Password: token}
	}

	dir, err := os.MkdirTemp(u.opts.WorkDir, "prpilot-rebase-*")
	if err != nil {
		return model.BranchUpdateOutcome{}, fmt.Errorf("creating clone directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("failed to remove clone directory", "dir", dir, "error", err)
		}
	}()

	branchRef := plumbing.NewBranchReferenceName(pull.Branch)
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           u.repoURL(pull.HeadRepoFullName),
		Auth:          auth,
		ReferenceName: branchRef,
		SingleBranch:  true,
		Tags:          git.NoTags,
	})
	if err != nil {
		return classify("cloning head repository", pull.Branch, err)
	}

	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: upstreamRemote,
		URLs: []string{u.repoURL(pull.RepoFullName)},
	}); err != nil {
		return model.BranchUpdateOutcome{}, fmt.Errorf("adding upstream remote: %w", err)
	}

	baseSpec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", pull.BaseBranch, upstreamRemote, pull.BaseBranch))
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: upstreamRemote,
		Auth:       auth,
		RefSpecs:   []gitconfig.RefSpec{baseSpec},
		Tags:       git.NoTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return classify("fetching base branch", pull.BaseBranch, err)
	}

	lease, err := repo.Reference(branchRef, true)
	if err != nil {
		return model.BranchUpdateOutcome{}, fmt.Errorf("resolving %s: %w", branchRef, err)
	}

	name := defaultName
	if botAccount != "" {
		name = botAccount
	}
	runner := NewRunner(dir)
	_, err = runner.Run(ctx,
		"-c", "user.name="+name,
		"-c", "user.email="+u.opts.GitEmail,
		"rebase", upstreamRemote+"/"+pull.BaseBranch,
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.BranchUpdateOutcome{}, ctxErr
		}
		if isConflict(err) {
			if _, abortErr := runner.Run(ctx, "rebase", "--abort"); abortErr != nil {
				log.Warn("failed to abort rebase", "error", abortErr)
			}
			return model.BranchUpdateFailure("Merge conflict while rebasing %s onto %s. The branch must be rebased manually.",
				pull.Branch, pull.BaseBranch), nil
		}
		return model.BranchUpdateOutcome{}, fmt.Errorf("rebasing %s: %w", pull.Branch, err)
	}

	// The CLI rewrote the ref on disk; reopen so go-git sees it.
	repo, err = git.PlainOpen(dir)
	if err != nil {
		return model.BranchUpdateOutcome{}, fmt.Errorf("reopening clone: %w", err)
	}

	if u.beforePush != nil {
		u.beforePush()
	}

	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		Auth:       auth,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("+%s:%s", branchRef, branchRef))},
		ForceWithLease: &git.ForceWithLease{
			RefName: branchRef,
			Hash:    lease.Hash(),
		},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return classify("pushing rebased branch", pull.Branch, err)
	}

	log.Info("branch rebased", "base", pull.BaseBranch, "bot_account", botAccount)
	return model.UpdateOK(), nil
}

func (u *Updater) repoURL(fullName string) string {
	return u.opts.GitURL + "/" + fullName
}

// resolveToken returns the token for botAccount, or the main token when
// botAccount is empty. A missing bot token is an authentication outcome.
func (u *Updater) resolveToken(ctx context.Context, botAccount string) (string, *model.BranchUpdateOutcome, error) {
	if botAccount == "" {
		return u.opts.MainToken, nil, nil
	}

	unknown := model.AuthenticationFailure(
		"Unable to rebase: user `%s` is unknown. Please make sure a token for `%s` is registered with `prpilot token set`.",
		botAccount, botAccount)

	if u.opts.Credentials == nil {
		return "", &unknown, nil
	}
	token, err := u.opts.Credentials.Get(ctx, model.BotTokenService(botAccount))
	if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		return "", &unknown, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("loading token of %s: %w", botAccount, err)
	}
	if token == "" {
		return "", &unknown, nil
	}
	return token, nil, nil
}

func derefOutcome(o *model.BranchUpdateOutcome) model.BranchUpdateOutcome {
	if o == nil {
		return model.BranchUpdateOutcome{}
	}
	return *o
}

// classify maps go-git errors to outcomes. branch is the ref the step works
// on. Anything unrecognized is returned as an error.
func classify(step, branch string, err error) (model.BranchUpdateOutcome, error) {
	msg := err.Error()
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return model.BranchUpdateOutcome{}, err
	case errors.Is(err, git.NoMatchingRefSpecError{}),
		errors.Is(err, plumbing.ErrReferenceNotFound),
		strings.Contains(msg, "couldn't find remote ref"):
		return model.BranchUpdateFailure("The branch %s does not exist anymore.", branch), nil
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return model.AuthenticationFailure("%s: %s", step, msg), nil
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return model.BranchUpdateFailure("%s: repository not found or not accessible", step), nil
	case errors.Is(err, git.ErrNonFastForwardUpdate),
		strings.Contains(msg, "non-fast-forward"),
		strings.Contains(msg, "rejected"),
		strings.Contains(msg, "declined"),
		strings.Contains(msg, "protected branch"),
		strings.Contains(msg, "stale info"):
		return model.BranchUpdateFailure("%s: %s", step, msg), nil
	default:
		return model.BranchUpdateOutcome{}, fmt.Errorf("%s: %w", step, err)
	}
}
