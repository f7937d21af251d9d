package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/prpilot/internal/action"
	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
	"github.com/ericfisherdev/prpilot/internal/logging"
)

// Command is a parsed command comment.
type Command struct {
	Name string
	Args string
}

// ParseCommand extracts a command from the first line of a comment body.
// ok is false when the body does not start with prefix.
func ParseCommand(prefix, body string) (cmd Command, ok bool) {
	line, _, _ := strings.Cut(strings.TrimSpace(body), "\n")
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.EqualFold(fields[0], prefix) {
		return Command{}, false
	}
	return Command{
		Name: strings.ToLower(fields[1]),
		Args: strings.Join(fields[2:], " "),
	}, true
}

// CommandService runs actions requested through pull request comments.
type CommandService struct {
	client   driven.GitHubClient
	writer   driven.GitHubWriter
	results  driven.ResultStore
	perms    driven.PermissionCache
	registry *action.Registry
	prefix   string
	logger   *slog.Logger
	now      func() time.Time
}

// NewCommandService creates a CommandService. perms may be nil, in which
// case permissions are fetched from GitHub on every command.
func NewCommandService(
	client driven.GitHubClient,
	writer driven.GitHubWriter,
	results driven.ResultStore,
	perms driven.PermissionCache,
	registry *action.Registry,
	prefix string,
) *CommandService {
	return &CommandService{
		client:   client,
		writer:   writer,
		results:  results,
		perms:    perms,
		registry: registry,
		prefix:   prefix,
		logger:   logging.Named("commands"),
		now:      time.Now,
	}
}

// Handle runs the command in body on behalf of author and replies with a
// comment. It returns nil, nil when body is not a command.
func (s *CommandService) Handle(ctx context.Context, repoFullName string, prNumber int, author, body string) (*model.Result, error) {
	cmd, ok := ParseCommand(s.prefix, body)
	if !ok {
		return nil, nil
	}
	log := s.logger.With("repo", repoFullName, "pr_number", prNumber, "author", author, "command", cmd.Name)

	kind, err := s.registry.Get(cmd.Name)
	if err != nil || !kind.Flags.IsCommand {
		res := model.NewResult(model.ConclusionFailure, "Unknown command",
			fmt.Sprintf("Sorry but I didn't understand the command `%s`. Available commands: %s.",
				cmd.Name, strings.Join(s.registry.Commands(), ", ")))
		return s.reply(ctx, repoFullName, prNumber, cmd, res)
	}

	allowed, err := s.canRun(ctx, repoFullName, author)
	if err != nil {
		return nil, err
	}
	if !allowed {
		log.Info("command refused")
		res := model.NewResult(model.ConclusionFailure, "Command not allowed",
			fmt.Sprintf("@%s is not allowed to run commands on this repository.", author))
		return s.reply(ctx, repoFullName, prNumber, cmd, res)
	}

	pctx, err := NewPullContext(ctx, s.client, repoFullName, prNumber)
	if err != nil {
		return nil, err
	}
	pull := pctx.Pull()

	act, err := kind.Build(nil)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", cmd.Name, err)
	}
	res, err := act.Run(ctx, pctx, model.EvaluatedRule{})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		log.Error("command failed", "error", err)
		return nil, fmt.Errorf("running %s: %w", cmd.Name, err)
	}

	rec := model.ActionRecord{
		RunID:        uuid.NewString(),
		RepoFullName: repoFullName,
		PRNumber:     prNumber,
		HeadSHA:      pull.HeadSHA,
		Action:       cmd.Name,
		Trigger:      model.TriggerCommand,
		Result:       res,
		RanAt:        s.now(),
	}
	if _, err := s.results.Record(ctx, rec); err != nil {
		return nil, fmt.Errorf("recording %s: %w", cmd.Name, err)
	}

	log.Info("command ran", "conclusion", res.Conclusion, "title", res.Title)
	return s.reply(ctx, repoFullName, prNumber, cmd, res)
}

func (s *CommandService) canRun(ctx context.Context, repoFullName, author string) (bool, error) {
	if s.perms != nil {
		perm, ok, err := s.perms.Get(ctx, repoFullName, author)
		if err != nil {
			s.logger.Warn("permission cache unavailable", "error", err)
		} else if ok {
			return perm.CanWrite(), nil
		}
	}

	perm, err := s.client.FetchCollaboratorPermission(ctx, repoFullName, author)
	if err != nil {
		return false, fmt.Errorf("fetching permission of %s on %s: %w", author, repoFullName, err)
	}

	if s.perms != nil {
		if err := s.perms.Set(ctx, repoFullName, author, perm); err != nil {
			s.logger.Warn("failed to cache permission", "error", err)
		}
	}
	return perm.CanWrite(), nil
}

func (s *CommandService) reply(ctx context.Context, repoFullName string, prNumber int, cmd Command, res model.Result) (*model.Result, error) {
	body := FormatCommandReply(s.prefix, cmd, res)
	if err := s.writer.CreateIssueComment(ctx, repoFullName, prNumber, body); err != nil {
		return nil, fmt.Errorf("replying to command %s: %w", cmd.Name, err)
	}
	return &res, nil
}

// FormatCommandReply renders the comment posted in answer to a command.
func FormatCommandReply(prefix string, cmd Command, res model.Result) string {
	var b strings.Builder
	b.WriteString("> ")
	b.WriteString(strings.TrimSpace(prefix + " " + cmd.Name + " " + cmd.Args))
	b.WriteString("\n\n#### ")
	b.WriteString(res.Conclusion.Emoji())
	b.WriteString(" ")
	b.WriteString(res.Title)
	b.WriteString("\n")
	if res.Summary != "" {
		b.WriteString("\n")
		b.WriteString(res.Summary)
		b.WriteString("\n")
	}
	return b.String()
}
