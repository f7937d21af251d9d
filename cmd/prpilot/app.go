package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ericfisherdev/prpilot/internal/action"
	"github.com/ericfisherdev/prpilot/internal/action/comment"
	"github.com/ericfisherdev/prpilot/internal/action/queue"
	"github.com/ericfisherdev/prpilot/internal/action/rebase"
	githubadapter "github.com/ericfisherdev/prpilot/internal/adapter/driven/github"
	"github.com/ericfisherdev/prpilot/internal/adapter/driven/gitupdater"
	redisadapter "github.com/ericfisherdev/prpilot/internal/adapter/driven/redis"
	sqliteadapter "github.com/ericfisherdev/prpilot/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/prpilot/internal/application"
	"github.com/ericfisherdev/prpilot/internal/config"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
	"github.com/ericfisherdev/prpilot/internal/logging"
	"github.com/ericfisherdev/prpilot/internal/telemetry"
)

const serviceName = "prpilot"

// environment carries what every subcommand needs before it builds its
// dependencies.
type environment struct {
	configPath *string
	stdout     func() io.Writer
}

// bootstrap loads the configuration and installs logging. The returned
// closer flushes the log sinks.
func (e *environment) bootstrap() (*config.Config, io.Closer, error) {
	path := *e.configPath
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "CONFIG_FILE")
	}
	cfg, err := config.LoadPath(path)
	if err != nil {
		return nil, nil, err
	}

	logCloser, err := logging.Setup(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("setting up logging: %w", err)
	}
	return cfg, logCloser, nil
}

// store is the persistence layer shared by every subcommand.
type store struct {
	db          *sqliteadapter.DB
	results     *sqliteadapter.ResultRepo
	credentials *sqliteadapter.CredentialRepo
}

func openStore(cfg *config.Config) (*store, error) {
	db, err := sqliteadapter.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("database opened", "path", cfg.DBPath)

	creds, err := sqliteadapter.NewCredentialRepo(db, cfg.TokenKey())
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &store{
		db:          db,
		results:     sqliteadapter.NewResultRepo(db),
		credentials: creds,
	}, nil
}

func (s *store) Close() error {
	return s.db.Close()
}

// app is the fully wired service.
type app struct {
	*store
	engine   *application.Engine
	commands *application.CommandService

	redis          *redisadapter.Store // nil without STORAGE_URL.
	shutdownTracer telemetry.ShutdownFunc
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{store: st}

	client, err := githubadapter.NewClient(cfg.MainToken, cfg.GitHubAPIURL)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("creating github client: %w", err)
	}

	var perms driven.PermissionCache
	if cfg.StorageURL != "" {
		a.redis, err = redisadapter.Connect(ctx, cfg.StorageURL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		perms = a.redis.Permissions
	} else {
		slog.Info("no storage URL configured, collaborator permissions are not cached and the merge queue is disabled")
	}

	tracer, shutdown, err := telemetry.NewTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.shutdownTracer = shutdown

	updater := gitupdater.New(gitupdater.Options{
		Credentials: st.credentials,
		MainToken:   cfg.MainToken,
		GitURL:      cfg.GitHubURL,
		GitEmail:    cfg.GitEmail,
	})
	kinds := []action.Kind{
		rebase.NewKind(updater, cfg.GitHubApp),
		comment.NewKind(client),
	}
	if a.redis != nil {
		kinds = append(kinds, queue.NewKind(a.redis.Queue), queue.NewUnqueueKind(a.redis.Queue))
	}
	registry := action.NewRegistry(kinds...)

	a.engine = application.NewEngine(client, client, st.results, registry, cfg.RulesFile, tracer)
	a.commands = application.NewCommandService(client, client, st.results, perms, registry, cfg.CommandPrefix)

	return a, nil
}

// Close releases the tracer, redis and the database, in that order, and
// returns every error encountered.
func (a *app) Close() error {
	var errs []error
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("shutting down tracer: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// closeLogged closes c and logs a failure instead of returning it.
func closeLogged(what string, c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Error("error closing "+what, "error", err)
	}
}
