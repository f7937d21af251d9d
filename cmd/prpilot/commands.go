package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/prpilot/internal/logging"
)

// pullFlags are the flags selecting a pull request.
type pullFlags struct {
	repo   string
	number int
}

func (p *pullFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.repo, "repo", "", "repository as owner/name")
	cmd.Flags().IntVar(&p.number, "pr", 0, "pull request number")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("pr")
}

func (p *pullFlags) validate() error {
	if p.number <= 0 {
		return fmt.Errorf("--pr must be a positive number, got %d", p.number)
	}
	return nil
}

func newEvaluateCmd(env *environment) *cobra.Command {
	var pull pullFlags

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the rules of a pull request and run matching actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := pull.validate(); err != nil {
				return err
			}
			cfg, logCloser, err := env.bootstrap()
			if err != nil {
				return err
			}
			defer closeLogged("log sinks", logCloser)

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeLogged("application", a)

			records, evalErr := a.engine.Evaluate(cmd.Context(), pull.repo, pull.number)
			if err := printRecords(env.stdout(), records); err != nil {
				return err
			}
			return evalErr
		},
	}
	pull.register(cmd)
	return cmd
}

func newCommandCmd(env *environment) *cobra.Command {
	var (
		pull   pullFlags
		author string
		body   string
	)

	cmd := &cobra.Command{
		Use:   "command",
		Short: "Run a comment command as if author had posted body",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := pull.validate(); err != nil {
				return err
			}
			cfg, logCloser, err := env.bootstrap()
			if err != nil {
				return err
			}
			defer closeLogged("log sinks", logCloser)

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeLogged("application", a)

			res, err := a.commands.Handle(cmd.Context(), pull.repo, pull.number, author, body)
			if err != nil {
				return err
			}
			if res == nil {
				return fmt.Errorf("%q is not a %s command", body, cfg.CommandPrefix)
			}
			return printResult(env.stdout(), *res)
		},
	}
	pull.register(cmd)
	cmd.Flags().StringVar(&author, "author", "", "login of the commenter")
	cmd.Flags().StringVar(&body, "body", "", "comment body, e.g. \"@prpilot rebase\"")
	_ = cmd.MarkFlagRequired("author")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}

func newHistoryCmd(env *environment) *cobra.Command {
	var pull pullFlags

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the recorded action results of a pull request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := pull.validate(); err != nil {
				return err
			}
			cfg, logCloser, err := env.bootstrap()
			if err != nil {
				return err
			}
			defer closeLogged("log sinks", logCloser)

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeLogged("database", st)

			records, err := st.results.ListByPR(cmd.Context(), pull.repo, pull.number)
			if err != nil {
				return err
			}
			return printRecords(env.stdout(), records)
		},
	}
	pull.register(cmd)
	return cmd
}

func newConfigCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logCloser, err := env.bootstrap()
			if err != nil {
				return err
			}
			defer closeLogged("log sinks", logCloser)

			logging.ConfigLog(slog.New(newPlainHandler(env.stdout())), cfg.Values())
			return nil
		},
	}
}
