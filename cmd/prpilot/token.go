package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/prpilot/internal/config"
	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

func newTokenCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the GitHub tokens of bot accounts",
		Long: `Bot account tokens are used by actions configured with bot_account.
They are stored encrypted with a key derived from PRPILOT_CACHE_TOKEN_SECRET.`,
	}
	cmd.AddCommand(newTokenSetCmd(env), newTokenListCmd(env), newTokenDeleteCmd(env))
	return cmd
}

// withStore bootstraps and opens the store around fn.
func (e *environment) withStore(fn func(st *store) error) error {
	cfg, logCloser, err := e.bootstrap()
	if err != nil {
		return err
	}
	defer closeLogged("log sinks", logCloser)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeLogged("database", st)

	return fn(st)
}

func newTokenSetCmd(env *environment) *cobra.Command {
	var login, value string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store or replace the token of a bot account",
		Long: `The token is read from --value, else from $` + botTokenEnv + `, else from the
first line of stdin. Prefer the last two: flags are visible in the process list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := tokenValue(value, os.Getenv, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return env.withStore(func(st *store) error {
				if err := st.credentials.Set(cmd.Context(), model.BotTokenService(login), token); err != nil {
					return err
				}
				_, err := fmt.Fprintf(env.stdout(), "token of %s stored\n", login)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "bot account login")
	cmd.Flags().StringVar(&value, "value", "", "GitHub token (visible to other local users, prefer stdin)")
	_ = cmd.MarkFlagRequired("login")
	return cmd
}

const botTokenEnv = config.EnvPrefix + "BOT_TOKEN"

// tokenValue picks the token from the flag, the environment or stdin, in
// that order.
func tokenValue(flag string, getenv func(string) string, stdin io.Reader) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if v := strings.TrimSpace(getenv(botTokenEnv)); v != "" {
		return v, nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading token from stdin: %w", err)
	}
	if token := strings.TrimSpace(line); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("no token given: pipe it on stdin or set %s", botTokenEnv)
}

func newTokenListCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List bot accounts with a stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.withStore(func(st *store) error {
				creds, err := st.credentials.List(cmd.Context())
				if err != nil {
					return err
				}
				return printCredentials(env.stdout(), creds)
			})
		},
	}
}

func newTokenDeleteCmd(env *environment) *cobra.Command {
	var login string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the token of a bot account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.withStore(func(st *store) error {
				if err := st.credentials.Delete(cmd.Context(), model.BotTokenService(login)); err != nil {
					return err
				}
				_, err := fmt.Fprintf(env.stdout(), "token of %s deleted\n", login)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "bot account login")
	_ = cmd.MarkFlagRequired("login")
	return cmd
}
