package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	redisadapter "github.com/ericfisherdev/prpilot/internal/adapter/driven/redis"
)

// withRedis bootstraps and connects to STORAGE_URL around fn.
func (e *environment) withRedis(cmd *cobra.Command, fn func(rs *redisadapter.Store) error) error {
	cfg, logCloser, err := e.bootstrap()
	if err != nil {
		return err
	}
	defer closeLogged("log sinks", logCloser)

	if cfg.StorageURL == "" {
		return errors.New("STORAGE_URL is not configured")
	}
	rs, err := redisadapter.Connect(cmd.Context(), cfg.StorageURL)
	if err != nil {
		return err
	}
	defer closeLogged("redis", rs)

	return fn(rs)
}

func newPermissionsCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Manage the cached collaborator permissions",
	}
	cmd.AddCommand(newPermissionsInvalidateCmd(env))
	return cmd
}

func newPermissionsInvalidateCmd(env *environment) *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Forget the cached permissions of a repository",
		Long: `Permissions are cached for an hour. Invalidate them after changing a
collaborator's access so commands see the new level right away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.withRedis(cmd, func(rs *redisadapter.Store) error {
				if err := rs.Permissions.Invalidate(cmd.Context(), repo); err != nil {
					return err
				}
				_, err := fmt.Fprintf(env.stdout(), "cached permissions of %s invalidated\n", repo)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "repository as owner/name")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}

func newQueueCmd(env *environment) *cobra.Command {
	var repo, branch string

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the merge queue of a base branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.withRedis(cmd, func(rs *redisadapter.Store) error {
				pulls, err := rs.Queue.Pulls(cmd.Context(), repo, branch)
				if err != nil {
					return err
				}
				return printQueue(env.stdout(), pulls)
			})
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "repository as owner/name")
	cmd.Flags().StringVar(&branch, "branch", "main", "base branch")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}
