package main

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
)

func newOAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oauth",
		Short: "Obtain and refresh OAuth2 tokens for environments",
	}

	login := &cobra.Command{
		Use:   "login ENV",
		Short: "Run the authorization code flow (PKCE) and store the tokens",
		Long: heredoc.Doc(`
			Login opens the environment's authorization URL in a browser and
			waits on a loopback listener for the redirect. The environment
			needs a client id, an auth URL and a token URL. The scope comes from
			the "scope" variable, then the environment's scope, then the
			configured default.
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := a.environment(ctx, args[0])
			if err != nil {
				return err
			}
			updated, err := a.oauth.PerformFlow(ctx, *env)
			if err != nil {
				return err
			}
			db, err := a.store(ctx)
			if err != nil {
				return err
			}
			if err := db.SaveEnvironment(ctx, updated); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "authorized %q%s\n", updated.Name, expirySuffix(updated.ExpiresAt))
			return nil
		},
	}

	refresh := &cobra.Command{
		Use:   "refresh ENV",
		Short: "Exchange the stored refresh token for a new access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := a.environment(ctx, args[0])
			if err != nil {
				return err
			}
			updated, err := a.oauth.Refresh(ctx, *env)
			if err != nil {
				return err
			}
			db, err := a.store(ctx)
			if err != nil {
				return err
			}
			if err := db.SaveEnvironment(ctx, updated); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "refreshed %q%s\n", updated.Name, expirySuffix(updated.ExpiresAt))
			return nil
		},
	}

	cmd.AddCommand(login, refresh)
	return cmd
}

func expirySuffix(expiresAt string) string {
	if expiresAt == "" {
		return ""
	}
	return ", expires " + expiresAt
}
