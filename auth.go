package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/agave-cli/agavecli/internal/auth"
	"github.com/agave-cli/agavecli/internal/session"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Create and refresh access tokens",
	}

	cmd.PersistentFlags().StringP("endpoint", "e", "", "token endpoint path (default from config)")

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Obtain a new token pair with your account password",
		Long: `Obtain a new access and refresh token with the password grant. Run
"client create" first so the current tenant has API keys.`,
		Args: cobra.NoArgs,
		RunE: runAuthCreate,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token with the stored refresh token",
		Args:  cobra.NoArgs,
		RunE:  runAuthRefresh,
	})

	return cmd
}

// authManager builds a token manager honouring --endpoint.
func authManager(cmd *cobra.Command) *auth.Manager {
	endpoint, _ := cmd.Flags().GetString("endpoint")
	if endpoint == "" {
		endpoint = cfg().Endpoints.Token
	}

	return auth.NewManager(cfg().AgaveDB, endpoint, defaultHTTPClient(), slog.Default())
}

func runAuthCreate(cmd *cobra.Command, _ []string) error {
	dir := cfg().AgaveDB

	s, err := session.Load(dir)
	if err != nil {
		return err
	}

	prompter := newPrompter()

	if s.Current.Username == "" {
		username, err := prompter.Line("API username: ")
		if err != nil {
			return err
		}

		if _, err := session.Update(dir, func(p *session.Profile) error {
			p.Username = username

			return nil
		}); err != nil {
			return err
		}
	}

	p, err := authManager(cmd).Create(cmd.Context(), prompter)
	if err != nil {
		return err
	}

	return printTokenSummary(cmd, p)
}

func runAuthRefresh(cmd *cobra.Command, _ []string) error {
	p, err := authManager(cmd).Refresh(cmd.Context())
	if err != nil {
		return err
	}

	return printTokenSummary(cmd, p)
}

type tokenSummary struct {
	Tenant    string `json:"tenant"`
	ExpiresAt string `json:"expires_at"`
	ExpiresIn int64  `json:"expires_in"`
}

func printTokenSummary(cmd *cobra.Command, p *session.Profile) error {
	out := cmd.OutOrStdout()

	if flagJSON {
		return printJSON(out, tokenSummary{Tenant: p.TenantID, ExpiresAt: p.ExpiresAt, ExpiresIn: int64(p.ExpiresIn)})
	}

	_, err := fmt.Fprintf(out, "Token for %s expires at %s\n", p.TenantID, p.ExpiresAt)

	return err
}
