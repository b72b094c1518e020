package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/agave-cli/agavecli/internal/agave"
	"github.com/agave-cli/agavecli/internal/session"
)

const defaultClientDescription = "Autogenerated client"

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage OAuth client applications and API keys",
		Long: `Manage OAuth client applications. These calls authenticate with your
account username and password; the password is prompted for every time.`,
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a client and store its API key and secret",
		Args:  cobra.NoArgs,
		RunE:  runClientCreate,
	}
	create.Flags().StringP("name", "n", "", "client name (default: hostname)")
	create.Flags().StringP("description", "d", defaultClientDescription, "client description")

	cmd.AddCommand(create)
	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List your client applications",
		Args:  cobra.NoArgs,
		RunE:  runClientLs,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a client application and forget its API keys",
		Args:  cobra.ExactArgs(1),
		RunE:  runClientRm,
	})

	return cmd
}

// basicClient returns a client for the current tenant that authenticates
// with the user's account password, and the username it used. The username
// is prompted for when the profile has none.
func basicClient() (*agave.Client, string, error) {
	s, err := session.Load(cfg().AgaveDB)
	if err != nil {
		return nil, "", err
	}

	prompter := newPrompter()

	username := s.Current.Username
	if username == "" {
		if username, err = prompter.Line("API username: "); err != nil {
			return nil, "", err
		}
	}

	password, err := prompter.Password("API password: ")
	if err != nil {
		return nil, "", err
	}

	auth := agave.BasicAuth{Username: username, Password: password}

	return agave.NewClient(s.Current.BaseURL, defaultHTTPClient(), auth, slog.Default()), username, nil
}

func runClientCreate(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("name")
	description, _ := cmd.Flags().GetString("description")

	if name == "" {
		host, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("determining default client name: %w", err)
		}

		name = host
	}

	client, username, err := basicClient()
	if err != nil {
		return err
	}

	created, err := client.CreateClient(cmd.Context(), cfg().Endpoints.Clients, name, description)
	if err != nil {
		return err
	}

	// New keys invalidate the old token pair.
	if _, err := session.Update(cfg().AgaveDB, func(p *session.Profile) error {
		p.Username = username
		p.APIKey = created.ConsumerKey
		p.APISecret = created.ConsumerSecret
		p.ClearTokens()

		return nil
	}); err != nil {
		return err
	}

	statusf("Created client %s\n", created.Name)

	return nil
}

func runClientLs(cmd *cobra.Command, _ []string) error {
	client, _, err := basicClient()
	if err != nil {
		return err
	}

	clients, err := client.ListClients(cmd.Context(), cfg().Endpoints.Clients)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), clients)
	}

	t := newTable(cmd.OutOrStdout(), table.Row{"NAME", "DESCRIPTION"})
	for _, c := range clients {
		t.AppendRow(table.Row{c.Name, c.Description})
	}

	t.Render()

	return nil
}

func runClientRm(cmd *cobra.Command, args []string) error {
	client, _, err := basicClient()
	if err != nil {
		return err
	}

	if err := deleteClient(cmd.Context(), client, args[0]); err != nil {
		return err
	}

	statusf("Deleted client %s\n", args[0])

	return nil
}

// deleteClient removes the client remotely, then forgets the stored keys.
func deleteClient(ctx context.Context, client *agave.Client, name string) error {
	if err := client.DeleteClient(ctx, cfg().Endpoints.Clients, name); err != nil {
		return err
	}

	_, err := session.Update(cfg().AgaveDB, func(p *session.Profile) error {
		p.ClearKeys()

		return nil
	})

	return err
}
