package main

import (
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/agave-cli/agavecli/internal/session"
	"github.com/agave-cli/agavecli/internal/tenants"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Discover tenants and choose the current one",
	}

	cmd.PersistentFlags().StringP("hosturl", "H", "", "tenant registry URL (default from config)")

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List tenants known to the registry",
		Args:  cobra.NoArgs,
		RunE:  runTenantLs,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init <code>",
		Short: "Make a tenant current, restoring its saved credentials",
		Long: `Make a tenant current. The credentials of the previously current tenant
are saved first, and switching back to a tenant used before restores its
API keys and tokens.`,
		Args: cobra.ExactArgs(1),
		RunE: runTenantInit,
	})

	return cmd
}

// registryURL returns --hosturl when given, else the configured registry.
func registryURL(cmd *cobra.Command) string {
	if u, _ := cmd.Flags().GetString("hosturl"); u != "" {
		return u
	}

	return cfg().HostURL
}

func runTenantLs(cmd *cobra.Command, _ []string) error {
	registry := tenants.NewRegistry(defaultHTTPClient(), slog.Default())

	list, err := registry.List(cmd.Context(), registryURL(cmd))
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), list)
	}

	t := newTable(cmd.OutOrStdout(), table.Row{"CODE", "NAME", "URL"})
	for _, tn := range list {
		t.AppendRow(table.Row{tn.Code, tn.Name, tn.BaseURL})
	}

	t.Render()

	return nil
}

func runTenantInit(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	registry := tenants.NewRegistry(defaultHTTPClient(), logger)

	s, err := session.Init(cmd.Context(), registry, registryURL(cmd), args[0], cfg().AgaveDB, logger)
	if err != nil {
		return err
	}

	statusf("Current tenant is %s (%s)\n", s.Current.TenantID, s.Current.BaseURL)

	return nil
}
