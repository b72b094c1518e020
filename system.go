package main

import (
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/agave-cli/agavecli/internal/agave"
)

func newSystemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Inspect compute and storage systems",
	}

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List systems visible to you",
		Args:  cobra.NoArgs,
		RunE:  runSystemLs,
	}
	ls.Flags().BoolP("storage", "s", false, "only storage systems")
	ls.Flags().BoolP("execution", "x", false, "only execution systems")

	cmd.AddCommand(ls)

	return cmd
}

// filterSystems keeps the requested kinds. No kinds selected keeps all.
func filterSystems(systems []agave.System, storage, execution bool) []agave.System {
	if !storage && !execution {
		return systems
	}

	var out []agave.System

	for _, s := range systems {
		switch s.Kind() {
		case agave.SystemTypeStorage:
			if storage {
				out = append(out, s)
			}
		case agave.SystemTypeExecution:
			if execution {
				out = append(out, s)
			}
		}
	}

	return out
}

func runSystemLs(cmd *cobra.Command, _ []string) error {
	storage, _ := cmd.Flags().GetBool("storage")
	execution, _ := cmd.Flags().GetBool("execution")

	client, err := bearerClient(cmd.Context(), defaultHTTPClient(), slog.Default())
	if err != nil {
		return err
	}

	systems, err := client.ListSystems(cmd.Context(), cfg().Endpoints.Systems)
	if err != nil {
		return err
	}

	systems = filterSystems(systems, storage, execution)

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), systems)
	}

	t := newTable(cmd.OutOrStdout(), table.Row{"ID", "TYPE", "DEFAULT", "PUBLIC"})
	for _, s := range systems {
		t.AppendRow(table.Row{s.ID, s.Kind(), yesNo(s.Default), yesNo(s.Public)})
	}

	t.Render()

	return nil
}
