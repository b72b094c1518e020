package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/agave-cli/agavecli/internal/transfer"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fs",
		Short: "Work with files on remote storage systems",
		Long: `Work with files on remote storage systems. Remote paths are written as
"system/path"; fs cp marks remote locations with the agave:// prefix.`,
	}

	ls := &cobra.Command{
		Use:   "ls <system/path>",
		Short: "List a remote directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runFsLs,
	}
	ls.Flags().BoolP("long", "l", false, "long listing with permissions, size, and modification time")

	cmd.AddCommand(ls)
	cmd.AddCommand(&cobra.Command{
		Use:   "mkdir <system/path>",
		Short: "Create a remote directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runFsMkdir,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <system/path>",
		Short: "Delete a remote file or directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runFsRm,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cp <origin> <destination>",
		Short: "Copy between local and remote storage",
		Long: `Copy a file. Prefix remote locations with agave://, for example

  agavecli fs cp results.csv agave://data-sd2e-community/uploads/
  agavecli fs cp agave://data-sd2e-community/uploads/results.csv ./
  agavecli fs cp agave://sys-a/in.dat agave://sys-b/in.dat

Remote to remote copies are relayed through a temporary local directory.
A local destination that ends in "/" or is an existing directory receives
the file under its remote name. Any other local destination is used as the
full path of the downloaded file, including its directories; it is not
reduced to its last path segment in the working directory.`,
		Args: cobra.ExactArgs(2),
		RunE: runFsCp,
	})

	return cmd
}

func runFsLs(cmd *cobra.Command, args []string) error {
	long, _ := cmd.Flags().GetBool("long")

	client, err := bearerClient(cmd.Context(), defaultHTTPClient(), slog.Default())
	if err != nil {
		return err
	}

	entries, err := client.ListFiles(cmd.Context(), cfg().Endpoints.Listings, args[0])
	if err != nil {
		return err
	}

	sortEntries(entries)

	out := cmd.OutOrStdout()

	switch {
	case flagJSON:
		return printJSON(out, entries)
	case long:
		printLongListing(out, entries)
	default:
		printShortListing(out, entries, terminalWidth())
	}

	return nil
}

func runFsMkdir(cmd *cobra.Command, args []string) error {
	client, err := bearerClient(cmd.Context(), defaultHTTPClient(), slog.Default())
	if err != nil {
		return err
	}

	if err := client.Mkdir(cmd.Context(), cfg().Endpoints.Media, args[0]); err != nil {
		return err
	}

	statusf("Created %s\n", args[0])

	return nil
}

func runFsRm(cmd *cobra.Command, args []string) error {
	client, err := bearerClient(cmd.Context(), defaultHTTPClient(), slog.Default())
	if err != nil {
		return err
	}

	if err := client.Remove(cmd.Context(), cfg().Endpoints.Media, args[0]); err != nil {
		return err
	}

	statusf("Deleted %s\n", args[0])

	return nil
}

func runFsCp(cmd *cobra.Command, args []string) error {
	origin, dest := transfer.ParseLocation(args[0]), transfer.ParseLocation(args[1])

	// Reject local to local before asking for a token.
	if _, err := transfer.Classify(origin, dest); err != nil {
		return err
	}

	logger := slog.Default()

	client, err := bearerClient(cmd.Context(), transferHTTPClient(), logger)
	if err != nil {
		return err
	}

	res, err := transfer.NewRouter(client, cfg().Endpoints.Media, logger).Copy(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), res)
	}

	switch res.Direction {
	case transfer.Download:
		statusf("Downloaded %s to %s (%s)\n", origin, res.LocalPath, formatSize(res.Bytes))
	default:
		statusf("Uploaded %s to %s (%s)\n", origin, dest, formatSize(res.Bytes))
	}

	return nil
}
