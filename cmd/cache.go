package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the result cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached URLs with their timestamps",
		Args:  cobra.NoArgs,
		RunE:  runCacheList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		Args:  cobra.NoArgs,
		RunE:  runCacheClear,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "invalidate <url>",
		Short: "Remove the cached entry for one URL",
		Args:  cobra.ExactArgs(1),
		RunE:  runCacheInvalidate,
	})
	return cmd
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	entries, err := appInstance.Inspector.Entries(cmd.Context())
	if err != nil {
		return err //nolint:wrapcheck
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("write entries: %w", err)
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	n, err := appInstance.Inspector.Clear(cmd.Context())
	if err != nil {
		return err //nolint:wrapcheck
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
	return nil
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	key, err := appInstance.Inspector.Invalidate(cmd.Context(), args[0])
	if err != nil {
		return err //nolint:wrapcheck
	}
	fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", key)
	return nil
}
