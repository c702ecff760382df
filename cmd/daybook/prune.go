package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneKeep int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old synced entries from the local cache",
	Long:  "Removes the oldest synced entries beyond the newest N from the local cache. Pending entries are never pruned, and pruned dates stay listed; their content is re-fetched from the remote store on demand.",
	Args:  cobra.NoArgs,
	RunE:  runPrune,
}

func init() {
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", 0, "Number of newest entries to keep (required)")
	pruneCmd.MarkFlagRequired("keep")
}

func runPrune(cmd *cobra.Command, args []string) error {
	if pruneKeep < 0 {
		return fmt.Errorf("--keep must be non-negative")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.store.Prune(ctx, pruneKeep)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]int{"removed": removed, "kept": pruneKeep})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached entries\n", removed)
	return nil
}
