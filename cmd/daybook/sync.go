package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/daybook/internal/syncer"
)

var syncPullIndex bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending entries to the remote store",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncPullIndex, "pull-index", false,
		"Refresh the local date index from the remote listing first")
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := requireRemote(); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if syncPullIndex {
		if !a.coord.LoadRemoteIndex(ctx) {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: remote index refresh failed, continuing with local index")
		}
	}

	report, syncErr := a.coord.SyncAllPending(ctx)

	if jsonOutput {
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		printReport(cmd.OutOrStdout(), report)
	}

	// Failed entries stay queued; the non-zero exit tells scripts to retry.
	return syncErr
}

func printReport(w io.Writer, report syncer.Report) {
	if report.Skipped {
		fmt.Fprintln(w, "sync already in progress, nothing to do")
		return
	}
	fmt.Fprintf(w, "attempted %d, synced %d, failed %d, conflicts %d\n",
		report.Attempted, report.Synced, report.Failed, report.Conflicts)
}

// printJSON marshals v to indented JSON and writes it to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
