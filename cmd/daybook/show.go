package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/daybook/internal/codec"
)

var showCmd = &cobra.Command{
	Use:   "show <date>",
	Short: "Print the entry for a date",
	Long:  "Prints the entry document for the given YYYY-MM-DD date. Dates absent from the local cache are fetched from the remote store when one is configured.",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := a.coord.Entry(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		sections := make(map[string]string, len(entry.Sections))
		for id, text := range entry.Sections {
			sections[id.String()] = text
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"date":            entry.Date,
			"schema_version":  entry.SchemaVersion,
			"scores":          entry.Scores,
			"net_worth_delta": entry.NetWorthDelta,
			"sections":        sections,
		})
	}

	fmt.Fprint(cmd.OutOrStdout(), codec.Encode(entry))
	return nil
}
