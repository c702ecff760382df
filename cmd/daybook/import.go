package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/daybook/internal/export"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import entries from a JSON export",
	Long:  "Imports entries from a daybook JSON export. Imported entries land pending and sync on the next drain; entries already synced locally are never overwritten.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	report, err := export.ImportJSON(ctx, a.store, f)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), report)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d, retained %d\n",
		report.Imported, report.Skipped, report.Retained)
	return nil
}
