package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/daybook/internal/cache"
)

var (
	listPage   int
	listSearch string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	listCmd.Flags().StringVar(&listSearch, "search", "", "Filter by date or entry text")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.index.SetQuery(listSearch)
	a.index.SetPage(listPage)
	page := a.index.Page()

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), page)
	}

	if len(page.Dates) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No entries found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSTATUS")
	for _, date := range page.Dates {
		status := "remote"
		rec, err := a.store.GetRecord(ctx, date)
		switch {
		case err == nil:
			status = string(rec.State)
		case !errors.Is(err, cache.ErrNotFound):
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", date, status)
	}
	w.Flush()

	fmt.Fprintf(cmd.OutOrStdout(), "\npage %d of %d\n", page.Current, page.Total)
	return nil
}
