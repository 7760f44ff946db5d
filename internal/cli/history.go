package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List analyses recorded on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				cmd.Println("No analyses recorded yet.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWHEN\tMODEL\tMEMOS")
			for _, e := range entries {
				names := make([]string, len(e.Attachments))
				for i, a := range e.Attachments {
					names[i] = a.Name
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.CreatedAt.Format(time.DateTime), e.Model, strings.Join(names, ", "))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")

	cmd.AddCommand(newHistoryShowCmd(opts))
	return cmd
}

func newHistoryShowCmd(opts *options) *cobra.Command {
	var (
		style     string
		width     int
		reasoning bool
	)

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Render a recorded analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}

			store, err := opts.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			entry, err := store.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			source := entry.Answer
			if reasoning && entry.Reasoning != "" {
				source = "> " + strings.ReplaceAll(entry.Reasoning, "\n", "\n> ") + "\n\n" + source
			}
			return printMarkdown(cmd.OutOrStdout(), source, style, width)
		},
	}
	cmd.Flags().StringVar(&style, "style", "dark", "glamour style for rendering")
	cmd.Flags().IntVar(&width, "width", 100, "wrap width for rendering")
	cmd.Flags().BoolVar(&reasoning, "reasoning", false, "include the model's reasoning")
	return cmd
}
