package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"memodesk-backend/internal/models"
)

func newChatsCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List your chats on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			chats, err := opts.client().Chats(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tVISIBILITY\tCREATED")
			for _, c := range chats {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Title, c.Visibility, c.CreatedAt.Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of chats")
	return cmd
}

func newShowCmd(opts *options) *cobra.Command {
	var (
		style string
		width int
	)

	cmd := &cobra.Command{
		Use:   "show CHAT_ID",
		Short: "Render the messages of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid chat id %q", args[0])
			}

			msgs, err := opts.client().Messages(cmd.Context(), chatID)
			if err != nil {
				return err
			}

			var b strings.Builder
			for _, m := range msgs {
				if m.Role == models.RoleUser {
					fmt.Fprintf(&b, "---\n\n**You** (%s): %s\n\n", m.ID, m.Content)
					for _, a := range m.Attachments {
						fmt.Fprintf(&b, "- 📎 %s\n", a.Name)
					}
					b.WriteString("\n")
					continue
				}
				fmt.Fprintf(&b, "%s\n\n", m.Content)
			}
			return printMarkdown(cmd.OutOrStdout(), b.String(), style, width)
		},
	}
	cmd.Flags().StringVar(&style, "style", "dark", "glamour style for rendering")
	cmd.Flags().IntVar(&width, "width", 100, "wrap width for rendering")
	return cmd
}

func newShareCmd(opts *options) *cobra.Command {
	var private bool

	cmd := &cobra.Command{
		Use:   "share CHAT_ID",
		Short: "Make a chat public (or private again with --private)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid chat id %q", args[0])
			}

			visibility := models.VisibilityPublic
			if private {
				visibility = models.VisibilityPrivate
			}
			if err := opts.client().SetVisibility(cmd.Context(), chatID, visibility); err != nil {
				return err
			}
			opts.logger.Info("visibility updated", "chat", chatID, "visibility", visibility)
			return nil
		},
	}
	cmd.Flags().BoolVar(&private, "private", false, "make the chat private")
	return cmd
}

func newRewindCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rewind MESSAGE_ID",
		Short: "Delete a message and everything after it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			messageID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid message id %q", args[0])
			}

			n, err := opts.client().DeleteTrailing(cmd.Context(), messageID)
			if err != nil {
				return err
			}
			opts.logger.Info("messages deleted", "count", n)
			return nil
		},
	}
}

func newModelsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the chat models the server offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, selected, err := opts.client().Models(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				marker := " "
				if k == selected {
					marker = "*"
				}
				cmd.Printf("%s %s\n", marker, k)
			}
			return nil
		},
	}
}
