package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/qwikask/qwikask/internal/app"
	"github.com/qwikask/qwikask/internal/model"
)

func newHistoryCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "browse and manage saved conversations",
	}

	var limit, offset int
	var grouped bool
	list := &cobra.Command{
		Use:   "list",
		Short: "list conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), e, func(a *app.App) error {
				out := cmd.OutOrStdout()
				if grouped {
					groups, err := a.Conversations.Grouped(cmd.Context())
					if err != nil {
						return err
					}
					printGroup(out, "Today", groups.Today)
					printGroup(out, "Yesterday", groups.Yesterday)
					printGroup(out, "Older", groups.Older)
					return nil
				}

				page, err := a.Conversations.List(cmd.Context(), limit, offset)
				if err != nil {
					return err
				}
				printConversations(out, page.Conversations)
				if page.HasMore {
					fmt.Fprintf(out, "\nmore: --offset %d\n", offset+len(page.Conversations))
				}
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "conversations per page")
	list.Flags().IntVar(&offset, "offset", 0, "conversations to skip")
	list.Flags().BoolVar(&grouped, "grouped", false, "group by today, yesterday and older")

	search := &cobra.Command{
		Use:   "search <text>",
		Short: "find conversations by title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), e, func(a *app.App) error {
				convs, err := a.Conversations.Search(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printConversations(cmd.OutOrStdout(), convs)
				return nil
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "print a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), e, func(a *app.App) error {
				conv, err := a.Conversations.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				msgs, err := a.Conversations.Messages(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "# %s\n", conv.Title)
				for _, m := range msgs.Messages {
					fmt.Fprintf(out, "\n[%s] %s\n%s\n", m.Role, formatTime(m.CreatedAt), m.Content)
				}
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "delete a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), e, func(a *app.App) error {
				if err := a.Conversations.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, search, show, del)
	return cmd
}

// withApp opens the application, runs fn and closes it.
func withApp(ctx context.Context, e *env, fn func(a *app.App) error) error {
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdown(closeCtx, a)
	}()
	return fn(a)
}

func printConversations(out io.Writer, convs []model.Conversation) {
	if len(convs) == 0 {
		fmt.Fprintln(out, "no conversations")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPDATED\tTITLE")
	for _, c := range convs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, formatTime(c.UpdatedAt), c.Title)
	}
	tw.Flush()
}

func printGroup(out io.Writer, label string, convs []model.Conversation) {
	if len(convs) == 0 {
		return
	}
	fmt.Fprintf(out, "%s\n", label)
	for _, c := range convs {
		fmt.Fprintf(out, "  %s  %s\n", c.ID, c.Title)
	}
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
