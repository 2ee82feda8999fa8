package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [name]",
		Short: "Show recent command invocations",
		Long: `Show recent command invocations, newest first. With a name, only
that environment's commands are shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				handler, err := a.handler(nil)
				if err != nil {
					return err
				}
				name := ""
				if len(args) == 1 {
					name = args[0]
				}
				records, err := handler.Recent(ctx, name, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(records)
				}
				if len(records) == 0 {
					fmt.Println("no history")
					return nil
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "WHEN\tENVIRONMENT\tVERB\tOUTCOME\tERROR")
				for _, r := range records {
					errMsg := r.Error
					if errMsg == "" {
						errMsg = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						r.StartedAt.Format("2006-01-02 15:04:05"),
						r.Environment, r.Verb, r.Outcome, errMsg)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum records to show")

	return cmd
}
