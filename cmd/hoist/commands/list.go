package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				handler, err := a.handler(nil)
				if err != nil {
					return err
				}
				summaries, err := handler.List(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(summaries)
				}
				if len(summaries) == 0 {
					fmt.Println("no environments")
					return nil
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tSTATE\tADDRESS\tUPDATED")
				for _, s := range summaries {
					addr := s.InstanceAddress
					if addr == "" {
						addr = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						s.Name, s.State, addr, s.UpdatedAt.Format("2006-01-02 15:04:05"))
				}
				return w.Flush()
			})
		},
	}
}
