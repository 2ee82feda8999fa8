package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hoistlab/hoist/pkg/environment"
)

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one environment in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				handler, err := a.handler(nil)
				if err != nil {
					return err
				}
				loaded, err := handler.Show(ctx, args[0])
				if err != nil {
					return err
				}

				if jsonOutput {
					data, err := environment.MarshalDocument(loaded)
					if err != nil {
						return err
					}
					_, err = os.Stdout.Write(append(data, '\n'))
					return err
				}

				env := loaded.Env()
				fmt.Printf("name:     %s\n", env.Name())
				fmt.Printf("state:    %s\n", env.State())
				fmt.Printf("provider: %s\n", env.Provider().Kind)
				fmt.Printf("created:  %s\n", env.CreatedAt().Format("2006-01-02 15:04:05"))
				fmt.Printf("updated:  %s\n", env.UpdatedAt().Format("2006-01-02 15:04:05"))

				outputs := env.Outputs()
				if outputs.InstanceAddress != "" {
					fmt.Printf("address:  %s\n", outputs.InstanceAddress)
				}
				if outputs.HostKeyFingerprint != "" {
					fmt.Printf("host key: %s\n", outputs.HostKeyFingerprint)
				}
				if len(outputs.Endpoints) > 0 {
					fmt.Println("endpoints:")
					for name, url := range outputs.Endpoints {
						fmt.Printf("  %s: %s\n", name, url)
					}
				}
				return nil
			})
		},
	}
}
