package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hoistlab/hoist/pkg/config"
)

func newCreateCommand() *cobra.Command {
	var definitionFile string

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new environment",
		Long: `Create a new environment from a definition file.

The environment starts in the created state; no infrastructure exists
until it is provisioned. The name comes from the argument or from the
definition file, with the argument winning.`,
		Example: `  # Name from the definition file
  hoist create -f staging.yaml

  # Name from the argument
  hoist create staging-eu -f staging.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				loader, err := config.NewLoader()
				if err != nil {
					return err
				}
				name := ""
				if len(args) == 1 {
					name = args[0]
				}
				spec, err := loader.LoadEnvironment(definitionFile, name)
				if err != nil {
					return err
				}

				handler, err := a.handler(a.remoteRunner(spec.SSH))
				if err != nil {
					return err
				}
				record, err := handler.Create(ctx, spec)
				if err != nil {
					return err
				}
				if err := printRecord(record); err != nil {
					return err
				}
				if !jsonOutput {
					fmt.Printf("provision it with: hoist provision %s\n", spec.Name)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&definitionFile, "file", "f", "", "environment definition file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
