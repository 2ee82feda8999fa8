package commands

import (
	"context"

	"github.com/spf13/cobra"
)

func newRegisterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register <name> <address>",
		Short: "Adopt an already-running instance",
		Long: `Adopt an instance that already exists instead of provisioning one.

The environment must be in the created state. Hoist verifies the
instance at the given address answers SSH with the environment's
credentials, records the address and host key, and marks the
environment provisioned. From there configure, release, and run work
exactly as they do for a provisioned environment.`,
		Example: `  hoist register staging 10.0.4.17`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				handler, err := a.handlerFor(ctx, args[0])
				if err != nil {
					return err
				}
				record, runErr := handler.Register(ctx, args[0], args[1])
				if record.ID != "" {
					if err := printRecord(record); err != nil {
						return err
					}
				}
				return runErr
			})
		},
	}
}
