package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hoistlab/hoist/pkg/orchestrator"
)

// verbFunc runs one lifecycle verb against a named environment.
type verbFunc func(h *orchestrator.Handler, ctx context.Context, name string) (orchestrator.CommandRecord, error)

// newLifecycleCommand builds the shared single-environment verb shape:
// load the environment, wire a handler with its credentials, run the
// verb, report the record.
func newLifecycleCommand(use, short, long string, fn verbFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				handler, err := a.handlerFor(ctx, args[0])
				if err != nil {
					return err
				}
				record, runErr := fn(handler, ctx, args[0])
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

func newProvisionCommand() *cobra.Command {
	return newLifecycleCommand("provision",
		"Bring up infrastructure for an environment",
		`Bring up infrastructure for a created environment.

Renders the infrastructure configuration, applies it with OpenTofu,
waits for the instance to answer SSH, and waits for cloud-init to
finish. On success the environment is provisioned and its instance
address is recorded; on failure nothing is persisted.`,
		(*orchestrator.Handler).Provision)
}

func newConfigureCommand() *cobra.Command {
	return newLifecycleCommand("configure",
		"Run the configuration playbook",
		`Run the Ansible configuration playbook against a provisioned
environment. The inventory is rendered from the recorded instance
address.`,
		(*orchestrator.Handler).Configure)
}

func newReleaseCommand() *cobra.Command {
	return newLifecycleCommand("release",
		"Upload and place the release artifacts",
		`Render the release artifacts, upload them to the instance over
SFTP, and run the deploy script. Services are not started; that is the
run verb's job.`,
		(*orchestrator.Handler).Release)
}

func newRunCommand() *cobra.Command {
	return newLifecycleCommand("run",
		"Start the deployed services",
		`Start the services of a released environment and record the
endpoints they expose.`,
		(*orchestrator.Handler).Run)
}

func newTestCommand() *cobra.Command {
	return newLifecycleCommand("test",
		"Smoke-check a running environment",
		`Check the service status and probe every recorded endpoint of a
running environment. The environment's state never changes, pass or
fail.`,
		(*orchestrator.Handler).Test)
}
