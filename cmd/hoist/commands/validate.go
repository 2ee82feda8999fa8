package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hoistlab/hoist/pkg/config"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an environment definition file",
		Long: `Validate an environment definition file without touching any
environment. The file is checked against the definition schema, the
field constraints are enforced, and the referenced SSH private key must
exist on disk. Nothing is created or persisted.`,
		Example: `  hoist validate staging.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := config.NewLoader()
			if err != nil {
				return err
			}
			spec, err := loader.LoadEnvironment(args[0], "")
			if err != nil {
				return err
			}
			if _, err := os.Stat(spec.SSH.PrivateKeyPath); err != nil {
				return fmt.Errorf("ssh private key %s: %w", spec.SSH.PrivateKeyPath, err)
			}
			if jsonOutput {
				return printJSON(map[string]string{
					"file":   args[0],
					"name":   spec.Name,
					"status": "valid",
				})
			}
			fmt.Printf("%s: valid definition for environment %q\n", args[0], spec.Name)
			return nil
		},
	}
}
