package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hoistlab/hoist/pkg/config"
)

var (
	// Global flags
	settingsPath string
	verbose      bool
	jsonOutput   bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hoist",
		Short: "Hoist - Environment Deployment Orchestrator",
		Long: `Hoist drives deployment environments through their lifecycle:

  create -> provision -> configure -> release -> run -> destroy

Each verb advances the environment one state. Provisioning brings up
infrastructure with OpenTofu, configuration runs an Ansible playbook,
release uploads artifacts over SSH, and run starts the services and
records their endpoints. A failed verb leaves the persisted state
exactly as it was.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&settingsPath, "settings", "c", defaultSettingsPath(), "settings file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newCreateCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newProvisionCommand())
	rootCmd.AddCommand(newRegisterCommand())
	rootCmd.AddCommand(newConfigureCommand())
	rootCmd.AddCommand(newReleaseCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newTestCommand())
	rootCmd.AddCommand(newDestroyCommand())
	rootCmd.AddCommand(newPurgeCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

func defaultSettingsPath() string {
	home := os.Getenv("HOIST_HOME")
	if home == "" {
		if userHome, err := os.UserHomeDir(); err == nil {
			home = filepath.Join(userHome, ".hoist")
		} else {
			home = ".hoist"
		}
	}
	return filepath.Join(home, "settings.yaml")
}

// loadSettings applies the --verbose flag on top of the settings file.
func loadSettings() (config.Settings, error) {
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return config.Settings{}, err
	}
	if verbose {
		settings.Telemetry.Logging.Level = "debug"
	}
	return settings, nil
}
