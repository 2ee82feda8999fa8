package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hoistlab/hoist/pkg/actions"
	"github.com/hoistlab/hoist/pkg/config"
	"github.com/hoistlab/hoist/pkg/environment"
	"github.com/hoistlab/hoist/pkg/orchestrator"
	"github.com/hoistlab/hoist/pkg/policy"
	"github.com/hoistlab/hoist/pkg/steps"
	"github.com/hoistlab/hoist/pkg/stores"
	"github.com/hoistlab/hoist/pkg/telemetry"
	"github.com/hoistlab/hoist/pkg/template"
)

// app bundles the wired collaborators one command invocation uses.
type app struct {
	settings config.Settings
	tel      *telemetry.Telemetry
	repo     *stores.FileStore
	history  *stores.HistoryStore
	guard    *policy.Guard
}

// openApp reads settings and brings up telemetry, stores, and the
// policy guard. Callers must Close.
func openApp(ctx context.Context) (*app, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	if err := settings.EnsureDirectories(); err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(settings.Telemetry)
	if err != nil {
		return nil, err
	}
	log.Logger = *tel.Logger.Zerolog()

	if err := template.EnsureDefaults(settings.TemplatesDir); err != nil {
		return nil, fmt.Errorf("install default templates: %w", err)
	}

	history, err := stores.NewHistoryStore(settings.HistoryPath)
	if err != nil {
		return nil, err
	}
	if err := history.Init(ctx); err != nil {
		return nil, fmt.Errorf("open command history: %w", err)
	}

	guard, err := policy.NewGuard(policy.Options{
		ProtectedEnvironments: settings.ProtectedEnvironments,
		AllowedCloudProviders: settings.AllowedCloudProviders,
	}, *tel.Logger.NewComponentLogger("policy").Zerolog())
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(settings.PolicyDir); err == nil {
		if err := guard.LoadRules(ctx, []string{settings.PolicyDir}); err != nil {
			return nil, err
		}
	}

	if tel.Config.Metrics.Enabled {
		if err := tel.StartMetricsServer(); err != nil {
			return nil, err
		}
	}

	return &app{
		settings: settings,
		tel:      tel,
		repo:     stores.NewFileStore(settings.StateDir),
		history:  history,
		guard:    guard,
	}, nil
}

// Close flushes telemetry and releases the history database.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.history.Close(); err != nil {
		log.Warn().Err(err).Msg("closing command history")
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutting down telemetry")
	}
}

// handler wires an orchestrator around the given remote runner.
func (a *app) handler(remote actions.SSHRunner) (*orchestrator.Handler, error) {
	return orchestrator.NewHandler(orchestrator.Deps{
		Repo: a.repo,
		Exec: steps.Executors{
			Infra:     &actions.TofuProvisioner{Binary: "tofu", Metrics: a.tel.Metrics},
			Playbooks: &actions.AnsibleRunner{Binary: "ansible-playbook", Metrics: a.tel.Metrics},
			Remote:    remote,
			Renderer:  template.NewRenderer(a.settings.TemplatesDir),
		},
		History: a.history,
		Listener: orchestrator.MultiListener{
			orchestrator.LogListener{},
			orchestrator.EventListener{Events: a.tel.Events},
		},
		Policy:      a.guard,
		Telemetry:   a.tel,
		WorkRoot:    a.settings.WorkRoot,
		LockTimeout: time.Duration(a.settings.LockTimeout),
	})
}

// handlerFor builds a handler whose remote runner carries the stored
// SSH credentials of the named environment.
func (a *app) handlerFor(ctx context.Context, name string) (*orchestrator.Handler, error) {
	parsed, err := environment.NewName(name)
	if err != nil {
		return nil, err
	}
	loaded, err := a.repo.Load(ctx, parsed)
	if err != nil {
		return nil, err
	}
	return a.handler(a.remoteRunner(loaded.Env().SSH()))
}

func (a *app) remoteRunner(ssh environment.SSHCredentials) *actions.RemoteRunner {
	return &actions.RemoteRunner{
		User:           ssh.User,
		Port:           ssh.Port,
		PrivateKeyPath: ssh.PrivateKeyPath,
		KnownHostsPath: a.settings.KnownHostsPath,
	}
}

// withApp is the shared command body: open, run, close.
func withApp(cmd interface{ Context() context.Context }, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// printRecord reports a finished command to the user.
func printRecord(record orchestrator.CommandRecord) error {
	if jsonOutput {
		return printJSON(record)
	}
	for _, step := range record.Steps {
		switch step.Outcome {
		case orchestrator.OutcomeSuccess:
			fmt.Printf("  ok      %s (%s)\n", step.Step, step.FinishedAt.Sub(step.StartedAt).Round(time.Millisecond))
		case orchestrator.OutcomeFailure:
			fmt.Printf("  failed  %s: %s\n", step.Step, step.Error)
		case orchestrator.OutcomeSkipped:
			fmt.Printf("  skipped %s\n", step.Step)
		}
	}
	fmt.Printf("%s %s: %s\n", record.Verb, record.Environment, record.Outcome)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
