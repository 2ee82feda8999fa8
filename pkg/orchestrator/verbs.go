package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hoistlab/hoist/pkg/environment"
	"github.com/hoistlab/hoist/pkg/steps"
)

// CreateSpec is the validated input for the create verb.
type CreateSpec struct {
	// Name is the environment name.
	Name string

	// Provider selects and configures the infrastructure provider.
	Provider environment.ProviderConfig

	// SSH are the credentials used to reach the instance.
	SSH environment.SSHCredentials

	// Service is the deployment-specific service configuration.
	Service environment.ServiceConfig
}

// Create registers a new environment in the Created state. It fails
// with environment.ErrAlreadyExists when the name is taken.
func (h *Handler) Create(ctx context.Context, spec CreateSpec) (CommandRecord, error) {
	return h.execute(ctx, spec.Name, VerbCreate, func(ctx context.Context, inv *invocation) error {
		created, err := environment.NewCreated(inv.name, spec.Provider, spec.SSH, spec.Service, h.deps.Clock.Now())
		if err != nil {
			return err
		}
		if err := h.deps.Repo.Create(ctx, created.Erase()); err != nil {
			return err
		}
		log.Info().
			Str("environment", inv.name.String()).
			Msg("environment created")
		return nil
	})
}

// Provision brings up infrastructure for a Created environment and
// waits for the instance to become reachable and finish booting.
func (h *Handler) Provision(ctx context.Context, name string) (CommandRecord, error) {
	return h.execute(ctx, name, VerbProvision, func(ctx context.Context, inv *invocation) error {
		loaded, err := h.load(ctx, inv, environment.StateCreated)
		if err != nil {
			return err
		}
		created, _ := loaded.AsCreated()

		if err := h.checkPolicy(ctx, VerbProvision, loaded.Env()); err != nil {
			return err
		}

		inv.sc = h.stepContext(loaded.Env())
		if err := h.runSequence(ctx, inv,
			steps.RenderInfra{},
			steps.ApplyInfra{},
			steps.WaitSSH{},
			steps.Retry(steps.WaitCloudInit{}, h.deps.CloudInitRetry),
		); err != nil {
			return err
		}

		provisioned, err := created.Provision(environment.ProvisionOutputs{
			InstanceAddress:    inv.sc.Facts.InstanceAddress,
			HostKeyFingerprint: inv.sc.Facts.HostKeyFingerprint,
		}, h.deps.Clock.Now())
		if err != nil {
			return err
		}
		return h.persistTransition(ctx, environment.StateCreated, provisioned.Erase())
	})
}

// Register adopts an already-running instance at the given address
// instead of provisioning one. It verifies the instance accepts SSH,
// records the observed host key, and moves a Created environment to
// Provisioned without touching any infrastructure tooling.
func (h *Handler) Register(ctx context.Context, name, address string) (CommandRecord, error) {
	return h.execute(ctx, name, VerbRegister, func(ctx context.Context, inv *invocation) error {
		address = strings.TrimSpace(address)
		if address == "" {
			return fmt.Errorf("register requires an instance address")
		}

		loaded, err := h.load(ctx, inv, environment.StateCreated)
		if err != nil {
			return err
		}
		created, _ := loaded.AsCreated()

		if err := h.checkPolicy(ctx, VerbRegister, loaded.Env()); err != nil {
			return err
		}

		inv.sc = h.stepContext(loaded.Env())
		inv.sc.Facts.InstanceAddress = address
		if err := h.runSequence(ctx, inv, steps.WaitSSH{}); err != nil {
			return err
		}

		provisioned, err := created.Provision(environment.ProvisionOutputs{
			InstanceAddress:    address,
			HostKeyFingerprint: inv.sc.Facts.HostKeyFingerprint,
		}, h.deps.Clock.Now())
		if err != nil {
			return err
		}
		return h.persistTransition(ctx, environment.StateCreated, provisioned.Erase())
	})
}

// Configure runs the configuration playbook against a Provisioned
// environment.
func (h *Handler) Configure(ctx context.Context, name string) (CommandRecord, error) {
	return h.execute(ctx, name, VerbConfigure, func(ctx context.Context, inv *invocation) error {
		loaded, err := h.load(ctx, inv, environment.StateProvisioned)
		if err != nil {
			return err
		}
		provisioned, _ := loaded.AsProvisioned()

		inv.sc = h.stepContext(loaded.Env())
		if err := h.runSequence(ctx, inv,
			steps.RenderInventory{},
			steps.RunPlaybook{},
		); err != nil {
			return err
		}

		configured := provisioned.Configure(h.deps.Clock.Now())
		return h.persistTransition(ctx, environment.StateProvisioned, configured.Erase())
	})
}

// Release renders and uploads the release artifacts to a Configured
// environment and places them without starting services.
func (h *Handler) Release(ctx context.Context, name string) (CommandRecord, error) {
	return h.execute(ctx, name, VerbRelease, func(ctx context.Context, inv *invocation) error {
		loaded, err := h.load(ctx, inv, environment.StateConfigured)
		if err != nil {
			return err
		}
		configured, _ := loaded.AsConfigured()

		inv.sc = h.stepContext(loaded.Env())
		if err := h.runSequence(ctx, inv,
			steps.RenderArtifacts{},
			steps.UploadArtifacts{},
			steps.DeployRelease{},
		); err != nil {
			return err
		}

		released := configured.Release(h.deps.Clock.Now())
		return h.persistTransition(ctx, environment.StateConfigured, released.Erase())
	})
}

// Run starts the deployed services on a Released environment and
// records the endpoints they expose.
func (h *Handler) Run(ctx context.Context, name string) (CommandRecord, error) {
	return h.execute(ctx, name, VerbRun, func(ctx context.Context, inv *invocation) error {
		loaded, err := h.load(ctx, inv, environment.StateReleased)
		if err != nil {
			return err
		}
		released, _ := loaded.AsReleased()

		inv.sc = h.stepContext(loaded.Env())
		if err := h.runSequence(ctx, inv,
			steps.StartServices{},
			steps.Retry(steps.DiscoverEndpoints{}, h.deps.CloudInitRetry),
		); err != nil {
			return err
		}

		running := released.Run(environment.RunOutputs{
			Endpoints: inv.sc.Facts.Endpoints,
		}, h.deps.Clock.Now())
		return h.persistTransition(ctx, environment.StateReleased, running.Erase())
	})
}

// Test smoke-checks a Running environment. It never transitions state,
// so a failed check leaves the record untouched.
func (h *Handler) Test(ctx context.Context, name string) (CommandRecord, error) {
	return h.execute(ctx, name, VerbTest, func(ctx context.Context, inv *invocation) error {
		loaded, err := h.load(ctx, inv, environment.StateRunning)
		if err != nil {
			return err
		}
		inv.sc = h.stepContext(loaded.Env())
		return h.runSequence(ctx, inv, steps.SmokeCheck{})
	})
}

// Destroy tears the environment down. Unlike the other verbs it is
// best-effort: every cleanup step runs even after a failure, and the
// environment is recorded as Destroyed as long as the infrastructure
// teardown succeeded. Destroying a Destroyed environment is a no-op.
func (h *Handler) Destroy(ctx context.Context, name string) (CommandRecord, error) {
	return h.execute(ctx, name, VerbDestroy, func(ctx context.Context, inv *invocation) error {
		loaded, err := h.deps.Repo.Load(ctx, inv.name)
		if err != nil {
			return err
		}
		if _, ok := loaded.AsDestroyed(); ok {
			log.Info().
				Str("environment", inv.name.String()).
				Msg("environment already destroyed")
			return nil
		}

		if err := h.checkPolicy(ctx, VerbDestroy, loaded.Env()); err != nil {
			return err
		}

		inv.sc = h.stepContext(loaded.Env())

		var failures []*StepError
		infraErr := h.runStep(ctx, inv, steps.DestroyInfra{})
		if infraErr != nil {
			failures = append(failures, infraErr.(*StepError))
		}
		if cleanupErr := h.runStep(ctx, inv, steps.CleanupWorkDir{}); cleanupErr != nil {
			failures = append(failures, cleanupErr.(*StepError))
		}

		destroyed := false
		if infraErr == nil {
			d, err := loaded.DestroyAny(h.deps.Clock.Now())
			if err != nil {
				return err
			}
			if err := h.persistTransition(ctx, loaded.State(), d.Erase()); err != nil {
				return err
			}
			destroyed = true
		}

		if len(failures) > 0 {
			return &DestroyError{
				Name:      inv.name.String(),
				Failures:  failures,
				Destroyed: destroyed,
			}
		}
		return nil
	})
}

// Purge removes the persisted record and scratch directory of a
// Destroyed environment. The name becomes available again.
func (h *Handler) Purge(ctx context.Context, name string) (CommandRecord, error) {
	return h.execute(ctx, name, VerbPurge, func(ctx context.Context, inv *invocation) error {
		if _, err := h.load(ctx, inv, environment.StateDestroyed); err != nil {
			return err
		}
		if err := os.RemoveAll(h.workDir(inv.name)); err != nil {
			return fmt.Errorf("remove scratch directory: %w", err)
		}
		return h.deps.Repo.Delete(ctx, inv.name)
	})
}

// Summary is a read-only view of one environment for listings.
type Summary struct {
	// Name is the environment name.
	Name string

	// State is the persisted lifecycle state.
	State environment.State

	// InstanceAddress is set once the environment is provisioned.
	InstanceAddress string

	// UpdatedAt is the timestamp of the last persisted transition.
	UpdatedAt time.Time
}

// List returns a summary of every persisted environment. Read-only, so
// no locks are taken; a concurrent writer is observed either before or
// after its atomic save.
func (h *Handler) List(ctx context.Context) ([]Summary, error) {
	all, err := h.deps.Repo.List(ctx)
	if err != nil {
		return nil, err
	}

	counts := map[environment.State]int{}
	summaries := make([]Summary, 0, len(all))
	for _, loaded := range all {
		env := loaded.Env()
		counts[env.State()]++
		summaries = append(summaries, Summary{
			Name:            env.Name().String(),
			State:           env.State(),
			InstanceAddress: env.InstanceAddress(),
			UpdatedAt:       env.UpdatedAt(),
		})
	}

	if tel := h.deps.Telemetry; tel != nil {
		for state, count := range counts {
			tel.Metrics.SetEnvironmentCount(string(state), float64(count))
		}
	}
	return summaries, nil
}

// Show loads one environment for inspection.
func (h *Handler) Show(ctx context.Context, name string) (environment.Any, error) {
	parsed, err := environment.NewName(name)
	if err != nil {
		return environment.Any{}, err
	}
	return h.deps.Repo.Load(ctx, parsed)
}

// Recent returns the most recent command records for an environment,
// or for all environments when name is empty.
func (h *Handler) Recent(ctx context.Context, name string, limit int) ([]CommandRecord, error) {
	return h.deps.History.Recent(ctx, name, limit)
}
