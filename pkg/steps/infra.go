package steps

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// ApplyInfra runs the infrastructure apply and records the assigned
// instance address on the fact sheet.
type ApplyInfra struct{}

func (ApplyInfra) Name() string { return "apply-infrastructure" }

func (ApplyInfra) Run(ctx context.Context, sc *Context) error {
	outputs, err := sc.Exec.Infra.Apply(ctx, sc.InfraDir())
	if err != nil {
		return Classify(err)
	}
	if outputs.InstanceAddress == "" {
		return Classify(fmt.Errorf("apply returned no instance address"))
	}
	sc.Facts.InstanceAddress = outputs.InstanceAddress
	return nil
}

// DestroyInfra tears the infrastructure down. The underlying tool
// treats already-absent infrastructure as success, which keeps destroy
// idempotent.
type DestroyInfra struct{}

func (DestroyInfra) Name() string { return "destroy-infrastructure" }

func (DestroyInfra) Run(ctx context.Context, sc *Context) error {
	if _, err := os.Stat(sc.InfraDir()); os.IsNotExist(err) {
		// Nothing was ever rendered here, so nothing to tear down.
		log.Debug().
			Str("environment", sc.Env.Name().String()).
			Msg("no rendered infrastructure, skipping teardown")
		return nil
	}
	if err := sc.Exec.Infra.Destroy(ctx, sc.InfraDir()); err != nil {
		return Classify(err)
	}
	return nil
}

// CleanupWorkDir removes the environment's rendered files and local
// build artifacts.
type CleanupWorkDir struct{}

func (CleanupWorkDir) Name() string { return "cleanup-artifacts" }

func (CleanupWorkDir) Run(_ context.Context, sc *Context) error {
	if sc.WorkDir == "" {
		return nil
	}
	if err := os.RemoveAll(sc.WorkDir); err != nil {
		return Classify(fmt.Errorf("remove %s: %w", sc.WorkDir, err))
	}
	return nil
}
