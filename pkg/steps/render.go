package steps

import (
	"context"
	"fmt"
	"path/filepath"
)

// Template set names resolved by the renderer.
const (
	setInfra     = "infra"
	setInventory = "inventory"
	setArtifacts = "artifacts"
)

// Files the configuration template set must produce.
const (
	inventoryFile = "inventory.ini"
	playbookFile  = "playbook.yml"
)

// RenderInfra materializes the infrastructure-as-code configuration for
// the environment's provider into the infra working directory.
type RenderInfra struct{}

func (RenderInfra) Name() string { return "render-infrastructure" }

func (RenderInfra) Run(ctx context.Context, sc *Context) error {
	if _, err := sc.Exec.Renderer.Render(ctx, setInfra, sc.templateContext(), sc.InfraDir()); err != nil {
		return ConfigInvalid(fmt.Errorf("render infrastructure templates: %w", err))
	}
	return nil
}

// RenderInventory materializes the playbook inventory and variables
// against the provisioned instance address.
type RenderInventory struct{}

func (RenderInventory) Name() string { return "render-inventory" }

func (RenderInventory) Run(ctx context.Context, sc *Context) error {
	if sc.Address() == "" {
		return ConfigInvalid(fmt.Errorf("no instance address to render inventory against"))
	}
	if _, err := sc.Exec.Renderer.Render(ctx, setInventory, sc.templateContext(), sc.ConfigDir()); err != nil {
		return ConfigInvalid(fmt.Errorf("render inventory: %w", err))
	}
	return nil
}

// RenderArtifacts materializes the release artifacts (service
// definitions, application config) staged for upload.
type RenderArtifacts struct{}

func (RenderArtifacts) Name() string { return "render-artifacts" }

func (RenderArtifacts) Run(ctx context.Context, sc *Context) error {
	if _, err := sc.Exec.Renderer.Render(ctx, setArtifacts, sc.templateContext(), sc.ArtifactDir()); err != nil {
		return ConfigInvalid(fmt.Errorf("render release artifacts: %w", err))
	}
	return nil
}

// inventoryPath is where RenderInventory leaves the resolved inventory.
func inventoryPath(sc *Context) string {
	return filepath.Join(sc.ConfigDir(), inventoryFile)
}

// playbookPath is where RenderInventory leaves the playbook.
func playbookPath(sc *Context) string {
	return filepath.Join(sc.ConfigDir(), playbookFile)
}
