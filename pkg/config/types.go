package config

import (
	"fmt"

	"github.com/hoistlab/hoist/pkg/environment"
	"github.com/hoistlab/hoist/pkg/orchestrator"
)

// EnvironmentSpec is the on-disk shape of an environment definition.
type EnvironmentSpec struct {
	// Name is the environment name. Optional in the file; the CLI may
	// supply it as an argument instead.
	Name string `yaml:"name" validate:"omitempty,max=63"`

	// Provider selects and configures the infrastructure provider.
	Provider ProviderSpec `yaml:"provider" validate:"required"`

	// SSH configures how the instance is reached once provisioned.
	SSH SSHSpec `yaml:"ssh" validate:"required"`

	// Service is the workload configuration, carried opaquely to the
	// deployed application.
	Service map[string]any `yaml:"service"`
}

// ProviderSpec is the YAML form of the provider variant union.
type ProviderSpec struct {
	Kind  string     `yaml:"kind" validate:"required,oneof=lxd cloud"`
	LXD   *LXDSpec   `yaml:"lxd,omitempty"`
	Cloud *CloudSpec `yaml:"cloud,omitempty"`
}

// LXDSpec configures the local-virtualization provider.
type LXDSpec struct {
	Profile string `yaml:"profile,omitempty"`
	Image   string `yaml:"image" validate:"required"`
}

// CloudSpec configures a cloud provider.
type CloudSpec struct {
	Provider       string `yaml:"provider" validate:"required"`
	Region         string `yaml:"region" validate:"required"`
	InstanceType   string `yaml:"instance_type" validate:"required"`
	CredentialsRef string `yaml:"credentials_ref" validate:"required"`
}

// SSHSpec configures instance access credentials.
type SSHSpec struct {
	User           string `yaml:"user" validate:"required"`
	Port           int    `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	PrivateKeyPath string `yaml:"private_key_path" validate:"required"`
	PublicKeyPath  string `yaml:"public_key_path,omitempty"`
}

// ToCreateSpec converts the file representation into the orchestrator's
// creation input, applying defaults the file may omit.
func (e *EnvironmentSpec) ToCreateSpec() (orchestrator.CreateSpec, error) {
	provider := environment.ProviderConfig{
		Kind: environment.ProviderKind(e.Provider.Kind),
	}
	switch provider.Kind {
	case environment.ProviderLXD:
		if e.Provider.LXD == nil {
			return orchestrator.CreateSpec{}, fmt.Errorf("provider kind %q requires an lxd section", e.Provider.Kind)
		}
		provider.LXD = &environment.LXDProvider{
			Profile: e.Provider.LXD.Profile,
			Image:   e.Provider.LXD.Image,
		}
	case environment.ProviderCloud:
		if e.Provider.Cloud == nil {
			return orchestrator.CreateSpec{}, fmt.Errorf("provider kind %q requires a cloud section", e.Provider.Kind)
		}
		provider.Cloud = &environment.CloudProvider{
			Provider:       e.Provider.Cloud.Provider,
			Region:         e.Provider.Cloud.Region,
			InstanceType:   e.Provider.Cloud.InstanceType,
			CredentialsRef: e.Provider.Cloud.CredentialsRef,
		}
	default:
		return orchestrator.CreateSpec{}, fmt.Errorf("unknown provider kind %q", e.Provider.Kind)
	}

	port := e.SSH.Port
	if port == 0 {
		port = 22
	}
	publicKey := e.SSH.PublicKeyPath
	if publicKey == "" {
		publicKey = e.SSH.PrivateKeyPath + ".pub"
	}

	return orchestrator.CreateSpec{
		Name:     e.Name,
		Provider: provider,
		SSH: environment.SSHCredentials{
			User:           e.SSH.User,
			Port:           port,
			PrivateKeyPath: e.SSH.PrivateKeyPath,
			PublicKeyPath:  publicKey,
		},
		Service: environment.ServiceConfig(e.Service),
	}, nil
}
