package environment

import (
	"fmt"
)

// ProviderKind selects which infrastructure provider variant an environment
// uses. The variants are mutually exclusive.
type ProviderKind string

const (
	// ProviderLXD provisions a local LXD virtual machine.
	ProviderLXD ProviderKind = "lxd"

	// ProviderCloud provisions a cloud instance.
	ProviderCloud ProviderKind = "cloud"
)

// LXDProvider is the local-virtualization provider profile.
type LXDProvider struct {
	// Profile is the LXD profile applied to the instance. Derived from the
	// environment name when empty.
	Profile string `json:"profile"`

	// Image is the VM image to launch (e.g. "ubuntu:24.04").
	Image string `json:"image"`
}

// CloudProvider holds cloud-provider placement and credential references.
// Credentials are referenced by name, never embedded in the record.
type CloudProvider struct {
	// Provider is the cloud provider identifier (e.g. "hetzner").
	Provider string `json:"provider"`

	// Region is the placement region.
	Region string `json:"region"`

	// InstanceType is the machine size to request.
	InstanceType string `json:"instance_type"`

	// CredentialsRef names the credential set used by the provisioning
	// tool (an environment variable or credentials file entry).
	CredentialsRef string `json:"credentials_ref"`
}

// ProviderConfig is the tagged union of provider variants. Exactly one
// variant matching Kind must be populated.
type ProviderConfig struct {
	// Kind selects the populated variant.
	Kind ProviderKind `json:"kind"`

	// LXD is set when Kind is ProviderLXD.
	LXD *LXDProvider `json:"lxd,omitempty"`

	// Cloud is set when Kind is ProviderCloud.
	Cloud *CloudProvider `json:"cloud,omitempty"`
}

// Validate checks that exactly the variant selected by Kind is populated.
func (p ProviderConfig) Validate() error {
	switch p.Kind {
	case ProviderLXD:
		if p.LXD == nil || p.Cloud != nil {
			return fmt.Errorf("provider kind %q requires the lxd variant and only the lxd variant", p.Kind)
		}
	case ProviderCloud:
		if p.Cloud == nil || p.LXD != nil {
			return fmt.Errorf("provider kind %q requires the cloud variant and only the cloud variant", p.Kind)
		}
	default:
		return fmt.Errorf("unknown provider kind %q", p.Kind)
	}
	return nil
}

// SSHCredentials describes how to reach the provisioned instance over SSH.
type SSHCredentials struct {
	// User is the remote username.
	User string `json:"user"`

	// Port is the SSH port.
	Port int `json:"port"`

	// PrivateKeyPath is the path to the private key used for
	// authentication.
	PrivateKeyPath string `json:"private_key_path"`

	// PublicKeyPath is the path to the matching public key, injected into
	// the instance at provision time.
	PublicKeyPath string `json:"public_key_path"`
}

// Validate checks the credential fields are plausible.
func (s SSHCredentials) Validate() error {
	if s.User == "" {
		return fmt.Errorf("ssh user is required")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("ssh port %d is out of range", s.Port)
	}
	if s.PrivateKeyPath == "" {
		return fmt.Errorf("ssh private key path is required")
	}
	return nil
}

// ServiceConfig is the workload-specific configuration deployed to the
// instance. Its shape is owned by the deployed application, not by the
// orchestrator, so it is carried opaquely.
type ServiceConfig map[string]any

// Clone returns a deep copy of the service configuration.
func (c ServiceConfig) Clone() ServiceConfig {
	if c == nil {
		return nil
	}
	return cloneMap(c)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
