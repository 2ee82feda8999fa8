package environment

import (
	"fmt"
	"time"
)

// Environment is the aggregate root for one deployment. Values are
// immutable: transitions return a new Environment and never touch the old
// one, so a handler can never observe stale state through an alias.
type Environment struct {
	name     Name
	provider ProviderConfig
	ssh      SSHCredentials
	service  ServiceConfig
	state    State
	outputs  Outputs

	createdAt time.Time
	updatedAt time.Time
}

// Name returns the environment's validated identifier.
func (e Environment) Name() Name { return e.name }

// State returns the lifecycle state.
func (e Environment) State() State { return e.state }

// Provider returns the provider configuration variant.
func (e Environment) Provider() ProviderConfig { return e.provider }

// SSH returns the SSH access credentials.
func (e Environment) SSH() SSHCredentials { return e.ssh }

// Service returns a copy of the workload configuration.
func (e Environment) Service() ServiceConfig { return e.service.Clone() }

// Outputs returns a copy of the accumulated runtime outputs.
func (e Environment) Outputs() Outputs { return e.outputs.clone() }

// InstanceAddress returns the provisioned instance address, or "" before
// provisioning or after teardown.
func (e Environment) InstanceAddress() string { return e.outputs.InstanceAddress }

// CreatedAt returns when the environment record was created.
func (e Environment) CreatedAt() time.Time { return e.createdAt }

// UpdatedAt returns when the environment last changed state.
func (e Environment) UpdatedAt() time.Time { return e.updatedAt }

func (e Environment) withState(s State, now time.Time) Environment {
	next := e
	next.service = e.service.Clone()
	next.outputs = e.outputs.clone()
	next.state = s
	next.updatedAt = now.UTC()
	return next
}

// Created is an environment whose record exists but whose infrastructure
// does not. It is the entry state for every environment.
type Created struct{ env Environment }

// Provisioned is an environment with a running, reachable instance.
type Provisioned struct{ env Environment }

// Configured is an environment whose system configuration has been applied.
type Configured struct{ env Environment }

// Released is an environment with application artifacts deployed.
type Released struct{ env Environment }

// Running is an environment whose services are started.
type Running struct{ env Environment }

// Destroyed is an environment whose infrastructure has been torn down. The
// record remains until purged.
type Destroyed struct{ env Environment }

// NewCreated validates the configuration and constructs an environment in
// the Created state. This is the only state constructible without evidence
// of a prior state.
func NewCreated(name Name, provider ProviderConfig, ssh SSHCredentials, service ServiceConfig, now time.Time) (Created, error) {
	if name.IsZero() {
		return Created{}, fmt.Errorf("environment name is required")
	}
	if err := provider.Validate(); err != nil {
		return Created{}, fmt.Errorf("provider config: %w", err)
	}
	if err := ssh.Validate(); err != nil {
		return Created{}, fmt.Errorf("ssh config: %w", err)
	}
	ts := now.UTC()
	return Created{env: Environment{
		name:      name,
		provider:  provider,
		ssh:       ssh,
		service:   service.Clone(),
		state:     StateCreated,
		createdAt: ts,
		updatedAt: ts,
	}}, nil
}

// Provision consumes the Created environment and produces a Provisioned one
// carrying the outputs discovered by the provision stage.
func (c Created) Provision(out ProvisionOutputs, now time.Time) (Provisioned, error) {
	if out.InstanceAddress == "" {
		return Provisioned{}, fmt.Errorf("provisioning yielded no instance address")
	}
	env := c.env.withState(StateProvisioned, now)
	env.outputs.InstanceAddress = out.InstanceAddress
	env.outputs.HostKeyFingerprint = out.HostKeyFingerprint
	return Provisioned{env: env}, nil
}

// Configure produces a Configured environment.
func (p Provisioned) Configure(now time.Time) Configured {
	return Configured{env: p.env.withState(StateConfigured, now)}
}

// Release produces a Released environment.
func (c Configured) Release(now time.Time) Released {
	return Released{env: c.env.withState(StateReleased, now)}
}

// Run produces a Running environment carrying the discovered service
// endpoints.
func (r Released) Run(out RunOutputs, now time.Time) Running {
	env := r.env.withState(StateRunning, now)
	if len(out.Endpoints) > 0 {
		env.outputs.Endpoints = make(map[string]string, len(out.Endpoints))
		for k, v := range out.Endpoints {
			env.outputs.Endpoints[k] = v
		}
	}
	return Running{env: env}
}

// destroy clears the outputs tied to live infrastructure. The host key
// fingerprint is kept as a historical fact.
func destroy(env Environment, now time.Time) Destroyed {
	next := env.withState(StateDestroyed, now)
	next.outputs.InstanceAddress = ""
	next.outputs.Endpoints = nil
	return Destroyed{env: next}
}

// Destroy tears down from the Created state.
func (c Created) Destroy(now time.Time) Destroyed { return destroy(c.env, now) }

// Destroy tears down from the Provisioned state.
func (p Provisioned) Destroy(now time.Time) Destroyed { return destroy(p.env, now) }

// Destroy tears down from the Configured state.
func (c Configured) Destroy(now time.Time) Destroyed { return destroy(c.env, now) }

// Destroy tears down from the Released state.
func (r Released) Destroy(now time.Time) Destroyed { return destroy(r.env, now) }

// Destroy tears down from the Running state.
func (r Running) Destroy(now time.Time) Destroyed { return destroy(r.env, now) }

// Env returns the underlying aggregate value.
func (c Created) Env() Environment { return c.env }

// Env returns the underlying aggregate value.
func (p Provisioned) Env() Environment { return p.env }

// Env returns the underlying aggregate value.
func (c Configured) Env() Environment { return c.env }

// Env returns the underlying aggregate value.
func (r Released) Env() Environment { return r.env }

// Env returns the underlying aggregate value.
func (r Running) Env() Environment { return r.env }

// Env returns the underlying aggregate value.
func (d Destroyed) Env() Environment { return d.env }

// Any is a type-erased environment as loaded from the repository. Handlers
// recover the typed wrapper for the state they require via the As methods.
type Any struct{ env Environment }

// Erase type-erases a typed wrapper for persistence.
func (c Created) Erase() Any     { return Any{env: c.env} }
func (p Provisioned) Erase() Any { return Any{env: p.env} }
func (c Configured) Erase() Any  { return Any{env: c.env} }
func (r Released) Erase() Any    { return Any{env: r.env} }
func (r Running) Erase() Any     { return Any{env: r.env} }
func (d Destroyed) Erase() Any   { return Any{env: d.env} }

// Name returns the environment's identifier.
func (a Any) Name() Name { return a.env.name }

// State returns the lifecycle state tag.
func (a Any) State() State { return a.env.state }

// Env returns the underlying aggregate value.
func (a Any) Env() Environment { return a.env }

// AsCreated recovers the Created wrapper; ok is false when the state tag
// does not match.
func (a Any) AsCreated() (Created, bool) {
	if a.env.state != StateCreated {
		return Created{}, false
	}
	return Created{env: a.env}, true
}

// AsProvisioned recovers the Provisioned wrapper.
func (a Any) AsProvisioned() (Provisioned, bool) {
	if a.env.state != StateProvisioned {
		return Provisioned{}, false
	}
	return Provisioned{env: a.env}, true
}

// AsConfigured recovers the Configured wrapper.
func (a Any) AsConfigured() (Configured, bool) {
	if a.env.state != StateConfigured {
		return Configured{}, false
	}
	return Configured{env: a.env}, true
}

// AsReleased recovers the Released wrapper.
func (a Any) AsReleased() (Released, bool) {
	if a.env.state != StateReleased {
		return Released{}, false
	}
	return Released{env: a.env}, true
}

// AsRunning recovers the Running wrapper.
func (a Any) AsRunning() (Running, bool) {
	if a.env.state != StateRunning {
		return Running{}, false
	}
	return Running{env: a.env}, true
}

// AsDestroyed recovers the Destroyed wrapper.
func (a Any) AsDestroyed() (Destroyed, bool) {
	if a.env.state != StateDestroyed {
		return Destroyed{}, false
	}
	return Destroyed{env: a.env}, true
}

// DestroyAny tears down from any non-terminal state. It is the type-erased
// counterpart of the per-state Destroy methods, used by the destroy handler
// which accepts every non-terminal input state.
func (a Any) DestroyAny(now time.Time) (Destroyed, error) {
	if a.env.state.IsTerminal() {
		return Destroyed{}, fmt.Errorf("environment %s is already destroyed", a.env.name)
	}
	return destroy(a.env, now), nil
}
