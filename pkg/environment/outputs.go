package environment

// Outputs holds the runtime facts accumulated as lifecycle stages complete.
// Which fields may be populated depends on the current state; the
// consistency rules are enforced when a persisted document is loaded.
type Outputs struct {
	// InstanceAddress is the address assigned by provisioning. Present
	// exactly when the state is Provisioned or later and not Destroyed.
	InstanceAddress string `json:"instance_address,omitempty"`

	// HostKeyFingerprint is the SSH host key fingerprint recorded when
	// connectivity was first established.
	HostKeyFingerprint string `json:"host_key_fingerprint,omitempty"`

	// Endpoints maps service names to the URLs discovered when services
	// were started. Populated only in the Running state.
	Endpoints map[string]string `json:"endpoints,omitempty"`
}

// clone returns a copy that shares no mutable state with o.
func (o Outputs) clone() Outputs {
	out := o
	if o.Endpoints != nil {
		out.Endpoints = make(map[string]string, len(o.Endpoints))
		for k, v := range o.Endpoints {
			out.Endpoints[k] = v
		}
	}
	return out
}

// consistentWith reports whether the populated output fields are allowed
// for the given state.
func (o Outputs) consistentWith(s State) bool {
	if s.hasInstance() != (o.InstanceAddress != "") {
		return false
	}
	if len(o.Endpoints) > 0 && s != StateRunning {
		return false
	}
	return true
}

// ProvisionOutputs are the facts discovered by the provision stage.
type ProvisionOutputs struct {
	// InstanceAddress is the address of the new instance.
	InstanceAddress string

	// HostKeyFingerprint is the host key observed when SSH first became
	// reachable. May be empty if host key checking is disabled.
	HostKeyFingerprint string
}

// RunOutputs are the facts discovered by the run stage.
type RunOutputs struct {
	// Endpoints maps service names to reachable URLs.
	Endpoints map[string]string
}
