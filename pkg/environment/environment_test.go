package environment

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func testName(t *testing.T, raw string) Name {
	t.Helper()
	n, err := NewName(raw)
	if err != nil {
		t.Fatalf("NewName(%q): %v", raw, err)
	}
	return n
}

func testProvider() ProviderConfig {
	return ProviderConfig{
		Kind: ProviderLXD,
		LXD:  &LXDProvider{Profile: "demo-profile", Image: "ubuntu:24.04"},
	}
}

func testSSH() SSHCredentials {
	return SSHCredentials{
		User:           "deploy",
		Port:           22,
		PrivateKeyPath: "/home/deploy/.ssh/id_ed25519",
		PublicKeyPath:  "/home/deploy/.ssh/id_ed25519.pub",
	}
}

func newCreated(t *testing.T, name string) Created {
	t.Helper()
	c, err := NewCreated(testName(t, name), testProvider(), testSSH(), ServiceConfig{"port": 8080}, testNow)
	if err != nil {
		t.Fatalf("NewCreated: %v", err)
	}
	return c
}

func TestNewName(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"demo", false},
		{"demo-42", false},
		{"a", false},
		{"", true},
		{"Demo", true},
		{"demo_env", true},
		{"-demo", true},
		{"demo-", true},
		{"demo env", true},
	}

	for _, tt := range tests {
		_, err := NewName(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewName(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
	}
}

func TestNewCreatedValidatesConfig(t *testing.T) {
	name := testName(t, "demo")

	t.Run("provider variant mismatch", func(t *testing.T) {
		bad := ProviderConfig{Kind: ProviderCloud, LXD: &LXDProvider{Image: "x"}}
		if _, err := NewCreated(name, bad, testSSH(), nil, testNow); err == nil {
			t.Fatal("expected error for mismatched provider variant")
		}
	})

	t.Run("both variants set", func(t *testing.T) {
		bad := ProviderConfig{
			Kind:  ProviderLXD,
			LXD:   &LXDProvider{Image: "x"},
			Cloud: &CloudProvider{Provider: "hetzner"},
		}
		if _, err := NewCreated(name, bad, testSSH(), nil, testNow); err == nil {
			t.Fatal("expected error when both provider variants are set")
		}
	})

	t.Run("bad ssh port", func(t *testing.T) {
		ssh := testSSH()
		ssh.Port = 0
		if _, err := NewCreated(name, testProvider(), ssh, nil, testNow); err == nil {
			t.Fatal("expected error for ssh port 0")
		}
	})
}

func TestLifecycleHappyPath(t *testing.T) {
	created := newCreated(t, "demo")
	if got := created.Env().State(); got != StateCreated {
		t.Fatalf("state = %q, want %q", got, StateCreated)
	}
	if created.Env().InstanceAddress() != "" {
		t.Fatal("created environment must not carry an instance address")
	}

	provisioned, err := created.Provision(ProvisionOutputs{
		InstanceAddress:    "10.140.0.17",
		HostKeyFingerprint: "SHA256:abcdef",
	}, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if got := provisioned.Env().InstanceAddress(); got != "10.140.0.17" {
		t.Fatalf("instance address = %q", got)
	}

	configured := provisioned.Configure(testNow.Add(2 * time.Minute))
	released := configured.Release(testNow.Add(3 * time.Minute))
	running := released.Run(RunOutputs{
		Endpoints: map[string]string{"http": "http://10.140.0.17:8080"},
	}, testNow.Add(4*time.Minute))

	if got := running.Env().State(); got != StateRunning {
		t.Fatalf("state = %q, want %q", got, StateRunning)
	}
	if got := running.Env().Outputs().Endpoints["http"]; got != "http://10.140.0.17:8080" {
		t.Fatalf("endpoint = %q", got)
	}

	destroyed := running.Destroy(testNow.Add(5 * time.Minute))
	env := destroyed.Env()
	if env.State() != StateDestroyed {
		t.Fatalf("state = %q, want %q", env.State(), StateDestroyed)
	}
	if env.InstanceAddress() != "" {
		t.Fatal("destroy must clear the instance address")
	}
	if len(env.Outputs().Endpoints) != 0 {
		t.Fatal("destroy must clear endpoints")
	}
	if env.Outputs().HostKeyFingerprint == "" {
		t.Fatal("destroy should keep the host key fingerprint")
	}
}

func TestProvisionRequiresAddress(t *testing.T) {
	created := newCreated(t, "demo")
	if _, err := created.Provision(ProvisionOutputs{}, testNow); err == nil {
		t.Fatal("expected error when provisioning yields no address")
	}
}

func TestTransitionsDoNotMutateInput(t *testing.T) {
	created := newCreated(t, "demo")
	before := created.Env().State()

	if _, err := created.Provision(ProvisionOutputs{InstanceAddress: "10.0.0.1"}, testNow); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	if created.Env().State() != before {
		t.Fatal("transition mutated its input")
	}
	if created.Env().InstanceAddress() != "" {
		t.Fatal("transition leaked outputs into its input")
	}
}

func TestDestroyAny(t *testing.T) {
	created := newCreated(t, "demo")

	d, err := created.Erase().DestroyAny(testNow)
	if err != nil {
		t.Fatalf("DestroyAny from created: %v", err)
	}
	if d.Env().State() != StateDestroyed {
		t.Fatalf("state = %q", d.Env().State())
	}

	if _, err := d.Erase().DestroyAny(testNow); err == nil {
		t.Fatal("DestroyAny from destroyed must fail")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateCreated, StateProvisioned, true},
		{StateProvisioned, StateConfigured, true},
		{StateConfigured, StateReleased, true},
		{StateReleased, StateRunning, true},
		{StateCreated, StateConfigured, false},
		{StateProvisioned, StateRunning, false},
		{StateRunning, StateCreated, false},
		{StateCreated, StateDestroyed, true},
		{StateRunning, StateDestroyed, true},
		{StateDestroyed, StateDestroyed, false},
		{StateDestroyed, StateProvisioned, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

// reachable builds one environment per reachable lifecycle state.
func reachable(t *testing.T) map[State]Any {
	t.Helper()
	created := newCreated(t, "demo")
	provisioned, err := created.Provision(ProvisionOutputs{InstanceAddress: "10.0.0.7", HostKeyFingerprint: "SHA256:xyz"}, testNow)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	configured := provisioned.Configure(testNow)
	released := configured.Release(testNow)
	running := released.Run(RunOutputs{Endpoints: map[string]string{"api": "http://10.0.0.7:1212"}}, testNow)
	destroyed := running.Destroy(testNow)

	return map[State]Any{
		StateCreated:     created.Erase(),
		StateProvisioned: provisioned.Erase(),
		StateConfigured:  configured.Erase(),
		StateReleased:    released.Erase(),
		StateRunning:     running.Erase(),
		StateDestroyed:   destroyed.Erase(),
	}
}

func TestDocumentRoundTripEveryState(t *testing.T) {
	for state, a := range reachable(t) {
		data, err := MarshalDocument(a)
		if err != nil {
			t.Fatalf("%s: MarshalDocument: %v", state, err)
		}
		got, err := UnmarshalDocument(data)
		if err != nil {
			t.Fatalf("%s: UnmarshalDocument: %v", state, err)
		}
		if got.State() != state {
			t.Errorf("%s: state round-tripped to %q", state, got.State())
		}
		if got.Name().String() != a.Name().String() {
			t.Errorf("%s: name round-tripped to %q", state, got.Name())
		}
		if got.Env().InstanceAddress() != a.Env().InstanceAddress() {
			t.Errorf("%s: address round-tripped to %q", state, got.Env().InstanceAddress())
		}
		// A second marshal must be byte-identical: the document is the
		// unit the repository compares for atomicity guarantees.
		again, err := MarshalDocument(got)
		if err != nil {
			t.Fatalf("%s: re-marshal: %v", state, err)
		}
		if string(again) != string(data) {
			t.Errorf("%s: marshal is not stable across a round trip", state)
		}
	}
}

func TestUnmarshalDocumentRejectsCorruption(t *testing.T) {
	valid, err := MarshalDocument(reachable(t)[StateProvisioned])
	if err != nil {
		t.Fatalf("MarshalDocument: %v", err)
	}

	tests := []struct {
		name string
		data string
	}{
		{"not json", "{nope"},
		{"unknown state tag", strings.Replace(string(valid), `"state": "provisioned"`, `"state": "teleported"`, 1)},
		{"address without provisioned state", strings.Replace(string(valid), `"state": "provisioned"`, `"state": "created"`, 1)},
		{"bad schema version", strings.Replace(string(valid), `"schema_version": 1`, `"schema_version": 99`, 1)},
		{"invalid name", strings.Replace(string(valid), `"name": "demo"`, `"name": "DEMO"`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalDocument([]byte(tt.data))
			if err == nil {
				t.Fatal("expected corruption error")
			}
			if !errors.Is(err, ErrCorruptedState) {
				t.Fatalf("error %v does not wrap ErrCorruptedState", err)
			}
		})
	}
}

func TestEndpointsOnlyWhenRunning(t *testing.T) {
	doc, err := MarshalDocument(reachable(t)[StateRunning])
	if err != nil {
		t.Fatalf("MarshalDocument: %v", err)
	}
	tampered := strings.Replace(string(doc), `"state": "running"`, `"state": "released"`, 1)
	if _, err := UnmarshalDocument([]byte(tampered)); !errors.Is(err, ErrCorruptedState) {
		t.Fatalf("expected ErrCorruptedState, got %v", err)
	}
}
