package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hoistlab/hoist/pkg/environment"
)

const lxdDefinition = `
name: staging
provider:
  kind: lxd
  lxd:
    image: ubuntu:24.04
ssh:
  user: deploy
  private_key_path: /keys/staging
service:
  replicas: 2
`

const cloudDefinition = `
provider:
  kind: cloud
  cloud:
    provider: hetzner
    region: fsn1
    instance_type: cx22
    credentials_ref: HCLOUD_TOKEN
ssh:
  user: deploy
  port: 2222
  private_key_path: /keys/prod
  public_key_path: /keys/prod_rsa.pub
`

func newLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := NewLoader()
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	return l
}

func TestParseEnvironmentLXD(t *testing.T) {
	spec, err := newLoader(t).ParseEnvironment([]byte(lxdDefinition))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if spec.Name != "staging" {
		t.Errorf("name = %q, want staging", spec.Name)
	}

	cs, err := spec.ToCreateSpec()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if cs.Provider.Kind != environment.ProviderLXD || cs.Provider.LXD.Image != "ubuntu:24.04" {
		t.Errorf("unexpected provider: %+v", cs.Provider)
	}
	if cs.SSH.Port != 22 {
		t.Errorf("default ssh port = %d, want 22", cs.SSH.Port)
	}
	if cs.SSH.PublicKeyPath != "/keys/staging.pub" {
		t.Errorf("derived public key = %q", cs.SSH.PublicKeyPath)
	}
	if cs.Service["replicas"] != 2 {
		t.Errorf("service config lost: %+v", cs.Service)
	}
}

func TestParseEnvironmentCloud(t *testing.T) {
	spec, err := newLoader(t).ParseEnvironment([]byte(cloudDefinition))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cs, err := spec.ToCreateSpec()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if cs.Provider.Kind != environment.ProviderCloud || cs.Provider.Cloud.Region != "fsn1" {
		t.Errorf("unexpected provider: %+v", cs.Provider)
	}
	if cs.SSH.Port != 2222 {
		t.Errorf("ssh port = %d, want 2222", cs.SSH.Port)
	}
}

func TestParseEnvironmentRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty document": ``,
		"unknown provider kind": `
provider:
  kind: metal
  lxd: {image: x}
ssh: {user: a, private_key_path: /k}
`,
		"missing ssh user": `
provider:
  kind: lxd
  lxd: {image: ubuntu:24.04}
ssh: {private_key_path: /k}
`,
		"bad name": `
name: Staging_01
provider:
  kind: lxd
  lxd: {image: ubuntu:24.04}
ssh: {user: a, private_key_path: /k}
`,
		"unknown top-level field": `
provider:
  kind: lxd
  lxd: {image: ubuntu:24.04}
ssh: {user: a, private_key_path: /k}
bogus: true
`,
	}
	l := newLoader(t)
	for label, doc := range cases {
		if _, err := l.ParseEnvironment([]byte(doc)); err == nil {
			t.Errorf("%s: expected an error", label)
		}
	}
}

func TestLoadEnvironmentNameOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(path, []byte(cloudDefinition), 0o644); err != nil {
		t.Fatal(err)
	}
	l := newLoader(t)

	if _, err := l.LoadEnvironment(path, ""); err == nil ||
		!strings.Contains(err.Error(), "no environment name") {
		t.Fatalf("expected missing-name error, got %v", err)
	}

	cs, err := l.LoadEnvironment(path, "prod")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cs.Name != "prod" {
		t.Errorf("name = %q, want prod", cs.Name)
	}
}

func TestSettingsDefaultsAndOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv(envHome, home)

	s, err := LoadSettings(filepath.Join(home, "missing.yaml"))
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if s.StateDir != filepath.Join(home, "state") {
		t.Errorf("state dir = %q", s.StateDir)
	}
	if time.Duration(s.LockTimeout) != 10*time.Second {
		t.Errorf("lock timeout = %v", s.LockTimeout)
	}

	path := filepath.Join(home, "settings.yaml")
	content := "state_dir: /var/lib/hoist\nlock_timeout: 30s\nprotected_environments: [prod]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err = LoadSettings(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.StateDir != "/var/lib/hoist" {
		t.Errorf("state dir = %q", s.StateDir)
	}
	if time.Duration(s.LockTimeout) != 30*time.Second {
		t.Errorf("lock timeout = %v", s.LockTimeout)
	}
	if s.HistoryPath != filepath.Join(home, "history.db") {
		t.Errorf("history path = %q", s.HistoryPath)
	}
	if len(s.ProtectedEnvironments) != 1 || s.ProtectedEnvironments[0] != "prod" {
		t.Errorf("protected = %v", s.ProtectedEnvironments)
	}
}
