package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hoistlab/hoist/pkg/environment"
)

func testEnvironment(t *testing.T, name string, provider environment.ProviderConfig) environment.Environment {
	t.Helper()
	n, err := environment.NewName(name)
	if err != nil {
		t.Fatalf("name: %v", err)
	}
	created, err := environment.NewCreated(n, provider, environment.SSHCredentials{
		User:           "deploy",
		Port:           22,
		PrivateKeyPath: "/keys/test",
	}, nil, time.Now())
	if err != nil {
		t.Fatalf("new environment: %v", err)
	}
	return created.Env()
}

func lxdProvider() environment.ProviderConfig {
	return environment.ProviderConfig{
		Kind: environment.ProviderLXD,
		LXD:  &environment.LXDProvider{Image: "ubuntu:24.04"},
	}
}

func cloudProvider(name string) environment.ProviderConfig {
	return environment.ProviderConfig{
		Kind: environment.ProviderCloud,
		Cloud: &environment.CloudProvider{
			Provider:       name,
			Region:         "fsn1",
			InstanceType:   "cx22",
			CredentialsRef: "TOKEN",
		},
	}
}

func newGuard(t *testing.T, opts Options) *Guard {
	t.Helper()
	g, err := NewGuard(opts, zerolog.Nop())
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	return g
}

func TestProtectedEnvironmentBlocksDestroy(t *testing.T) {
	g := newGuard(t, Options{ProtectedEnvironments: []string{"prod"}})
	env := testEnvironment(t, "prod", lxdProvider())

	for _, verb := range []string{"destroy", "purge"} {
		err := g.Allow(context.Background(), verb, env)
		var denied *DeniedError
		if !errors.As(err, &denied) {
			t.Fatalf("%s: expected DeniedError, got %v", verb, err)
		}
		if denied.Verb != verb || denied.Environment != "prod" {
			t.Errorf("%s: unexpected denial %+v", verb, denied)
		}
		if len(denied.Violations) != 1 || denied.Violations[0].Rule != "protected-environments" {
			t.Errorf("%s: unexpected violations %+v", verb, denied.Violations)
		}
	}

	// Other verbs and other environments pass.
	if err := g.Allow(context.Background(), "provision", env); err != nil {
		t.Errorf("provision should pass: %v", err)
	}
	other := testEnvironment(t, "staging", lxdProvider())
	if err := g.Allow(context.Background(), "destroy", other); err != nil {
		t.Errorf("unprotected destroy should pass: %v", err)
	}
}

func TestCloudProviderAllowlist(t *testing.T) {
	g := newGuard(t, Options{AllowedCloudProviders: []string{"hetzner"}})

	allowed := testEnvironment(t, "a", cloudProvider("hetzner"))
	if err := g.Allow(context.Background(), "provision", allowed); err != nil {
		t.Errorf("allowlisted provider should pass: %v", err)
	}

	blocked := testEnvironment(t, "b", cloudProvider("aws"))
	err := g.Allow(context.Background(), "provision", blocked)
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if !strings.Contains(denied.Error(), "aws") {
		t.Errorf("denial should name the provider: %v", denied)
	}

	// An empty allowlist means no restriction.
	open := newGuard(t, Options{})
	if err := open.Allow(context.Background(), "provision", blocked); err != nil {
		t.Errorf("empty allowlist should pass: %v", err)
	}

	// LXD environments are never subject to the allowlist.
	lxd := testEnvironment(t, "c", lxdProvider())
	if err := g.Allow(context.Background(), "provision", lxd); err != nil {
		t.Errorf("lxd should pass: %v", err)
	}
}

func TestWarningSeverityDoesNotBlock(t *testing.T) {
	// The destroy-running-warning rule fires on running environments
	// but must not deny the verb. A Created environment cannot be
	// running, so exercise the severity handling through a custom rule
	// instead.
	g := newGuard(t, Options{})
	dir := t.TempDir()
	rego := `# description: always warns
# severity: warning
package hoist.test_warn

deny contains msg if {
	input.verb == "provision"
	msg := "heads up"
}
`
	if err := os.WriteFile(filepath.Join(dir, "warn.rego"), []byte(rego), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := g.LoadRules(context.Background(), []string{dir}); err != nil {
		t.Fatalf("load rules: %v", err)
	}

	env := testEnvironment(t, "staging", lxdProvider())
	if err := g.Allow(context.Background(), "provision", env); err != nil {
		t.Errorf("warning must not block: %v", err)
	}
}

func TestDisabledRuleIsSkipped(t *testing.T) {
	g := newGuard(t, Options{ProtectedEnvironments: []string{"prod"}})
	if err := g.SetEnabled("protected-environments", false); err != nil {
		t.Fatal(err)
	}
	env := testEnvironment(t, "prod", lxdProvider())
	if err := g.Allow(context.Background(), "destroy", env); err != nil {
		t.Errorf("disabled rule must not fire: %v", err)
	}
	if err := g.SetEnabled("nope", true); err == nil {
		t.Error("expected error for unknown rule")
	}
}

func TestLoadRulesFromFiles(t *testing.T) {
	dir := t.TempDir()
	rego := `# description: blocks everything named doomed
# severity: critical
package hoist.custom

deny contains msg if {
	input.environment.name == "doomed"
	msg := "doomed environments are rejected"
}
`
	if err := os.WriteFile(filepath.Join(dir, "custom.rego"), []byte(rego), 0o644); err != nil {
		t.Fatal(err)
	}
	// Non-rego files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := newGuard(t, Options{})
	if err := g.LoadRules(context.Background(), []string{dir}); err != nil {
		t.Fatalf("load rules: %v", err)
	}

	var custom *Rule
	for _, r := range g.Rules() {
		if r.Name == "custom" {
			rc := r
			custom = &rc
		}
	}
	if custom == nil {
		t.Fatal("custom rule not loaded")
	}
	if custom.Severity != SeverityCritical || custom.Description == "" {
		t.Errorf("metadata not parsed: %+v", custom)
	}

	env := testEnvironment(t, "doomed", lxdProvider())
	if err := g.Allow(context.Background(), "provision", env); err == nil {
		t.Error("expected denial from custom rule")
	}
}

func TestLoadRulesRejectsBadSeverity(t *testing.T) {
	dir := t.TempDir()
	rego := "# severity: fatal\npackage hoist.bad\n"
	path := filepath.Join(dir, "bad.rego")
	if err := os.WriteFile(path, []byte(rego), 0o644); err != nil {
		t.Fatal(err)
	}
	g := newGuard(t, Options{})
	// Direct file paths must fail loudly rather than be skipped.
	if err := g.LoadRules(context.Background(), []string{path}); err == nil {
		t.Error("expected error for unknown severity")
	}
}
