package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/hoistlab/hoist/pkg/actions"
	"github.com/hoistlab/hoist/pkg/environment"
	"github.com/hoistlab/hoist/pkg/steps"
)

// memRepo is an in-memory Repository for handler tests.
type memRepo struct {
	mu       sync.Mutex
	envs     map[string]environment.Any
	locked   map[string]bool
	acquired int
	released int

	loadErr error
	saveErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		envs:   make(map[string]environment.Any),
		locked: make(map[string]bool),
	}
}

func (r *memRepo) Load(_ context.Context, name environment.Name) (environment.Any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return environment.Any{}, r.loadErr
	}
	env, ok := r.envs[name.String()]
	if !ok {
		return environment.Any{}, environment.ErrNotFound
	}
	return env, nil
}

func (r *memRepo) Save(_ context.Context, env environment.Any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.envs[env.Name().String()] = env
	return nil
}

func (r *memRepo) Create(_ context.Context, env environment.Any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.envs[env.Name().String()]; ok {
		return environment.ErrAlreadyExists
	}
	r.envs[env.Name().String()] = env
	return nil
}

func (r *memRepo) Exists(_ context.Context, name environment.Name) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.envs[name.String()]
	return ok, nil
}

func (r *memRepo) Delete(_ context.Context, name environment.Name) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.envs, name.String())
	return nil
}

func (r *memRepo) List(context.Context) ([]environment.Any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]environment.Any, 0, len(r.envs))
	for _, env := range r.envs {
		out = append(out, env)
	}
	return out, nil
}

func (r *memRepo) Lock(_ context.Context, name environment.Name, _ time.Duration) (func() error, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked[name.String()] {
		return nil, fmt.Errorf("%q: %w", name.String(), environment.ErrLockTimeout)
	}
	r.locked[name.String()] = true
	r.acquired++
	return func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.locked[name.String()] = false
		r.released++
		return nil
	}, nil
}

func (r *memRepo) stateOf(t *testing.T, name string) environment.State {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	env, ok := r.envs[name]
	if !ok {
		t.Fatalf("environment %q not persisted", name)
	}
	return env.State()
}

// Executor fakes.

type fakeProvisioner struct {
	applyOutputs actions.InfraOutputs
	applyErr     error
	destroyErr   error
	applyCalls   int
	destroyCalls int
}

func (f *fakeProvisioner) Plan(context.Context, string) error { return nil }

func (f *fakeProvisioner) Apply(context.Context, string) (actions.InfraOutputs, error) {
	f.applyCalls++
	return f.applyOutputs, f.applyErr
}

func (f *fakeProvisioner) Destroy(context.Context, string) error {
	f.destroyCalls++
	return f.destroyErr
}

type fakePlaybooks struct {
	err   error
	calls int
}

func (f *fakePlaybooks) RunPlaybook(context.Context, string, string) error {
	f.calls++
	return f.err
}

type fakeRemote struct {
	fingerprint string
	waitErr     error
	runFn       func(command string) (actions.CommandResult, error)
	uploadErr   error
}

func (f *fakeRemote) WaitReachable(context.Context, string, int, time.Duration) (string, error) {
	return f.fingerprint, f.waitErr
}

func (f *fakeRemote) RunCommand(_ context.Context, _ string, command string) (actions.CommandResult, error) {
	if f.runFn == nil {
		return actions.CommandResult{Stdout: "status: done"}, nil
	}
	return f.runFn(command)
}

func (f *fakeRemote) UploadDir(context.Context, string, string, string) error {
	return f.uploadErr
}

type fakeRenderer struct{ err error }

func (f *fakeRenderer) Render(_ context.Context, _ string, _ map[string]any, destDir string) (string, error) {
	return destDir, f.err
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type recordingHistory struct {
	mu      sync.Mutex
	records []CommandRecord
}

func (h *recordingHistory) Append(_ context.Context, record CommandRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)
	return nil
}

func (h *recordingHistory) Recent(_ context.Context, name string, limit int) ([]CommandRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []CommandRecord
	for i := len(h.records) - 1; i >= 0 && len(out) < limit; i-- {
		if name == "" || h.records[i].Environment == name {
			out = append(out, h.records[i])
		}
	}
	return out, nil
}

type recordingListener struct {
	mu       sync.Mutex
	started  []string
	finished []string
}

func (l *recordingListener) StepStarted(_ string, _ Verb, step string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, step)
}

func (l *recordingListener) StepFinished(_ string, _ Verb, step string, outcome Outcome, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = append(l.finished, fmt.Sprintf("%s:%s", step, outcome))
}

type testFixture struct {
	handler  *Handler
	repo     *memRepo
	infra    *fakeProvisioner
	play     *fakePlaybooks
	remote   *fakeRemote
	history  *recordingHistory
	listener *recordingListener
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		repo: newMemRepo(),
		infra: &fakeProvisioner{
			applyOutputs: actions.InfraOutputs{InstanceAddress: "10.0.0.9"},
		},
		play:     &fakePlaybooks{},
		remote:   &fakeRemote{fingerprint: "SHA256:test"},
		history:  &recordingHistory{},
		listener: &recordingListener{},
	}

	handler, err := NewHandler(Deps{
		Repo: f.repo,
		Exec: steps.Executors{
			Infra:     f.infra,
			Playbooks: f.play,
			Remote:    f.remote,
			Renderer:  &fakeRenderer{},
		},
		History:  f.history,
		Clock:    &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)},
		Listener: f.listener,
		WorkRoot: t.TempDir(),
		CloudInitRetry: steps.RetryPolicy{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	f.handler = handler
	return f
}

func defaultSpec(name string) CreateSpec {
	return CreateSpec{
		Name: name,
		Provider: environment.ProviderConfig{
			Kind: environment.ProviderLXD,
			LXD:  &environment.LXDProvider{Profile: "default", Image: "ubuntu/24.04"},
		},
		SSH: environment.SSHCredentials{
			User:           "deploy",
			Port:           22,
			PrivateKeyPath: "/keys/id",
			PublicKeyPath:  "/keys/id.pub",
		},
		Service: environment.ServiceConfig{"app": "web"},
	}
}

func (f *testFixture) mustCreate(t *testing.T, name string) {
	t.Helper()
	if _, err := f.handler.Create(t.Context(), defaultSpec(name)); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func (f *testFixture) mustProvision(t *testing.T, name string) {
	t.Helper()
	if _, err := f.handler.Provision(t.Context(), name); err != nil {
		t.Fatalf("provision: %v", err)
	}
}

func (f *testFixture) advanceToRunning(t *testing.T, name string) {
	t.Helper()
	f.mustCreate(t, name)
	f.mustProvision(t, name)
	if _, err := f.handler.Configure(t.Context(), name); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if _, err := f.handler.Release(t.Context(), name); err != nil {
		t.Fatalf("release: %v", err)
	}
	f.remote.runFn = func(command string) (actions.CommandResult, error) {
		if command == "cat /opt/"+name+"/endpoints.json" {
			return actions.CommandResult{Stdout: `{"web":"http://10.0.0.9:8080"}`}, nil
		}
		return actions.CommandResult{}, nil
	}
	if _, err := f.handler.Run(t.Context(), name); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	f.advanceToRunning(t, "prod")

	if got := f.repo.stateOf(t, "prod"); got != environment.StateRunning {
		t.Fatalf("state = %s, want running", got)
	}

	loaded, err := f.handler.Show(t.Context(), "prod")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	env := loaded.Env()
	if env.InstanceAddress() != "10.0.0.9" {
		t.Errorf("address = %q", env.InstanceAddress())
	}
	if env.Outputs().HostKeyFingerprint != "SHA256:test" {
		t.Errorf("fingerprint = %q", env.Outputs().HostKeyFingerprint)
	}
	if env.Outputs().Endpoints["web"] != "http://10.0.0.9:8080" {
		t.Errorf("endpoints = %v", env.Outputs().Endpoints)
	}

	if _, err := f.handler.Test(t.Context(), "prod"); err != nil {
		t.Fatalf("test verb: %v", err)
	}

	if _, err := f.handler.Destroy(t.Context(), "prod"); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if got := f.repo.stateOf(t, "prod"); got != environment.StateDestroyed {
		t.Fatalf("state = %s, want destroyed", got)
	}
	loaded, _ = f.handler.Show(t.Context(), "prod")
	out := loaded.Env().Outputs()
	if out.InstanceAddress != "" || len(out.Endpoints) != 0 {
		t.Errorf("destroy should clear runtime outputs, got %+v", out)
	}

	if _, err := f.handler.Purge(t.Context(), "prod"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := f.handler.Show(t.Context(), "prod"); !errors.Is(err, environment.ErrNotFound) {
		t.Errorf("after purge, show err = %v", err)
	}

	if f.repo.acquired != f.repo.released {
		t.Errorf("locks acquired %d != released %d", f.repo.acquired, f.repo.released)
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "dup")
	_, err := f.handler.Create(t.Context(), defaultSpec("dup"))
	if !errors.Is(err, environment.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestProvisionWrongStateLeavesRecordUntouched(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "env")
	f.mustProvision(t, "env")

	before, _ := f.repo.Load(t.Context(), mustName(t, "env"))

	_, err := f.handler.Provision(t.Context(), "env")
	var ise *InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("err = %v, want InvalidStateError", err)
	}
	if ise.Current != environment.StateProvisioned || ise.Verb != VerbProvision {
		t.Errorf("unexpected detail %+v", ise)
	}

	after, _ := f.repo.Load(t.Context(), mustName(t, "env"))
	if before.Env().UpdatedAt() != after.Env().UpdatedAt() {
		t.Error("failed invocation must not touch the persisted record")
	}
	if f.infra.applyCalls != 1 {
		t.Errorf("apply ran %d times, want 1 (no steps on wrong state)", f.infra.applyCalls)
	}
}

func TestProvisionFailureIsAtomic(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "env")
	f.remote.waitErr = errors.New("no route to host")

	_, err := f.handler.Provision(t.Context(), "env")
	var se *StepError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StepError", err)
	}
	if se.Step != "wait-ssh-reachable" {
		t.Errorf("failing step = %q", se.Step)
	}

	// Apply already ran, but nothing was committed.
	if f.infra.applyCalls != 1 {
		t.Errorf("apply calls = %d", f.infra.applyCalls)
	}
	if got := f.repo.stateOf(t, "env"); got != environment.StateCreated {
		t.Errorf("state = %s, want created (atomic failure)", got)
	}

	// The record shows the failure and the skipped remainder.
	rec := f.history.records[len(f.history.records)-1]
	if rec.Outcome != OutcomeFailure {
		t.Errorf("record outcome = %s", rec.Outcome)
	}
	var failed, skipped int
	for _, s := range rec.Steps {
		switch s.Outcome {
		case OutcomeFailure:
			failed++
		case OutcomeSkipped:
			skipped++
		}
	}
	if failed != 1 || skipped != 1 {
		t.Errorf("failed=%d skipped=%d, want 1 and 1: %+v", failed, skipped, rec.Steps)
	}

	// Lock was released despite the failure.
	if f.repo.acquired != f.repo.released {
		t.Errorf("locks acquired %d != released %d", f.repo.acquired, f.repo.released)
	}
}

func TestRegisterAdoptsExistingInstance(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "env")

	rec, err := f.handler.Register(t.Context(), "env", "192.168.7.40")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if rec.Outcome != OutcomeSuccess || rec.Verb != VerbRegister {
		t.Errorf("record = %s %s", rec.Verb, rec.Outcome)
	}
	if f.infra.applyCalls != 0 {
		t.Error("register must not touch the provisioner")
	}
	if got := f.repo.stateOf(t, "env"); got != environment.StateProvisioned {
		t.Fatalf("state = %s, want provisioned", got)
	}
	env := mustLoad(t, f.repo, "env").Env()
	if env.InstanceAddress() != "192.168.7.40" {
		t.Errorf("address = %q", env.InstanceAddress())
	}
	if env.Outputs().HostKeyFingerprint != "SHA256:test" {
		t.Errorf("fingerprint = %q", env.Outputs().HostKeyFingerprint)
	}
}

func TestRegisterUnreachableInstanceIsAtomic(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "env")
	f.remote.waitErr = errors.New("connection refused")

	_, err := f.handler.Register(t.Context(), "env", "192.168.7.40")
	var se *StepError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StepError", err)
	}
	if se.Step != "wait-ssh-reachable" {
		t.Errorf("failing step = %q", se.Step)
	}
	if got := f.repo.stateOf(t, "env"); got != environment.StateCreated {
		t.Errorf("state = %s, want created", got)
	}
}

func TestRegisterRequiresCreatedState(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "env")
	f.mustProvision(t, "env")

	_, err := f.handler.Register(t.Context(), "env", "192.168.7.40")
	var ise *InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("err = %v, want InvalidStateError", err)
	}
	if ise.Verb != VerbRegister {
		t.Errorf("verb = %s", ise.Verb)
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.advanceToRunning(t, "env")

	if _, err := f.handler.Destroy(t.Context(), "env"); err != nil {
		t.Fatalf("first destroy: %v", err)
	}
	destroys := f.infra.destroyCalls

	rec, err := f.handler.Destroy(t.Context(), "env")
	if err != nil {
		t.Fatalf("second destroy: %v", err)
	}
	if rec.Outcome != OutcomeSuccess {
		t.Errorf("second destroy outcome = %s", rec.Outcome)
	}
	if f.infra.destroyCalls != destroys {
		t.Errorf("second destroy ran teardown again")
	}
}

func TestDestroyFromPartialState(t *testing.T) {
	// Destroy must work from any non-terminal state, not just Running.
	f := newFixture(t)
	f.mustCreate(t, "env")
	f.mustProvision(t, "env")

	if _, err := f.handler.Destroy(t.Context(), "env"); err != nil {
		t.Fatalf("destroy from provisioned: %v", err)
	}
	if got := f.repo.stateOf(t, "env"); got != environment.StateDestroyed {
		t.Errorf("state = %s", got)
	}
}

func TestDestroyAggregatesAndWithholdsTransition(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "env")
	f.mustProvision(t, "env")
	f.infra.destroyErr = &actions.ToolError{Tool: "tofu", ExitCode: 1, Output: "in use", Err: errors.New("exit status 1")}

	// The infra dir must exist or teardown is skipped as already absent.
	sc := f.handler.stepContext(mustLoad(t, f.repo, "env").Env())
	if err := mkdirAll(sc.InfraDir()); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	_, err := f.handler.Destroy(t.Context(), "env")
	var de *DestroyError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want DestroyError", err)
	}
	if de.Destroyed {
		t.Error("environment must not be recorded destroyed when teardown failed")
	}
	if got := f.repo.stateOf(t, "env"); got != environment.StateProvisioned {
		t.Errorf("state = %s, want provisioned", got)
	}
}

func TestPurgeRequiresDestroyed(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "env")

	_, err := f.handler.Purge(t.Context(), "env")
	var ise *InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("err = %v, want InvalidStateError", err)
	}
	if got := f.repo.stateOf(t, "env"); got != environment.StateCreated {
		t.Errorf("purge must not remove a non-destroyed environment")
	}
}

func TestTestVerbDoesNotTransition(t *testing.T) {
	f := newFixture(t)
	f.advanceToRunning(t, "env")
	before, _ := f.repo.Load(t.Context(), mustName(t, "env"))

	f.remote.runFn = func(command string) (actions.CommandResult, error) {
		return actions.CommandResult{ExitCode: 1, Stderr: "service down"}, nil
	}
	if _, err := f.handler.Test(t.Context(), "env"); err == nil {
		t.Fatal("expected smoke failure")
	}

	after, _ := f.repo.Load(t.Context(), mustName(t, "env"))
	if before.Env().UpdatedAt() != after.Env().UpdatedAt() {
		t.Error("test verb must never modify the persisted record")
	}
	if after.State() != environment.StateRunning {
		t.Errorf("state = %s", after.State())
	}
}

func TestLockExcludesConcurrentMutation(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "env")

	release, err := f.repo.Lock(t.Context(), mustName(t, "env"), time.Second)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer release() //nolint:errcheck

	_, err = f.handler.Provision(t.Context(), "env")
	if !errors.Is(err, environment.ErrLockTimeout) {
		t.Fatalf("err = %v, want ErrLockTimeout", err)
	}
	if f.infra.applyCalls != 0 {
		t.Error("no step may run without the lock")
	}
}

func TestPolicyGateBlocksProvision(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "env")

	denied := errors.New("environment is protected")
	handler, err := NewHandler(Deps{
		Repo:     f.repo,
		Exec:     steps.Executors{Infra: f.infra, Remote: f.remote, Renderer: &fakeRenderer{}},
		Policy:   policyFunc(func(context.Context, string, environment.Environment) error { return denied }),
		WorkRoot: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	if _, err := handler.Provision(t.Context(), "env"); !errors.Is(err, denied) {
		t.Fatalf("err = %v, want policy denial", err)
	}
	if f.infra.applyCalls != 0 {
		t.Error("policy denial must precede all steps")
	}
	if got := f.repo.stateOf(t, "env"); got != environment.StateCreated {
		t.Errorf("state = %s", got)
	}
}

func TestListenerObservesSequence(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "env")
	f.mustProvision(t, "env")

	wantStarted := []string{
		"render-infrastructure",
		"apply-infrastructure",
		"wait-ssh-reachable",
		"wait-cloud-init",
	}
	f.listener.mu.Lock()
	defer f.listener.mu.Unlock()
	if len(f.listener.started) != len(wantStarted) {
		t.Fatalf("started = %v", f.listener.started)
	}
	for i, want := range wantStarted {
		if f.listener.started[i] != want {
			t.Errorf("started[%d] = %q, want %q", i, f.listener.started[i], want)
		}
	}
}

type panickyListener struct{}

func (panickyListener) StepStarted(string, Verb, string) { panic("listener bug") }

func (panickyListener) StepFinished(string, Verb, string, Outcome, error) {
	panic("listener bug")
}

func TestPanickingListenerDoesNotAbortCommand(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "env")

	handler, err := NewHandler(Deps{
		Repo: f.repo,
		Exec: steps.Executors{
			Infra:    f.infra,
			Remote:   f.remote,
			Renderer: &fakeRenderer{},
		},
		Listener: panickyListener{},
		WorkRoot: t.TempDir(),
		CloudInitRetry: steps.RetryPolicy{
			MaxAttempts:    1,
			InitialBackoff: time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	if _, err := handler.Provision(t.Context(), "env"); err != nil {
		t.Fatalf("provision with faulty listener: %v", err)
	}
	if got := f.repo.stateOf(t, "env"); got != environment.StateProvisioned {
		t.Errorf("state = %s", got)
	}
}

func TestHistoryRecordsEveryInvocation(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "env")
	f.mustProvision(t, "env")
	_, _ = f.handler.Provision(t.Context(), "env") // wrong state, still recorded

	records, err := f.handler.Recent(t.Context(), "env", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	// Newest first.
	if records[0].Outcome != OutcomeFailure || records[0].Verb != VerbProvision {
		t.Errorf("latest record = %+v", records[0])
	}
	for _, rec := range records {
		if rec.ID == "" || rec.StartedAt.IsZero() || rec.FinishedAt.IsZero() {
			t.Errorf("record missing identity fields: %+v", rec)
		}
	}
}

func TestListSummaries(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "alpha")
	f.mustCreate(t, "beta")
	f.mustProvision(t, "beta")

	summaries, err := f.handler.List(t.Context())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d", len(summaries))
	}
	byName := map[string]Summary{}
	for _, s := range summaries {
		byName[s.Name] = s
	}
	if byName["alpha"].State != environment.StateCreated {
		t.Errorf("alpha state = %s", byName["alpha"].State)
	}
	if byName["beta"].State != environment.StateProvisioned || byName["beta"].InstanceAddress != "10.0.0.9" {
		t.Errorf("beta summary = %+v", byName["beta"])
	}
}

type policyFunc func(ctx context.Context, verb string, env environment.Environment) error

func (f policyFunc) Allow(ctx context.Context, verb string, env environment.Environment) error {
	return f(ctx, verb, env)
}

func mustName(t *testing.T, raw string) environment.Name {
	t.Helper()
	name, err := environment.NewName(raw)
	if err != nil {
		t.Fatalf("name: %v", err)
	}
	return name
}

func mustLoad(t *testing.T, repo *memRepo, name string) environment.Any {
	t.Helper()
	env, err := repo.Load(context.Background(), mustName(t, name))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return env
}

func mkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
