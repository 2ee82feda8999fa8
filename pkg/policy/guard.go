package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/hoistlab/hoist/pkg/environment"
)

// Options parameterize the built-in rules.
type Options struct {
	// ProtectedEnvironments are names destroy and purge may not touch.
	ProtectedEnvironments []string

	// AllowedCloudProviders, when non-empty, restricts which cloud
	// providers may be provisioned.
	AllowedCloudProviders []string
}

// Guard evaluates lifecycle verbs against the loaded rules. It
// implements the orchestrator's policy gate.
type Guard struct {
	mu     sync.RWMutex
	rules  map[string]*compiledRule
	opts   Options
	logger zerolog.Logger
}

type compiledRule struct {
	rule     *Rule
	pkg      string
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// NewGuard compiles the built-in rules and returns a ready guard.
func NewGuard(opts Options, logger zerolog.Logger) (*Guard, error) {
	g := &Guard{
		rules:  make(map[string]*compiledRule),
		opts:   opts,
		logger: logger.With().Str("component", "policy-guard").Logger(),
	}
	for _, rule := range builtinRules() {
		r := rule
		if err := g.compile(&r); err != nil {
			return nil, fmt.Errorf("compile built-in rule %s: %w", r.Name, err)
		}
	}
	return g, nil
}

// LoadRules compiles additional rules from .rego files under the given
// paths. Later rules with the same name replace earlier ones.
func (g *Guard) LoadRules(ctx context.Context, paths []string) error {
	rules, err := loadFromPaths(ctx, g.logger, paths)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range rules {
		if err := g.compileLocked(&rules[i]); err != nil {
			return fmt.Errorf("compile rule %s: %w", rules[i].Name, err)
		}
	}
	g.logger.Info().Int("count", len(rules)).Msg("policy rules loaded")
	return nil
}

// Allow evaluates all enabled rules against the verb and environment.
// It returns a *DeniedError when any blocking violation fires, nil
// when only warnings (or nothing) fired.
func (g *Guard) Allow(ctx context.Context, verb string, env environment.Environment) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	input := g.buildInput(verb, env)

	var blocking, warnings []Violation
	for _, cr := range g.rules {
		if !cr.rule.Enabled {
			continue
		}
		violations, err := g.evaluate(ctx, cr, input)
		if err != nil {
			// An unevaluable rule must never silently wave a verb
			// through.
			return fmt.Errorf("evaluate policy rule %s: %w", cr.rule.Name, err)
		}
		for _, v := range violations {
			if v.Severity.blocking() {
				blocking = append(blocking, v)
			} else {
				warnings = append(warnings, v)
			}
		}
	}

	for _, w := range warnings {
		g.logger.Warn().
			Str("rule", w.Rule).
			Str("verb", verb).
			Str("environment", env.Name().String()).
			Msg(w.Message)
	}

	if len(blocking) > 0 {
		return &DeniedError{
			Verb:        verb,
			Environment: env.Name().String(),
			Violations:  blocking,
			EvaluatedAt: time.Now().UTC(),
		}
	}
	return nil
}

// Rules returns the loaded rules, built-ins included.
func (g *Guard) Rules() []Rule {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Rule, 0, len(g.rules))
	for _, cr := range g.rules {
		out = append(out, *cr.rule)
	}
	return out
}

// SetEnabled toggles a rule by name.
func (g *Guard) SetEnabled(name string, enabled bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	cr, ok := g.rules[name]
	if !ok {
		return fmt.Errorf("unknown policy rule %q", name)
	}
	cr.rule.Enabled = enabled
	return nil
}

func (g *Guard) buildInput(verb string, env environment.Environment) map[string]any {
	provider := env.Provider()
	envDoc := map[string]any{
		"name":          env.Name().String(),
		"state":         string(env.State()),
		"provider_kind": string(provider.Kind),
	}
	if provider.Cloud != nil {
		envDoc["cloud_provider"] = provider.Cloud.Provider
		envDoc["region"] = provider.Cloud.Region
	}
	return map[string]any{
		"verb":        verb,
		"environment": envDoc,
		"context": map[string]any{
			"timestamp":               time.Now().UTC().Format(time.RFC3339),
			"protected_environments":  stringSlice(g.opts.ProtectedEnvironments),
			"allowed_cloud_providers": stringSlice(g.opts.AllowedCloudProviders),
		},
	}
}

// stringSlice widens []string to []any so OPA sees a plain JSON array.
func stringSlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func (g *Guard) compile(rule *Rule) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.compileLocked(rule)
}

func (g *Guard) compileLocked(rule *Rule) error {
	module, err := ast.ParseModule(rule.Name, rule.Rego)
	if err != nil {
		return fmt.Errorf("parse rego: %w", err)
	}
	pkg := strings.TrimPrefix(module.Package.Path.String(), "data.")

	query, err := rego.New(
		rego.Module(rule.Name, rule.Rego),
		rego.Query(fmt.Sprintf("data.%s.deny", pkg)),
	).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare query: %w", err)
	}

	g.rules[rule.Name] = &compiledRule{
		rule:     rule,
		pkg:      pkg,
		query:    query,
		compiled: time.Now(),
	}
	return nil
}

func (g *Guard) evaluate(ctx context.Context, cr *compiledRule, input map[string]any) ([]Violation, error) {
	results, err := cr.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, err
	}

	var violations []Violation
	for _, result := range results {
		for _, expr := range result.Expressions {
			denySet, ok := expr.Value.([]any)
			if !ok {
				continue
			}
			for _, d := range denySet {
				violations = append(violations, g.violationFrom(cr.rule, d))
			}
		}
	}
	return violations, nil
}

// violationFrom accepts either a bare message string or an object with
// message and optional severity override.
func (g *Guard) violationFrom(rule *Rule, result any) Violation {
	v := Violation{Rule: rule.Name, Severity: rule.Severity}
	switch t := result.(type) {
	case string:
		v.Message = t
	case map[string]any:
		if msg, ok := t["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := t["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
	default:
		v.Message = fmt.Sprintf("%v", result)
	}
	return v
}
