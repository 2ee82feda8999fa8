package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hoistlab/hoist/pkg/orchestrator"
)

//go:embed schema.cue
var environmentSchema string

// Loader parses environment definition files.
type Loader struct {
	cue       *cue.Context
	schema    cue.Value
	validator *validator.Validate
}

// NewLoader compiles the embedded schema and returns a ready loader.
func NewLoader() (*Loader, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(environmentSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile environment schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Environment"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("environment schema definition: %w", err)
	}
	return &Loader{
		cue:       ctx,
		schema:    def,
		validator: validator.New(),
	}, nil
}

// LoadEnvironment reads, validates, and converts an environment
// definition file. nameOverride, when non-empty, replaces any name the
// file carries.
func (l *Loader) LoadEnvironment(path, nameOverride string) (orchestrator.CreateSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return orchestrator.CreateSpec{}, fmt.Errorf("read environment definition: %w", err)
	}
	spec, err := l.ParseEnvironment(data)
	if err != nil {
		return orchestrator.CreateSpec{}, fmt.Errorf("%s: %w", path, err)
	}
	if nameOverride != "" {
		spec.Name = nameOverride
	}
	if spec.Name == "" {
		return orchestrator.CreateSpec{}, fmt.Errorf("%s: no environment name in file and none given", path)
	}
	return spec.ToCreateSpec()
}

// ParseEnvironment validates raw YAML against the schema and the
// struct-level rules, returning the decoded definition.
func (l *Loader) ParseEnvironment(data []byte) (*EnvironmentSpec, error) {
	// Decode generically first so the schema sees the document as
	// written, including unknown fields.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("environment definition is empty")
	}

	doc := l.cue.Encode(raw)
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	unified := l.schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("schema violation:\n%s", cueerrors.Details(err, nil))
	}

	var spec EnvironmentSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode environment definition: %w", err)
	}
	if err := l.validator.Struct(&spec); err != nil {
		return nil, fmt.Errorf("invalid environment definition: %w", err)
	}
	return &spec, nil
}
