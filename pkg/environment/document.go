package environment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCorruptedState marks a persisted document that cannot be trusted: an
// unparseable payload, an unknown state tag, or runtime outputs inconsistent
// with the tag. Loaders surface it instead of guessing a state.
var ErrCorruptedState = errors.New("corrupted environment state")

// documentSchemaVersion is bumped when the persisted layout changes shape.
const documentSchemaVersion = 1

// document is the persisted JSON representation of an Environment. The
// state tag is an explicit discriminant so that a reader never has to infer
// the lifecycle stage from which output fields happen to be set.
type document struct {
	SchemaVersion int            `json:"schema_version"`
	Name          string         `json:"name"`
	State         State          `json:"state"`
	Provider      ProviderConfig `json:"provider"`
	SSH           SSHCredentials `json:"ssh"`
	Service       ServiceConfig  `json:"service,omitempty"`
	Outputs       Outputs        `json:"outputs"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// MarshalDocument serializes the environment to its persisted JSON form.
func MarshalDocument(a Any) ([]byte, error) {
	env := a.env
	doc := document{
		SchemaVersion: documentSchemaVersion,
		Name:          env.name.String(),
		State:         env.state,
		Provider:      env.provider,
		SSH:           env.ssh,
		Service:       env.service,
		Outputs:       env.outputs,
		CreatedAt:     env.createdAt,
		UpdatedAt:     env.updatedAt,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal environment %s: %w", env.name, err)
	}
	return append(data, '\n'), nil
}

// UnmarshalDocument parses a persisted document and validates it before
// handing back a usable environment. Every validation failure wraps
// ErrCorruptedState.
func UnmarshalDocument(data []byte) (Any, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Any{}, fmt.Errorf("%w: %v", ErrCorruptedState, err)
	}
	if doc.SchemaVersion != documentSchemaVersion {
		return Any{}, fmt.Errorf("%w: unsupported schema version %d", ErrCorruptedState, doc.SchemaVersion)
	}
	name, err := NewName(doc.Name)
	if err != nil {
		return Any{}, fmt.Errorf("%w: %v", ErrCorruptedState, err)
	}
	if !doc.State.IsValid() {
		return Any{}, fmt.Errorf("%w: unknown state tag %q", ErrCorruptedState, doc.State)
	}
	if err := doc.Provider.Validate(); err != nil {
		return Any{}, fmt.Errorf("%w: %v", ErrCorruptedState, err)
	}
	if err := doc.SSH.Validate(); err != nil {
		return Any{}, fmt.Errorf("%w: %v", ErrCorruptedState, err)
	}
	if !doc.Outputs.consistentWith(doc.State) {
		return Any{}, fmt.Errorf("%w: outputs inconsistent with state %q", ErrCorruptedState, doc.State)
	}
	return Any{env: Environment{
		name:      name,
		provider:  doc.Provider,
		ssh:       doc.SSH,
		service:   doc.Service,
		state:     doc.State,
		outputs:   doc.Outputs,
		createdAt: doc.CreatedAt,
		updatedAt: doc.UpdatedAt,
	}}, nil
}
