// Package environment defines the Environment aggregate: the identity,
// configuration, lifecycle state, and runtime outputs of one deployment.
//
// The lifecycle is a forward-only state machine:
//
//	Created -> Provisioned -> Configured -> Released -> Running -> Destroyed
//
// Destroyed is additionally reachable from every non-terminal state, because
// infrastructure teardown must remain possible after a partial failure.
//
// Each lifecycle state is carried by a distinct wrapper type (Created,
// Provisioned, ...). The only way to obtain a value of a given state is to
// perform the transition from the prior state, so "configure before
// provision" is not representable in calling code. Transitions consume the
// prior value and return a fresh one together with the runtime outputs
// discovered during the stage; nothing is mutated in place.
//
// The package also owns the persisted JSON representation. Deserializing a
// document with an unknown state tag, or with runtime outputs inconsistent
// with its tag, fails with ErrCorruptedState rather than guessing.
package environment
