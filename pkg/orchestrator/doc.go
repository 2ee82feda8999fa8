// Package orchestrator contains the command handlers that drive an
// environment through its lifecycle. One handler invocation is one
// verb against one environment: it takes the per-environment lock,
// loads the persisted record, checks the state precondition, runs the
// verb's step sequence, and persists the new state only when every
// step succeeded. Until that final save the on-disk record is
// untouched, so a failed invocation leaves the last good state behind.
//
// Destroy is the one deliberate exception: it attempts every cleanup
// step even after a failure, aggregates what went wrong, and records
// the environment as destroyed as long as the infrastructure teardown
// itself succeeded. Orphaned infrastructure costs money; a dirty
// scratch directory does not.
package orchestrator
