// Package steps defines the unit of work executed by command handlers.
//
// A step takes a read-only snapshot of the environment plus a shared
// fact sheet, performs one externally visible action through the
// injected executors, and reports a classified failure on error. Steps
// never persist environment state; durability is the handler's job, so
// a stage either commits all of its steps' effects or none of them.
//
// Steps that wait on eventually consistent external state are wrapped
// with Retry, which retries only failures classified as retryable
// timeouts.
package steps
