// Package policy gates lifecycle verbs with Rego rules evaluated
// through Open Policy Agent. Built-in rules protect named environments
// from destruction and restrict which cloud providers may be
// provisioned; operators can add their own rules as .rego files.
//
// Each rule package contributes a deny set. A non-empty deny set at
// error severity blocks the verb before any step runs.
package policy
