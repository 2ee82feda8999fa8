package policy

import (
	"fmt"
	"strings"
	"time"
)

// Severity ranks how seriously a violation is treated. Only error and
// critical violations block a verb; warnings are logged and the verb
// proceeds.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// blocking reports whether a violation at this severity denies the
// verb.
func (s Severity) blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Rule is a named Rego policy.
type Rule struct {
	// Name identifies the rule in violations and logs.
	Name string `json:"name"`

	// Description explains what the rule enforces.
	Description string `json:"description,omitempty"`

	// Severity is the default severity for violations the rule emits.
	// A violation may override it.
	Severity Severity `json:"severity"`

	// Enabled rules participate in evaluation.
	Enabled bool `json:"enabled"`

	// Rego is the policy source. It must declare a package and emit
	// violations through a deny set.
	Rego string `json:"rego"`

	// Source is the file the rule was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is a single deny result from a rule.
type Violation struct {
	// Rule names the rule that produced the violation.
	Rule string `json:"rule"`

	// Message is the human-readable denial reason.
	Message string `json:"message"`

	// Severity is the violation's severity.
	Severity Severity `json:"severity"`
}

// DeniedError reports that policy blocked a verb.
type DeniedError struct {
	// Verb is the blocked lifecycle verb.
	Verb string

	// Environment is the target environment name.
	Environment string

	// Violations are the blocking deny results. Warnings are not
	// included.
	Violations []Violation

	// EvaluatedAt is when the decision was made.
	EvaluatedAt time.Time
}

// Error implements the error interface.
func (e *DeniedError) Error() string {
	reasons := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		reasons[i] = fmt.Sprintf("%s: %s", v.Rule, v.Message)
	}
	return fmt.Sprintf("policy denied %s of %q: %s", e.Verb, e.Environment, strings.Join(reasons, "; "))
}
