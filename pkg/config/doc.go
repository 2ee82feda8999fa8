// Package config loads and validates the two configuration inputs the
// CLI consumes: the tool settings file (state directory, template
// directory, telemetry) and per-environment definition files.
//
// Environment definitions are YAML, checked twice before use: a CUE
// schema rejects structural mistakes with positional error messages,
// then struct-tag validation enforces field-level constraints the
// schema cannot express.
package config
