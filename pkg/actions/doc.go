// Package actions defines the remote action executors: narrow, swappable
// wrappers around the external capabilities the orchestrator drives — the
// infrastructure provisioning tool, the configuration-management tool, and
// SSH against the target host.
//
// Each executor takes fully resolved parameters (rendered directories,
// concrete connection details); discovery and templating happen in the
// steps that call them. Results are structured: captured output, exit
// status, and parsed key facts. Failures carry enough context for
// diagnosis and are classified as temporary or not so that steps can
// decide whether to retry.
package actions
