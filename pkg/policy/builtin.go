package policy

// builtinRules are compiled into every guard. They read their
// parameters (protected names, provider allowlist) from the evaluation
// input rather than embedding deployment-specific values in Rego.
func builtinRules() []Rule {
	return []Rule{
		{
			Name:        "protected-environments",
			Description: "Blocks destroy and purge of environments named in the protected list.",
			Severity:    SeverityCritical,
			Enabled:     true,
			Rego: `package hoist.protected

deny contains msg if {
	input.verb in {"destroy", "purge"}
	some name in input.context.protected_environments
	name == input.environment.name
	msg := sprintf("environment %q is protected from %s", [name, input.verb])
}
`,
		},
		{
			Name:        "cloud-provider-allowlist",
			Description: "Restricts cloud provisioning to an allowlist when one is configured.",
			Severity:    SeverityError,
			Enabled:     true,
			Rego: `package hoist.providers

deny contains msg if {
	input.verb == "provision"
	input.environment.provider_kind == "cloud"
	count(input.context.allowed_cloud_providers) > 0
	not input.environment.cloud_provider in {p | some p in input.context.allowed_cloud_providers}
	msg := sprintf("cloud provider %q is not in the allowlist", [input.environment.cloud_provider])
}
`,
		},
		{
			Name:        "destroy-running-warning",
			Description: "Warns when a running environment is destroyed without being stopped first.",
			Severity:    SeverityWarning,
			Enabled:     true,
			Rego: `package hoist.running

deny contains msg if {
	input.verb == "destroy"
	input.environment.state == "running"
	msg := sprintf("environment %q is still running", [input.environment.name])
}
`,
		},
	}
}
