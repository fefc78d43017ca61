package policy

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		nightlyChannelPolicy(),
		pinnedVersionPolicy(),
		fixtureDigestPolicy(),
	}
}

// nightlyChannelPolicy blocks nightly-channel installs in release
// environments, where only tagged versions are reproducible.
func nightlyChannelPolicy() Policy {
	return Policy{
		Name:        "no-nightly-in-release",
		Description: "Release environments must not install from nightly channels",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package gantry.plan.channels

import rego.v1

deny contains violation if {
	input.context.environment == "release"
	some step in input.plan.steps
	step.parameters.channel == "nightly"
	violation := {
		"message": sprintf("step %s installs from the nightly channel", [step.id]),
		"severity": "error",
		"step": step.id,
	}
}
`,
	}
}

// pinnedVersionPolicy warns when a stable framework install carries no
// explicit version, since an unpinned install drifts between runs.
func pinnedVersionPolicy() Policy {
	return Policy{
		Name:        "pinned-framework-versions",
		Description: "Stable framework installs should pin an explicit version",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package gantry.plan.pinning

import rego.v1

deny contains violation if {
	some step in input.plan.steps
	step.kind == "installFramework"
	step.parameters.channel == "stable"
	not step.parameters.version
	violation := {
		"message": sprintf("step %s installs a stable package without a pinned version", [step.id]),
		"severity": "warning",
		"step": step.id,
	}
}
`,
	}
}

// fixtureDigestPolicy requires prefetched datasets to carry a
// checksum so cached archives can be verified.
func fixtureDigestPolicy() Policy {
	return Policy{
		Name:        "fixture-digests",
		Description: "Prefetched fixtures must declare a sha256 digest",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package gantry.plan.fixtures

import rego.v1

deny contains violation if {
	some step in input.plan.steps
	step.kind == "prefetchFixture"
	startswith(step.id, "fetch-fixture-")
	not step.parameters.sha256
	violation := {
		"message": sprintf("fixture step %s has no sha256 digest", [step.id]),
		"severity": "error",
		"step": step.id,
	}
}
`,
	}
}
