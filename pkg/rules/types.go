// Package rules models known upstream incompatibilities as declarative
// compatibility rules: a subject framework, a version condition, and a
// single consequence (pin an auxiliary package, exclude a version,
// apply a patch, or skip a step). Rules are data records evaluated in
// declaration order; adding a rule is additive, never a structural
// edit to planner control flow.
package rules

import (
	"fmt"

	"github.com/gantry-dev/gantry/pkg/config"
	"github.com/gantry-dev/gantry/pkg/version"
)

// Wildcard marks a rule that applies to every configuration rather
// than a single framework.
const Wildcard config.Framework = "*"

// ConsequenceKind enumerates what a matching rule does.
type ConsequenceKind string

const (
	// ConsequencePin installs an auxiliary package under a constraint.
	ConsequencePin ConsequenceKind = "pin"

	// ConsequenceExclude forbids an exact version of a package.
	ConsequenceExclude ConsequenceKind = "exclude"

	// ConsequencePatch applies a source patch after the install step.
	ConsequencePatch ConsequenceKind = "patch"

	// ConsequenceSkip suppresses a named follow-up step.
	ConsequenceSkip ConsequenceKind = "skip"
)

// Consequence is the single side effect a matching rule produces.
type Consequence struct {
	Kind ConsequenceKind `json:"kind"`

	// Package is the pin/exclude target.
	Package string `json:"package,omitempty"`

	// Constraint is a pip-style version constraint ("<3", "!=1.19.4").
	Constraint string `json:"constraint,omitempty"`

	// Patch identifies the source patch for ConsequencePatch.
	Patch string `json:"patch,omitempty"`

	// Target names the step slug suppressed by ConsequenceSkip.
	Target string `json:"target,omitempty"`
}

// Rule is one declarative compatibility record.
type Rule struct {
	// ID is a stable identifier for logs and metrics.
	ID string `json:"id"`

	// Framework is the subject framework, or Wildcard.
	Framework config.Framework `json:"framework"`

	// When restricts the rule to a version range. Nil means the rule is
	// presence-conditioned: it fires whenever the framework is
	// requested, on any channel.
	When *version.Range `json:"-"`

	// Consequence is applied when the rule matches.
	Consequence Consequence `json:"consequence"`

	// Reason documents the upstream incompatibility.
	Reason string `json:"reason"`
}

// Match records a rule that fired for a framework's resolved channel.
type Match struct {
	Rule Rule
}

// UnknownFrameworkError reports a rule whose subject framework is not
// part of the configuration surface. It indicates a rule-set /
// configuration mismatch and is fatal before planning.
type UnknownFrameworkError struct {
	RuleID    string
	Framework config.Framework
}

// Error implements the error interface.
func (e *UnknownFrameworkError) Error() string {
	return fmt.Sprintf("rule %s references unknown framework %q", e.RuleID, e.Framework)
}

// RuleSet is an ordered, read-only collection of compatibility rules.
// It is loaded once and safe for concurrent readers.
type RuleSet struct {
	rules []Rule
}

// New builds a rule set preserving declaration order.
func New(rules ...Rule) *RuleSet {
	return &RuleSet{rules: rules}
}

// All returns every rule in declaration order.
func (rs *RuleSet) All() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// RulesFor returns the rules targeting the given framework, in
// declaration order. Wildcard rules are not included; see Global.
func (rs *RuleSet) RulesFor(fw config.Framework) []Rule {
	var out []Rule
	for _, r := range rs.rules {
		if r.Framework == fw {
			out = append(out, r)
		}
	}
	return out
}

// Global returns the wildcard rules that apply to every configuration.
func (rs *RuleSet) Global() []Rule {
	var out []Rule
	for _, r := range rs.rules {
		if r.Framework == Wildcard {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks that every rule targets a known framework.
func (rs *RuleSet) Validate() error {
	for _, r := range rs.rules {
		if r.Framework == Wildcard {
			continue
		}
		if !config.KnownFramework(r.Framework) {
			return &UnknownFrameworkError{RuleID: r.ID, Framework: r.Framework}
		}
	}
	return nil
}

// Evaluate returns the rules that fire for a framework's resolved
// channel. A framework that is not requested matches nothing. Rules
// with a version condition require a pinned release: the nightly
// channel matches no numeric range. Independent rules for the same
// framework may all fire; each contributes exactly one consequence.
func (rs *RuleSet) Evaluate(fw config.Framework, ch config.Channel) []Match {
	if !ch.Requested() {
		return nil
	}

	var matches []Match
	for _, r := range rs.RulesFor(fw) {
		if r.When == nil {
			matches = append(matches, Match{Rule: r})
			continue
		}
		if ch.Kind == config.ChannelStable && r.When.Matches(ch.Spec) {
			matches = append(matches, Match{Rule: r})
		}
	}
	return matches
}
