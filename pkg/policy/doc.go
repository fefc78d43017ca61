// Package policy gates install plans with Open Policy Agent rules.
// Built-in policies cover channel hygiene and fixture integrity;
// additional .rego files can be loaded from disk. Advisory mode
// reports violations, enforcing mode blocks plans on error-level
// findings.
package policy
