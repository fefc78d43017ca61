// Package executor runs resolved install plans on the local machine.
// Steps translate into external commands through a CommandRunner, so
// tests substitute a fake and production uses os/exec.
package executor
