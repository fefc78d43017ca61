package executor

import (
	"context"
	"os"
	"os/exec"
)

// Command is one external process invocation.
type Command struct {
	// Name is the program to run.
	Name string

	// Args are the program arguments.
	Args []string

	// Env holds extra KEY=VALUE pairs appended to the inherited
	// environment.
	Env []string
}

// CommandRunner runs external commands. The executor depends on this
// interface so tests can substitute a recording fake.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (output string, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Dir is the working directory for every command. Empty means
	// the process working directory.
	Dir string
}

// Run executes the command and returns its combined output.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (string, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = r.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	out, err := c.CombinedOutput()
	return string(out), err
}
